package session

import "strings"

const (
	simPrefix = "sim:"
	txnPrefix = "txn:"
)

// SimKey returns the state key of an agent's simulation-scoped record.
func SimKey(agentID string) string {
	return simPrefix + agentID
}

// TxnKey returns the state key of a transaction-scoped record.
func TxnKey(transactionID string) string {
	return txnPrefix + transactionID
}

// IsSimKey reports whether key addresses a simulation-scoped record.
func IsSimKey(key string) bool {
	return strings.HasPrefix(key, simPrefix)
}

// IsTxnKey reports whether key addresses a transaction-scoped record.
func IsTxnKey(key string) bool {
	return strings.HasPrefix(key, txnPrefix)
}
