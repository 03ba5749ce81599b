package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/gridswap/gridswap/pkg/domain"
)

type nopStore struct{}

func (nopStore) Save(ctx context.Context, key string, state *domain.NegotiationState) error {
	return nil
}
func (nopStore) Load(ctx context.Context, key string) (*domain.NegotiationState, error) {
	return nil, domain.ErrStateNotFound
}
func (nopStore) Delete(ctx context.Context, key string) error { return nil }
func (nopStore) List(ctx context.Context) ([]string, error)   { return nil, nil }

func TestLockEntriesAreReclaimed(t *testing.T) {
	mgr := NewManager(nopStore{})
	ctx := context.Background()
	count := 10000

	for i := 0; i < count; i++ {
		key := TxnKey(fmt.Sprintf("txn-%d", i))
		_ = mgr.Save(ctx, key, &domain.NegotiationState{})
		_ = mgr.Delete(ctx, key)
	}

	if remaining := len(mgr.locks); remaining != 0 {
		t.Errorf("lock map leak: %d entries remain after %d key lifecycles", remaining, count)
	}
}

func TestKeyHelpers(t *testing.T) {
	sim := SimKey("household-1")
	txn := TxnKey("abc")

	if sim != "sim:household-1" || txn != "txn:abc" {
		t.Fatalf("unexpected keys: %q %q", sim, txn)
	}
	if !IsSimKey(sim) || IsSimKey(txn) {
		t.Error("IsSimKey misclassifies")
	}
	if !IsTxnKey(txn) || IsTxnKey(sim) {
		t.Error("IsTxnKey misclassifies")
	}
}
