// Package report polls a fleet of agents for their status and turns
// the answers into JSON snapshots and markdown summaries. It is the
// read-only observer of a running market; nothing here mutates agent
// state.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gridswap/gridswap/pkg/domain"
)

// AgentStatus mirrors the agent server's GET /status response.
type AgentStatus struct {
	AgentID             string           `json:"agent_id"`
	AgentType           domain.AgentType `json:"agent_type"`
	Phase               domain.Phase     `json:"phase"`
	ActiveTransactionID string           `json:"active_transaction_id,omitempty"`
	StoredKWh           float64          `json:"stored_kwh"`
	CapacityKWh         float64          `json:"capacity_kwh"`
	FillRatio           float64          `json:"fill_ratio"`
	UpdatedAt           time.Time        `json:"updated_at,omitempty"`
}

// AgentReport is one agent's entry in a fleet snapshot. Exactly one of
// Status and Err is set; an unreachable agent still gets an entry so
// the report shows the hole.
type AgentReport struct {
	URL    string       `json:"url"`
	Status *AgentStatus `json:"status,omitempty"`
	Err    string       `json:"error,omitempty"`
}

// FleetReport is one point-in-time view of every polled agent.
type FleetReport struct {
	Timestamp time.Time     `json:"timestamp"`
	Agents    []AgentReport `json:"agents"`
}

// TotalStoredKWh sums the stored energy of every reachable agent.
func (r *FleetReport) TotalStoredKWh() float64 {
	var total float64
	for _, a := range r.Agents {
		if a.Status != nil {
			total += a.Status.StoredKWh
		}
	}
	return total
}

// TotalCapacityKWh sums the capacity of every reachable agent.
func (r *FleetReport) TotalCapacityKWh() float64 {
	var total float64
	for _, a := range r.Agents {
		if a.Status != nil {
			total += a.Status.CapacityKWh
		}
	}
	return total
}

// Unreachable returns the entries whose poll failed.
func (r *FleetReport) Unreachable() []AgentReport {
	var down []AgentReport
	for _, a := range r.Agents {
		if a.Status == nil {
			down = append(down, a)
		}
	}
	return down
}

// WriteJSON persists the report as an indented JSON file named after
// its timestamp, creating dir if needed. It returns the written path.
func (r *FleetReport) WriteJSON(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create report dir %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	name := fmt.Sprintf("report_%s.json", r.Timestamp.UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	return path, nil
}

// Markdown renders the report as a fleet table with totals, suitable
// for a terminal renderer or a plain pipe.
func (r *FleetReport) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# GridSwap Fleet Report\n\n")
	fmt.Fprintf(&b, "Generated %s\n\n", r.Timestamp.UTC().Format(time.RFC3339))

	b.WriteString("| Agent | Type | Phase | Transaction | Stored kWh | Capacity kWh | Fill |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, a := range r.Agents {
		if a.Status == nil {
			continue
		}
		s := a.Status
		txn := s.ActiveTransactionID
		if txn == "" {
			txn = "-"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %.2f | %.2f | %.0f%% |\n",
			s.AgentID, s.AgentType, s.Phase, txn,
			s.StoredKWh, s.CapacityKWh, s.FillRatio*100)
	}

	capacity := r.TotalCapacityKWh()
	fill := 0.0
	if capacity > 0 {
		fill = r.TotalStoredKWh() / capacity * 100
	}
	fmt.Fprintf(&b, "\n**Fleet total:** %.2f of %.2f kWh stored (%.0f%%)\n",
		r.TotalStoredKWh(), capacity, fill)

	if down := r.Unreachable(); len(down) > 0 {
		b.WriteString("\n## Unreachable\n\n")
		for _, a := range down {
			fmt.Fprintf(&b, "- %s: %s\n", a.URL, a.Err)
		}
	}
	return b.String()
}
