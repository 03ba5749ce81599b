package gridswap_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridswap/gridswap"
	"github.com/gridswap/gridswap/internal/gateway"
	"github.com/gridswap/gridswap/pkg/adapters/httpx"
	"github.com/gridswap/gridswap/pkg/adapters/memory"
	"github.com/gridswap/gridswap/pkg/domain"
	"github.com/gridswap/gridswap/pkg/policy"
)

// lateHandler lets a test server exist before the agent behind it does:
// the agent needs the server's URL, the server needs the agent's
// handler.
type lateHandler struct {
	mu sync.RWMutex
	h  http.Handler
}

func (l *lateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.mu.RLock()
	h := l.h
	l.mu.RUnlock()
	if h == nil {
		http.Error(w, "agent not ready", http.StatusServiceUnavailable)
		return
	}
	h.ServeHTTP(w, r)
}

func (l *lateHandler) set(h http.Handler) {
	l.mu.Lock()
	l.h = h
	l.mu.Unlock()
}

// startAgent runs an agent behind its own test server and returns it
// with its public base URL.
func startAgent(t *testing.T, profile *domain.AgentProfile, gatewayURL string, opts ...gridswap.Option) (*gridswap.Agent, string) {
	t.Helper()

	late := &lateHandler{}
	ts := httptest.NewServer(late)
	t.Cleanup(ts.Close)

	opts = append([]gridswap.Option{
		gridswap.WithPublicURL(ts.URL),
		gridswap.WithGatewayURL(gatewayURL),
	}, opts...)
	agent, err := gridswap.New(profile, opts...)
	require.NoError(t, err)
	t.Cleanup(agent.Close)

	late.set(agent.Handler())
	return agent, ts.URL
}

func agentStatus(t *testing.T, baseURL string) (phase domain.Phase, txnID string) {
	t.Helper()

	resp, err := http.Get(baseURL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Phase               domain.Phase `json:"phase"`
		ActiveTransactionID string       `json:"active_transaction_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Phase, body.ActiveTransactionID
}

// TestMarketLifecycle runs a full discovery-to-settlement negotiation
// between two live agents through a real gateway: search fan-out,
// offer selection, quoting, confirmation and the energy transfer.
func TestMarketLifecycle(t *testing.T) {
	ctx := context.Background()

	gw := gateway.New(memory.NewRegistry(), httpx.New())
	gwSrv := httptest.NewServer(gw.Handler())
	t.Cleanup(gwSrv.Close)

	alwaysSell := policy.NewStandardAvailability()
	alwaysSell.Rand = func() float64 { return 0.99 }

	buyer, buyerURL := startAgent(t, &domain.AgentProfile{
		AgentID:          "household-low",
		AgentType:        domain.AgentHousehold,
		CurrentEnergyKWh: 1,
		MaxCapacityKWh:   15,
	}, gwSrv.URL)

	seller, _ := startAgent(t, &domain.AgentProfile{
		AgentID:          "household-full",
		AgentType:        domain.AgentHousehold,
		CurrentEnergyKWh: 12,
		MaxCapacityKWh:   15,
	}, gwSrv.URL, gridswap.WithAvailabilityPolicy(alwaysSell))

	client := gateway.NewClient(gwSrv.URL)
	require.NoError(t, client.Register(ctx, buyer.Registration()))
	require.NoError(t, client.Register(ctx, seller.Registration()))

	// One tick on the nearly empty buyer opens the search; the rest of
	// the flow runs through the agents' HTTP callbacks.
	require.NoError(t, buyer.Tick(ctx))

	require.Eventually(t, func() bool {
		p, err := buyer.Profile(ctx)
		return err == nil && p.CurrentEnergyKWh > 1
	}, 5*time.Second, 25*time.Millisecond, "buyer never settled a contract")

	bp, err := buyer.Profile(ctx)
	require.NoError(t, err)
	sp, err := seller.Profile(ctx)
	require.NoError(t, err)

	// The standard settlement block moves regardless of the advertised
	// offer quantity.
	assert.InDelta(t, 11.0, bp.CurrentEnergyKWh, 1e-9)
	assert.InDelta(t, 2.0, sp.CurrentEnergyKWh, 1e-9)

	// Settlement releases the buyer's simulation record so the next
	// tick can trade again.
	require.Eventually(t, func() bool {
		phase, txn := agentStatus(t, buyerURL)
		return phase == domain.PhaseIdle && txn == ""
	}, 5*time.Second, 25*time.Millisecond, "buyer simulation record never released")

	// At 11 of 15 kWh the buyer is above the buy threshold; the next
	// tick stays idle instead of opening another search.
	require.NoError(t, buyer.Tick(ctx))
	phase, txn := agentStatus(t, buyerURL)
	assert.Equal(t, domain.PhaseIdle, phase)
	assert.Empty(t, txn)
}

// TestMarketSweep covers a search that nobody answers: the buyer stays
// bound to the transaction until the next tick sweeps it back to idle.
func TestMarketSweep(t *testing.T) {
	ctx := context.Background()

	gw := gateway.New(memory.NewRegistry(), httpx.New())
	gwSrv := httptest.NewServer(gw.Handler())
	t.Cleanup(gwSrv.Close)

	buyer, buyerURL := startAgent(t, &domain.AgentProfile{
		AgentID:          "household-low",
		AgentType:        domain.AgentHousehold,
		CurrentEnergyKWh: 1,
		MaxCapacityKWh:   15,
	}, gwSrv.URL)

	// The buyer is the only subscriber and its own searches are
	// excluded from the fan-out, so no offers ever come back.
	client := gateway.NewClient(gwSrv.URL)
	require.NoError(t, client.Register(ctx, buyer.Registration()))

	require.NoError(t, buyer.Tick(ctx))
	phase, txn := agentStatus(t, buyerURL)
	assert.Equal(t, domain.PhaseAwaitingOffers, phase)
	assert.NotEmpty(t, txn)

	require.NoError(t, buyer.Tick(ctx))
	phase, txn = agentStatus(t, buyerURL)
	assert.Equal(t, domain.PhaseIdle, phase)
	assert.Empty(t, txn)

	p, err := buyer.Profile(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p.CurrentEnergyKWh, 1e-9, "a failed search must not move energy")
}
