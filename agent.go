package gridswap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gridswap/gridswap/internal/dispatch"
	"github.com/gridswap/gridswap/internal/engine"
	"github.com/gridswap/gridswap/internal/gateway"
	"github.com/gridswap/gridswap/internal/logging"
	"github.com/gridswap/gridswap/internal/metrics"
	"github.com/gridswap/gridswap/internal/server"
	"github.com/gridswap/gridswap/internal/sim"
	"github.com/gridswap/gridswap/pkg/adapters/httpx"
	"github.com/gridswap/gridswap/pkg/adapters/memory"
	"github.com/gridswap/gridswap/pkg/domain"
	"github.com/gridswap/gridswap/pkg/ledger"
	"github.com/gridswap/gridswap/pkg/ports"
	"github.com/gridswap/gridswap/pkg/session"
)

// Agent is the high-level entry point for the GridSwap library. It
// wires the negotiation engine, dispatcher, protocol server, energy
// ledger and simulation loop into one market participant.
type Agent struct {
	id        string
	agentType domain.AgentType

	ledger     *ledger.Ledger
	profiles   ports.ProfileLedger
	sessions   *session.Manager
	engine     *engine.Engine
	dispatcher *dispatch.Dispatcher
	server     *server.Server
	loop       *sim.Loop
	metrics    *metrics.Metrics
	gwClient   *gateway.Client
	logger     *slog.Logger

	// Wiring collected by options before New assembles the parts.
	publicURL     string
	gatewayURL    string
	store         ports.StateStore
	locker        ports.DistributedLocker
	transport     ports.Transport
	hooks         domain.LifecycleHooks
	pricing       ports.PricingPolicy
	availability  ports.AvailabilityPolicy
	clock         func() time.Time
	simInterval   time.Duration
	simStartDelay time.Duration
	driftKWh      float64
	registerRetry time.Duration
	noMetrics     bool
}

// Option defines a functional option for configuring the Agent.
type Option func(*Agent)

// WithLogger sets a structured logger for every component. Defaults to
// a no-op logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithPublicURL sets the base URL peers use to reach this agent. It is
// stamped into outgoing envelopes and registered with the gateway.
func WithPublicURL(url string) Option {
	return func(a *Agent) {
		a.publicURL = url
	}
}

// WithGatewayURL sets the discovery gateway. Without one the agent can
// answer direct requests but cannot open searches or be discovered.
func WithGatewayURL(url string) Option {
	return func(a *Agent) {
		a.gatewayURL = url
	}
}

// WithStore injects the negotiation state store. Defaults to the
// in-memory store; the caller keeps ownership of an injected one.
func WithStore(store ports.StateStore) Option {
	return func(a *Agent) {
		a.store = store
	}
}

// WithLocker adds distributed locking for multi-replica deployments.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(a *Agent) {
		a.locker = locker
	}
}

// WithTransport replaces the outbound protocol transport.
func WithTransport(t ports.Transport) Option {
	return func(a *Agent) {
		a.transport = t
	}
}

// WithLifecycleHooks registers observability hooks next to the
// built-in metrics.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(a *Agent) {
		a.hooks = hooks
	}
}

// WithPricingPolicy overrides the seller's commercial terms.
func WithPricingPolicy(p ports.PricingPolicy) Option {
	return func(a *Agent) {
		a.pricing = p
	}
}

// WithAvailabilityPolicy overrides the participation rules.
func WithAvailabilityPolicy(p ports.AvailabilityPolicy) Option {
	return func(a *Agent) {
		a.availability = p
	}
}

// WithClock injects a time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		a.clock = now
	}
}

// WithSimInterval sets the simulation cadence.
func WithSimInterval(interval time.Duration) Option {
	return func(a *Agent) {
		a.simInterval = interval
	}
}

// WithSimStartDelay sets how long Run waits before the first cycle.
func WithSimStartDelay(delay time.Duration) Option {
	return func(a *Agent) {
		a.simStartDelay = delay
	}
}

// WithDrift sets the per-cycle energy drift: positive models
// generation, negative consumption.
func WithDrift(kwh float64) Option {
	return func(a *Agent) {
		a.driftKWh = kwh
	}
}

// WithRegisterRetry sets the gateway registration retry cadence.
func WithRegisterRetry(interval time.Duration) Option {
	return func(a *Agent) {
		a.registerRetry = interval
	}
}

// WithoutMetrics disables the Prometheus collectors and the /metrics
// endpoint.
func WithoutMetrics() Option {
	return func(a *Agent) {
		a.noMetrics = true
	}
}

// New assembles an agent around the given starting profile.
func New(profile *domain.AgentProfile, opts ...Option) (*Agent, error) {
	if profile == nil {
		return nil, fmt.Errorf("agent profile is required")
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	a := &Agent{
		id:        profile.AgentID,
		agentType: profile.AgentType,
		// Negative means unset, so an explicit zero delay still wins
		// over the loop's default.
		simStartDelay: -1,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.publicURL == "" {
		return nil, fmt.Errorf("agent %s: public URL is required, use WithPublicURL", a.id)
	}
	if a.logger == nil {
		a.logger = logging.NewNop()
	}
	a.logger = a.logger.With("agent", a.id)

	led, err := ledger.New(profile, ledger.WithLogger(a.logger))
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", a.id, err)
	}
	a.ledger = led
	a.profiles = led

	hooks := a.hooks
	if !a.noMetrics {
		a.metrics = metrics.New()
		a.profiles = a.metrics.InstrumentLedger(led)
		hooks = domain.MergeHooks(a.metrics.Hooks(), a.hooks)
	}

	if a.store == nil {
		a.store = memory.NewStore()
	}
	sessionOpts := []session.Option{session.WithLogger(a.logger)}
	if a.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(a.locker))
	}
	a.sessions = session.NewManager(a.store, sessionOpts...)

	if a.transport == nil {
		a.transport = httpx.New()
	}

	engineOpts := []engine.Option{
		engine.WithLogger(a.logger),
		engine.WithLifecycleHooks(hooks),
		engine.WithCallbackURI(a.publicURL),
	}
	if a.clock != nil {
		engineOpts = append(engineOpts, engine.WithClock(a.clock))
	}
	if a.pricing != nil {
		engineOpts = append(engineOpts, engine.WithPricingPolicy(a.pricing))
	}
	if a.availability != nil {
		engineOpts = append(engineOpts, engine.WithAvailabilityPolicy(a.availability))
	}
	a.engine = engine.New(engineOpts...)

	dispatchOpts := []dispatch.Option{
		dispatch.WithLogger(a.logger),
		dispatch.WithLifecycleHooks(hooks),
		dispatch.WithGatewayURL(a.gatewayURL),
	}
	if a.clock != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithClock(a.clock))
	}
	a.dispatcher = dispatch.New(a.id, a.sessions, a.engine, a.transport, a.profiles, dispatchOpts...)

	serverOpts := []server.Option{server.WithLogger(a.logger)}
	if a.metrics != nil {
		serverOpts = append(serverOpts, server.WithMetricsHandler(a.metrics.Handler()))
	}
	a.server = server.New(a.id, a.dispatcher, a.profiles, a.sessions, serverOpts...)

	simOpts := []sim.Option{sim.WithLogger(a.logger), sim.WithDrift(a.driftKWh)}
	if a.simInterval > 0 {
		simOpts = append(simOpts, sim.WithInterval(a.simInterval))
	}
	if a.simStartDelay >= 0 {
		simOpts = append(simOpts, sim.WithStartDelay(a.simStartDelay))
	}
	a.loop = sim.New(a.id, a.dispatcher, a.profiles, simOpts...)

	if a.gatewayURL != "" {
		a.gwClient = gateway.NewClient(a.gatewayURL, gateway.WithClientLogger(a.logger))
	}

	return a, nil
}

// ID returns the agent identifier.
func (a *Agent) ID() string {
	return a.id
}

// Type returns the agent's market class.
func (a *Agent) Type() domain.AgentType {
	return a.agentType
}

// Handler returns the protocol HTTP handler: the eight protocol
// actions plus profile, status, health and metrics endpoints.
func (a *Agent) Handler() http.Handler {
	return a.server.Handler()
}

// Profile returns the agent's current energy position.
func (a *Agent) Profile(ctx context.Context) (*domain.AgentProfile, error) {
	return a.profiles.Snapshot(ctx)
}

// Registration is the entry this agent publishes to the gateway. Every
// agent registers as a seller endpoint; searches it sends are excluded
// from its own fan-out by the gateway.
func (a *Agent) Registration() domain.Registration {
	return domain.Registration{
		SubscriberID:  a.id,
		SubscriberURI: a.publicURL,
		Role:          domain.RoleBPP,
		AgentType:     a.agentType,
	}
}

// Tick runs one simulation cycle immediately, outside the loop's
// cadence. Tests and examples use it to drive the market
// deterministically.
func (a *Agent) Tick(ctx context.Context) error {
	return a.dispatcher.Tick(ctx)
}

// Run registers with the gateway and drives the simulation loop until
// the context is canceled. It always returns the context's error.
func (a *Agent) Run(ctx context.Context) error {
	if a.gwClient != nil {
		go func() {
			if err := a.gwClient.RegisterWithRetry(ctx, a.Registration(), a.registerRetry); err != nil && ctx.Err() == nil {
				a.logger.Error("gateway registration abandoned", "err", err)
			}
		}()
	} else {
		a.logger.Warn("no gateway configured, agent is not discoverable")
	}
	return a.loop.Run(ctx)
}

// Drain blocks until in-flight request dispatches finish or the
// context expires. Call it after the HTTP server has stopped accepting
// requests.
func (a *Agent) Drain(ctx context.Context) error {
	return a.server.Drain(ctx)
}

// Close releases resources the agent created. Injected stores and
// lockers stay open; their owners close them.
func (a *Agent) Close() {
	a.ledger.Close()
}
