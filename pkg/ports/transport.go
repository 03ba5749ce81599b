package ports

import (
	"context"

	"github.com/gridswap/gridswap/pkg/domain"
)

// Transport delivers protocol envelopes to other participants. The
// protocol is fire-and-forget at this layer: a successful Send means
// the peer acknowledged receipt, not that it acted on the message.
type Transport interface {
	// Send posts the envelope to the target URL and waits for the
	// synchronous ACK. A NACK or a non-2xx response is an error.
	Send(ctx context.Context, targetURL string, env *domain.Envelope) error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, targetURL string, env *domain.Envelope) error

// Send implements Transport.
func (f TransportFunc) Send(ctx context.Context, targetURL string, env *domain.Envelope) error {
	return f(ctx, targetURL, env)
}
