// Package transport carries rendered segments from the queue to the playout
// side. The listener-facing consumer normally lives out of process and
// follows the Transport contract; the file sink in this package is the
// in-repo reference implementation, delivering segments into a local playout
// directory at listener speed for development and tests.
//
// Three signals flow between a transport and the scheduler: taking the queue
// head is itself the consumed signal the scheduler reacts to, Producer
// carries the urgency signal back when the transport's lookahead runs short,
// and Connect/Disconnect bound the consumption lifecycle.
package transport

import "context"

// Transport is the consumer side of the segment queue.
type Transport interface {
	// Connect starts consuming segments until the context is canceled or
	// Disconnect is called. Connecting twice without a disconnect fails.
	Connect(ctx context.Context) error

	// Disconnect stops consumption and waits for in-flight delivery.
	Disconnect()

	// Name identifies the transport in logs.
	Name() string
}

// Producer accepts a transport's request for more segments when its
// lookahead runs short. The scheduler satisfies this.
type Producer interface {
	RequestMoreSegments()
}
