package interfaces

import "context"

// -----------------------------------------------------------------------------
// Listener receives one raw message published on a channel/event pair.
// Transports call a listener with one message at a time, in arrival order,
// so it must not block.
// -----------------------------------------------------------------------------

type Listener func(ctx context.Context, message []byte)

// -----------------------------------------------------------------------------
// IEventSource is the subscription side of a publish/subscribe transport.
// -----------------------------------------------------------------------------

type IEventSource interface {

	// Subscribe registers listener for event on channel.
	// The returned cancel func removes the registration.
	Subscribe(channel, event string, listener Listener) (cancel func(), err error)

	// -----------------------------------------------------------------------------

	// Close releases the transport
	Close() error
}

// -----------------------------------------------------------------------------
// IPublisher is the producing side of a transport.
// -----------------------------------------------------------------------------

type IPublisher interface {
	// Publish delivers message to every listener of channel/event
	Publish(channel, event string, message []byte) error
}

// -----------------------------------------------------------------------------
// IPubsub is a transport that can both publish and subscribe.
// -----------------------------------------------------------------------------

type IPubsub interface {
	IEventSource
	IPublisher
}
