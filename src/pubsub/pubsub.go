// Package pubsub provides the publish/subscribe transports that deliver
// visitor events to the controller.
package pubsub

import "visits-observer/src/interfaces"

// topic is the key a channel/event pair is registered under. It doubles as
// the PostgreSQL NOTIFY channel name.
func topic(channel, event string) string {
	return channel + ":" + event
}

var (
	_ interfaces.IPubsub = (*MemoryPubsub)(nil)
	_ interfaces.IPubsub = (*PostgresPubsub)(nil)

	_ interfaces.IPublisher = (*PostgresPublisher)(nil)
)
