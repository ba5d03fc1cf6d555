// Package pubsub defines the publish/subscribe bus contract used to fan out
// object change notifications to websocket listeners.
package pubsub

import "context"

// Subscription is a single channel (or wildcard pattern) subscription. An
// instance is bound to the one channel or pattern it was created for. Each
// call to Bus.Subscribe returns a new, independent Subscription; an earlier
// one is not replaced and keeps receiving until it is closed.
type Subscription interface {
	// Messages returns the channel of incoming messages. It is closed when
	// the subscription is closed or the underlying connection is lost.
	Messages() <-chan map[string]interface{}

	// Close releases the subscription.
	Close() error
}

// Bus is the publish/subscribe contract shared by the memory and redis
// implementations.
type Bus interface {
	// Subscribe opens a Subscription to channel. If wildcard is true,
	// channel is a glob-style pattern (e.g. "storage_{prefix}/*").
	Subscribe(ctx context.Context, channel string, wildcard bool) (Subscription, error)

	// Publish sends message to every current subscriber of channel.
	Publish(ctx context.Context, channel string, message map[string]interface{}) error

	// Close releases any resources held by the bus itself.
	Close() error
}

// NewFunc is the function a bus implementation registers at init time.
type NewFunc func(options map[string]interface{}) (Bus, error)
