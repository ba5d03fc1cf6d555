// Package memory implements an in-process pub/sub bus, useful for
// single-instance deployments and tests.
package memory

import (
	"context"
	"path"
	"sync"

	"github.com/qabel/blockserver/pkg/pubsub"
	"github.com/qabel/blockserver/pkg/pubsub/registry"
)

func init() {
	registry.Register("memory", New)
}

// New returns an in-process pub/sub bus. Options are ignored.
func New(m map[string]interface{}) (pubsub.Bus, error) {
	return &bus{subs: map[*subscription]struct{}{}}, nil
}

type bus struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

type subscription struct {
	b        *bus
	pattern  string
	wildcard bool
	ch       chan map[string]interface{}
	once     sync.Once
}

func (s *subscription) Messages() <-chan map[string]interface{} { return s.ch }

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.b.mu.Lock()
		delete(s.b.subs, s)
		s.b.mu.Unlock()
		close(s.ch)
	})
	return nil
}

func (b *bus) Subscribe(ctx context.Context, channel string, wildcard bool) (pubsub.Subscription, error) {
	s := &subscription{
		b:        b,
		pattern:  channel,
		wildcard: wildcard,
		ch:       make(chan map[string]interface{}, 32),
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s, nil
}

func (b *bus) Publish(ctx context.Context, channel string, message map[string]interface{}) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs {
		matched := s.pattern == channel
		if !matched && s.wildcard {
			matched, _ = path.Match(s.pattern, channel)
		}
		if !matched {
			continue
		}
		select {
		case s.ch <- message:
		default:
			// Slow subscriber; drop rather than block the publisher.
		}
	}
	return nil
}

func (b *bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		close(s.ch)
	}
	b.subs = map[*subscription]struct{}{}
	return nil
}
