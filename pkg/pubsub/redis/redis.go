// Package redis implements the pub/sub bus contract on top of Redis
// publish/subscribe, so multiple gateway instances share websocket fan-out.
package redis

import (
	"context"
	"encoding/json"

	goredis "github.com/go-redis/redis/v8"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/qabel/blockserver/pkg/pubsub"
	"github.com/qabel/blockserver/pkg/pubsub/registry"
)

func init() {
	registry.Register("redis", New)
}

type config struct {
	Address  string `mapstructure:"address"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c *config) init() {
	if c.Address == "" {
		c.Address = "localhost:6379"
	}
}

func parseConfig(m map[string]interface{}) (*config, error) {
	c := &config{}
	if err := mapstructure.Decode(m, c); err != nil {
		return nil, errors.Wrap(err, "redis: error decoding config")
	}
	return c, nil
}

type bus struct {
	client *goredis.Client
}

// New returns a Redis-backed pub/sub bus.
func New(m map[string]interface{}) (pubsub.Bus, error) {
	c, err := parseConfig(m)
	if err != nil {
		return nil, err
	}
	c.init()

	client := goredis.NewClient(&goredis.Options{
		Addr:     c.Address,
		Username: c.Username,
		Password: c.Password,
		DB:       c.DB,
	})
	return &bus{client: client}, nil
}

func (b *bus) Subscribe(ctx context.Context, channel string, wildcard bool) (pubsub.Subscription, error) {
	var ps *goredis.PubSub
	if wildcard {
		ps = b.client.PSubscribe(ctx, channel)
	} else {
		ps = b.client.Subscribe(ctx, channel)
	}
	if _, err := ps.Receive(ctx); err != nil {
		return nil, errors.Wrap(err, "redis: error subscribing")
	}

	s := &subscription{ps: ps, ch: make(chan map[string]interface{}, 32)}
	go s.pump()
	return s, nil
}

type subscription struct {
	ps *goredis.PubSub
	ch chan map[string]interface{}
}

func (s *subscription) pump() {
	defer close(s.ch)
	for msg := range s.ps.Channel() {
		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte(msg.Payload), &decoded); err != nil {
			continue
		}
		s.ch <- decoded
	}
}

func (s *subscription) Messages() <-chan map[string]interface{} { return s.ch }

func (s *subscription) Close() error {
	return s.ps.Close()
}

func (b *bus) Publish(ctx context.Context, channel string, message map[string]interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "redis: error encoding message")
	}
	return b.client.Publish(ctx, channel, payload).Err()
}

func (b *bus) Close() error {
	return b.client.Close()
}
