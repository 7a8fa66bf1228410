// Package gochannel provides the in-process event channel used by single-node deployments and tests.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const defaultBuffer = 1000

// Option adjusts the channel configuration.
type Option func(*gochannel.Config)

// WithBuffer sets how many events a subscriber may lag behind before
// publishing blocks.
func WithBuffer(size int64) Option {
	return func(c *gochannel.Config) {
		c.OutputChannelBuffer = size
	}
}

// Blocking makes Publish wait until every subscriber acked the event and
// replays past events to late subscribers.
func Blocking() Option {
	return func(c *gochannel.Config) {
		c.Persistent = true
		c.BlockPublishUntilSubscriberAck = true
	}
}

// Config returns the channel configuration the options describe.
func Config(opts ...Option) gochannel.Config {
	config := gochannel.Config{OutputChannelBuffer: defaultBuffer}
	for _, opt := range opts {
		opt(&config)
	}

	return config
}

// CreateChannel creates a GoChannel pub/sub. The same instance serves as
// publisher and subscriber; events are lost on restart.
func CreateChannel(logger watermill.LoggerAdapter, opts ...Option) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(Config(opts...), logger)

	return pubSub, pubSub, nil
}

// CreateTestChannel creates a small blocking channel so a published event has
// reached its handlers when Publish returns.
func CreateTestChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	return CreateChannel(logger, WithBuffer(10), Blocking())
}
