package usecase

import (
	"context"

	"SignalFeed/internal/domain/models"
	drepo "SignalFeed/internal/domain/repository"
	mid "SignalFeed/internal/middleware"
	applogger "SignalFeed/pkg/logger"
)

// FeedCollector ties the push channel to the feed: it opens the connection
// for the session, wires the subscription replay on (re)connect, and routes
// inbound signals through the pipeline into the store and archiver.
type FeedCollector struct {
	stream  drepo.SignalStream
	tracker *SubscriptionTracker
	feed    *Feed
	pipe    *mid.SignalPipeline
	metrics drepo.Metrics
	log     *applogger.Logger
	token   string
}

func NewFeedCollector(
	stream drepo.SignalStream,
	tracker *SubscriptionTracker,
	feed *Feed,
	pipe *mid.SignalPipeline,
	metrics drepo.Metrics,
	log *applogger.Logger,
	token string,
) *FeedCollector {
	return &FeedCollector{
		stream:  stream,
		tracker: tracker,
		feed:    feed,
		pipe:    pipe,
		metrics: metrics,
		log:     log,
		token:   token,
	}
}

// IsConnected reports whether the push channel is up.
func (c *FeedCollector) IsConnected() bool {
	return c.stream.State() == drepo.StateConnected
}

// Start opens the push channel and begins consuming. A connect failure is
// returned but leaves the feed usable over the REST path alone.
func (c *FeedCollector) Start(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}

	hooks := drepo.StreamHooks{
		OnConnect: func() {
			if err := c.tracker.OnConnected(); err != nil {
				c.log.Warn("scope replay failed", applogger.Error(err))
				c.metrics.RecordError("scope_replay")
			}
		},
		OnSignal: func(s models.Signal) {
			if err := c.pipe.Process(ctx, &s); err != nil {
				c.log.Warn("signal rejected", applogger.String("id", s.ID), applogger.Error(err))
			}
		},
		OnError: func(err error) {
			c.log.Error("push channel error", applogger.Error(err))
			c.metrics.RecordError("stream")
		},
	}

	return c.stream.Open(ctx, c.token, hooks)
}

// Shutdown stops the pipeline and closes the push channel.
func (c *FeedCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
