package sectioncache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "printshop:homepage:sections"

type invalidation struct {
	Origin string    `json:"origin"`
	At     time.Time `json:"at"`
}

// Relay keeps caches in several processes in step. Publish announces a
// confirmed write; Run revalidates the local cache when another process
// announces one.
type Relay struct {
	rc      *redis.Client
	channel string
	origin  string
	cache   *Cache
	logger  echo.Logger
}

// NewRelay creates a relay for cache over rc.
func NewRelay(rc *redis.Client, channel string, cache *Cache, logger echo.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Relay{
		rc:      rc,
		channel: channel,
		origin:  uuid.NewString(),
		cache:   cache,
		logger:  logger,
	}
}

// Publish tells other processes the section list changed.
func (r *Relay) Publish(ctx context.Context) error {
	data, err := json.Marshal(invalidation{Origin: r.origin, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("sectioncache: marshal invalidation: %w", err)
	}
	if err := r.rc.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("sectioncache: publish: %w", err)
	}
	return nil
}

// Run subscribes until ctx is done, reconnecting when the subscription
// channel closes.
func (r *Relay) Run(ctx context.Context) {
	for {
		r.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		r.logger.Error("sectioncache: pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (r *Relay) listen(ctx context.Context) {
	sub := r.rc.Subscribe(ctx, r.channel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev invalidation
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.Errorf("sectioncache: unable to parse invalidation: %v", err)
				continue
			}
			if ev.Origin == r.origin {
				continue
			}
			r.cache.Revalidate(ctx)
		}
	}
}
