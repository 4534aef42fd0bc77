// Package notify carries the two advisory channels of the dashboard: a
// Redis-backed change feed that tells controllers when a collection moved
// under them, and a bounded toast buffer for user-visible messages.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event describes one write against a collection.
type Event struct {
	Collection string `json:"collection"`
	RecordID   string `json:"recordId"`
	Action     string `json:"action"` // insert | update | delete
}

// Feed publishes and subscribes to per-collection change events over Redis
// pub/sub. Delivery is best-effort: a dropped event only delays a refresh
// until the next one.
type Feed struct {
	client *redis.Client
	prefix string
}

// NewFeed connects to Redis and verifies the connection.
func NewFeed(redisURL string) (*Feed, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Feed{client: client, prefix: "changes:"}, nil
}

// NewFeedWithClient wraps an existing Redis client.
func NewFeedWithClient(client *redis.Client) *Feed {
	return &Feed{client: client, prefix: "changes:"}
}

func (f *Feed) channel(collection string) string {
	return f.prefix + collection
}

// RecordChanged publishes a change event. It satisfies the store's Publisher
// interface; failures are logged, never surfaced, because the feed is
// advisory.
func (f *Feed) RecordChanged(ctx context.Context, collection, recordID, action string) {
	payload, err := json.Marshal(Event{Collection: collection, RecordID: recordID, Action: action})
	if err != nil {
		log.Printf("notify: encode change event: %v", err)
		return
	}
	if err := f.client.Publish(ctx, f.channel(collection), payload).Err(); err != nil {
		log.Printf("notify: publish %s change: %v", collection, err)
	}
}

// Subscription is a live change-feed registration. Close releases it.
type Subscription struct {
	pubsub *redis.PubSub
}

// Subscribe registers a callback for a collection's change events. The
// callback runs on the subscription's own goroutine until Close.
func (f *Feed) Subscribe(ctx context.Context, collection string, fn func(Event)) (*Subscription, error) {
	pubsub := f.client.Subscribe(ctx, f.channel(collection))
	// Force the SUBSCRIBE round trip so a dead Redis fails here, not later.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}

	go func() {
		for msg := range pubsub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("notify: decode change event on %s: %v", msg.Channel, err)
				continue
			}
			fn(event)
		}
	}()

	return &Subscription{pubsub: pubsub}, nil
}

// Close ends the subscription and its delivery goroutine.
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

func (f *Feed) Ping(ctx context.Context) error {
	return f.client.Ping(ctx).Err()
}

func (f *Feed) Close() error {
	return f.client.Close()
}
