package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestFeed(t *testing.T) (*Feed, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	feed, err := NewFeed("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create feed: %v", err)
	}
	return feed, s
}

func TestNewFeed(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	feed, err := NewFeed("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewFeed failed: %v", err)
	}
	defer feed.Close()

	if err := feed.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewFeedBadURL(t *testing.T) {
	if _, err := NewFeed("not-a-redis-url"); err == nil {
		t.Error("expected error for malformed URL")
	}
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	feed, s := setupTestFeed(t)
	defer feed.Close()
	defer s.Close()

	ctx := context.Background()
	received := make(chan Event, 1)

	sub, err := feed.Subscribe(ctx, "chitoor_approvals", func(e Event) {
		received <- e
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	feed.RecordChanged(ctx, "chitoor_approvals", "a1", "update")

	select {
	case e := <-received:
		if e.Collection != "chitoor_approvals" || e.RecordID != "a1" || e.Action != "update" {
			t.Errorf("unexpected event: %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
}

func TestSubscribeIsPerCollection(t *testing.T) {
	feed, s := setupTestFeed(t)
	defer feed.Close()
	defer s.Close()

	ctx := context.Background()
	received := make(chan Event, 1)

	sub, err := feed.Subscribe(ctx, "projects", func(e Event) {
		received <- e
	})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	// An event on a different collection must not reach this subscriber.
	feed.RecordChanged(ctx, "chitoor_approvals", "a1", "insert")
	feed.RecordChanged(ctx, "projects", "p1", "insert")

	select {
	case e := <-received:
		if e.Collection != "projects" {
			t.Errorf("received event for wrong collection: %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
}

func TestSubscriptionClose(t *testing.T) {
	feed, s := setupTestFeed(t)
	defer feed.Close()
	defer s.Close()

	ctx := context.Background()
	sub, err := feed.Subscribe(ctx, "projects", func(Event) {})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
