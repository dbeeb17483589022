package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func TestSubject(t *testing.T) {
	event := Event{Type: TypePostingCreated}

	cases := map[string]string{
		"":          "posting.created",
		"job-radar": "job-radar.posting.created",
		" radar. ":  "radar.posting.created",
	}
	for prefix, want := range cases {
		if got := Subject(prefix, event); got != want {
			t.Errorf("Subject(%q) = %q, want %q", prefix, got, want)
		}
	}
}

func TestEncodeStampsTime(t *testing.T) {
	data, err := encode(Event{Type: TypeApplicationApplied, PostingID: "p1", CandidateID: "c1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.OccurredAt.IsZero() || decoded.CandidateID != "c1" {
		t.Fatalf("unexpected event: %+v", decoded)
	}
}

func TestNewSelectsDriver(t *testing.T) {
	for _, driver := range []string{"", "none", " NONE "} {
		pub, err := New(context.Background(), Config{Driver: driver}, nil)
		if err != nil {
			t.Fatalf("driver %q: unexpected error: %v", driver, err)
		}
		if err := pub.Publish(context.Background(), Event{Type: TypePostingCreated}); err != nil {
			t.Fatalf("nop publish failed: %v", err)
		}
	}

	if _, err := New(context.Background(), Config{Driver: "kafka"}, nil); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}

	if _, err := New(context.Background(), Config{Driver: "redis", URL: "not a url"}, nil); err == nil {
		t.Fatalf("expected error for bad redis url")
	}
}

func TestRedisPublisherReportsUnreachableServer(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	pub := newRedisPublisher(rdb, "radar", zap.NewNop())
	defer pub.Close()

	if err := pub.Publish(context.Background(), Event{Type: TypePostingCreated, PostingID: "p1"}); err == nil {
		t.Fatalf("expected publish error for unreachable redis")
	}
}
