package memory

import (
	"context"
	"testing"

	"github.com/fintelworks/prospector/internal/notify"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	var pub notify.Publisher = New()
	id1, err := pub.Publish(context.Background(), "runs", notify.RunEvent{RunID: "r1"})
	if err != nil || id1 != "memory-1" {
		t.Fatalf("unexpected publish result id=%s err=%v", id1, err)
	}
	id2, err := pub.Publish(context.Background(), "runs", notify.RunEvent{RunID: "r2"})
	if err != nil || id2 != "memory-2" {
		t.Fatalf("unexpected publish result id=%s err=%v", id2, err)
	}

	msgs := pub.(*Publisher).Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Topic != "runs" {
		t.Fatalf("topic not recorded: %+v", msgs[0])
	}

	msgs[0].Topic = "modified"
	if pub.(*Publisher).Messages()[0].Topic == "modified" {
		t.Fatal("expected Messages() to return a copy")
	}
}
