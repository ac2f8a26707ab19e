package metrics

import (
	"testing"
	"time"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if Handler() == nil {
		t.Fatal("expected metrics handler")
	}

	// The helpers must be safe after Init and no-ops on junk input.
	ObserveQuery("news", true)
	ObserveQuery("news", false)
	ObserveWorkItems("news", 3)
	ObserveWorkItems("news", -1)
	ObserveFragments("news", 2)
	ObserveFailure("news", "fetch")
	ObservePaceDelay(250 * time.Millisecond)
	ObservePaceDelay(-time.Second)
	SessionBorrowed(1)
	SessionBorrowed(-1)
}
