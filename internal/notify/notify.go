// Package notify publishes run-completion events so downstream
// consumers can react to freshly harvested context.
package notify

import (
	"context"
	"time"

	"github.com/fintelworks/prospector/internal/intel"
	"github.com/fintelworks/prospector/internal/pipeline"
)

// RunEvent is the payload published when a run finishes.
type RunEvent struct {
	RunID      string                                `json:"run_id"`
	StartedAt  time.Time                             `json:"started_at"`
	FinishedAt time.Time                             `json:"finished_at"`
	Entities   int                                   `json:"entities"`
	Summaries  map[intel.SourceKind]pipeline.Summary `json:"summaries"`
}

// Publisher sends one payload to a named topic and returns the message
// ID assigned by the transport.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
