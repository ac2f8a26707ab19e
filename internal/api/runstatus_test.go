package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/intel"
	"github.com/fintelworks/prospector/internal/pipeline"
	"github.com/fintelworks/prospector/internal/storage"
)

func TestRunStatusRoundTrip(t *testing.T) {
	t.Parallel()

	provider := storage.NewMemoryProvider()
	started := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	status := RunStatus{
		StartedAt:  started,
		FinishedAt: started.Add(12 * time.Minute),
		Summaries: map[intel.SourceKind]pipeline.Summary{
			intel.KindNews: {Attempted: 8, Fragments: 21, Failures: 1},
		},
	}
	require.NoError(t, SaveRunStatus(context.Background(), provider, status))

	loaded, ok, err := LoadRunStatus(context.Background(), provider)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, loaded.StartedAt.Equal(status.StartedAt))
	require.True(t, loaded.FinishedAt.Equal(status.FinishedAt))
	require.Equal(t, status.Summaries, loaded.Summaries)
}

func TestLoadRunStatusAbsent(t *testing.T) {
	t.Parallel()

	_, ok, err := LoadRunStatus(context.Background(), storage.NewMemoryProvider())
	require.NoError(t, err)
	require.False(t, ok)
}

// A serve process restores the last persisted run, so /v1/runs reports
// it even though the harvest happened in another process.
func TestRunsServedFromPersistedStatus(t *testing.T) {
	t.Parallel()

	provider := storage.NewMemoryProvider()
	started := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	status := RunStatus{
		StartedAt:  started,
		FinishedAt: started.Add(5 * time.Minute),
		Summaries: map[intel.SourceKind]pipeline.Summary{
			intel.KindJob: {Attempted: 3, Fragments: 9},
		},
	}
	require.NoError(t, SaveRunStatus(context.Background(), provider, status))

	loaded, ok, err := LoadRunStatus(context.Background(), provider)
	require.NoError(t, err)
	require.True(t, ok)

	s := NewServer(nil, Config{}, zap.NewNop())
	s.RecordRun(loaded.StartedAt, loaded.FinishedAt, loaded.Summaries)

	rec := doRequest(t, s.Handler(), http.MethodGet, "/v1/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"job"`)
}
