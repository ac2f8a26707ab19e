package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fintelworks/prospector/internal/storage"
)

// runStatusObject is where the latest run status is persisted, next to
// the index snapshots.
const runStatusObject = "runs/latest.json"

// SaveRunStatus persists the run status so a later serve process can
// report it on /v1/runs.
func SaveRunStatus(ctx context.Context, provider storage.Provider, status RunStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode run status: %w", err)
	}
	if err := provider.Save(ctx, runStatusObject, data); err != nil {
		return fmt.Errorf("save run status: %w", err)
	}
	return nil
}

// LoadRunStatus reads the last persisted run status. The boolean is
// false when no run has been recorded yet.
func LoadRunStatus(ctx context.Context, provider storage.Provider) (RunStatus, bool, error) {
	data, err := provider.Load(ctx, runStatusObject)
	if errors.Is(err, storage.ErrNotFound) {
		return RunStatus{}, false, nil
	}
	if err != nil {
		return RunStatus{}, false, fmt.Errorf("load run status: %w", err)
	}
	var status RunStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return RunStatus{}, false, fmt.Errorf("decode run status: %w", err)
	}
	return status, true, nil
}
