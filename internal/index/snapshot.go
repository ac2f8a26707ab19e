package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/intel"
	"github.com/fintelworks/prospector/internal/storage"
)

const snapshotObject = "snapshot.json"

// snapshot is the persisted form of a store. Vectors are not persisted;
// they are re-derived from content on load, which keeps the snapshot
// format independent of the embedder's dimensionality.
type snapshot struct {
	Name      string           `json:"name"`
	Fragments []intel.Fragment `json:"fragments"`
}

// Persist writes the store's snapshot through the provider, one namespace
// per source kind.
func (s *Store) Persist(ctx context.Context, provider storage.Provider) error {
	s.mu.RLock()
	snap := snapshot{Name: s.name, Fragments: append([]intel.Fragment(nil), s.fragments...)}
	s.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal %s snapshot: %w", s.name, err)
	}
	if err := provider.Save(ctx, path.Join(s.name, snapshotObject), data); err != nil {
		return fmt.Errorf("persist %s snapshot: %w", s.name, err)
	}
	return nil
}

// Load creates a store from a persisted snapshot. An absent snapshot
// yields an empty, writable store; a corrupt one is treated the same,
// with a warning, so a damaged file never blocks a fresh run.
func Load(ctx context.Context, provider storage.Provider, name string, embedder intel.Embedder, logger *zap.Logger) (*Store, error) {
	store := New(name, embedder, logger)

	data, err := provider.Load(ctx, path.Join(name, snapshotObject))
	if errors.Is(err, storage.ErrNotFound) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s snapshot: %w", name, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("corrupt index snapshot, starting empty",
			zap.String("index", name), zap.Error(err))
		return store, nil
	}

	store.Add(snap.Fragments)
	return store, nil
}
