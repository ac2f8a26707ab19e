// Package aggregate reassembles per-entity context from every populated
// index at analysis time: fan-in query, origin deduplication, size
// bounding, and source annotation for the downstream synthesis step.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/intel"
)

// Config controls context compilation.
type Config struct {
	// PerStoreK is how many fragments each index is asked for.
	PerStoreK int
	// MaxFragmentChars truncates each fragment before concatenation so
	// total context size stays bounded.
	MaxFragmentChars int
}

func (c *Config) applyDefaults() {
	if c.PerStoreK <= 0 {
		c.PerStoreK = 50
	}
	if c.MaxFragmentChars <= 0 {
		c.MaxFragmentChars = 2000
	}
}

// CompiledContext is the sole output artifact handed to the synthesis
// collaborator.
type CompiledContext struct {
	Entity    string
	Text      string
	Fragments int
	// Empty distinguishes "nothing found" from "found but empty" so the
	// caller can abort instead of synthesizing from vacuous input.
	Empty bool
}

// Aggregator queries every registered index for one entity and compiles
// the deduplicated, size-bounded context.
type Aggregator struct {
	stores map[string]intel.Index
	cfg    Config
	logger *zap.Logger
}

// New builds an Aggregator over the named stores.
func New(stores map[string]intel.Index, cfg Config, logger *zap.Logger) *Aggregator {
	cfg.applyDefaults()
	return &Aggregator{stores: stores, cfg: cfg, logger: logger}
}

// Context compiles the entity's context. Every store is queried with the
// entity name, entity-filtered; the union is deduplicated by origin so a
// source URL contributes at most once even when matched by several
// stores.
func (a *Aggregator) Context(ctx context.Context, entity string) (CompiledContext, error) {
	seen := make(map[string]struct{})
	var fragments []intel.Fragment

	names := make([]string, 0, len(a.stores))
	for name := range a.stores {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		found, err := a.stores[name].Query(ctx, entity, a.cfg.PerStoreK, intel.Filter{Entity: entity})
		if err != nil {
			return CompiledContext{}, fmt.Errorf("query %s index: %w", name, err)
		}
		for _, frag := range found {
			if _, dup := seen[frag.Origin]; dup {
				continue
			}
			seen[frag.Origin] = struct{}{}
			fragments = append(fragments, frag)
		}
	}

	if len(fragments) == 0 {
		a.logger.Info("no context found", zap.String("entity", entity))
		return CompiledContext{Entity: entity, Empty: true}, nil
	}

	parts := make([]string, 0, len(fragments))
	for _, frag := range fragments {
		content := truncate(frag.Content, a.cfg.MaxFragmentChars)
		parts = append(parts, fmt.Sprintf("[%s] %s\n%s", frag.Kind, frag.Origin, content))
	}

	return CompiledContext{
		Entity:    entity,
		Text:      strings.Join(parts, "\n---\n"),
		Fragments: len(fragments),
	}, nil
}

// truncate caps s at max bytes, backing up so a multibyte rune is never
// split.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
