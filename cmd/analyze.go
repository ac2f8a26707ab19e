package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fintelworks/prospector/internal/aggregate"
	"github.com/fintelworks/prospector/internal/app"
	"github.com/fintelworks/prospector/internal/intel"
	"github.com/fintelworks/prospector/internal/logging"
)

// newAnalyzeCmd creates the 'analyze' subcommand: compile retrieval
// context for one company from the persisted snapshots.
func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <company>",
		Short: "Compiles retrieval context for a company",
		Long: `Loads the per-kind index snapshots and compiles the deduplicated,
similarity-ranked context for the named company.`,
		Args: cobra.ExactArgs(1),

		RunE: runAnalyzeCommand,
	}
}

func runAnalyzeCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := resolveApp(ctx)
	if err != nil {
		return err
	}

	agg, err := buildAggregator(ctx, a)
	if err != nil {
		return err
	}

	compiled, err := agg.Context(ctx, args[0])
	if err != nil {
		return fmt.Errorf("compile context: %w", err)
	}

	if compiled.Empty {
		fmt.Fprintf(cmd.OutOrStdout(), "no context found for %s\n", compiled.Entity)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), compiled.Text)
	fmt.Fprintf(cmd.ErrOrStderr(), "\n%d fragments\n", compiled.Fragments)
	return nil
}

func buildAggregator(ctx context.Context, a *app.App) (*aggregate.Aggregator, error) {
	stores, err := loadStores(ctx, a)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]intel.Index, len(stores))
	for kind, store := range stores {
		byName[storeNames[kind]] = store
	}
	cfg := a.Config()
	return aggregate.New(byName, aggregate.Config{
		PerStoreK:        cfg.Index.PerStoreK,
		MaxFragmentChars: cfg.Index.MaxFragmentChars,
	}, logging.Component(a.Logger(), "aggregate")), nil
}
