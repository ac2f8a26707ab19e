package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/discover"
	"github.com/fintelworks/prospector/internal/logging"
	"github.com/fintelworks/prospector/internal/roster"
	"github.com/fintelworks/prospector/internal/session"
)

// newEnrichCmd creates the 'enrich' subcommand: fill in missing profile
// and website URLs on the roster via search-based discovery.
func newEnrichCmd() *cobra.Command {
	var (
		output      string
		profileHost string
		verify      bool
	)

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Fills in missing roster URLs",
		Long: `Discovers profile and website URLs for roster entries that are
missing them and writes the enriched roster as CSV.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEnrichCommand(cmd, output, profileHost, verify)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the enriched roster to this file (stdout when empty)")
	cmd.Flags().StringVar(&profileHost, "profile-host", "", "host that company profiles live on")
	cmd.Flags().BoolVar(&verify, "verify", false, "verify candidate URLs through a browser session")

	return cmd
}

func runEnrichCommand(cmd *cobra.Command, output, profileHost string, verify bool) error {
	ctx := cmd.Context()
	a, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	cfg := a.Config()
	logger := a.Logger()

	entities, err := roster.Load(cfg.Roster.Path)
	if err != nil {
		return err
	}

	searchClient, err := newSearchClient(a)
	if err != nil {
		return err
	}

	var verifier discover.Verifier
	if verify {
		launcher := session.NewLauncher(session.Config{
			UserAgent:   cfg.Session.UserAgent,
			PageTimeout: cfg.PageTimeout(),
			Headless:    cfg.Session.Headless,
		}, logging.Component(logger, "session"))
		defer launcher.Close()

		pool, err := session.NewPool(ctx, 1, launcher.NewSession, logging.Component(logger, "pool"))
		if err != nil {
			return fmt.Errorf("start session pool: %w", err)
		}
		defer pool.Shutdown(context.WithoutCancel(ctx))
		verifier = discover.NewPoolVerifier(pool)
	}

	enricher := discover.New(searchClient, verifier, discover.Config{
		ProfileHost: profileHost,
	}, logging.Component(logger, "discover"))

	enriched := enricher.Enrich(ctx, entities)

	out := cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	w := csv.NewWriter(out)
	if err := w.Write([]string{"display_name", "canonical_name", "profile_url", "website_url"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, entity := range enriched {
		if err := w.Write([]string{entity.Name, entity.Name, entity.ProfileURL, entity.WebsiteURL}); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush roster: %w", err)
	}

	logger.Info("roster enriched", zap.Int("entities", len(enriched)))
	return nil
}
