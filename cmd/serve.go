package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/api"
	"github.com/fintelworks/prospector/internal/logging"
)

// newServeCmd creates the 'serve' subcommand: the HTTP status and
// retrieval surface over the persisted snapshots.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serves health, metrics, and retrieval context over HTTP",

		RunE: runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := resolveApp(ctx)
	if err != nil {
		return err
	}
	cfg := a.Config()

	agg, err := buildAggregator(ctx, a)
	if err != nil {
		return err
	}

	server := api.NewServer(agg, api.Config{
		APIKey:         cfg.Server.APIKey,
		RequestTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}, logging.Component(a.Logger(), "api"))

	status, ok, err := api.LoadRunStatus(ctx, a.Storage())
	if err != nil {
		a.Logger().Warn("load run status", zap.Error(err))
	}
	if ok {
		server.RecordRun(status.StartedAt, status.FinishedAt, status.Summaries)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	a.Logger().Info("serving", zap.String("addr", addr))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
