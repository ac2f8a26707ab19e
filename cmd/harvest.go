package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/api"
	"github.com/fintelworks/prospector/internal/app"
	"github.com/fintelworks/prospector/internal/archive"
	"github.com/fintelworks/prospector/internal/harvest"
	"github.com/fintelworks/prospector/internal/index"
	"github.com/fintelworks/prospector/internal/intel"
	"github.com/fintelworks/prospector/internal/logging"
	"github.com/fintelworks/prospector/internal/notify"
	"github.com/fintelworks/prospector/internal/pace"
	"github.com/fintelworks/prospector/internal/pipeline"
	"github.com/fintelworks/prospector/internal/roster"
	"github.com/fintelworks/prospector/internal/search"
	"github.com/fintelworks/prospector/internal/session"
)

// profileSource labels the combined about/posts/jobs source in run
// summaries; its fragments carry their own kinds.
const profileSource = intel.SourceKind("profile")

// newHarvestCmd creates the 'harvest' subcommand: one full pipeline run
// over the roster, snapshots persisted at the end.
func newHarvestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "harvest",
		Short: "Runs the harvesting pipeline over the roster",
		Long: `Loads the company roster, discovers and retrieves sources for every
company, indexes the harvested fragments per source kind, and persists
index snapshots through the configured storage provider.`,

		RunE: runHarvestCommand,
	}
}

func runHarvestCommand(cmd *cobra.Command, _ []string) error {
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
	logger.Info("roster loaded", zap.Int("entities", len(entities)))

	searchClient, err := newSearchClient(a)
	if err != nil {
		return err
	}

	launcher := session.NewLauncher(session.Config{
		UserAgent:   cfg.Session.UserAgent,
		PageTimeout: cfg.PageTimeout(),
		Headless:    cfg.Session.Headless,
	}, logging.Component(logger, "session"))
	defer launcher.Close()

	pool, err := session.NewPool(ctx, cfg.Session.PoolSize, launcher.NewSession, logging.Component(logger, "pool"))
	if err != nil {
		return fmt.Errorf("start session pool: %w", err)
	}
	defer pool.Shutdown(context.WithoutCancel(ctx))

	stores, err := loadStores(ctx, a)
	if err != nil {
		return err
	}

	sources := buildSources(a, pool, stores)

	started := time.Now().UTC()
	p := pipeline.New(searchClient, pace.New(cfg.QueryInterval()), logging.Component(logger, "pipeline"))
	summaries, err := p.Run(ctx, entities, sources)
	if err != nil {
		return fmt.Errorf("harvest run: %w", err)
	}
	finished := time.Now().UTC()

	for _, store := range stores {
		if err := store.Persist(ctx, a.Storage()); err != nil {
			return fmt.Errorf("persist %s snapshot: %w", store.Name(), err)
		}
	}

	status := api.RunStatus{StartedAt: started, FinishedAt: finished, Summaries: summaries}
	if err := api.SaveRunStatus(ctx, a.Storage(), status); err != nil {
		logger.Warn("save run status", zap.Error(err))
	}

	record := archive.RunRecord{
		ID:          uuid.NewString(),
		StartedAt:   started,
		FinishedAt:  finished,
		EntityCount: len(entities),
		Summaries:   summaries,
	}
	if err := a.Archiver().StoreRun(ctx, record); err != nil {
		logger.Warn("archive run", zap.Error(err))
	}

	topic := cfg.Notify.TopicName
	if topic == "" {
		topic = "prospector-runs"
	}
	event := notify.RunEvent{
		RunID:      record.ID,
		StartedAt:  started,
		FinishedAt: finished,
		Entities:   len(entities),
		Summaries:  summaries,
	}
	if _, err := a.Publisher().Publish(ctx, topic, event); err != nil {
		logger.Warn("publish run event", zap.Error(err))
	}

	for kind, sum := range summaries {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: attempted=%d fragments=%d failures=%d\n",
			kind, sum.Attempted, sum.Fragments, sum.Failures)
	}
	return nil
}

func newSearchClient(a *app.App) (*search.Client, error) {
	cfg := a.Config()
	client, err := search.New(search.Config{
		Endpoint: cfg.Search.Endpoint,
		APIKey:   cfg.Search.APIKey,
		Country:  cfg.Search.Country,
		Language: cfg.Search.Language,
		Timeout:  time.Duration(cfg.Search.TimeoutSeconds) * time.Second,
	}, logging.Component(a.Logger(), "search"))
	if err != nil {
		return nil, fmt.Errorf("init search client: %w", err)
	}
	return client, nil
}

// storeNames maps fragment kinds to snapshot namespaces.
var storeNames = map[intel.SourceKind]string{
	intel.KindAbout:       "about",
	intel.KindPost:        "posts",
	intel.KindJob:         "jobs",
	intel.KindNews:        "news",
	intel.KindWebsitePage: "website",
	intel.KindAppListing:  "apps",
	intel.KindDeepSearch:  "deepsearch",
}

// loadStores restores every per-kind store from its snapshot; absent
// snapshots come back as empty writable stores.
func loadStores(ctx context.Context, a *app.App) (map[intel.SourceKind]*index.Store, error) {
	embedder := index.NewHashingEmbedder(a.Config().Index.EmbedderDim)
	logger := logging.Component(a.Logger(), "index")

	stores := make(map[intel.SourceKind]*index.Store, len(storeNames))
	for kind, name := range storeNames {
		store, err := index.Load(ctx, a.Storage(), name, embedder, logger)
		if err != nil {
			return nil, fmt.Errorf("load %s index: %w", name, err)
		}
		stores[kind] = store
	}
	return stores, nil
}

// buildSources assembles every source the run covers. Session-bound
// sources run on the worker-pool runner sized to the session pool;
// plain HTTP sources run on the errgroup runner.
func buildSources(a *app.App, pool *session.Pool, stores map[intel.SourceKind]*index.Store) []pipeline.Source {
	cfg := a.Config()
	logger := a.Logger()
	workers := cfg.Session.PoolSize

	profileRouter := index.NewRouter(map[intel.SourceKind]*index.Store{
		intel.KindAbout: stores[intel.KindAbout],
		intel.KindPost:  stores[intel.KindPost],
		intel.KindJob:   stores[intel.KindJob],
	}, logging.Component(logger, "index"))

	return []pipeline.Source{
		{
			Kind: profileSource,
			Direct: func(entity intel.Entity) []intel.WorkItem {
				if entity.ProfileURL == "" {
					return nil
				}
				return []intel.WorkItem{{Entity: entity.Name, URL: entity.ProfileURL, Kind: intel.KindAbout}}
			},
			Harvester: harvest.NewProfileHarvester(pool, harvest.ProfileConfig{
				MaxPosts: cfg.Harvest.MaxPosts,
				MaxJobs:  cfg.Harvest.MaxJobs,
			}, logging.Component(logger, "profile")),
			Index:   profileRouter,
			Workers: workers,
		},
		{
			Kind: intel.KindWebsitePage,
			Direct: func(entity intel.Entity) []intel.WorkItem {
				if entity.WebsiteURL == "" {
					return nil
				}
				return []intel.WorkItem{{Entity: entity.Name, URL: entity.WebsiteURL, Kind: intel.KindWebsitePage}}
			},
			Harvester: harvest.NewWebsiteHarvester(harvest.WebsiteConfig{
				UserAgent: cfg.Session.UserAgent,
				MaxPages:  cfg.Harvest.WebsiteMaxPages,
			}, logging.Component(logger, "website")),
			Index:   stores[intel.KindWebsitePage],
			Workers: 4,
			Async:   true,
		},
		{
			Kind: intel.KindAppListing,
			Direct: func(entity intel.Entity) []intel.WorkItem {
				return []intel.WorkItem{{Entity: entity.Name, Kind: intel.KindAppListing}}
			},
			Harvester: harvest.NewAppListingHarvester(harvest.AppListingConfig{
				Country: cfg.Harvest.AppCountry,
			}, logging.Component(logger, "apps")),
			Index:   stores[intel.KindAppListing],
			Workers: 4,
			Async:   true,
		},
		{
			Kind: intel.KindNews,
			Queries: func(entity intel.Entity) []harvest.Query {
				return harvest.NewsQueries(entity, cfg.Harvest.NewsSites)
			},
			Harvester:       harvest.NewPageHarvester(pool, intel.KindNews, logging.Component(logger, "news")),
			Index:           stores[intel.KindNews],
			Workers:         workers,
			ResultsPerQuery: cfg.Search.ResultsPerQuery,
		},
		{
			Kind:            intel.KindDeepSearch,
			Queries:         harvest.DeepSearchQueries,
			Harvester:       harvest.NewPageHarvester(pool, intel.KindDeepSearch, logging.Component(logger, "deepsearch")),
			Index:           stores[intel.KindDeepSearch],
			Workers:         workers,
			ResultsPerQuery: cfg.Search.ResultsPerQuery,
		},
	}
}
