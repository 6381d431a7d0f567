package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/RemyAM27/projet-dashboard/internal/config"
	"github.com/RemyAM27/projet-dashboard/internal/etl"
	"github.com/RemyAM27/projet-dashboard/internal/middleware"
	"github.com/RemyAM27/projet-dashboard/internal/observability"
	"github.com/RemyAM27/projet-dashboard/internal/server"
	"github.com/RemyAM27/projet-dashboard/internal/services"
	"github.com/RemyAM27/projet-dashboard/internal/store"
	"github.com/RemyAM27/projet-dashboard/internal/ui/templates"
)

const (
	renderTimeout   = 10 * time.Second
	pipelineTimeout = 5 * time.Minute
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "accidents",
		Short:         "Dashboard over the 2024 French road-accident dataset",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The bare command starts the dashboard.
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(newFetchCmd(), newCleanCmd(), newLoadCmd(), newServeCmd())
	return root
}

// setup loads configuration and installs the default logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return nil, nil, err
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download the raw official CSV extracts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			fetcher := etl.NewFetcher(logger, &http.Client{Timeout: cfg.Data.FetchTimeout})
			return fetcher.Run(cmd.Context(), cfg.Data.RawDir())
		},
	}
}

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Clean the raw extracts into canonical CSVs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), pipelineTimeout)
			defer cancel()

			cleaner := etl.NewCleaner(logger, cfg.Data.Year)
			_, err = cleaner.Run(ctx, cfg.Data.RawDir(), cfg.Data.CleanedDir())
			return err
		},
	}
}

func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load the cleaned CSVs into the SQLite store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.Data.DatabasePath)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), pipelineTimeout)
			defer cancel()

			loader := store.NewLoader(st, logger)
			_, err = loader.Load(ctx, cfg.Data.CleanedDir())
			return err
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Cache-Control", "public, max-age=300")
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func runServe(ctx context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	logger.Info("starting application", "config", cfg)

	st, err := store.Open(cfg.Data.DatabasePath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		return err
	}

	if err := ensureData(ctx, cfg, logger, st); err != nil {
		st.Close()
		logger.Error("failed to prepare store", "error", err)
		return err
	}

	queries := services.NewQueries(st.DB(), logger)

	templateHandlers := &server.TemplateHandlers{
		Dashboard: handleDashboard,
	}

	srv := server.NewServer(queries, queries, cfg.Data.GeoJSONPath, logger, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	handler := middlewareChain(srv)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("closing store")
		return st.Close()
	})

	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		return err
	}

	logger.Info("application stopped gracefully")
	return nil
}

// ensureData runs the offline stages on startup when the store is
// empty: cleaned CSVs are loaded directly, raw extracts are cleaned
// first. A populated store is served as-is.
func ensureData(ctx context.Context, cfg *config.Config, logger *slog.Logger, st *store.Store) error {
	if st.HasData() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, pipelineTimeout)
	defer cancel()

	if _, err := os.Stat(cfg.Data.CleanedDir()); os.IsNotExist(err) {
		logger.Info("no cleaned data found, running cleaning stage", "raw_dir", cfg.Data.RawDir())
		cleaner := etl.NewCleaner(logger, cfg.Data.Year)
		if _, err := cleaner.Run(ctx, cfg.Data.RawDir(), cfg.Data.CleanedDir()); err != nil {
			return err
		}
	}

	start := time.Now()
	loader := store.NewLoader(st, logger)
	res, err := loader.Load(ctx, cfg.Data.CleanedDir())
	if err != nil {
		return err
	}
	logger.Info("initial load complete",
		"accidents", res.Accidents,
		"victims", res.Victims,
		"duration", time.Since(start),
	)
	return nil
}
