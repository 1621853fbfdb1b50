package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	apiserver "github.com/Champ-Deep/LakeB2B-SlideSmith/internal/api_server"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/artifact"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/cache"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/catalog"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/client"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/config"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/domain"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/events"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/excel"
	handlers "github.com/Champ-Deep/LakeB2B-SlideSmith/internal/handlers/v1alpha1"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/jobs"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/pipeline"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/service"
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	queueModeLocal = "local"
	queueModeRiver = "river"
)

var runOpts = &RunOptions{}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the slidesmith api and row workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, done, err := setup()
		if err != nil {
			return fmt.Errorf("reading configuration: %w", err)
		}
		defer done()
		runOpts.Apply(cfg)

		zap.S().Info("Starting API service")
		defer zap.S().Info("API service stopped")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			return fmt.Errorf("initializing data store: %w", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		if cfg.Database.Type != "pgsql" {
			if err := s.InitialMigration(ctx); err != nil {
				return fmt.Errorf("running initial migration: %w", err)
			}
		}

		services := catalog.New(cfg.Pipeline.CatalogPath)
		if err := services.Load(); err != nil {
			return fmt.Errorf("loading service catalog: %w", err)
		}
		zap.S().Infof("Loaded %d services from %s", len(services.Services()), cfg.Pipeline.CatalogPath)
		go reloadCatalogOnSignal(ctx, services)

		artifacts, err := newArtifactStore(cfg)
		if err != nil {
			return err
		}

		llm := client.NewOpenRouterClient(cfg.Providers.OpenRouterBaseURL, cfg.Providers.OpenRouterAPIKey, cfg.Pipeline.ContentTimeout)
		gamma := client.NewGammaClient(client.GammaOptions{
			BaseURL:  cfg.Providers.GammaBaseURL,
			APIKey:   cfg.Providers.GammaAPIKey,
			NumCards: cfg.Providers.GammaNumCards,
			Timeout:  cfg.Pipeline.SubmitTimeout,
		})
		researcher := cache.NewCachedResearcher(
			client.NewResearcher(llm, cfg.Providers.ResearchModel),
			cache.New[domain.Research](s.ResearchCache(), cfg.Pipeline.CacheTTL, time.Now),
		)
		runner := pipeline.NewRowRunner(
			s.Progress(),
			researcher,
			client.NewSynthesizer(llm, cfg.Providers.ContentModel),
			gamma,
			services,
			pipeline.NewRowConfig(cfg.Pipeline, cfg.Providers.GammaThemeID),
		)

		dispatcher, stopDispatcher, err := newDispatcher(ctx, cfg)
		if err != nil {
			return err
		}
		defer stopDispatcher()

		opts := []pipeline.CoordinatorOption{}
		if cfg.Service.EventsEnabled {
			producer := events.NewEventProducer(events.LogWriter{}, events.WithBufferLimit(cfg.Service.EventsBuffer))
			defer func() {
				_ = producer.Close()
			}()
			opts = append(opts, pipeline.WithEvents(producer))
		}
		coordinator := pipeline.NewCoordinator(
			s,
			runner,
			dispatcher,
			excel.NewWriter(artifacts, cfg.Service.OutputDir),
			cfg.Service.MaxRowsPerJob,
			opts...,
		)

		if starter, ok := dispatcher.(interface{ Start(context.Context) error }); ok {
			if err := starter.Start(ctx); err != nil {
				return fmt.Errorf("failed to start row queue: %w", err)
			}
		}

		h := handlers.NewServiceHandler(
			service.NewJobService(s, coordinator, artifacts, cfg.Service.UploadDir, cfg.Service.MaxRowsPerJob),
			service.NewHistoryService(s),
			service.NewThemeService(gamma),
			cfg.Service.MaxUploadBytes,
		)

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				zap.S().Fatalf("creating listener: %s", err)
			}

			server := apiserver.New(cfg, h, listener)
			if err := server.Run(ctx); err != nil {
				zap.S().Fatalf("Error running server: %s", err)
			}
		}()

		go func() {
			defer cancel()
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				zap.S().Fatalf("creating listener: %s", err)
			}

			metricsServer := apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener, s, cfg.Service.StatsInterval)
			if err := metricsServer.Run(ctx); err != nil {
				zap.S().Fatalf("Error running server: %s", err)
			}
		}()

		<-ctx.Done()
		return nil
	},
}

func init() {
	runOpts.Bind(runCmd.Flags())
}

// reloadCatalogOnSignal re-reads the service catalog on SIGUSR1. A failed reload keeps the previous services.
func reloadCatalogOnSignal(ctx context.Context, services *catalog.Catalog) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			if err := services.Reload(); err != nil {
				zap.S().Named("catalog").Errorw("failed to reload service catalog", "error", err)
			}
		}
	}
}

func newArtifactStore(cfg *config.Config) (artifact.Store, error) {
	if cfg.S3.Endpoint == "" {
		return artifact.NewLocalStore("."), nil
	}

	minio, err := artifact.NewMinioStore(
		artifact.WithEndpoint(cfg.S3.Endpoint),
		artifact.WithBucket(cfg.S3.Bucket),
		artifact.WithAccessKey(cfg.S3.AccessKey),
		artifact.WithSecretKey(cfg.S3.SecretKey),
		artifact.WithSSL(cfg.S3.UseSSL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio store: %w", err)
	}
	zap.S().Infof("Storing artifacts in bucket %s at %s", cfg.S3.Bucket, cfg.S3.Endpoint)
	return minio, nil
}

// newDispatcher returns the row dispatcher selected by the queue mode and a func releasing it.
func newDispatcher(ctx context.Context, cfg *config.Config) (pipeline.Dispatcher, func(), error) {
	switch cfg.Service.QueueMode {
	case queueModeLocal:
		local := pipeline.NewLocalDispatcher(ctx, cfg.Service.Workers)
		return local, local.Wait, nil
	case queueModeRiver:
		if cfg.Database.Type != "pgsql" {
			return nil, nil, fmt.Errorf("queue mode %q needs a pgsql database", queueModeRiver)
		}

		poolCfg, err := pgxpool.ParseConfig(store.PostgresDSN(cfg))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse pgx config: %w", err)
		}
		// job processing plus LISTEN
		poolCfg.MaxConns = 20
		poolCfg.MinConns = 5
		poolCfg.MaxConnLifetime = time.Hour
		poolCfg.MaxConnIdleTime = 30 * time.Minute

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
		}

		riverClient, err := jobs.NewClient(pool, cfg.Service.Workers)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to create river client: %w", err)
		}
		zap.S().Named("api_server").Info("River job queue initialized")

		stop := func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := riverClient.Stop(stopCtx); err != nil {
				zap.S().Named("api_server").Warnw("failed to stop river client", "error", err)
			}
			pool.Close()
		}
		return riverClient, stop, nil
	default:
		return nil, nil, fmt.Errorf("unknown queue mode %q", cfg.Service.QueueMode)
	}
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
