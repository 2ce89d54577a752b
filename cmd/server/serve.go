package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"issueInsightsTracker/internal/api"
	"issueInsightsTracker/internal/auth"
	"issueInsightsTracker/internal/config"
	"issueInsightsTracker/internal/db"
	grpcserver "issueInsightsTracker/internal/grpc"
	"issueInsightsTracker/internal/issues"
	"issueInsightsTracker/internal/jobs"
	"issueInsightsTracker/internal/metrics"
	"issueInsightsTracker/internal/storage"
	"issueInsightsTracker/internal/users"
	"issueInsightsTracker/internal/ws"
	"issueInsightsTracker/repository"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, WebSocket hub, gRPC health listener and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *options) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, log, d, err := bootstrap(opts)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer func() {
		if err := db.Close(d); err != nil {
			log.Warn("close db", zap.Error(err))
		}
	}()

	tokens, err := auth.NewTokens(cfg.Auth)
	if err != nil {
		return err
	}
	store, err := storage.New(cfg.Storage)
	if err != nil {
		return err
	}

	userRepo := repository.NewUserRepository(d)
	issueRepo := repository.NewIssueRepository(d)
	statsRepo := repository.NewDailyStatsRepository(d)

	hub := ws.NewHub(log.Named("ws"))
	issueSvc := issues.NewService(issueRepo, statsRepo, store, hub, log.Named("issues"))
	httpSrv := api.New(cfg.HTTP.Address, api.Deps{
		Users:     users.NewService(userRepo, tokens, log.Named("users")),
		Issues:    issueSvc,
		Tokens:    tokens,
		UserStore: userRepo,
		Hub:       hub,
		Log:       log.Named("http"),
		Debug:     cfg.Log.Level == "debug",
	})

	grpcLog := log.Named("grpc")
	grpcSrv, err := grpcserver.New(cfg.GRPC.Address, tokens,
		func(ctx context.Context) error { return db.Ping(ctx, d) },
		grpcserver.NewInsightsServer(userRepo, issueSvc, grpcLog), grpcLog)
	if err != nil {
		return err
	}
	metricsSrv := metrics.NewServer(cfg.Server.MetricsAddress)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sched jobs.Scheduler
	if cfg.Jobs.Enabled {
		sched, err = newScheduler(ctx, cfg, log, d, store)
		if err != nil {
			return err
		}
		sched.Start()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.HTTP.Address))
		return httpSrv.ListenAndServe()
	})
	g.Go(func() error {
		log.Info("grpc listening", zap.String("addr", grpcSrv.Addr().String()))
		return grpcSrv.Serve()
	})
	g.Go(func() error {
		log.Info("metrics listening", zap.String("addr", cfg.Server.MetricsAddress))
		return metricsSrv.ListenAndServe()
	})
	g.Go(func() error {
		grpcSrv.WatchHealth(gctx, 15*time.Second)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}
		if err := hub.Close(); err != nil {
			log.Warn("close websocket connections", zap.Error(err))
		}
		if err := grpcSrv.Shutdown(sctx); err != nil {
			log.Warn("grpc shutdown", zap.Error(err))
		}
		if err := metricsSrv.Shutdown(sctx); err != nil {
			log.Warn("metrics shutdown", zap.Error(err))
		}
		if sched != nil {
			if err := sched.Stop(sctx); err != nil {
				log.Warn("scheduler stop", zap.Error(err))
			}
		}
		return nil
	})
	return g.Wait()
}

func newScheduler(ctx context.Context, cfg *config.Config, log *zap.Logger, d *gorm.DB, store storage.Store) (jobs.Scheduler, error) {
	var locker jobs.Locker = jobs.NopLocker{}
	if cfg.Broker.URL != "" {
		rl, err := jobs.NewRedisLocker(ctx, cfg.Broker.URL)
		if err != nil {
			return nil, err
		}
		locker = rl
	}
	jl := log.Named("jobs")
	sched := jobs.NewCronScheduler(jl, locker)
	statsJob, cleanupJob := newJobs(cfg, jl, d, store)
	delays := jobs.Delays{Stats: cfg.Jobs.StatsRetryDelay, Cleanup: cfg.Jobs.CleanupRetryDelay}
	if err := jobs.RegisterAll(sched, statsJob, cleanupJob, delays, jl); err != nil {
		return nil, err
	}
	return sched, nil
}

func newJobs(cfg *config.Config, log *zap.Logger, d *gorm.DB, store storage.Store) (*jobs.StatsJob, *jobs.CleanupJob) {
	return &jobs.StatsJob{
			Issues: repository.NewIssueRepository(d),
			Stats:  repository.NewDailyStatsRepository(d),
			Log:    log,
		}, &jobs.CleanupJob{
			Store:  store,
			MaxAge: cfg.Jobs.FileMaxAge,
			Log:    log,
		}
}
