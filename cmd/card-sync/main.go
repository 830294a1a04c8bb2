package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-card-sync/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-card-sync/internal/middleware"
	"github.com/noah-isme/sma-card-sync/internal/repository"
	"github.com/noah-isme/sma-card-sync/internal/service"
	"github.com/noah-isme/sma-card-sync/pkg/cache"
	"github.com/noah-isme/sma-card-sync/pkg/config"
	"github.com/noah-isme/sma-card-sync/pkg/database"
	"github.com/noah-isme/sma-card-sync/pkg/logger"
	reqidmiddleware "github.com/noah-isme/sma-card-sync/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dsn, err := cfg.ConnectionString(config.DefaultConnectionName)
	if err != nil {
		logr.Fatal("database connection string missing", zap.Error(err))
	}
	db, err := database.Open(cfg.Database, dsn)
	if err != nil {
		logr.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()
	// Connections are opened per record; an unreachable database at boot only fails cycles.
	if err := database.Ping(ctx, db); err != nil {
		logr.Warn("database not reachable at startup", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}

	metricsSvc := service.NewMetricsService()

	fetcher := service.NewStudentFetcher(&http.Client{}, cfg.Sync.APIURL, cfg.Sync.UserAgent, cfg.Sync.HTTPTimeout, metricsSvc, logr)
	parser := service.NewStudentParser(validator.New(), logr)
	cardRepo := repository.NewStudentCardRepository(db, cfg.Database.Driver, cfg.Sync.Procedure, cfg.Sync.DBTimeout, metricsSvc, logr)
	syncSvc := service.NewStudentSyncService(fetcher, parser, cardRepo, metricsSvc, logr)

	if cfg.Sync.Lock.Enabled {
		redisClient, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis for sync lock", zap.Error(err))
		}
		defer redisClient.Close()
		lockRepo := repository.NewCycleLockRepository(redisClient, logr)
		syncSvc.WithLock(lockRepo, service.LockOptions{Key: cfg.Sync.Lock.Key, TTL: cfg.Sync.Lock.TTL})
	}

	loop := service.NewSyncLoop(syncSvc, cfg.Sync.Interval, metricsSvc, logr)

	logr.Info("card sync starting",
		zap.String("env", cfg.Env),
		zap.String("driver", cfg.Database.Driver),
		zap.String("procedure", cfg.Sync.Procedure),
		zap.Bool("lock", cfg.Sync.Lock.Enabled),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// An ops listener failure cancels gctx and stops the loop with it.
		return loop.Run(gctx)
	})
	if cfg.Ops.Enabled {
		srv := newOpsServer(cfg, logr, loop, metricsSvc)
		g.Go(func() error {
			logr.Info("ops server starting", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ops server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logr.Error("card sync exited with error", zap.Error(err))
		return
	}
	logr.Info("card sync stopped")
}

func newOpsServer(cfg *config.Config, logr *zap.Logger, loop *service.SyncLoop, metricsSvc *service.MetricsService) *http.Server {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	handler.NewOpsHandler(loop, metricsSvc).Register(r)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Ops.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
