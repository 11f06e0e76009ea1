package main

import (
	"context"
	"net/http"
	"os"
	osignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storypool/internal/client/oracle"
	"storypool/internal/config"
	cronrunner "storypool/internal/cron"
	"storypool/internal/db"
	"storypool/internal/handler"
	"storypool/internal/ledger"
	"storypool/internal/logger"
	"storypool/internal/notify"
	gormrepository "storypool/internal/repository/gorm"
	"storypool/internal/settlement"
	"storypool/internal/signal"
)

func main() {
	cfgPath := os.Getenv("SP_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("SP_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer dbConn.Close()

	if err := dbConn.SetTimezone(cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := dbConn.AutoMigrate(); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	baseCtx, stop := osignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := gormrepository.New(dbConn.Gorm)
	hub := signal.NewHub(logger)
	calc := signal.NewCalculator(cfg.Signal)
	snapshots := &signal.SnapshotService{
		Repo:   store,
		Hub:    hub,
		Logger: logger,
		Config: cfg.Snapshots,
	}
	ledgerSvc := &ledger.Service{
		Repo:   store,
		Config: cfg.Pool,
		Logger: logger,
	}
	engine := &settlement.Engine{
		Repo:     store,
		Config:   cfg.Settlement,
		Logger:   logger,
		Notifier: &notify.LogNotifier{Logger: logger},
	}

	var provider signal.ConfidenceProvider = signal.NoopProvider{}
	if cfg.Oracle.Enabled && len(cfg.Oracle.Endpoints) > 0 {
		provider = oracle.New(cfg.Oracle, logger)
	}

	cronRunner := cronrunner.New(logger, baseCtx)
	if cfg.Cron.Enabled && cfg.Snapshots.Enabled {
		if _, err := cronRunner.Add(cfg.Cron.SnapshotSpec, snapshots.SnapshotOpenPools); err != nil {
			logger.Warn("cron register snapshot sweep failed", zap.Error(err))
		}
		if _, err := cronRunner.Add(cfg.Cron.RetentionSpec, snapshots.PruneSnapshots); err != nil {
			logger.Warn("cron register snapshot prune failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	(&handler.HealthHandler{DB: dbConn.Gorm}).Register(router)
	(&handler.PoolHandler{Repo: store, Ledger: ledgerSvc, Engine: engine, Logger: logger}).Register(router)
	(&handler.SignalHandler{
		Repo:      store,
		Calc:      calc,
		Snapshots: snapshots,
		Provider:  provider,
		Config:    cfg.Signal,
		Logger:    logger,
	}).Register(router)
	(&handler.StreakHandler{Repo: store}).Register(router)
	(&handler.StreamHandler{Hub: hub, Logger: logger}).Register(router)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-baseCtx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
