package app

import (
	"codequest_admin/internal/config"
	"codequest_admin/internal/controller"
	"codequest_admin/internal/repository"
	"codequest_admin/internal/service"
	"codequest_admin/pkg/configwatcher"
	"codequest_admin/pkg/database"
	"codequest_admin/pkg/docstore"
	"codequest_admin/pkg/logger"
	"codequest_admin/pkg/monitoring"
	"codequest_admin/pkg/tracing"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Store  docstore.Store
	DB     *gorm.DB
	Redis  *redis.Client
	Router *gin.Engine

	repos    *repositories
	services *services

	cfgMu           sync.RWMutex
	cfg             *config.Config
	configCallbacks []func(*config.Config)

	shutdownTracer func(context.Context) error
}

type repositories struct {
	catalog     *repository.CatalogRepository
	user        *repository.UserRepository
	leaderboard *repository.LeaderboardRepository
	cache       *repository.LeaderboardCache
	runs        *repository.RunRepository
}

type services struct {
	writes       service.WriteSettings
	validator    *service.MissionValidator
	migrations   *service.MigrationRunner
	achievements *service.AchievementService
	leaderboard  *service.LeaderboardService
	reports      *service.MissionReportService
	consistency  *service.ConsistencyService
	ledger       *service.RunLedger
	reconciler   *service.Reconciler
	storage      *service.StorageService
	backup       *service.BackupService
	importer     *service.ImportService
	cleanup      *service.CleanupService
}

type controllers struct {
	health      *controller.HealthController
	missions    *controller.MissionController
	users       *controller.UserController
	leaderboard *controller.LeaderboardController
	reconcile   *controller.ReconcileController
	migrations  *controller.MigrationController
}

// Config returns the config currently in effect.
func (a *App) Config() *config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig swaps in a reloaded config. Connections are not reopened;
// settings read per run (batch size, retry, profile) take effect.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.cfgMu.Lock()
	a.cfg = cfg
	a.cfgMu.Unlock()
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

// New opens the document store and the optional MySQL, Redis and tracing
// backends, then wires the services.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	monitoring.Init()

	store, err := database.InitFirestore(ctx, &cfg.Firestore)
	if err != nil {
		return nil, fmt.Errorf("init firestore: %w", err)
	}

	a := &App{Store: store, cfg: cfg}

	if cfg.Database.Enabled {
		db, err := database.InitDB(&cfg.Database, cfg.Server.Mode == "debug")
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("init database: %w", err)
		}
		a.DB = db
	}

	if cfg.Redis.Enabled {
		rdb, err := database.InitRedis(ctx, &cfg.Redis)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.Redis = rdb
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("codequest-admin", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Warn("tracing disabled", zap.Error(err))
		} else {
			a.shutdownTracer = tp.Shutdown
		}
	}

	a.wire()
	return a, nil
}

// NewWithStore wires an App around an existing store with no optional
// backends. Used by tests and the offline memory driver.
func NewWithStore(cfg *config.Config, store docstore.Store, db *gorm.DB, rdb *redis.Client) *App {
	monitoring.Init()
	a := &App{Store: store, DB: db, Redis: rdb, cfg: cfg}
	a.wire()
	return a
}

func (a *App) wire() {
	a.repos = a.initRepositories()
	a.services = a.initServices(a.repos, a.cfg)
	a.RegisterConfigCallback(a.reloadServices)
}

func (a *App) initRepositories() *repositories {
	r := &repositories{
		catalog:     repository.NewCatalogRepository(a.Store),
		user:        repository.NewUserRepository(a.Store),
		leaderboard: repository.NewLeaderboardRepository(a.Store),
	}
	if a.Redis != nil {
		r.cache = repository.NewLeaderboardCache(a.Redis, a.cfg.Leaderboard.CacheKey)
	}
	if a.DB != nil {
		r.runs = repository.NewRunRepository(a.DB)
	}
	return r
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}
	s.writes = service.WriteSettingsFromConfig(&cfg.Reconcile)
	s.validator = service.NewMissionValidator(cfg.Reconcile.ValidationProfile, cfg.Reconcile.Profiles[cfg.Reconcile.ValidationProfile])
	s.migrations = service.NewMigrationRunner(a.Store, s.writes,
		service.DefaultMigrations(service.NewBattleNormalizer(cfg.Reconcile.DefaultQuestionIDs)))
	s.achievements = service.NewAchievementService(repos.catalog, repos.user, a.Store, s.writes)
	s.leaderboard = service.NewLeaderboardService(repos.user, repos.leaderboard, repos.cache, a.Store, s.writes, cfg.Leaderboard.DefaultUsername)
	s.reports = service.NewMissionReportService(repos.catalog, repos.user)
	s.consistency = service.NewConsistencyService(repos.user, repos.leaderboard)
	s.ledger = service.NewRunLedger(repos.runs)
	s.reconciler = service.NewReconciler(repos.catalog, repos.user, s.validator, s.migrations, s.achievements, s.leaderboard, s.ledger)

	s.storage = service.NewStorageService(cfg)
	s.backup = service.NewBackupService(a.Store, s.storage)
	s.importer = service.NewImportService(a.Store, s.storage, s.writes)
	s.cleanup = service.NewCleanupService(a.Store, s.writes)
	return s
}

// reloadServices applies write and validation settings from a reloaded
// config. Services are updated in place so controllers keep their
// pointers.
func (a *App) reloadServices(cfg *config.Config) {
	s := a.services
	writes := service.WriteSettingsFromConfig(&cfg.Reconcile)
	s.writes = writes
	s.migrations.Writes = writes
	s.achievements.Writes = writes
	s.leaderboard.Writes = writes
	s.leaderboard.DefaultUsername = cfg.Leaderboard.DefaultUsername
	s.importer.Writes = writes
	s.cleanup.Writes = writes
	if required, ok := cfg.Reconcile.Profiles[cfg.Reconcile.ValidationProfile]; ok {
		*s.validator = *service.NewMissionValidator(cfg.Reconcile.ValidationProfile, required)
	}
	logger.Log.Info("services reconfigured",
		zap.Int("batchSize", writes.BatchSize),
		zap.String("profile", cfg.Reconcile.ValidationProfile),
	)
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		health:      controller.NewHealthController(a.DB, a.Redis, a.Config().Firestore.Driver),
		missions:    controller.NewMissionController(s.reconciler, s.reports),
		users:       controller.NewUserController(s.leaderboard, s.reports, s.achievements),
		leaderboard: controller.NewLeaderboardController(s.leaderboard),
		reconcile:   controller.NewReconcileController(s.reconciler, s.consistency, s.ledger),
		migrations:  controller.NewMigrationController(s.migrations),
	}
}

// Close releases every backend. Safe to call on a partially built App.
func (a *App) Close(ctx context.Context) {
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			logger.Log.Error("failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Log.Warn("redis close", zap.Error(err))
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			logger.Log.Warn("store close", zap.Error(err))
		}
	}
}

// Serve runs the admin API until ctx is cancelled, then shuts down
// gracefully. Config file changes are applied while serving.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := a.Config()
	a.Router = a.setupRouter(ctx)

	if cfg.File != "" {
		go func() {
			if err := configwatcher.Watch(ctx, cfg.File, a.ApplyConfig); err != nil {
				logger.Log.Warn("config watcher stopped", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("admin API listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Log.Info("shutting down admin API")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
