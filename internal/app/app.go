package app

import (
	"context"
	"hire_assessment_backend/internal/config"
	"hire_assessment_backend/internal/controller"
	"hire_assessment_backend/internal/repository"
	"hire_assessment_backend/internal/service"
	"hire_assessment_backend/internal/util"
	"hire_assessment_backend/pkg/configwatcher"
	"hire_assessment_backend/pkg/database"
	"hire_assessment_backend/pkg/logger"
	"hire_assessment_backend/pkg/monitoring"
	"hire_assessment_backend/pkg/security"
	"hire_assessment_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const uploadProgressTTL = 30 * time.Minute

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user      *repository.UserRepository
	job       *repository.JobRepository
	stage     *repository.AssessmentStageRepository
	mcq       *repository.MCQRepository
	avatar    *repository.AvatarRepository
	interview *repository.InterviewRepository
	offer     *repository.OfferRepository
}

type services struct {
	settings     *service.AssessmentSettings
	passwords    *service.SessionPasswordService
	limiter      *service.VerifyLimiter
	notification *service.NotificationService
	storage      *service.StorageService
	progress     *service.ProgressTracker
	monitor      *service.AttemptMonitor
	generator    service.AIClient
	migration    *service.CredentialMigration

	auth      *service.AuthService
	job       *service.JobService
	stage     *service.AssessmentStageService
	mcq       *service.MCQService
	template  *service.TemplateService
	attempt   *service.AttemptService
	interview *service.InterviewService
	avatar    *service.AvatarService
	stats     *service.StatsService
	scoring   *service.ResumeScoringService
	offer     *service.OfferService
}

type controllers struct {
	auth      *controller.AuthController
	job       *controller.JobController
	stage     *controller.AssessmentStageController
	mcq       *controller.MCQController
	template  *controller.TemplateController
	interview *controller.InterviewController
	attempt   *controller.AttemptController
	candidate *controller.CandidateController
	stats     *controller.StatsController
	offer     *controller.OfferController
	health    *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:      repository.NewUserRepository(db),
		job:       repository.NewJobRepository(db),
		stage:     repository.NewAssessmentStageRepository(db),
		mcq:       repository.NewMCQRepository(db),
		avatar:    repository.NewAvatarRepository(db),
		interview: repository.NewInterviewRepository(db),
		offer:     repository.NewOfferRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, rdb *redis.Client) *services {
	s := &services{}

	s.settings = service.NewAssessmentSettings(cfg.Assessment)
	a.RegisterConfigCallback(s.settings.Apply)

	s.passwords = service.NewSessionPasswordService()
	s.limiter = service.NewVerifyLimiter(rdb, s.settings)
	s.notification = service.NewNotificationService(cfg.Notification)
	s.storage = service.NewStorageService(cfg)
	s.progress = service.NewProgressTracker()
	s.monitor = service.NewAttemptMonitor(rdb)
	s.migration = service.NewCredentialMigration(repos.interview, repos.avatar, s.passwords)

	generator, err := service.NewAIClient(cfg.AI)
	if err != nil {
		logger.Log.Warn("AI client unavailable", zap.Error(err))
	}
	s.generator = generator

	s.auth = service.NewAuthService(repos.user, cfg)
	s.job = service.NewJobService(repos.job)
	s.stage = service.NewAssessmentStageService(repos.stage, repos.job, repos.mcq, s.passwords)
	s.mcq = service.NewMCQService(repos.mcq, repos.stage, db)
	s.template = service.NewTemplateService(repos.mcq, s.generator, s.settings)

	s.attempt = service.NewAttemptService(repos.interview, db, s.passwords, s.limiter, s.settings)
	s.attempt.Events = s.monitor

	s.interview = service.NewInterviewService(repos.interview, repos.mcq, db, s.attempt, s.passwords, s.notification, s.settings)
	s.avatar = service.NewAvatarService(repos.avatar, repos.stage, s.storage, s.passwords, s.limiter,
		s.notification, s.settings, s.progress, filepath.Join(os.TempDir(), "hire-recordings"))
	s.stats = service.NewStatsService(repos.stage, repos.interview, rdb, s.settings)
	s.scoring = service.NewResumeScoringService(repos.job, s.generator)
	s.offer = service.NewOfferService(repos.offer, repos.job, repos.user, repos.stage, s.notification)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:      controller.NewAuthController(s.auth),
		job:       controller.NewJobController(s.job, s.scoring),
		stage:     controller.NewAssessmentStageController(s.stage, s.avatar),
		mcq:       controller.NewMCQController(s.mcq),
		template:  controller.NewTemplateController(s.template),
		interview: controller.NewInterviewController(s.interview, s.attempt),
		attempt:   controller.NewAttemptController(s.attempt, s.monitor),
		candidate: controller.NewCandidateController(s.attempt, s.avatar),
		stats:     controller.NewStatsController(s.stats),
		offer:     controller.NewOfferController(s.offer),
		health:    controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(logger.GinLogger())
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(ctx context.Context, s *services) {
	go s.monitor.Run(ctx)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.progress.Sweep(uploadProgressTTL); n > 0 {
					logger.Log.Debug("upload progress swept", zap.Int("removed", n))
				}
			}
		}
	}()

	if a.Config.ConfigFile != "" {
		go func() {
			err := configwatcher.WatchConfig(ctx, a.Config.ConfigFile, func(newCfg *config.Config) {
				for _, cb := range a.configCallbacks {
					cb(newCfg)
				}
			})
			if err != nil {
				logger.Log.Error("config watcher stopped", zap.Error(err))
			}
		}()
	}
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.ForceMigrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, db, rdb)
	app.services = services

	if cfg.ForceMigrate {
		if _, err := services.migration.Run(context.Background()); err != nil {
			logger.Log.Fatal("Failed to migrate session passwords", zap.Error(err))
		}
	}
	if cfg.MigrateOnly {
		return app
	}

	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("hire-assessment", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.startBackgroundTasks(ctx, a.services)

	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// 先断开监控连接
	a.services.monitor.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if closer, ok := a.services.generator.(interface{ Close() error }); ok {
		closer.Close()
	}

	logger.Log.Info("Server exiting")
}
