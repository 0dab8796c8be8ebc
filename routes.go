package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/memorial-diamonds-api/config"
	"github.com/kendall-kelly/memorial-diamonds-api/controllers"
	"github.com/kendall-kelly/memorial-diamonds-api/enums"
	"github.com/kendall-kelly/memorial-diamonds-api/logger"
	"github.com/kendall-kelly/memorial-diamonds-api/middleware"
	"github.com/kendall-kelly/memorial-diamonds-api/models"
	"github.com/kendall-kelly/memorial-diamonds-api/services"
	"github.com/kendall-kelly/memorial-diamonds-api/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// application holds the wired services and the resources that need closing.
type application struct {
	cfg      *config.Config
	log      *logger.Logger
	store    *store.Store
	registry *prometheus.Registry
	metrics  *services.Metrics
	events   services.EventPublisher
	redis    *redis.Client
}

// newApplication migrates the database, connects the optional backends and
// installs the service singletons used by the controllers.
func newApplication(ctx context.Context, cfg *config.Config, db *gorm.DB, logg *logger.Logger) (*application, error) {
	app := &application{
		cfg:      cfg,
		log:      logg,
		registry: prometheus.NewRegistry(),
	}
	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.metrics = services.NewMetrics(app.registry)

	app.store = store.New(db, store.Options{OrderNumberPrefix: cfg.OrderNumberPrefix})
	if err := app.store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	seeded, err := app.store.SeedProductionStages(ctx, models.DefaultProductionStages())
	if err != nil {
		return nil, fmt.Errorf("seed production stages: %w", err)
	}
	logg.Info(logg.WithField(ctx, "seeded", seeded), "Database migration completed successfully")

	var media services.MediaService
	s3Service := services.GetS3Service()
	if cfg.S3Enabled() {
		if s3Service, err = services.InitS3Service(ctx, cfg); err != nil {
			return nil, fmt.Errorf("init s3: %w", err)
		}
	}
	if s3Service != nil {
		media = services.InitMediaService(s3Service, app.store, cfg.MediaURLTTL, logg, app.metrics)
	} else {
		logg.Warn(ctx, "AWS_S3_BUCKET not set, media uploads are disabled")
	}

	var locker services.OrderLocker = services.NoopOrderLock{}
	if cfg.RedisEnabled() {
		client, err := services.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		app.redis = client
		if locker, err = services.NewRedisOrderLock(client, cfg.OrderLockTTL); err != nil {
			app.Close()
			return nil, err
		}
	}

	app.events = services.NoopEventPublisher{}
	if cfg.KafkaEnabled() {
		app.events = services.NewKafkaEventPublisher(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
	}

	services.SetProgressService(services.NewProgressService(services.ProgressServiceDeps{
		Store:   app.store,
		Media:   media,
		Locker:  locker,
		Events:  app.events,
		Logger:  logg,
		Metrics: app.metrics,
	}))
	services.SetOrderService(services.NewOrderService(services.OrderServiceDeps{
		Store:     app.store,
		Media:     media,
		Events:    app.events,
		Validator: services.NewOrderValidator(cfg.PhoneLength),
		Printer: services.NewOrderSheetPrinter(services.OrderSheetOptions{
			PortalURL: cfg.CustomerPortalURL,
			FontPath:  cfg.OrderSheetFont,
		}),
		Logger:  logg,
		Metrics: app.metrics,
	}))

	return app, nil
}

// Close releases the broker and cache connections.
func (a *application) Close() {
	var err error
	if a.events != nil {
		err = multierr.Append(err, a.events.Close())
	}
	if a.redis != nil {
		err = multierr.Append(err, a.redis.Close())
	}
	if err != nil {
		a.log.Error(context.Background(), "closing application resources", err)
	}
}

// setupRouter registers every route. auth authenticates staff requests.
func setupRouter(app *application, auth gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(app.log),
		middleware.Logging(app.log),
		middleware.Metrics(app.metrics),
		cors.New(corsConfig(app.cfg.CORSAllowedOrigins)),
	)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus)

		public := v1.Group("/public")
		{
			public.GET("/orders", controllers.LookupOrders)
			public.GET("/orders/:order_number", controllers.GetPublicOrder)
		}

		admin := v1.Group("/admin", auth)
		{
			read := middleware.RequirePermission(enums.PermissionOrdersRead)
			update := middleware.RequirePermission(enums.PermissionOrdersUpdate)
			progress := middleware.RequirePermission(enums.PermissionProgressUpdate)

			admin.GET("/statistics", read, controllers.GetStatistics)
			admin.GET("/orders", read, controllers.ListOrders)
			admin.POST("/orders", middleware.RequirePermission(enums.PermissionOrdersCreate), controllers.CreateOrder)
			admin.GET("/orders/:id", read, controllers.GetOrder)
			admin.PATCH("/orders/:id", update, controllers.UpdateOrder)
			admin.DELETE("/orders/:id", middleware.RequirePermission(enums.PermissionOrdersDelete), controllers.DeleteOrder)
			admin.POST("/orders/:id/cancel", update, controllers.CancelOrder)
			admin.POST("/orders/:id/notify", update, controllers.NotifyCustomer)
			admin.GET("/orders/:id/logs", read, controllers.GetOrderLogs)
			admin.GET("/orders/:id/sheet.pdf", read, controllers.PrintOrderSheet)
			admin.GET("/orders/:id/progress", read, controllers.GetProgressTimeline)
			admin.POST("/orders/:id/stages/:stage_id/start", progress, controllers.StartStage)
			admin.POST("/orders/:id/stages/:stage_id/complete", progress, controllers.CompleteStage)
			admin.POST("/orders/:id/stages/:stage_id/media",
				middleware.RequirePermission(enums.PermissionPhotosUpload), controllers.UploadStageMedia)
			admin.DELETE("/media/:media_id",
				middleware.RequirePermission(enums.PermissionPhotosManage), controllers.DeleteMedia)
		}
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders: []string{"X-Request-Id", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}
