package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/roombook-api/api/swagger"
	"github.com/noah-isme/roombook-api/internal/broadcast"
	"github.com/noah-isme/roombook-api/internal/handler"
	"github.com/noah-isme/roombook-api/internal/middleware"
	"github.com/noah-isme/roombook-api/internal/queue"
	"github.com/noah-isme/roombook-api/internal/repository"
	"github.com/noah-isme/roombook-api/internal/service"
	"github.com/noah-isme/roombook-api/pkg/cache"
	"github.com/noah-isme/roombook-api/pkg/config"
	"github.com/noah-isme/roombook-api/pkg/database"
	"github.com/noah-isme/roombook-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/roombook-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/roombook-api/pkg/middleware/requestid"
)

// @title Room Booking API
// @version 1.0.0
// @description Room booking engine: conflict detection, lifecycle sweeping and occupancy projection
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	// Redis is optional: without it the engine degrades to an in-process
	// status cache and skips real-time broadcasting.
	var statusCache repository.Cache
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, using in-memory status cache", "error", err)
		statusCache = repository.NewMemoryCache()
	} else {
		defer redisClient.Close()
		statusCache = repository.NewRedisCache(redisClient, logr)
	}
	broadcaster := broadcast.NewRedisBroadcaster(redisClient, logr)

	var notifications *service.NotificationService
	if cfg.Notifications.Enabled {
		publisher := queue.NewPublisher(cfg.Notifications.AMQPURL, cfg.Notifications.QueuePrefix, logr)
		defer publisher.Close() //nolint:errcheck
		notifications = service.NewNotificationService(publisher, cfg.Notifications, logr)
		notifications.Start(ctx)
		defer notifications.Stop()
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	bookingRepo := repository.NewBookingRepository(db)
	roomRepo := repository.NewRoomRepository(db)

	occupancySvc := service.NewOccupancyService(roomRepo, bookingRepo, statusCache, broadcaster, metricsSvc, cfg.Booking.StatusCacheTTL, logr)
	bookingSvc := service.NewBookingService(bookingRepo, roomRepo, occupancySvc, notifications, broadcaster, metricsSvc, validate, logr)
	scheduleSvc := service.NewScheduleService(bookingSvc, validate, cfg.Booking.BulkMaxMonths, logr)
	roomSvc := service.NewRoomService(roomRepo, occupancySvc, broadcaster, logr)
	sweeperSvc := service.NewSweeperService(bookingRepo, occupancySvc, notifications, broadcaster, metricsSvc, cfg.Sweeper.Interval, logr)

	if cfg.Sweeper.Enabled {
		go sweeperSvc.Run(ctx)
	}

	bookingHandler := handler.NewBookingHandler(bookingSvc, scheduleSvc)
	roomHandler := handler.NewRoomHandler(roomSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	bookings := api.Group("/bookings")
	bookings.POST("", bookingHandler.Create)
	bookings.GET("", bookingHandler.List)
	bookings.POST("/bulk", bookingHandler.Bulk)
	bookings.GET("/:id", bookingHandler.Get)
	bookings.DELETE("/:id", bookingHandler.Delete)
	bookings.POST("/:id/cancel", bookingHandler.Cancel)
	bookings.POST("/:id/swap", bookingHandler.Swap)

	rooms := api.Group("/rooms")
	rooms.GET("/:building/:room/status", roomHandler.Status)
	rooms.PUT("/:building/:room/status", roomHandler.SetStatus)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
}
