package main

import (
	"fmt"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"clinic-app-server/internal/accounts"
	"clinic-app-server/internal/config"
	"clinic-app-server/internal/emr"
	"clinic-app-server/internal/handlers"
	"clinic-app-server/internal/logger"
	"clinic-app-server/internal/metrics"
	"clinic-app-server/internal/models"
	"clinic-app-server/internal/routes"
	"clinic-app-server/internal/scheduling"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	envErr := godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	if envErr != nil {
		log.WithError(envErr).Debug("no .env file loaded")
	}

	db, err := models.InitDB(models.DatabaseConfig{DSN: cfg.Database.DSN})
	if err != nil {
		log.WithError(err).Fatal("Error connecting to database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.WithError(err).Fatal("Error getting database handle")
	}
	defer sqlDB.Close()

	var rdb redis.UniversalClient
	var locker scheduling.SlotLocker
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
		})
		defer rdb.Close()
		locker = scheduling.NewRedisSlotLocker(rdb, cfg.Redis.SlotLockTTL, log)
		log.WithField("addr", cfg.Redis.Addr).Info("using redis slot locks")
	} else {
		locker = scheduling.NewLocalSlotLocker()
		log.Info("REDIS_ADDR not set, using in-process slot locks")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	accountSvc := accounts.NewService(accounts.NewGormRepository(db), cfg, log)
	schedulingSvc := scheduling.NewService(scheduling.NewGormRepository(db), locker, log, m)
	emrSvc := emr.NewService(emr.NewGormRepository(db), emr.NewGormBlobStore(db), cfg.Uploads.MaxBytes, log, m)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, routes.Dependencies{
		Config:       cfg,
		Log:          log,
		Metrics:      m,
		Gatherer:     reg,
		Accounts:     accountSvc,
		Appointments: schedulingSvc,
		EMR:          emrSvc,
		Health:       handlers.NewHealthHandler(sqlDB, rdb, cfg.Environment, cfg.Version),
	})

	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	log.WithField("env", cfg.Environment).WithField("addr", serverAddr).Info("Server running")
	if err := router.Run(serverAddr); err != nil {
		log.WithError(err).Fatal("Failed to start server")
	}
}
