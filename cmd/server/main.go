package main

import (
	"os"
	"path/filepath"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Sravyalaharimallidi/tenantflow-backend/config"
	"github.com/Sravyalaharimallidi/tenantflow-backend/internal/api"
	"github.com/Sravyalaharimallidi/tenantflow-backend/internal/booking"
	"github.com/Sravyalaharimallidi/tenantflow-backend/internal/database"
	"github.com/Sravyalaharimallidi/tenantflow-backend/internal/geocoding"
	"github.com/Sravyalaharimallidi/tenantflow-backend/internal/notify"
	"github.com/Sravyalaharimallidi/tenantflow-backend/internal/search"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	logger.Infof("Using database at: %s", cfg.Database.Path)
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}

	logger.Info("Running database migrations...")
	if err := database.MigrateSchema(db); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	cacheDir := cfg.Geocoding.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "tenantflow", "geocode_cache")
	}
	geocoder := geocoding.NewGeocoder(logger, cacheDir, cfg.Geocoding.CountryCode)

	if cfg.Geocoding.Enabled {
		logger.Info("Starting coordinate backfill for properties without coordinates...")
		go func() {
			if _, err := geocoding.BackfillPropertyCoordinates(db, geocoder, logger); err != nil {
				logger.WithError(err).Error("Coordinate backfill failed")
			}
		}()
	}

	dispatcher := notify.NewDispatcher(db, logger, notify.Options{
		QueueSize:     cfg.Notifications.QueueSize,
		WorkerCount:   cfg.Notifications.WorkerCount,
		WebhookURL:    cfg.Notifications.WebhookURL,
		RetentionDays: cfg.Notifications.RetentionDays,
	})
	dispatcher.Start()
	defer dispatcher.Stop()

	engine := search.NewEngine(db, logger)
	controller := booking.NewController(db, logger, dispatcher)
	handler := api.NewHandler(db, logger, engine, controller, geocoder)

	router := gin.Default()
	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) == 1 && cfg.Server.CORSOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "X-User-ID", "X-User-Role")
	router.Use(cors.New(corsConfig))
	api.SetupRoutes(router, handler)

	logger.Infof("Starting server on port %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
