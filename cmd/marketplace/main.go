package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/conecta-cl/marketplace/api"
	"github.com/conecta-cl/marketplace/internal/bookings"
	"github.com/conecta-cl/marketplace/internal/catalog"
	"github.com/conecta-cl/marketplace/internal/clients"
	"github.com/conecta-cl/marketplace/internal/config"
	"github.com/conecta-cl/marketplace/internal/database"
	"github.com/conecta-cl/marketplace/internal/identities"
	"github.com/conecta-cl/marketplace/internal/messaging"
	"github.com/conecta-cl/marketplace/internal/payments"
	"github.com/conecta-cl/marketplace/internal/professionals"
	"github.com/conecta-cl/marketplace/internal/reviews"
	"github.com/conecta-cl/marketplace/pkg/logger"
	"github.com/conecta-cl/marketplace/pkg/metrics"
	"github.com/conecta-cl/marketplace/pkg/otel"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.NewLogger(os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otelShutdown, err := otel.Setup(ctx, otel.Config{
		Tracing: &otel.TracingOpts{Exporter: "stdout"},
	})
	if err != nil {
		log.Warn("Telemetry setup incomplete", zap.Error(err))
	}

	db, err := database.NewPostgresDB(cfg.Database.DSN, cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	redisClient, err := database.NewRedisClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("Redis unavailable, search caching disabled", zap.Error(err))
		redisClient = nil
	}

	var publisher messaging.Publisher
	if cfg.Kafka.EnableEvents {
		kafkaCfg := messaging.DefaultKafkaConfig()
		kafkaCfg.Brokers = cfg.Kafka.Brokers
		kafkaCfg.TopicPrefix = cfg.Kafka.TopicPrefix
		publisher = messaging.NewKafkaPublisher(kafkaCfg, log)
	} else {
		publisher = messaging.NopPublisher{}
	}

	identitySvc, err := identities.NewService(log, db, cfg.JWT.Secret, cfg.JWT.ExpirationHours)
	if err != nil {
		log.Fatal("Failed to create identity service", zap.Error(err))
	}

	professionalSvc, err := professionals.NewService(log, db, redisClient, professionals.Config{
		SearchPageSize:    cfg.Platform.SearchPageSize,
		FeaturedMinRating: cfg.Platform.FeaturedMinRating,
		CacheTTL:          cfg.Redis.CacheTTL,
	})
	if err != nil {
		log.Fatal("Failed to create professional service", zap.Error(err))
	}

	clientSvc, err := clients.NewService(log, db)
	if err != nil {
		log.Fatal("Failed to create client service", zap.Error(err))
	}

	catalogSvc, err := catalog.NewService(log, db)
	if err != nil {
		log.Fatal("Failed to create catalog service", zap.Error(err))
	}

	bookingSvc, err := bookings.NewService(log, db, publisher, bookings.Config{
		CommissionPercentage: decimal.NewFromFloat(cfg.Platform.CommissionPercentage),
		CancellationWindow:   time.Duration(cfg.Platform.CancellationWindowH) * time.Hour,
	}, professionalSvc, clientSvc, catalogSvc)
	if err != nil {
		log.Fatal("Failed to create booking service", zap.Error(err))
	}

	paymentSvc, err := payments.NewService(log, db, publisher, bookingSvc)
	if err != nil {
		log.Fatal("Failed to create payment service", zap.Error(err))
	}

	reviewSvc, err := reviews.NewService(log, db, publisher, professionalSvc)
	if err != nil {
		log.Fatal("Failed to create review service", zap.Error(err))
	}

	services := []interface{ Start() error }{
		identitySvc, professionalSvc, clientSvc, catalogSvc, bookingSvc, paymentSvc, reviewSvc,
	}
	for _, svc := range services {
		if err := svc.Start(); err != nil {
			log.Fatal("Failed to start service", zap.Error(err))
		}
	}

	go reportPoolMetrics(ctx, db, log)

	server := api.NewServer(log, identitySvc, professionalSvc, clientSvc, catalogSvc,
		bookingSvc, paymentSvc, reviewSvc)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := server.Start(addr); err != nil {
			log.Fatal("API server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	bookingSvc.Stop()
	paymentSvc.Stop()
	reviewSvc.Stop()
	catalogSvc.Stop()
	clientSvc.Stop()
	professionalSvc.Stop()
	identitySvc.Stop()
	publisher.Close()
	if otelShutdown != nil {
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}
	log.Info("Shutdown complete")
}

// reportPoolMetrics exports DB pool stats every 15 seconds
func reportPoolMetrics(ctx context.Context, db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("DB pool stats unavailable", zap.Error(err))
		return
	}
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := sqlDB.Stats()
			metrics.DBOpenConns.WithLabelValues("postgres").Set(float64(stats.OpenConnections))
			metrics.DBIdleConns.WithLabelValues("postgres").Set(float64(stats.Idle))
			metrics.DBInUseConns.WithLabelValues("postgres").Set(float64(stats.InUse))
		}
	}
}
