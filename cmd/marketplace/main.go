// cmd/marketplace/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"masqanicore/internal/common/config"
	"masqanicore/internal/common/database"
	"masqanicore/internal/common/logger"
	"masqanicore/internal/common/notify"
	"masqanicore/internal/common/observability"
	"masqanicore/internal/common/storage"
	"masqanicore/internal/engine/activation"
	"masqanicore/internal/engine/inflight"
	"masqanicore/internal/engine/unlock"
	"masqanicore/internal/models"
	"masqanicore/internal/payment"
	"masqanicore/internal/pricing"
	"masqanicore/internal/repository"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New("info", "console")
		fallback.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting marketplace core...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New("marketplace")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Photo Storage ---
	var uploader *storage.Uploader
	if cfg.Storage.Bucket != "" {
		uploader, err = storage.NewUploader(ctx, cfg.Storage)
		if err != nil {
			zapLog.Fatal("photo storage init failed", zap.Error(err))
		}
		zapLog.Info("Photo storage ready", zap.String("bucket", cfg.Storage.Bucket))
	} else {
		zapLog.Warn("Photo storage not configured, activation uploads disabled")
	}

	// --- Init Payment Gateway ---
	var gateway payment.Gateway
	if cfg.Payment.Simulate {
		gateway = payment.NewSimulator()
		zapLog.Info("Payment gateway: simulator")
	} else {
		gateway = payment.NewDarajaClient(cfg.Payment, log)
		zapLog.Info("Payment gateway: daraja", zap.String("baseUrl", cfg.Payment.BaseURL))
	}

	// --- Init Receipt Notifier ---
	var notifier notify.Notifier = notify.NoopNotifier{}
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		var sesClient *notify.SESClient
		var snsClient *notify.SNSClient
		if cfg.Notifications.Email.Enabled {
			if sesClient, err = notify.NewSESClient(ctx, cfg.Notifications.AWS.Region); err != nil {
				zapLog.Fatal("ses client failed", zap.Error(err))
			}
		}
		if cfg.Notifications.SMS.Enabled {
			if snsClient, err = notify.NewSNSClient(ctx, cfg.Notifications.AWS.Region); err != nil {
				zapLog.Fatal("sns client failed", zap.Error(err))
			}
		}
		notifier = notify.NewReceipts(sesClient, snsClient, cfg.Notifications, log)
		zapLog.Info("Receipt notifier initialized")
	}

	// --- Repositories & Transaction Plumbing ---
	accounts := repository.NewAccountDirectory(pg.DB, log)
	listings := repository.NewListingRepository(pg.DB, rdb.Client, log)

	// Lease TTL must outlive a full gateway round-trip so no live transaction
	// loses its slot.
	leaseTTL := config.GetDuration(cfg.Payment.Timeout) + 30*time.Second
	leases := inflight.NewRegistry(rdb.Client, leaseTTL, log)

	unlockFees := pricing.UnlockTableFromConfig(cfg.Pricing.Unlock)
	listingFees := pricing.ListingTableFromConfig(cfg.Pricing.Listing)

	// --- Transaction Engines ---
	unlockEngine := unlock.NewEngine(
		unlock.FromAppConfig(cfg.Payment),
		accounts, listings, unlockFees, gateway, leases, notifier, obs, log,
	)
	activationEngine := activation.NewEngine(
		activation.FromAppConfig(cfg.Payment),
		listings, uploader, listingFees, gateway, leases, notifier, obs, log,
	)
	zapLog.Info("Transaction engines ready")

	// Outcome drains: terminal reports are logged centrally until a delivery
	// channel (push, websocket) picks them up.
	go func() {
		for outcome := range unlockEngine.Outcomes() {
			logOutcome(zapLog, "unlock", outcome.TxID, string(outcome.State), outcome.Err)
		}
	}()
	go func() {
		for outcome := range activationEngine.Outcomes() {
			logOutcome(zapLog, "activation", outcome.TxID, string(outcome.State), outcome.Err)
		}
	}()

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			status := "ready"
			code := http.StatusOK
			if err := pg.Ping(r.Context()); err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
			w.WriteHeader(code)
			json.NewEncoder(w).Encode(map[string]string{
				"status": status,
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())

		addr := fmt.Sprintf(":%d", cfg.App.MetricsPort)
		zapLog.Info("Health/Metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping engines...")
	zapLog.Info("Marketplace core stopped gracefully")
}

func logOutcome(log *zap.Logger, flow, txID, state string, cause error) {
	fields := []zap.Field{
		zap.String("flow", flow),
		zap.String("txId", txID),
		zap.String("state", state),
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	if state == string(models.TxSucceeded) {
		log.Info("transaction settled", fields...)
		return
	}
	log.Warn("transaction outcome", fields...)
}
