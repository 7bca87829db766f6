package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"shiftly/timeclock/internal/config"
	internalhttp "shiftly/timeclock/internal/http"
	"shiftly/timeclock/internal/jobs"
	"shiftly/timeclock/internal/notify"
	"shiftly/timeclock/internal/poller"
	"shiftly/timeclock/internal/repository"
	"shiftly/timeclock/internal/tracker"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("env file load error: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()
	store := repository.NewStore(pool)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
	}

	factory := notifyFactory(redisClient, cfg.NotificationLogCap)
	trackers := tracker.NewManager(ctx, store, factory, tracker.Options{
		Poll: poller.Config{
			Interval: cfg.PollInterval,
			Lead:     cfg.UpcomingLead,
			Grace:    cfg.UpcomingGrace,
		},
		DismissalTTL:      cfg.DismissalTTL,
		OvertimeThreshold: cfg.OvertimeThresholdHours,
	})

	server := internalhttp.NewServer(cfg, store, trackers)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	jobs.StartEntryCloseJob(ctx, cfg, store)

	go func() {
		log.Printf("timeclock http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	trackers.Shutdown()
}

// notifyFactory picks the notification store backend: redis when configured,
// otherwise per-tracker memory. Memory does not survive a restart, which only
// costs a repeat alert.
func notifyFactory(client *redis.Client, logCap int) tracker.NotifyFactory {
	return func(employeeID, deviceID string) notify.Store {
		if client != nil {
			return notify.NewRedisStore(client, employeeID, deviceID, logCap)
		}
		return notify.NewMemoryStore(logCap)
	}
}
