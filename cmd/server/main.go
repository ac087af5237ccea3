package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"canopy-backend-go/internal/cache"
	"canopy-backend-go/internal/config"
	"canopy-backend-go/internal/db"
	httpapi "canopy-backend-go/internal/http"
	"canopy-backend-go/internal/jobs"
	"canopy-backend-go/internal/migrations"
	"canopy-backend-go/internal/notify"
	"canopy-backend-go/internal/services"
	"canopy-backend-go/internal/storage"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	cleanupLogs, err := setupLogger(cfg.LogDir, cfg.LogRetentionDays)
	if err != nil {
		log.Printf("logger setup failed: %v", err)
	} else {
		defer cleanupLogs()
	}

	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := migrations.Apply(database, migrations.Files()); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var revoker services.Revoker
	var locker jobs.Locker
	if cfg.RedisAddr != "" {
		client, err := cache.Open(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer client.Close()
		revoker = cache.NewRevoker(client)
		locker = cache.NewLocker(client)
		log.Printf("[cache] redis at %s", cfg.RedisAddr)
	} else {
		log.Printf("[cache] REDIS_ADDR not set, token revocation and job locks disabled")
	}

	var mailer notify.Mailer = notify.LogMailer{}
	if cfg.SMTPHost != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}
	var publisher notify.Publisher = notify.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = notify.NewKafkaPublisher(notify.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Printf("[notify] close publisher: %v", err)
		}
	}()

	var store storage.ObjectStore
	var local *storage.LocalStore
	if cfg.OSSEnabled() {
		store, err = storage.NewOSSStore(storage.OSSConfig{
			Endpoint:      cfg.OSSEndpoint,
			AccessKey:     cfg.OSSAccessKey,
			SecretKey:     cfg.OSSSecretKey,
			Bucket:        cfg.OSSBucket,
			PublicBaseURL: cfg.OSSPublicBaseURL,
		})
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
	} else {
		local, err = storage.NewLocalStore(cfg.MediaStoragePath, "/api/media/content")
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		store = local
	}

	hub := services.NewActivityHub()
	go hub.Run(ctx)

	effects := &services.EffectRunner{
		Mailer:    mailer,
		Publisher: publisher,
		Hub:       hub,
		Timeout:   10 * time.Second,
		BaseURL:   cfg.AppBaseURL,
	}

	server := &httpapi.Server{
		DB:      database,
		Config:  cfg,
		Tokens:  httpapi.NewTokenService(cfg, revoker),
		Effects: effects,
		Store:   store,
		Local:   local,
		Hub:     hub,
	}
	go healthLoop(ctx, database, hub, cfg)

	reminders := &jobs.ReminderJob{
		Claim: func(ctx context.Context, now time.Time, window time.Duration) ([]services.Reminder, error) {
			return services.ClaimDueReminders(ctx, database, now, window)
		},
		Effects: effects,
		Window:  time.Duration(cfg.ReminderWindowHours) * time.Hour,
		Lock:    locker,
	}
	if err := reminders.Start(cfg.ReminderSchedule); err != nil {
		log.Fatalf("reminders: %v", err)
	}

	addr := ":8080"
	if value := os.Getenv("PORT"); value != "" {
		addr = ":" + value
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
	reminders.Stop(ctxShutdown)
	cancel()
	log.Printf("shutdown complete")
}

// setupLogger tees the standard logger to stdout and a per-day file in dir,
// switching files at midnight and keeping retentionDays of history.
func setupLogger(dir string, retentionDays int) (func(), error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	day := time.Now().Format(logDateLayout)
	file, err := openLogFile(dir, day)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, file))
	pruneLogs(dir, retentionDays, time.Now())

	var mu sync.Mutex
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				mu.Lock()
				if today := now.Format(logDateLayout); today != day {
					if next, err := openLogFile(dir, today); err == nil {
						log.SetOutput(io.MultiWriter(os.Stdout, next))
						_ = file.Close()
						file, day = next, today
						pruneLogs(dir, retentionDays, now)
					}
				}
				mu.Unlock()
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		mu.Lock()
		defer mu.Unlock()
		log.SetOutput(os.Stdout)
		_ = file.Close()
	}, nil
}

const logDateLayout = "2006-01-02"

func openLogFile(dir, day string) (*os.File, error) {
	return os.OpenFile(filepath.Join(dir, "canopy-"+day+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func pruneLogs(dir string, retentionDays int, now time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := now.AddDate(0, 0, -(retentionDays - 1)).Format(logDateLayout)
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !strings.HasPrefix(name, "canopy-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		day := strings.TrimSuffix(strings.TrimPrefix(name, "canopy-"), ".log")
		if _, err := time.Parse(logDateLayout, day); err != nil {
			continue
		}
		if day < cutoff {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
}

// healthLoop stores a host sample on every tick, pushes it to admin sockets
// and drops samples past the retention window.
func healthLoop(ctx context.Context, database *sqlx.DB, hub *services.ActivityHub, cfg config.Config) {
	interval := time.Duration(cfg.HealthSampleSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	keep := time.Duration(cfg.HealthKeepHours) * time.Hour
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sample, err := services.CaptureHealth(ctx, database, cfg.HealthDiskPath)
			if err != nil {
				log.Printf("[health] capture: %v", err)
				continue
			}
			hub.Broadcast(notify.Activity{
				Type:       "system.health",
				EntityType: "SYSTEM",
				EntityID:   "server",
				At:         sample.CapturedAt,
				Data: map[string]interface{}{
					"processRssBytes":  sample.ProcessRSSBytes,
					"memoryUsedBytes":  sample.MemoryUsedBytes,
					"memoryTotalBytes": sample.MemoryTotalBytes,
					"diskUsedBytes":    sample.DiskUsedBytes,
					"diskTotalBytes":   sample.DiskTotalBytes,
					"processCpuLoad":   sample.ProcessCPULoad,
					"systemCpuLoad":    sample.SystemCPULoad,
				},
			})
			if keep > 0 {
				if err := services.PruneHealth(ctx, database, keep); err != nil {
					log.Printf("[health] prune: %v", err)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}
