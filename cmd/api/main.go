package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joshua0006/architect-hub-sub005/internal/app"
	"github.com/joshua0006/architect-hub-sub005/internal/authpw"
	"github.com/joshua0006/architect-hub-sub005/internal/blob"
	"github.com/joshua0006/architect-hub-sub005/internal/config"
	"github.com/joshua0006/architect-hub-sub005/internal/email"
	"github.com/joshua0006/architect-hub-sub005/internal/search"
	"github.com/joshua0006/architect-hub-sub005/internal/session"
	"github.com/joshua0006/architect-hub-sub005/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		defer meiliClient.Close()
	}

	opts := app.Options{
		Search: searchService,
		AuthPW: authpw.NewService(dataStore),
	}

	if strings.TrimSpace(cfg.SMTPHost) != "" {
		opts.Email = email.NewService(email.Config{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Username:  cfg.SMTPUsername,
			Password:  cfg.SMTPPassword,
			From:      cfg.SMTPFrom,
			FromName:  cfg.SMTPFromName,
			EnableTLS: true,
		})
	} else {
		log.Printf("email: SMTP not configured, notifications log only")
	}

	// Empty endpoint leaves uploads disabled; metadata endpoints keep working.
	if strings.TrimSpace(cfg.S3Endpoint) != "" {
		blobService, err := blob.NewService(ctx, blob.Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			log.Fatalf("object storage failed: %v", err)
		}
		opts.Blob = blobService
	} else {
		log.Printf("blob: S3_ENDPOINT not set, uploads disabled")
	}

	// Redis keeps refresh tokens when reachable; Postgres is the fallback.
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Printf("session: redis unavailable, falling back to postgres: %v", err)
		} else {
			defer redisStore.Close()
			opts.Sessions = redisStore
		}
	}

	service := app.New(cfg, dataStore, opts)
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}
	searchService.ReindexAllFromPG(ctx)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Architect Hub API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
