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

	"lattice/api/internal/app"
	"lattice/api/internal/authpw"
	"lattice/api/internal/block"
	"lattice/api/internal/config"
	"lattice/api/internal/export"
	"lattice/api/internal/media"
	"lattice/api/internal/search"
	"lattice/api/internal/session"
	"lattice/api/internal/store"
	"lattice/api/internal/treerepo"
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

	if err := os.MkdirAll(cfg.SnapshotsDir, 0o755); err != nil {
		log.Fatalf("failed to create snapshots dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	engine := block.NewEngine(nil)
	treeService := treerepo.New(cfg.SnapshotsDir)

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, engine)

	var mediaService *media.Service
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		mediaService, err = media.New(ctx, media.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("object storage connection failed: %v", err)
		}
	} else {
		log.Printf("object storage not configured, attachment uploads disabled")
	}

	exportService := export.NewService(engine)
	authService := authpw.New(dataStore)

	var service *app.Service
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, redisErr := session.NewRedisStore(cfg.RedisURL)
		if redisErr != nil {
			log.Printf("redis unavailable, falling back to postgres refresh sessions: %v", redisErr)
			service = app.NewService(cfg, dataStore, dataStore, engine, treeService, searchService, mediaService, exportService, authService)
		} else {
			log.Printf("using redis for refresh token storage")
			defer redisStore.Close()
			service = app.NewService(cfg, dataStore, redisStore, engine, treeService, searchService, mediaService, exportService, authService)
		}
	} else {
		log.Printf("using postgres for refresh token storage")
		service = app.NewService(cfg, dataStore, dataStore, engine, treeService, searchService, mediaService, exportService, authService)
	}
	if err := service.HydrateFromLatest(ctx); err != nil {
		log.Printf("WARNING: tree hydration failed (starting empty): %v", err)
	}
	log.Printf("block engine ready with %d blocks", engine.Count())

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
		log.Printf("Lattice API listening on %s", cfg.Addr)
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
