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

	"solardesk/api/internal/app"
	"solardesk/api/internal/blob"
	"solardesk/api/internal/config"
	"solardesk/api/internal/export"
	"solardesk/api/internal/notify"
	"solardesk/api/internal/search"
	"solardesk/api/internal/store"
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

	var feed *notify.Feed
	if strings.TrimSpace(cfg.RedisURL) != "" {
		feed, err = notify.NewFeed(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer feed.Close()
		dataStore = dataStore.WithPublisher(feed)
		log.Printf("Live change feed enabled")
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewStoreSearch(dataStore, cfg.ProjectsCollection))

	var archive *blob.Archive
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		archive, err = blob.NewArchive(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("object store connection failed: %v", err)
		}
		log.Printf("Invoice archive enabled on bucket %s", cfg.MinioBucket)
	}

	opts := app.Options{
		Store:                  dataStore,
		ApprovalsCollection:    cfg.ApprovalsCollection,
		ApprovalsAltCollection: cfg.ApprovalsAltCollection,
		ProjectsCollection:     cfg.ProjectsCollection,
		ProjectPageSize:        cfg.ProjectPageSize,
		SyncEndpoint:           cfg.SyncEndpoint,
		Locale:                 cfg.Locale,
		CurrencySymbol:         cfg.CurrencySymbol,
		Feed:                   feed,
		Search:                 searchService,
		Exporter:               export.NewService(),
	}
	if archive != nil {
		opts.Archive = archive
	}
	service := app.NewService(opts)
	if err := service.Start(ctx); err != nil {
		log.Printf("WARNING: start error (will retry on next restart): %v", err)
	}
	defer service.Close()

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Solardesk API listening on %s", cfg.Addr)
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
