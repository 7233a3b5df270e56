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

	"prdhub/api/internal/app"
	"prdhub/api/internal/config"
	"prdhub/api/internal/prdgit"
	"prdhub/api/internal/search"
	"prdhub/api/internal/session"
	"prdhub/api/internal/store"
	"prdhub/api/internal/suggest"
	"prdhub/api/internal/ws"
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

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		log.Fatalf("failed to create repos dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	gitService := prdgit.New(cfg.ReposDir)

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)
	if meiliClient != nil {
		go searchService.ReindexAllFromPG(ctx)
	}

	deps := app.Deps{Search: searchService}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		tickets, err := session.NewRedisStore(cfg.RedisURL, cfg.TicketTTL)
		if err != nil {
			log.Printf("WARNING: redis unavailable, collab tickets disabled: %v", err)
		} else {
			defer tickets.Close()
			deps.Tickets = tickets
		}
	}

	if strings.TrimSpace(cfg.AIAPIKey) != "" {
		deps.Suggestions = suggest.New(cfg.AIAPIKey, cfg.AIBaseURL, cfg.AIModel)
	}

	service := app.NewService(cfg, dataStore, gitService, deps)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)

	mux := http.NewServeMux()
	mux.Handle("/ws", ws.NewHandler(service.Coordinator(), service, cfg.CORSOrigin))
	mux.Handle("/", httpServer.Handler())

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("PRDHub API listening on %s", cfg.Addr)
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
