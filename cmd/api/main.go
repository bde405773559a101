package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"choti/apps/backend/internal/config"
	"choti/apps/backend/internal/server"
	"choti/apps/backend/internal/store"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	st, err := store.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("database open failed: %v", err)
	}
	defer st.Close()

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	err = st.Ping(ctx)
	cancel()
	if err != nil {
		log.Fatalf("database ping failed: %v", err)
	}

	var ai server.AIClient
	if cfg.AIEnabled() {
		ai = server.NewOpenRouterClient(cfg)
		log.Printf("completions enabled model=%s", cfg.OpenRouterModel)
	} else {
		log.Printf("OPENROUTER_API_KEY not set; replies will use the fallback responder")
	}

	app := server.New(cfg, st, ai)
	httpServer := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("%s listening on http://localhost:%s", cfg.AppName, cfg.AppPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
