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

	"github.com/joho/godotenv"

	"github.com/junyaoz/solace/backend/internal/config"
	"github.com/junyaoz/solace/backend/internal/handler"
	"github.com/junyaoz/solace/backend/internal/llm"
	"github.com/junyaoz/solace/backend/internal/persona"
	"github.com/junyaoz/solace/backend/internal/prompt"
	"github.com/junyaoz/solace/backend/internal/session"
	"github.com/junyaoz/solace/backend/internal/transcript"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	log.Printf("[config] %s", cfg)

	counselor := persona.Default(cfg.Model.SystemPrompt)

	store := transcript.NewStore()
	store.StartJanitor(ctx, cfg.Session.SweepInterval, cfg.Session.IdleTTL)

	assembler := prompt.NewAssembler(cfg.Model, cfg.Session.HistoryLimit)
	client := llm.NewOpenAI(cfg.Model)
	orchestrator := session.New(store, assembler, client, counselor, cfg.Session.TranscriptCap)

	router := handler.NewRouter(orchestrator, cfg.Session.Secret)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Solace backend listening on %s", srv.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
