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

	"github.com/arkanum/ai-server/internal/analysis/emotion"
	"github.com/arkanum/ai-server/internal/config"
	"github.com/arkanum/ai-server/internal/handler"
	"github.com/arkanum/ai-server/internal/memory"
	"github.com/arkanum/ai-server/internal/service/ai"
	chatservice "github.com/arkanum/ai-server/internal/service/chat"
	"github.com/arkanum/ai-server/internal/service/gigachat"
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

	if !cfg.GigaChat.Enabled() {
		log.Fatal("GIGACHAT_CLIENT_ID and GIGACHAT_CLIENT_SECRET must be set")
	}

	var store memory.Store
	backend := "in-memory"
	if cfg.Memory.DataDir != "" {
		fileStore, err := memory.NewFileStore(cfg.Memory.DataDir, cfg.Memory.Retention)
		if err != nil {
			log.Fatalf("failed to initialize memory store: %v", err)
		}
		store = fileStore
		backend = "file"
	} else {
		store = memory.NewMemStore(cfg.Memory.Retention)
		log.Println("MEMORY_DIR not set, conversation memory will not survive restarts")
	}

	tokens := gigachat.NewTokenManager(cfg.GigaChat)
	chatModel := gigachat.NewChatModel(cfg.GigaChat, tokens)

	aiSvc, err := ai.NewService(ctx, chatModel, cfg.GigaChat.StreamResponse)
	if err != nil {
		log.Fatalf("failed to initialize AI service: %v", err)
	}

	chatSvc := chatservice.NewService(store, aiSvc, emotion.NewTracker(), cfg.Memory.ContextWindow)

	router := handler.NewRouter(chatSvc, cfg.Server.FrontendURL, handler.Status{
		Provider:      "gigachat",
		MemoryBackend: backend,
	})

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Arkanum AI server listening on %s", serverCfg.Addr)
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
