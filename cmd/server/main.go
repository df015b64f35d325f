package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wisepal/wisepal-backend/internal/api"
	"github.com/wisepal/wisepal-backend/internal/auth"
	"github.com/wisepal/wisepal-backend/internal/config"
	"github.com/wisepal/wisepal-backend/internal/core"
	"github.com/wisepal/wisepal-backend/internal/logging"
	"github.com/wisepal/wisepal-backend/internal/store"
)

func main() {
	listModelsFlag := flag.Bool("list-models", false, "List AI models that support content generation and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	llmService := core.NewLLMService(ctx, cfg.GoogleAPIKey, cfg.GenModel, logger)
	defer llmService.Close()

	if *listModelsFlag {
		models, err := llmService.ListModels(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to list models")
		}
		for _, name := range models {
			fmt.Println(name)
		}
		return
	}

	dbStore, err := store.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer dbStore.Close()

	tokens := auth.NewTokenManager(cfg.Secret, cfg.TokenLifetime)
	userService := core.NewUserService(dbStore, tokens, logger)
	chatService := core.NewChatService(dbStore, llmService, logger)

	apiHandler := api.NewAPIHandler(userService, chatService, dbStore, llmService, logger)
	router := api.NewRouter(apiHandler, logger, api.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WriteTimeout, // AI calls can take time
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return
	}
	logger.Info().Msg("server exited gracefully")
}
