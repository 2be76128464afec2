package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/coursebot/coursebot/internal/api"
	"github.com/coursebot/coursebot/internal/bot"
	"github.com/coursebot/coursebot/internal/cache"
	"github.com/coursebot/coursebot/internal/config"
	"github.com/coursebot/coursebot/internal/dispatch"
	"github.com/coursebot/coursebot/internal/gateway"
	"github.com/coursebot/coursebot/internal/provider"
	"github.com/coursebot/coursebot/internal/storage"
)

func runServer() error {
	fmt.Fprintf(os.Stderr, "coursebot version %s\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if debugLog {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage. The default data dir is ":memory:" so all state is
	// transient across restarts.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Completion client with its concurrency limiter.
	completer := provider.NewClient(cfg.Provider.APIKey, provider.Options{
		BaseURL: cfg.Provider.BaseURL,
		Model:   cfg.Provider.Model,
		Persona: cfg.Provider.Persona,
		Permits: int64(cfg.Provider.Permits),
	})

	answers := cache.New(cfg.Bot.SimilarityThreshold, cfg.Bot.CacheCapacity)

	queue := dispatch.NewQueue()
	gw := gateway.NewClient(cfg.Gateway.URL, cfg.Gateway.APIBase, cfg.Gateway.Token)
	dispatcher := dispatch.NewDispatcher(queue, completer, gw, &interactionRecorder{
		cache: answers,
		store: store,
	}, 0)

	b := bot.New(queue, gw, completer, store, answers, bot.Options{
		HelpChannel:   cfg.Bot.HelpChannel,
		AdminRole:     cfg.Bot.AdminRole,
		HistoryWindow: cfg.Bot.HistoryWindow,
	})
	b.Register(gw)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		dispatcher.Run(gCtx)
		return nil
	})

	g.Go(func() error {
		err := gw.Run(gCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	// Local ops API, only when a token is configured.
	if cfg.Ops.Token != "" {
		srv := &http.Server{
			Addr: fmt.Sprintf("127.0.0.1:%d", cfg.Ops.Port),
			Handler: api.NewHandler(api.Deps{
				Store:      store,
				Dispatcher: dispatcher,
				Token:      cfg.Ops.Token,
			}),
		}
		g.Go(func() error {
			slog.Info("ops API listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("ops server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	} else {
		slog.Info("ops API disabled (set COURSEBOT_OPS_TOKEN to enable)")
	}

	slog.Info("coursebot running",
		"help_channel", cfg.Bot.HelpChannel,
		"admin_role", cfg.Bot.AdminRole,
		"model", cfg.Provider.Model)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Fprintln(os.Stderr, "shutting down...")
	return nil
}

// interactionRecorder feeds every answered request into the similarity
// cache and the audit log.
type interactionRecorder struct {
	cache *cache.Cache
	store *storage.Store
}

func (r *interactionRecorder) Record(question, response, userID string) {
	r.cache.Record(question, response, userID)
	err := r.store.SaveInteraction(storage.Interaction{
		ID:       uuid.New().String(),
		Question: question,
		Response: response,
		UserID:   userID,
	})
	if err != nil {
		slog.Warn("saving interaction failed", "error", err)
	}
}
