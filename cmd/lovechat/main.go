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

	"github.com/lovechat-ai/lovechat/internal/call"
	"github.com/lovechat-ai/lovechat/internal/config"
	"github.com/lovechat-ai/lovechat/internal/httpapi"
	"github.com/lovechat-ai/lovechat/internal/media"
	"github.com/lovechat-ai/lovechat/internal/observability"
	"github.com/lovechat-ai/lovechat/internal/ratelimit"
	"github.com/lovechat-ai/lovechat/internal/store"
	"github.com/lovechat-ai/lovechat/internal/supabase"
	"github.com/lovechat-ai/lovechat/internal/tavus"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv load: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	st, err := store.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("store init failed: %v", err)
	}
	defer st.Close()
	if cfg.DatabaseURL != "" {
		log.Printf("store: postgres")
	} else {
		log.Printf("store: in-memory")
	}

	limiter, err := ratelimit.NewLimiter(cfg.RedisURL, cfg.RateLimitMax, cfg.RateLimitWindow)
	if err != nil {
		log.Fatalf("rate limiter init failed: %v", err)
	}
	defer limiter.Close()
	if cfg.RedisURL != "" {
		log.Printf("rate limiter: redis (%d req / %s)", cfg.RateLimitMax, cfg.RateLimitWindow)
	} else {
		log.Printf("rate limiter: in-memory (%d req / %s)", cfg.RateLimitMax, cfg.RateLimitWindow)
	}

	auth := supabase.NewProvider(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseJWTSecret)
	if cfg.SupabaseURL != "" {
		log.Printf("auth provider: supabase")
	} else {
		log.Printf("auth provider: local (no SUPABASE_URL configured)")
	}

	conversations := tavus.NewClient(cfg.TavusBaseURL)

	calls := call.NewManager(call.ManagerDeps{
		Conversations: conversations,
		NewTransport:  func() media.Transport { return media.NewMockTransport() },
		Records:       st,
		Metrics:       metrics,
		BudgetSeconds: cfg.CallBudgetSeconds(),
		TickInterval:  time.Second,
	}, cfg.CallInactivityTimeout)
	calls.SetExpireHook(func(snap call.Snapshot) {
		log.Printf("call %s expired after inactivity", snap.CallID)
		metrics.CallEvents.WithLabelValues("expired").Inc()
		metrics.ActiveCalls.Set(float64(calls.ActiveCount()))
	})

	api := httpapi.New(cfg, auth, conversations, calls, st, limiter, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	calls.StartJanitor(runCtx, 5*time.Second)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
