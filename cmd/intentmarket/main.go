package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	ima2a "github.com/Strob0t/IntentMarket/internal/adapter/a2a"
	imhttp "github.com/Strob0t/IntentMarket/internal/adapter/http"
	immcp "github.com/Strob0t/IntentMarket/internal/adapter/mcp"
	imnats "github.com/Strob0t/IntentMarket/internal/adapter/nats"
	"github.com/Strob0t/IntentMarket/internal/adapter/natskv"
	"github.com/Strob0t/IntentMarket/internal/adapter/otel"
	"github.com/Strob0t/IntentMarket/internal/adapter/postgres"
	"github.com/Strob0t/IntentMarket/internal/adapter/ristretto"
	"github.com/Strob0t/IntentMarket/internal/adapter/tiered"
	"github.com/Strob0t/IntentMarket/internal/adapter/ws"
	"github.com/Strob0t/IntentMarket/internal/config"
	"github.com/Strob0t/IntentMarket/internal/logger"
	"github.com/Strob0t/IntentMarket/internal/middleware"
	"github.com/Strob0t/IntentMarket/internal/port/messagequeue"
	"github.com/Strob0t/IntentMarket/internal/secrets"
	"github.com/Strob0t/IntentMarket/internal/service"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

// Secrets read through the vault; none of them live in YAML.
const (
	adminTokenEnv  = "INTENTMARKET_ADMIN_TOKEN"
	mcpAPIKeyEnv   = "INTENTMARKET_MCP_API_KEY"
	moltbookKeyEnv = "MOLTBOOK_API_KEY"
	openclawKeyEnv = "OPENCLAW_API_KEY"
)

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe(args)
	case "version":
		fmt.Println(version)
	case "help", "--help":
		printHelp()
	default:
		err = runAdmin(cmd, args)
	}
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: intentmarket [command] [options]

Commands:
  serve          Run the API server (default)
  migrate        Apply, roll back or inspect database migrations
  sweep          Run one intent-to-intent sweep pass
  find-matches   Run find-matches for one intent
  intents        List intents
  version        Print the build version

Serve options:
  -c, --config   path to YAML config
  -p, --port     HTTP port
  --log-level    debug, info, warn, error
  --dsn          PostgreSQL DSN
  --nats-url     NATS URL
`)
}

func runServe(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return err
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	holder := config.NewHolder(cfg, cfgPath)

	log, closeLog := logger.New(cfg.Logging)
	defer closeLog.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---

	otelShutdown, err := otel.Init(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := imnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()

	idemKV, err := queue.KeyValue(ctx, cfg.Idempotency.Bucket, cfg.Idempotency.TTL)
	if err != nil {
		return fmt.Errorf("idempotency bucket: %w", err)
	}

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer l1.Close()
	l2, err := natskv.Open(ctx, queue.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
	if err != nil {
		return fmt.Errorf("l2 cache: %w", err)
	}
	cache := tiered.New(l1, l2, cfg.Cache.L1TTL)

	vault, err := secrets.NewVault(secrets.EnvLoader(
		secrets.SealKeyEnv, secrets.SealKeyPreviousEnv,
		adminTokenEnv, mcpAPIKeyEnv, moltbookKeyEnv, openclawKeyEnv,
	))
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	sealer := secrets.NewSealer(vault)
	if !sealer.Enabled() {
		slog.Warn("seal key not set, private intents will be rejected", "env", secrets.SealKeyEnv)
	}

	// --- Services ---

	hub := ws.NewHub(wsOriginPatterns(cfg.Server.CORSOrigin)...)
	defer hub.Close()

	store := postgres.NewStore(pool)
	agentSvc := service.NewAgentService(store, hub)
	intentSvc := service.NewIntentService(store, queue, hub, cache, sealer)
	matchSvc := service.NewMatchService(store, queue, hub, holder.Matching)
	matchSvc.SetMetrics(metrics)
	sweepSvc := service.NewSweepService(store, matchSvc, hub, cfg.Sweep.Concurrency)
	sweepSvc.SetMetrics(metrics)
	statsSvc := service.NewStatsService(store, cache, cfg.Cache.StatsTTL)

	sources, err := buildSources(cfg.Ingest, vault)
	if err != nil {
		return fmt.Errorf("intent sources: %w", err)
	}
	ingestSvc := service.NewIngestService(store, intentSvc, cfg.Breaker, sources...)
	ingestSvc.SetMetrics(metrics)

	cancelCreated, err := queue.Subscribe(ctx, messagequeue.SubjectIntentCreated, matchSvc.HandleIntentCreated)
	if err != nil {
		return fmt.Errorf("intents.created subscriber: %w", err)
	}
	defer cancelCreated()

	if cfg.Sweep.Enabled {
		go sweepSvc.Start(ctx, cfg.Sweep.Interval)
	}
	if cfg.Ingest.Enabled && len(sources) > 0 {
		go ingestSvc.Start(ctx, cfg.Ingest.Interval)
	}

	// --- HTTP ---

	limiter := middleware.NewRateLimiter("general", cfg.Rate.RequestsPerSecond, cfg.Rate.Burst, middleware.ViewerOrIP)
	go limiter.RunCleanup(ctx, cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	var matchLimit func(http.Handler) http.Handler
	if cfg.Rate.MatchRequestsPerSecond > 0 {
		ml := middleware.NewRateLimiter("matching", cfg.Rate.MatchRequestsPerSecond, cfg.Rate.MatchBurst, middleware.ViewerOrIP)
		go ml.RunCleanup(ctx, cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
		matchLimit = ml.Handler
	}

	handlers := &imhttp.Handlers{
		Agents:  agentSvc,
		Intents: intentSvc,
		Matches: matchSvc,
		Sweep:   sweepSvc,
		Ingest:  ingestSvc,
		Stats:   statsSvc,
		DB:      store,
		Queue:   queue,
		Version: version,

		MatchLimit: matchLimit,
	}
	adminToken := func() string { return vault.Get(adminTokenEnv) }

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(otel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(imhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(imhttp.SecurityHeaders)
	r.Use(imhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.Viewer)
	r.Use(limiter.Handler)

	// WebSocket and A2A sit outside the idempotency layer.
	r.Get("/ws", hub.HandleWS)
	ima2a.NewHandler(cfg.Server.PublicURL, version, matchSvc, intentSvc).MountRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(60 * time.Second))
		r.Use(middleware.Idempotency(idemKV))
		imhttp.MountRoutes(r, handlers, adminToken)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	var mcpSrv *immcp.Server
	if cfg.MCP.Enabled {
		mcpSrv = immcp.NewServer(immcp.ServerConfig{
			Addr:    cfg.MCP.Addr,
			Name:    "intentmarket",
			Version: version,
			APIKey:  vault.Get(mcpAPIKeyEnv),
		}, immcp.ServerDeps{
			Intents: intentSvc,
			Matches: matchSvc,
			Agents:  agentSvc,
			Stats:   statsSvc,
		})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
	}

	// SIGHUP reloads config and secrets. Matching settings apply to the next
	// run; listener, pool and broker settings need a restart.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				reload(holder, vault)
			}
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if mcpSrv != nil {
		if err := mcpSrv.Stop(shutdownCtx); err != nil {
			slog.Warn("mcp shutdown", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := queue.Drain(); err != nil {
		slog.Warn("nats drain", "error", err)
	}
	return nil
}

func reload(holder *config.Holder, vault *secrets.Vault) {
	if err := holder.Reload(); err != nil {
		slog.Error("config reload failed, keeping previous config", "error", err)
	} else {
		slog.Info("config reloaded", "matching", holder.Matching())
	}
	if err := vault.Reload(); err != nil {
		slog.Error("secrets reload failed", "error", err)
	} else {
		slog.Info("secrets reloaded",
			"keys", vault.Keys(),
			"seal_key", vault.Redacted(secrets.SealKeyEnv),
			"seal_key_rotating", vault.Get(secrets.SealKeyPreviousEnv) != "",
		)
	}
}

// wsOriginPatterns converts the CORS origin into websocket host patterns.
func wsOriginPatterns(origin string) []string {
	if origin == "" || origin == "*" {
		return []string{"*"}
	}
	host := origin
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	return []string{strings.TrimSuffix(host, "/")}
}
