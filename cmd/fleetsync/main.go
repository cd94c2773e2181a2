package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fleetsync/internal/buildinfo"
	"fleetsync/internal/config"
	"fleetsync/internal/metrics"
	"fleetsync/internal/model"
	"fleetsync/internal/quote"
	"fleetsync/internal/realtime"
	"fleetsync/internal/remote"
	"fleetsync/internal/store"
)

func main() {
	cfgPath := os.Getenv("CONFIG_FILE")
	if cfgPath == "" {
		cfgPath = "fleetsync.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	log.Info("starting", zap.Any("build", buildinfo.Info()))

	metrics.RegisterDefault()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Change broker: Redis when configured, in-process otherwise.
	var broker realtime.Broker
	if cfg.RedisURL != "" {
		rb, err := realtime.NewRedisBroker(cfg.RedisURL, log)
		if err != nil {
			log.Fatal("redis broker", zap.Error(err))
		}
		defer func() { _ = rb.Close() }()
		broker = rb
	} else {
		broker = realtime.NewMemoryBroker()
	}

	// Data gateway: Postgres when configured, in-memory otherwise. The
	// in-memory gateway mirrors its vehicle changes into the broker the
	// way the remote push channel would.
	var gw remote.Gateway
	if cfg.DatabaseURL != "" {
		pg, err := remote.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("postgres", zap.Error(err))
		}
		defer func() { _ = pg.Close() }()
		migCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		if err := pg.Migrate(migCtx); err != nil {
			cancel()
			log.Fatal("migrate", zap.Error(err))
		}
		cancel()
		gw = pg
	} else {
		mem := remote.NewMemory()
		mem.OnVehicleChange = func(eventType string, v model.Vehicle) {
			payload, _ := json.Marshal(v)
			broker.Publish(realtime.VehiclesChannel, realtime.ChangeEvent{Type: eventType, Table: "vehicles", New: payload})
		}
		gw = mem
	}

	sink, err := store.NewFileSink(cfg.StateDir)
	if err != nil {
		log.Fatal("state dir", zap.Error(err))
	}
	st := store.New(gw, sink, log)
	loadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	if err := st.LoadRoutes(loadCtx); err != nil {
		log.Warn("initial route load failed, serving persisted state", zap.Error(err))
	}
	cancel()

	// Websocket push feed, when an endpoint is configured.
	if cfg.RealtimeURL != "" {
		feed := realtime.NewWSFeed(cfg.RealtimeURL, broker, realtime.VehiclesChannel, log)
		go func() { _ = feed.Run(ctx) }()
	}

	listener := realtime.NewListener(broker, realtime.NotifierFunc(func(n realtime.Notification) {
		log.Info("notification", zap.String("kind", n.Kind), zap.String("message", n.Message))
	}), log)
	listener.Start()
	defer listener.Close()

	// AI quotes need a key; without one the gateway still answers with
	// deterministic fallbacks.
	var llm quote.LLM
	if cfg.GeminiAPIKey != "" {
		llm = quote.NewGeminiClient(cfg.GeminiAPIKey)
	} else {
		log.Warn("GEMINI_API_KEY not set, quotes served from local fallback only")
		llm = unavailableLLM{}
	}
	quotes := quote.New(llm, log)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(buildinfo.Info())
	})
	mux.HandleFunc("/v1/quote", func(w http.ResponseWriter, r *http.Request) {
		description := r.URL.Query().Get("description")
		distance := r.URL.Query().Get("distance")
		res := quotes.Generate(r.Context(), description, distance)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
	})
	mux.HandleFunc("/v1/routes", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st.Routes())
	})
	mux.HandleFunc("/v1/analysis/maintenance", func(w http.ResponseWriter, r *http.Request) {
		v, err := gw.VehicleByID(r.Context(), r.URL.Query().Get("vehicleId"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(quotes.PredictMaintenance(r.Context(), v))
	})
	mux.HandleFunc("/v1/analysis/financials", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(quotes.AnalyzeFinancials(r.Context(), st.Routes()))
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           logMiddleware(log, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	log.Info("listening", zap.String("addr", cfg.Addr()))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server", zap.Error(err))
	}
	log.Info("stopped")
}

type unavailableLLM struct{}

func (unavailableLLM) GenerateStructured(context.Context, string, string, json.RawMessage) ([]byte, error) {
	return nil, errNoKey
}

func (unavailableLLM) GenerateText(context.Context, string, string) (string, error) {
	return "", errNoKey
}

var errNoKey = errors.New("gemini api key not configured")

func logMiddleware(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info("request",
			zap.String("remote", r.RemoteAddr),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("dur", time.Since(start)))
	})
}
