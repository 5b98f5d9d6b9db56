package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"cofre-gateway/middleware/ratelimit"
	"cofre-gateway/middleware/ratelimit/domain"
	"cofre-gateway/middleware/ratelimit/infra"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

const (
	algoFixedWindow = "fixed_window"
	algoTokenBucket = "token_bucket"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		log.Fatalf("invalid UPSTREAM_URL: %v", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("proxy error: %v", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var statsStore domain.StatsStore
	if cfg.rateStatsEnabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.rateStatsRedisAddr,
			Password: cfg.rateStatsRedisPassword,
			DB:       cfg.rateStatsRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		pingCancel()
		if err != nil {
			log.Fatalf("redis stats ping error: %v", err)
		}

		statsStore = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
	}

	// um store por rota: compartilhar o mesmo store entre rotas com formatos
	// de chave diferentes mistura cotas sem querer
	createStore, err := newLimiterStore(ctx, cfg.rateAlgo, cfg.createLimit, cfg.rateWindow)
	if err != nil {
		log.Fatalf("create limiter: %v", err)
	}
	listStore, err := newLimiterStore(ctx, cfg.rateAlgo, cfg.listLimit, cfg.rateWindow)
	if err != nil {
		log.Fatalf("list limiter: %v", err)
	}
	updateStore, err := newLimiterStore(ctx, cfg.rateAlgo, cfg.updateLimit, cfg.rateWindow)
	if err != nil {
		log.Fatalf("update limiter: %v", err)
	}

	forward := http.HandlerFunc(proxy.ServeHTTP)

	r := chi.NewRouter()
	r.Use(ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.concurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.concurrencyTimeout,
	}))

	r.With(ratelimit.Middleware(ratelimit.Options{
		Store:               createStore,
		Stats:               statsStore,
		AddRateLimitHeaders: cfg.addHeaders,
	})).Post("/vault", forward)

	r.With(ratelimit.Middleware(ratelimit.Options{
		Store:               listStore,
		Stats:               statsStore,
		AddRateLimitHeaders: cfg.addHeaders,
	})).Get("/vault", forward)

	r.With(ratelimit.Middleware(ratelimit.Options{
		Store:               updateStore,
		Stats:               statsStore,
		ResourceParam:       "id",
		AddRateLimitHeaders: cfg.addHeaders,
	})).Put("/vault/{id}", forward)

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("gateway listening on %s -> %s", cfg.listenAddr, target)
	log.Printf("rate: algo=%s window=%s create=%d list=%d update=%d", cfg.rateAlgo, cfg.rateWindow, cfg.createLimit, cfg.listLimit, cfg.updateLimit)
	log.Printf("rate-stats: enabled=%v redisAddr=%q bucket=%q ttl=%s trackKeys=%v", cfg.rateStatsEnabled, cfg.rateStatsRedisAddr, cfg.rateStatsBucket, cfg.rateStatsTTL, cfg.rateStatsTrackKeys)
	log.Printf("concurrency: max=%d acquireTimeout=%s", cfg.concurrencyMax, cfg.concurrencyTimeout)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

// newLimiterStore monta o store da rota conforme o algoritmo configurado e
// deixa o janitor rodando até o contexto encerrar.
func newLimiterStore(ctx context.Context, algo string, count int, window time.Duration) (domain.LimiterStore, error) {
	r, err := domain.NewRate(count, window)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(algo)) {
	case algoTokenBucket:
		s := infra.NewBucketStore(r)
		s.StartJanitor(ctx)
		return s, nil
	case algoFixedWindow, "":
		s := infra.NewStore(r)
		s.StartJanitor(ctx)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown RATE_ALGO: %q", algo)
	}
}

type config struct {
	listenAddr  string
	upstreamURL string

	rateAlgo    string
	createLimit int
	listLimit   int
	updateLimit int
	rateWindow  time.Duration

	addHeaders         bool
	concurrencyMax     int
	concurrencyTimeout time.Duration

	rateStatsEnabled       bool
	rateStatsRedisAddr     string
	rateStatsRedisPassword string
	rateStatsRedisDB       int
	rateStatsPrefix        string
	rateStatsTTL           time.Duration
	rateStatsBucket        string
	rateStatsTrackKeys     bool
}

func readConfig() (config, error) {
	_ = godotenv.Load()

	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")

	cfg.rateAlgo = getenvDefault("RATE_ALGO", algoFixedWindow)
	cfg.createLimit = getenvIntDefault("CREATE_LIMIT", 3)
	cfg.listLimit = getenvIntDefault("LIST_LIMIT", 1200)
	cfg.updateLimit = getenvIntDefault("UPDATE_LIMIT", 60)
	cfg.rateWindow = getenvDurationDefault("RATE_WINDOW", 1*time.Minute)

	cfg.addHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", false)
	cfg.concurrencyMax = getenvIntDefault("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", 0)

	cfg.rateStatsEnabled = getenvBoolDefault("RATE_STATS_ENABLED", false)
	cfg.rateStatsRedisAddr = getenvDefault("RATE_STATS_REDIS_ADDR", "")
	cfg.rateStatsRedisPassword = os.Getenv("RATE_STATS_REDIS_PASSWORD")
	cfg.rateStatsRedisDB = getenvIntDefault("RATE_STATS_REDIS_DB", 0)
	cfg.rateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", "ratelimit:stats")
	cfg.rateStatsTTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.rateStatsBucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.rateStatsTrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", false)

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.createLimit <= 0 || cfg.listLimit <= 0 || cfg.updateLimit <= 0 {
		return config{}, errors.New("CREATE_LIMIT, LIST_LIMIT and UPDATE_LIMIT must be > 0")
	}
	if cfg.rateWindow <= 0 {
		return config{}, errors.New("RATE_WINDOW must be > 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if cfg.rateStatsEnabled && strings.TrimSpace(cfg.rateStatsRedisAddr) == "" {
		return config{}, errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
