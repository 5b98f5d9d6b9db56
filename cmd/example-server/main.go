package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cofre-gateway/middleware/ratelimit"
	"cofre-gateway/middleware/ratelimit/domain"
	"cofre-gateway/middleware/ratelimit/infra"

	"github.com/go-chi/chi/v5"
)

func main() {
	// Exemplo: injetando os middlewares direto no seu webserver (sem proxy).
	// Cotas da API de cofre: criação bem apertada, leitura folgada.
	createStore := mustStore(3, time.Minute)
	listStore := mustStore(1200, time.Minute)
	updateStore := mustStore(60, time.Minute)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	createStore.StartJanitor(ctx)
	listStore.StartJanitor(ctx)
	updateStore.StartJanitor(ctx)

	stats := infra.NewMemoryStatsStore(infra.WithTrackKeys(true))

	r := chi.NewRouter()
	r.Use(ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{Max: 50}))

	r.With(ratelimit.Middleware(ratelimit.Options{
		Store:               createStore,
		Stats:               stats,
		AddRateLimitHeaders: true,
	})).Post("/vault", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("created\n"))
	})

	r.With(ratelimit.Middleware(ratelimit.Options{
		Store:               listStore,
		Stats:               stats,
		AddRateLimitHeaders: true,
	})).Get("/vault", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("[]\n"))
	})

	r.With(ratelimit.Middleware(ratelimit.Options{
		Store:               updateStore,
		Stats:               stats,
		ResourceParam:       "id",
		AddRateLimitHeaders: true,
	})).Put("/vault/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("updated " + chi.URLParam(r, "id") + "\n"))
	})

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("example server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}

	total := stats.Total()
	log.Printf("decisions: admitted=%d rejected=%d", total.Admitted, total.Rejected)
}

func mustStore(count int, window time.Duration) *infra.Store {
	r, err := domain.NewRate(count, window)
	if err != nil {
		log.Fatalf("rate error: %v", err)
	}
	return infra.NewStore(r)
}
