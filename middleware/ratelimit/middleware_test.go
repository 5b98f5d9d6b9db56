package ratelimit

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cofre-gateway/middleware/ratelimit/domain"
	"cofre-gateway/middleware/ratelimit/infra"

	"github.com/go-chi/chi/v5"
)

func newRate(t *testing.T, count int, window time.Duration) domain.Rate {
	t.Helper()
	r, err := domain.NewRate(count, window)
	if err != nil {
		t.Fatalf("unexpected rate error: %v", err)
	}
	return r
}

func TestMiddleware_AdmitsThenRejectsSameToken(t *testing.T) {
	store := infra.NewStore(newRate(t, 3, time.Minute))
	stats := infra.NewMemoryStatsStore()

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})

	h := Middleware(Options{
		Store: store,
		Stats: stats,
	})(next)

	// 3 primeiras passam
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodPost, "http://example/vault", nil)
		r.Header.Set("Authorization", "Bearer T1")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200 on request %d, got %d", i+1, w.Code)
		}
	}

	// 4ª deve bloquear
	r4 := httptest.NewRequest(http.MethodPost, "http://example/vault", nil)
	r4.Header.Set("Authorization", "Bearer T1")
	w4 := httptest.NewRecorder()
	h.ServeHTTP(w4, r4)
	if w4.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w4.Code)
	}
	if got := w4.Header().Get("Retry-After"); got == "" {
		t.Fatalf("expected Retry-After header to be set")
	}
	if body := w4.Body.String(); !strings.Contains(body, "quota exhausted") {
		t.Fatalf("expected rejection message naming the cause, got %q", body)
	}

	if calls != 3 {
		t.Fatalf("expected next handler to be called 3 times, got %d", calls)
	}

	total := stats.Total()
	if total.Admitted != 3 || total.Rejected != 1 {
		t.Fatalf("expected stats admitted=3 rejected=1, got %+v", total)
	}
}

func TestMiddleware_DistinctTokensHaveIndependentQuotas(t *testing.T) {
	store := infra.NewStore(newRate(t, 1, time.Minute))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{Store: store})(next)

	// duas credenciais diferentes => ambas passam (cada uma tem seu contador)
	r1 := httptest.NewRequest(http.MethodGet, "http://example/vault", nil)
	r1.Header.Set("Authorization", "Bearer T1")
	w1 := httptest.NewRecorder()
	h.ServeHTTP(w1, r1)
	if w1.Code != http.StatusOK {
		t.Fatalf("expected 200 for token T1, got %d", w1.Code)
	}

	r2 := httptest.NewRequest(http.MethodGet, "http://example/vault", nil)
	r2.Header.Set("Authorization", "Bearer T2")
	w2 := httptest.NewRecorder()
	h.ServeHTTP(w2, r2)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200 for token T2, got %d", w2.Code)
	}
}

func TestMiddleware_MissingCredentialYields401(t *testing.T) {
	store := infra.NewStore(newRate(t, 3, time.Minute))

	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{Store: store})(next)

	// sem Authorization: erro do cliente, nunca pânico no worker
	r := httptest.NewRequest(http.MethodGet, "http://example/vault", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if calls != 0 {
		t.Fatalf("expected downstream not to be called, got %d calls", calls)
	}
}

func TestMiddleware_PerResourceQuotasOnParameterizedRoute(t *testing.T) {
	store := infra.NewStore(newRate(t, 1, time.Minute))

	router := chi.NewRouter()
	router.With(Middleware(Options{
		Store:         store,
		ResourceParam: "id",
	})).Put("/vault/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	do := func(path string) int {
		r := httptest.NewRequest(http.MethodPut, "http://example"+path, nil)
		r.Header.Set("Authorization", "Bearer T1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)
		return w.Code
	}

	if code := do("/vault/42"); code != http.StatusOK {
		t.Fatalf("expected 200 for resource 42, got %d", code)
	}
	if code := do("/vault/42"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 for exhausted resource 42, got %d", code)
	}
	// mesma credencial, outro recurso: cota independente
	if code := do("/vault/43"); code != http.StatusOK {
		t.Fatalf("expected 200 for resource 43, got %d", code)
	}
}

func TestMiddleware_AddsRateLimitHeaders(t *testing.T) {
	store := infra.NewStore(newRate(t, 3, time.Minute))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Store:               store,
		AddRateLimitHeaders: true,
	})(next)

	r := httptest.NewRequest(http.MethodGet, "http://example/vault", nil)
	r.Header.Set("Authorization", "Bearer T1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if got := w.Header().Get("X-RateLimit-Key"); got != "T1" {
		t.Fatalf("expected X-RateLimit-Key=T1, got %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "3" {
		t.Fatalf("expected X-RateLimit-Limit=3, got %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Window"); got != "1m0s" {
		t.Fatalf("expected X-RateLimit-Window=1m0s, got %q", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "2" {
		t.Fatalf("expected X-RateLimit-Remaining=2, got %q", got)
	}
}

type fixedDecisionStore struct {
	dec domain.Decision
}

func (s fixedDecisionStore) Get(domain.Key) domain.Limiter { return fixedDecisionLimiter{dec: s.dec} }

type fixedDecisionLimiter struct {
	dec domain.Decision
}

func (l fixedDecisionLimiter) Take() domain.Decision { return l.dec }

func TestMiddleware_RetryAfterRoundsUpToSeconds(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	h := Middleware(Options{
		Store: fixedDecisionStore{dec: domain.Decision{Allowed: false, RetryAfter: 2500 * time.Millisecond}},
	})(next)

	r := httptest.NewRequest(http.MethodGet, "http://example/vault", nil)
	r.Header.Set("Authorization", "Bearer T1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	// 2.5s arredonda para cima
	if got := strings.TrimSpace(w.Header().Get("Retry-After")); got != "3" {
		t.Fatalf("expected Retry-After=3, got %q", got)
	}
}
