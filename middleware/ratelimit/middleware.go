package ratelimit

import (
	"net/http"
	"strings"
	"time"

	"cofre-gateway/middleware/ratelimit/application"
	"cofre-gateway/middleware/ratelimit/domain"

	"github.com/go-chi/chi/v5"
)

// KeyFunc deriva a chave de identidade da requisição. Erro aqui é erro do
// cliente (ex: credencial ausente), nunca deve derrubar o worker.
type KeyFunc func(r *http.Request) (string, error)

type Options struct {
	Store domain.LimiterStore
	Stats domain.StatsStore
	KeyFn KeyFunc
	// ResourceParam, quando não vazio, concatena o URL param de mesmo nome
	// (chi) à credencial: cada recurso da mesma credencial tem cota própria.
	ResourceParam       string
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
}

type quotaInfo interface {
	Count() int
	Window() time.Duration
}

const (
	quotaExceededMessage     = "too many requests: quota exhausted for this credential in the current window"
	missingCredentialMessage = "missing bearer credential"
)

// BearerKeyFunc extrai a credencial do header Authorization (prefixo "Bearer "
// opcional, case-insensitive). Se resourceParam não for vazio e a rota tiver
// o URL param, o id entra na chave como "token:id".
//
// Requisição sem credencial retorna domain.ErrMissingCredential: o middleware
// traduz para 401 em vez de deixar a ausência virar pânico no worker.
func BearerKeyFunc(resourceParam string) KeyFunc {
	return func(r *http.Request) (string, error) {
		raw := strings.TrimSpace(r.Header.Get("Authorization"))
		if raw == "" {
			return "", domain.ErrMissingCredential
		}

		token := raw
		if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
			token = strings.TrimSpace(raw[7:])
		}
		if token == "" {
			return "", domain.ErrMissingCredential
		}

		if resourceParam != "" {
			if id := chi.URLParam(r, resourceParam); id != "" {
				return token + ":" + id, nil
			}
		}
		return token, nil
	}
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = BearerKeyFunc(opts.ResourceParam)
	}

	svc := application.Service{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := opts.KeyFn(r)
			if err != nil {
				if domain.IsMissingCredential(err) {
					http.Error(w, missingCredentialMessage, http.StatusUnauthorized)
					return
				}
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				if qi, ok := opts.Store.(quotaInfo); ok {
					w.Header().Set("X-RateLimit-Limit", formatInt(qi.Count()))
					w.Header().Set("X-RateLimit-Window", qi.Window().String())
				}
			}

			dec := svc.Decide(domain.Key(key))
			if opts.Stats != nil {
				_ = opts.Stats.Record(r.Context(), domain.StatsEvent{
					Key:      domain.Key(key),
					Admitted: dec.Allowed,
					Method:   r.Method,
					Path:     r.URL.Path,
					At:       time.Now(),
				})
			}
			if !dec.Allowed {
				w.Header().Set("Retry-After", formatInt(retryAfterSeconds(dec.RetryAfter)))
				http.Error(w, quotaExceededMessage, opts.RejectStatus)
				return
			}
			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
			}

			next.ServeHTTP(w, r)
		})
	}
}
