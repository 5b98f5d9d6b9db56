package infra

import (
	"sync"
	"time"

	"cofre-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// BucketStore é a alternativa token-bucket (x/time/rate) com cache por chave.
//
// Não tem a recarga total de janela fixa do Store: os tokens voltam aos
// poucos, o que suaviza a admissão. Selecionada via RATE_ALGO=token_bucket.
type BucketStore struct {
	mu      sync.Mutex
	entries map[string]*bucketEntry

	rate         domain.Rate
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type BucketStoreOption func(*BucketStore)

func WithBucketIdleTTL(d time.Duration) BucketStoreOption {
	return func(s *BucketStore) { s.idleTTL = d }
}

func WithBucketCleanupEvery(d time.Duration) BucketStoreOption {
	return func(s *BucketStore) { s.cleanupEvery = d }
}

// WithBucketNow troca o relógio usado no controle de ociosidade (lastSeen e
// limpeza). Os baldes em si (x/time/rate) continuam no relógio real.
func WithBucketNow(now func() time.Time) BucketStoreOption {
	return func(s *BucketStore) { s.now = now }
}

// NewBucketStore traduz a cota (count por window) para a taxa contínua
// equivalente, com burst igual ao count.
func NewBucketStore(r domain.Rate, opts ...BucketStoreOption) *BucketStore {
	s := &BucketStore{
		entries:      make(map[string]*bucketEntry),
		rate:         r,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BucketStore) Count() int                  { return s.rate.Count() }
func (s *BucketStore) Window() time.Duration       { return s.rate.Window() }
func (s *BucketStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// Get implementa domain.LimiterStore. Mesma disciplina do Store: lookup e
// insert sob o mesmo lock.
func (s *BucketStore) Get(key domain.Key) domain.Limiter {
	return bucketLimiter{lim: s.GetString(string(key))}
}

func (s *BucketStore) GetString(key string) *rate.Limiter {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	perSecond := float64(s.rate.Count()) / s.rate.Window().Seconds()
	lim := rate.NewLimiter(rate.Limit(perSecond), s.rate.Count())
	s.entries[key] = &bucketEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *BucketStore) Cleanup() {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *BucketStore) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, s.cleanupEvery, s.Cleanup)
}

type bucketLimiter struct {
	lim *rate.Limiter
}

// Take consome um token se houver. Usa Reserve para estimar o Retry-After
// sem de fato esperar: reserva com delay é cancelada e vira rejeição.
func (b bucketLimiter) Take() domain.Decision {
	r := b.lim.Reserve()
	if !r.OK() {
		return domain.Decision{Allowed: false}
	}
	if d := r.Delay(); d > 0 {
		r.Cancel()
		return domain.Decision{Allowed: false, RetryAfter: d}
	}
	return domain.Decision{Allowed: true, Remaining: int(b.lim.Tokens())}
}
