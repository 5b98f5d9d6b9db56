package infra

import (
	"sync"
	"time"

	"cofre-gateway/middleware/ratelimit/domain"
)

// Store é a implementação de janela fixa: um contador por chave, criado na
// primeira requisição daquela identidade, com limpeza periódica de chaves
// paradas.
//
// O mapa inteiro fica atrás de um único mutex, então o "get-or-create" é uma
// seção crítica só: nunca existem dois contadores para a mesma chave, mesmo
// com duas requisições "primeira vez" simultâneas.
type Store struct {
	mu      sync.Mutex
	entries map[string]*storeEntry

	rate         domain.Rate
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type storeEntry struct {
	ctr      *Counter
	lastSeen time.Time
}

type StoreOption func(*Store)

func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *Store) { s.cleanupEvery = d }
}

// WithNow troca o relógio do store (e dos contadores criados por ele).
// Usado em testes para atravessar janelas sem dormir.
func WithNow(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(r domain.Rate, opts ...StoreOption) *Store {
	s := &Store{
		entries:      make(map[string]*storeEntry),
		rate:         r,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Remover um contador parado há menos de uma janela devolveria cota no
	// meio de uma janela viva; o TTL nunca fica menor que a janela.
	if s.idleTTL < r.Window() {
		s.idleTTL = r.Window()
	}
	return s
}

func (s *Store) Count() int                  { return s.rate.Count() }
func (s *Store) Window() time.Duration       { return s.rate.Window() }
func (s *Store) CleanupEvery() time.Duration { return s.cleanupEvery }

// Get implementa domain.LimiterStore.
func (s *Store) Get(key domain.Key) domain.Limiter {
	return s.GetString(string(key))
}

// GetString resolve "existe?" e "insere se não existe" sob o mesmo lock.
// Contadores novos nascem cheios, com a janela começando agora.
func (s *Store) GetString(key string) *Counter {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.ctr
	}

	ctr := &Counter{
		rate:        s.rate,
		remaining:   s.rate.Count(),
		windowStart: now,
		now:         s.now,
	}
	s.entries[key] = &storeEntry{ctr: ctr, lastSeen: now}
	return ctr
}

// Len informa quantas identidades o store conhece no momento.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) Cleanup() {
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
func (s *Store) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, s.cleanupEvery, s.Cleanup)
}

// Counter guarda o estado mutável de uma identidade: quanto resta na janela
// corrente e quando ela começou. Pertence a uma única entrada do Store.
type Counter struct {
	mu          sync.Mutex
	rate        domain.Rate
	remaining   int
	windowStart time.Time
	now         func() time.Time
}

// Take implementa domain.Limiter.
//
// Renovar a janela, ler o restante e decrementar acontecem dentro do MESMO
// lock. Separar esses passos reintroduz a corrida clássica: duas goroutines
// leem remaining > 0 e ambas decrementam além da cota, ou a renovação de uma
// é sobrescrita por um write velho da outra.
func (c *Counter) Take() domain.Decision {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := now.Sub(c.windowStart)
	if elapsed > c.rate.Window() {
		// Janela venceu: recarga total (janela fixa, não leaky bucket).
		// O início volta para a fronteira fixa mais recente, descontando o
		// excedente, para a janela não escorregar com o atraso da requisição.
		c.remaining = c.rate.Count()
		c.windowStart = now.Add(-(elapsed % c.rate.Window()))
	}

	if c.remaining > 0 {
		c.remaining--
		return domain.Decision{Allowed: true, Remaining: c.remaining}
	}

	// Único caminho de rejeição: nada é mutado, nunca fica negativo.
	return domain.Decision{
		Allowed:    false,
		RetryAfter: c.windowStart.Add(c.rate.Window()).Sub(now),
	}
}

// Remaining expõe o restante da janela corrente (observabilidade/testes).
func (c *Counter) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// WindowStart expõe o início da janela corrente (observabilidade/testes).
func (c *Counter) WindowStart() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.windowStart
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar
// context aqui. (Permite reuso em libs sem acoplar.)
type DoneContext interface {
	Done() <-chan struct{}
}

func startJanitor(ctx DoneContext, every time.Duration, cleanup func()) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				cleanup()
			}
		}
	}()
}
