package infra

import (
	"context"

	"cofre-gateway/middleware/ratelimit/domain"
)

type chanPool struct {
	sem chan struct{}
}

// NewChanPool cria o pool de vagas do gateway sobre um channel com capacidade
// `max`: enviar ocupa uma vaga, o release consome de volta. Sem estado extra
// para proteger, não há lock nenhum aqui.
func NewChanPool(max int) domain.SlotPool {
	return &chanPool{sem: make(chan struct{}, max)}
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}
