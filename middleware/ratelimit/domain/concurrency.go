package domain

import "context"

// SlotPool representa a capacidade finita de requisições em voo do gateway.
//
// Acquire bloqueia até sobrar vaga ou até o ctx encerrar (timeout do gateway
// ou cliente que desistiu). Ao adquirir, retorna a função de release que
// devolve a vaga e deve ser chamada exatamente uma vez, tipicamente via defer
// ao redor da chamada do próximo handler.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
}
