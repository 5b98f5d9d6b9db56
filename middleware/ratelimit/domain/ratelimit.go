package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"errors"
	"time"
)

// Key identifica quem consome a cota (ex: bearer token, ou token + id do
// recurso em rotas parametrizadas).
type Key string

// Rate descreve uma cota imutável: quantas requisições cabem em uma janela.
type Rate struct {
	count  int
	window time.Duration
}

// NewRate valida e constrói uma Rate.
// count precisa ser > 0 e window precisa ser positiva.
func NewRate(count int, window time.Duration) (Rate, error) {
	if count <= 0 {
		return Rate{}, errors.New("rate: count must be > 0")
	}
	if window <= 0 {
		return Rate{}, errors.New("rate: window must be > 0")
	}
	return Rate{count: count, window: window}, nil
}

func (r Rate) Count() int            { return r.count }
func (r Rate) Window() time.Duration { return r.window }

// Limiter representa o contador de uma identidade.
//
// Take decide E consome em uma única chamada: renovar a janela (se venceu),
// ler o restante e decrementar precisam acontecer na mesma seção crítica,
// senão duas requisições concorrentes leem o mesmo restante e a cota estoura.
type Limiter interface {
	Take() Decision
}

// LimiterStore obtém o limiter de uma chave.
//
// Get precisa ser "get-or-create" atômico: duas primeiras requisições
// concorrentes da mesma chave devem receber o MESMO contador, nunca cada uma
// o seu (checar com read lock e inserir com write lock depois perde uma das
// inserções e zera a visão de cota de um dos chamadores).
type LimiterStore interface {
	Get(Key) Limiter
}

type Decision struct {
	Allowed bool
	// Remaining é o que sobrou da cota após a decisão (0 quando bloqueado).
	Remaining int
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
