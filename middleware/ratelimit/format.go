// utilitário pequeno para formatação rápida/consistente de valores numéricos
// em headers/logs, sem puxar fmt (mais "pesado" e genérico) para isso.

package ratelimit

import (
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

// retryAfterSeconds arredonda para cima: melhor o cliente esperar 1s a mais
// do que voltar cedo e tomar 429 de novo.
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
