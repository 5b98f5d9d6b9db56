// Package ratelimit fornece adapters HTTP (net/http) para rate limit por
// credencial e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão admit/reject, acquire/timeout) sem net/http
//   - infra: implementações concretas (janela fixa, token bucket, semáforo)
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai a credencial Bearer (e, em rotas parametrizadas, o id do recurso)
//  2. Chama a camada application para obter a decisão
//  3. Sem credencial, responde 401; bloqueado, 429 (cota) ou 503 (concorrência)
//  4. Se admitido, chama o próximo handler (ex: reverse proxy)
//
// Variáveis de ambiente do binário gateway (cmd/gateway) controlam o
// comportamento, como CREATE_LIMIT, LIST_LIMIT, UPDATE_LIMIT, RATE_WINDOW,
// RATE_ALGO, CONCURRENCY_MAX e CONCURRENCY_TIMEOUT.
package ratelimit
