package middleware

import (
	"context"

	"github.com/google/uuid"

	"siting/pkg/auth"
)

type (
	requestIDKey struct{}
	principalKey struct{}
)

// GetRequestID извлекает request_id из контекста
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID добавляет request_id в контекст
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GenerateRequestID генерирует уникальный ID запроса
func GenerateRequestID() string {
	return uuid.NewString()
}

// GetPrincipal клиент, прошедший аутентификацию; nil если аутентификация выключена
func GetPrincipal(ctx context.Context) *auth.Principal {
	p, _ := ctx.Value(principalKey{}).(*auth.Principal)
	return p
}

// WithPrincipal добавляет клиента в контекст
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}
