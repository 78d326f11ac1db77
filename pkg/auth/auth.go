package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"siting/pkg/config"
)

var (
	// ErrMissingCredentials запрос без токена и без ключа
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrInvalidCredentials токен или ключ не прошли проверку
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Principal аутентифицированный клиент
type Principal struct {
	UserID   string
	Username string
	Role     string
}

// Credentials то, что клиент предъявил в запросе
type Credentials struct {
	Authorization string
	APIKey        string
}

// Authenticator проверяет bearer токены и API ключи
type Authenticator struct {
	tokens  *Manager
	keyHash []string
}

// New создаёт аутентификатор. Без секрета токены не принимаются,
// без ключей принимаются только токены.
func New(tokens *Manager, keyHashes []string) *Authenticator {
	return &Authenticator{tokens: tokens, keyHash: keyHashes}
}

// FromConfig собирает аутентификатор из auth секции; nil при выключенной аутентификации
func FromConfig(cfg config.AuthConfig) (*Authenticator, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var tokens *Manager
	if cfg.JWTSecret != "" {
		m, err := NewManager(TokenConfig{
			Secret: cfg.JWTSecret,
			Issuer: cfg.Issuer,
			TTL:    cfg.TokenTTL,
			Leeway: cfg.Leeway,
		})
		if err != nil {
			return nil, err
		}
		tokens = m
	}

	for _, h := range cfg.APIKeys {
		if _, _, _, err := decodeHash(h); err != nil {
			return nil, err
		}
	}

	return New(tokens, cfg.APIKeys), nil
}

// Authenticate проверяет предъявленные данные. Токен имеет приоритет над ключом.
func (a *Authenticator) Authenticate(_ context.Context, c Credentials) (*Principal, error) {
	if token, ok := bearer(c.Authorization); ok {
		if a.tokens == nil {
			return nil, ErrInvalidCredentials
		}
		claims, err := a.tokens.Verify(token)
		if err != nil {
			return nil, errors.Join(ErrInvalidCredentials, err)
		}
		return &Principal{UserID: claims.Subject, Username: claims.Username, Role: claims.Role}, nil
	}

	if c.APIKey != "" {
		for i, h := range a.keyHash {
			ok, err := VerifyKey(c.APIKey, h)
			if err == nil && ok {
				return &Principal{UserID: apiKeyUser(i), Role: "service"}, nil
			}
		}
		return nil, ErrInvalidCredentials
	}

	return nil, ErrMissingCredentials
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// apiKeyUser ключи различаются по позиции в конфигурации
func apiKeyUser(i int) string {
	return fmt.Sprintf("apikey-%d", i)
}
