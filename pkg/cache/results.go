package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ResultCache ответы оптимизации по режиму и хешу запроса. Scope отделяет
// результаты разных настроек движка в общем Redis.
type ResultCache struct {
	cache Cache
	ttl   time.Duration
	scope string
}

func NewResultCache(c Cache, ttl time.Duration, scope string) *ResultCache {
	return &ResultCache{cache: c, ttl: ttl, scope: scope}
}

// Get декодирует запись в out. Нечитаемая запись удаляется и считается
// промахом с ошибкой.
func (r *ResultCache) Get(ctx context.Context, mode, hash string, out any) (bool, error) {
	key := ResultKey(r.scope, mode, hash)
	data, err := r.cache.Get(ctx, key)
	switch {
	case errors.Is(err, ErrKeyNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		_ = r.cache.Delete(ctx, key) //nolint:errcheck // запись всё равно бесполезна
		return false, fmt.Errorf("decode cached result %s: %w", key, err)
	}
	return true, nil
}

func (r *ResultCache) Set(ctx context.Context, mode, hash string, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return r.cache.Set(ctx, ResultKey(r.scope, mode, hash), data, r.ttl)
}
