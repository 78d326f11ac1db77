package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// RequestHash hex первых 16 байт sha256 от JSON. Ключи map encoding/json
// пишет отсортированными, поэтому хеш не зависит от порядка.
func RequestHash(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:16]), nil
}

// ResultKey result:<scope>:<mode>:<hash>; пустой scope опускается
func ResultKey(scope, mode, hash string) string {
	return joinKey("result", scope, mode, hash)
}

// ProviderKey provider:<kind>:<source>:<8 байт sha256 от key>
func ProviderKey(kind, source, key string) string {
	sum := sha256.Sum256([]byte(key))
	return joinKey("provider", kind, source, hex.EncodeToString(sum[:8]))
}

func joinKey(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(':')
		}
		b.WriteString(p)
	}
	return b.String()
}
