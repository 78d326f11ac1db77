package auth

import (
	"errors"
	"strings"
	"testing"
)

// быстрые параметры для тестов
var testParams = &Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestHashKey(t *testing.T) {
	hash, err := HashKeyWithParams("sk-live-123", testParams)
	if err != nil {
		t.Fatalf("failed to hash key: %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Errorf("unexpected prefix: %s", hash)
	}
	if parts := strings.Split(hash, "$"); len(parts) != 6 {
		t.Errorf("expected 6 parts, got %d", len(parts))
	}
}

func TestHashKey_DifferentSalts(t *testing.T) {
	h1, _ := HashKeyWithParams("same", testParams)
	h2, _ := HashKeyWithParams("same", testParams)

	if h1 == h2 {
		t.Error("expected different hashes for the same key")
	}
}

func TestVerifyKey(t *testing.T) {
	hash, err := HashKeyWithParams("correct", testParams)
	if err != nil {
		t.Fatalf("failed to hash: %v", err)
	}

	ok, err := VerifyKey("correct", hash)
	if err != nil || !ok {
		t.Errorf("expected key to verify, ok=%v err=%v", ok, err)
	}

	ok, err = VerifyKey("wrong", hash)
	if err != nil || ok {
		t.Errorf("expected wrong key to fail, ok=%v err=%v", ok, err)
	}
}

func TestVerifyKey_InvalidHash(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"invalid format", "not-a-valid-hash"},
		{"wrong parts", "$argon2id$v=19$m=65536"},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=2$salt$hash"},
		{"wrong version", "$argon2id$v=16$m=65536,t=3,p=2$c2FsdA$aGFzaA"},
		{"bad salt", "$argon2id$v=19$m=65536,t=3,p=2$!!!$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifyKey("key", tt.hash)
			if !errors.Is(err, ErrInvalidHash) {
				t.Errorf("expected ErrInvalidHash, got %v", err)
			}
		})
	}
}

func TestDefaultArgon2Params(t *testing.T) {
	p := DefaultArgon2Params()

	if p.Memory != 64*1024 || p.Iterations != 3 || p.Parallelism != 2 {
		t.Errorf("unexpected cost params: %+v", p)
	}
	if p.SaltLength != 16 || p.KeyLength != 32 {
		t.Errorf("unexpected lengths: %+v", p)
	}
}

func TestGenerateKey(t *testing.T) {
	for _, n := range []int{8, 16, 32, 64} {
		k, err := GenerateKey(n)
		if err != nil {
			t.Fatalf("failed to generate: %v", err)
		}
		if len(k) != n {
			t.Errorf("expected length %d, got %d", n, len(k))
		}
	}

	a, _ := GenerateKey(32)
	b, _ := GenerateKey(32)
	if a == b {
		t.Error("expected unique keys")
	}
}

func BenchmarkVerifyKey(b *testing.B) {
	hash, _ := HashKey("benchmark")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = VerifyKey("benchmark", hash)
	}
}
