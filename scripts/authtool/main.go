// authtool выпускает API ключи и токены для шлюза.
//
//	authtool -key                    новый ключ и его argon2id хэш для auth.api_keys
//	authtool -hash <key>             хэш существующего ключа
//	authtool -token -user u1 -ttl 1h токен, подписанный SITING_AUTH_JWT_SECRET
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"siting/pkg/auth"
)

func main() {
	newKey := flag.Bool("key", false, "Generate a new API key and its hash")
	hashKey := flag.String("hash", "", "Hash an existing API key")
	token := flag.Bool("token", false, "Issue a bearer token")
	user := flag.String("user", "", "Token subject")
	username := flag.String("username", "", "Token username claim")
	role := flag.String("role", "analyst", "Token role claim")
	issuer := flag.String("issuer", "siting", "Token issuer")
	ttl := flag.Duration("ttl", time.Hour, "Token lifetime")
	flag.Parse()

	switch {
	case *newKey:
		key, err := auth.GenerateKey(40)
		exitOn(err)
		hash, err := auth.HashKey(key)
		exitOn(err)
		fmt.Printf("key:  %s\nhash: %s\n", key, hash)

	case *hashKey != "":
		hash, err := auth.HashKey(*hashKey)
		exitOn(err)
		fmt.Println(hash)

	case *token:
		if *user == "" {
			exitOn(fmt.Errorf("-user is required"))
		}
		m, err := auth.NewManager(auth.TokenConfig{
			Secret: os.Getenv("SITING_AUTH_JWT_SECRET"),
			Issuer: *issuer,
			TTL:    *ttl,
		})
		exitOn(err)
		signed, err := m.Issue(*user, *username, *role)
		exitOn(err)
		fmt.Println(signed)

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
