package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	grpc_retry "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"siting/pkg/config"
)

type ClientConfig struct {
	Address       string
	Timeout       time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration
	TLS           bool
	LoadBalancing string
	// MaxMsgSize ограничение размера сообщения в байтах; 0 оставляет дефолт grpc
	MaxMsgSize int
}

// FromEndpoint собирает ClientConfig из секции services.*
func FromEndpoint(e config.ServiceEndpoint) ClientConfig {
	return ClientConfig{
		Address:       e.Address(),
		Timeout:       e.Timeout,
		MaxRetries:    e.MaxRetries,
		RetryBackoff:  e.RetryBackoff,
		TLS:           e.TLS,
		LoadBalancing: e.LoadBalancing,
	}
}

// NewGRPCClient создает соединение с Retry и Timeout
func NewGRPCClient(_ context.Context, cfg ClientConfig, extra ...grpc.DialOption) (*grpc.ClientConn, error) {
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	opts := []grpc_retry.CallOption{
		grpc_retry.WithBackoff(grpc_retry.BackoffExponentialWithJitter(backoff, 0.2)),
		grpc_retry.WithCodes(codes.Unavailable, codes.Aborted),
		grpc_retry.WithMax(uint(cfg.MaxRetries)),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, grpc_retry.WithPerRetryTimeout(cfg.Timeout))
	}

	creds := insecure.NewCredentials()
	if cfg.TLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithChainUnaryInterceptor(
			grpc_retry.UnaryClientInterceptor(opts...),
		),
	}

	if cfg.LoadBalancing != "" {
		dialOpts = append(dialOpts, grpc.WithDefaultServiceConfig(
			fmt.Sprintf(`{"loadBalancingConfig":[{%q:{}}]}`, cfg.LoadBalancing),
		))
	}
	if cfg.MaxMsgSize > 0 {
		dialOpts = append(dialOpts, grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(cfg.MaxMsgSize),
			grpc.MaxCallSendMsgSize(cfg.MaxMsgSize),
		))
	}

	return grpc.NewClient(cfg.Address, append(dialOpts, extra...)...)
}
