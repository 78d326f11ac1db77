package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	sitingv1 "siting/api/siting/v1"
	"siting/pkg/auth"
	"siting/pkg/config"
	"siting/pkg/ratelimit"
)

// newEchoServer поднимает GetRun, который возвращает request id из исходящих метаданных
func newEchoServer(t *testing.T, fail error, interceptors ...connect.Interceptor) *httptest.Server {
	t.Helper()

	procedure := sitingv1.SitingService_GetRun_FullMethodName
	handler := connect.NewUnaryHandler(procedure,
		func(ctx context.Context, req *connect.Request[sitingv1.GetRunRequest]) (*connect.Response[sitingv1.GetRunResponse], error) {
			if fail != nil {
				return nil, fail
			}
			md, _ := metadata.FromOutgoingContext(ctx)
			ids := md.Get("x-request-id")
			if len(ids) != 1 || ids[0] != GetRequestID(ctx) {
				return nil, connect.NewError(connect.CodeInternal, errors.New("request id not propagated"))
			}
			return connect.NewResponse(&sitingv1.GetRunResponse{Run: &sitingv1.Run{ID: req.Msg.RunID}}), nil
		},
		connect.WithCodec(sitingv1.Codec{}),
		connect.WithInterceptors(interceptors...),
	)

	mux := http.NewServeMux()
	mux.Handle(procedure, handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func getRun(t *testing.T, srv *httptest.Server, header http.Header) (*connect.Response[sitingv1.GetRunResponse], error) {
	t.Helper()
	client := connect.NewClient[sitingv1.GetRunRequest, sitingv1.GetRunResponse](
		srv.Client(), srv.URL+sitingv1.SitingService_GetRun_FullMethodName, connect.WithCodec(sitingv1.Codec{}))

	req := connect.NewRequest(&sitingv1.GetRunRequest{RunID: "run-1"})
	for k, v := range header {
		req.Header()[k] = v
	}
	return client.CallUnary(context.Background(), req)
}

func TestLoggingInterceptor_RequestID(t *testing.T) {
	srv := newEchoServer(t, nil, NewLoggingInterceptor())

	t.Run("generated", func(t *testing.T) {
		resp, err := getRun(t, srv, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Header().Get(RequestIDHeader))
		assert.Equal(t, "run-1", resp.Msg.Run.ID)
	})

	t.Run("from client", func(t *testing.T) {
		resp, err := getRun(t, srv, http.Header{RequestIDHeader: {"client-42"}})
		require.NoError(t, err)
		assert.Equal(t, "client-42", resp.Header().Get(RequestIDHeader))
	})
}

func TestLoggingInterceptor_ErrorCarriesRequestID(t *testing.T) {
	srv := newEchoServer(t, connect.NewError(connect.CodeNotFound, errors.New("run not found")), NewLoggingInterceptor())

	_, err := getRun(t, srv, http.Header{RequestIDHeader: {"client-7"}})
	require.Error(t, err)

	var cerr *connect.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, connect.CodeNotFound, cerr.Code())
	assert.Equal(t, "client-7", cerr.Meta().Get(RequestIDHeader))
}

func TestRateLimitInterceptor(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:     true,
		Requests:    3,
		Window:      time.Minute,
		Strategy:    "sliding_window",
		KeyFunc:     "ip",
		MethodCosts: map[string]int{"GetRun": 2},
	}
	limiter := ratelimit.NewMemoryLimiter(ratelimit.FromConfig(cfg))
	t.Cleanup(func() { _ = limiter.Close() })

	srv := newEchoServer(t, nil, NewLoggingInterceptor(), NewRateLimitInterceptor(limiter, cfg))
	client1 := http.Header{"X-Forwarded-For": {"10.0.0.1"}}

	_, err := getRun(t, srv, client1)
	require.NoError(t, err)

	// Вторая стоимость 2 не помещается в лимит 3
	_, err = getRun(t, srv, client1)
	require.Error(t, err)

	var cerr *connect.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, connect.CodeResourceExhausted, cerr.Code())
	assert.Equal(t, "3", cerr.Meta().Get("X-Ratelimit-Limit"))

	// Другой клиент считается отдельно
	_, err = getRun(t, srv, http.Header{"X-Forwarded-For": {"10.0.0.2, 172.16.0.1"}})
	require.NoError(t, err)
}

func TestRateLimitInterceptor_Disabled(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(&ratelimit.Config{Requests: 1, Window: time.Minute})
	t.Cleanup(func() { _ = limiter.Close() })

	srv := newEchoServer(t, nil, NewLoggingInterceptor(), NewRateLimitInterceptor(limiter, config.RateLimitConfig{Enabled: false}))
	for i := 0; i < 3; i++ {
		_, err := getRun(t, srv, nil)
		require.NoError(t, err)
	}
}

func TestRateLimitInterceptor_FailOpen(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(&ratelimit.Config{Requests: 1, Window: time.Minute})
	require.NoError(t, limiter.Close())

	cfg := config.RateLimitConfig{Enabled: true, Requests: 1, Window: time.Minute}
	srv := newEchoServer(t, nil, NewLoggingInterceptor(), NewRateLimitInterceptor(limiter, cfg))

	for i := 0; i < 2; i++ {
		_, err := getRun(t, srv, nil)
		require.NoError(t, err)
	}
}

func TestMetricsAndTracingInterceptors(t *testing.T) {
	srv := newEchoServer(t, nil, NewLoggingInterceptor(), NewTracingInterceptor(), NewMetricsInterceptor())

	resp, err := getRun(t, srv, nil)
	require.NoError(t, err)
	assert.Equal(t, "run-1", resp.Msg.Run.ID)
}

func TestAuthInterceptor(t *testing.T) {
	tokens, err := auth.NewManager(auth.TokenConfig{Secret: "0123456789abcdef0123456789abcdef", Issuer: "siting"})
	require.NoError(t, err)
	token, err := tokens.Issue("user-9", "planner", "analyst")
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		seen metadata.MD
	)
	capture := connect.UnaryInterceptorFunc(func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			md, _ := metadata.FromOutgoingContext(ctx)
			mu.Lock()
			seen = md.Copy()
			mu.Unlock()
			return next(ctx, req)
		}
	})
	srv := newEchoServer(t, nil, NewLoggingInterceptor(), NewAuthInterceptor(auth.New(tokens, nil)), capture)

	t.Run("valid token", func(t *testing.T) {
		_, err := getRun(t, srv, http.Header{"Authorization": {"Bearer " + token}})
		require.NoError(t, err)
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"user-9"}, seen.Get("x-user-id"))
		assert.Equal(t, []string{"planner"}, seen.Get("x-username"))
	})

	t.Run("missing credentials", func(t *testing.T) {
		_, err := getRun(t, srv, nil)
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("spoofed user header is ignored", func(t *testing.T) {
		_, err := getRun(t, srv, http.Header{"X-User-ID": {"admin"}})
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("bad token", func(t *testing.T) {
		_, err := getRun(t, srv, http.Header{"Authorization": {"Bearer nope"}})
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})
}

func TestAuthInterceptor_Nil(t *testing.T) {
	srv := newEchoServer(t, nil, NewLoggingInterceptor(), NewAuthInterceptor(nil))
	_, err := getRun(t, srv, nil)
	require.NoError(t, err)
}

func TestRateLimitInterceptor_ByUser(t *testing.T) {
	keyHash, err := auth.HashKeyWithParams("k1", &auth.Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16})
	require.NoError(t, err)

	cfg := config.RateLimitConfig{Enabled: true, Requests: 1, Window: time.Minute, Strategy: "sliding_window", KeyFunc: "user"}
	limiter := ratelimit.NewMemoryLimiter(ratelimit.FromConfig(cfg))
	t.Cleanup(func() { _ = limiter.Close() })

	srv := newEchoServer(t, nil,
		NewLoggingInterceptor(),
		NewAuthInterceptor(auth.New(nil, []string{keyHash})),
		NewRateLimitInterceptor(limiter, cfg),
	)

	// Разные IP, один ключ: лимит общий
	_, err = getRun(t, srv, http.Header{"X-API-Key": {"k1"}, "X-Forwarded-For": {"10.0.0.1"}})
	require.NoError(t, err)
	_, err = getRun(t, srv, http.Header{"X-API-Key": {"k1"}, "X-Forwarded-For": {"10.0.0.2"}})
	assert.Equal(t, connect.CodeResourceExhausted, connect.CodeOf(err))
}
