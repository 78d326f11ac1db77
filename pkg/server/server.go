// Package server gRPC сервер siting-svc: цепочка интерсепторов, health,
// TLS, сервер метрик и плавная остановка.
package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"siting/pkg/audit"
	"siting/pkg/config"
	"siting/pkg/interceptors"
	"siting/pkg/logger"
	"siting/pkg/metrics"
	"siting/pkg/ratelimit"
	"siting/pkg/telemetry"
)

// drainTimeout сколько GracefulStop ждёт текущие вызовы
const drainTimeout = 30 * time.Second

type Server struct {
	cfg    *config.Config
	grpc   *grpc.Server
	health *health.Server
	audit  audit.Logger

	// closers освобождаются в обратном порядке после остановки
	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

type options struct {
	limiter      ratelimit.Limiter
	keyFunc      ratelimit.KeyFunc
	audit        audit.Logger
	auditExclude []string
}

type Option func(*options)

// WithLimiter вместо лимитера из rate_limit
func WithLimiter(l ratelimit.Limiter) Option { return func(o *options) { o.limiter = l } }

func WithKeyFunc(fn ratelimit.KeyFunc) Option { return func(o *options) { o.keyFunc = fn } }

// WithAuditLogger вместо логгера из audit
func WithAuditLogger(l audit.Logger) Option { return func(o *options) { o.audit = l } }

// ExcludeFromAudit добавляет методы к audit.exclude_methods
func ExcludeFromAudit(methods ...string) Option {
	return func(o *options) { o.auditExclude = append(o.auditExclude, methods...) }
}

// New собирает сервер. Лимитер и аудит, которые не удалось создать,
// отключаются с предупреждением; ошибка TLS возвращается.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	s := &Server{cfg: cfg, health: health.NewServer()}

	chain := interceptors.Options{
		ServiceName: cfg.App.Name,
		Tracing:     cfg.Tracing.Enabled,
		Limiter:     o.limiter,
		KeyFunc:     o.keyFunc,
		Costs:       ratelimit.MethodCosts(cfg.RateLimit.MethodCosts),
	}
	if chain.KeyFunc == nil {
		chain.KeyFunc = ratelimit.KeyFuncFor(cfg.RateLimit.KeyFunc)
	}
	if chain.Limiter == nil && cfg.RateLimit.Enabled {
		chain.Limiter = s.newLimiter()
	}
	if chain.Limiter != nil {
		s.addCloser("rate limiter", func(context.Context) error { return chain.Limiter.Close() })
	}

	s.audit = o.audit
	if s.audit == nil && cfg.Audit.Enabled {
		s.audit = newAuditLogger(cfg.Audit)
	}
	if s.audit != nil {
		chain.Audit = &interceptors.AuditOptions{
			Logger:         s.audit,
			Exclude:        append(append([]string(nil), cfg.Audit.ExcludeMethods...), o.auditExclude...),
			IncludeRequest: cfg.Audit.IncludeRequest,
			Mask:           cfg.Audit.MaskFields,
		}
		s.addCloser("audit logger", func(context.Context) error { return s.audit.Close() })
	}

	serverOpts, err := grpcOptions(cfg.GRPC)
	if err != nil {
		return nil, err
	}
	serverOpts = append(serverOpts, grpc.ChainUnaryInterceptor(interceptors.Unary(chain)...))

	s.grpc = grpc.NewServer(serverOpts...)
	grpc_health_v1.RegisterHealthServer(s.grpc, s.health)
	if cfg.IsDevelopment() {
		reflection.Register(s.grpc)
	}
	return s, nil
}

func (s *Server) newLimiter() ratelimit.Limiter {
	rl := s.cfg.RateLimit
	l, err := ratelimit.New(ratelimit.FromConfig(rl))
	if err != nil {
		logger.Warn("Rate limiter disabled", "backend", rl.Backend, "error", err)
		return nil
	}
	logger.Info("Rate limiter initialized",
		"requests", rl.Requests, "window", rl.Window, "backend", rl.Backend, "key_func", rl.KeyFunc)
	return l
}

func newAuditLogger(c config.AuditConfig) audit.Logger {
	l, err := audit.New(c)
	if err != nil {
		logger.Warn("Audit logger disabled", "backend", c.Backend, "error", err)
		return nil
	}
	logger.Info("Audit logger initialized", "backend", c.Backend)
	return l
}

func grpcOptions(c config.GRPCConfig) ([]grpc.ServerOption, error) {
	ka := c.KeepAlive
	opts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(c.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(c.MaxSendMsgSize),
		grpc.MaxConcurrentStreams(uint32(c.MaxConcurrentConn)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     ka.MaxConnectionIdle,
			MaxConnectionAge:      ka.MaxConnectionAge,
			MaxConnectionAgeGrace: ka.MaxConnectionAgeGrace,
			Time:                  ka.Time,
			Timeout:               ka.Timeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{MinTime: 5 * time.Second, PermitWithoutStream: true}),
	}
	if !c.TLS.Enabled {
		return opts, nil
	}
	creds, err := tlsCredentials(c.TLS)
	if err != nil {
		return nil, fmt.Errorf("load tls credentials: %w", err)
	}
	logger.Info("gRPC TLS enabled", "mutual", c.TLS.CAFile != "")
	return append(opts, grpc.Creds(creds)), nil
}

// tlsCredentials с CAFile требует клиентский сертификат
func tlsCredentials(c config.TLSConfig) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, err
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	if c.CAFile == "" {
		return credentials.NewTLS(tlsCfg), nil
	}

	pem, err := os.ReadFile(c.CAFile)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates in %s", c.CAFile)
	}
	tlsCfg.ClientCAs = pool
	tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	return credentials.NewTLS(tlsCfg), nil
}

// Registrar для Register*Server
func (s *Server) Registrar() grpc.ServiceRegistrar { return s.grpc }

// AuditLogger nil, если аудит выключен
func (s *Server) AuditLogger() audit.Logger { return s.audit }

// OnShutdown fn вызывается после остановки приёма вызовов, раньше
// ресурсов, зарегистрированных до неё
func (s *Server) OnShutdown(fn func(context.Context) error) {
	s.addCloser("shutdown hook", fn)
}

func (s *Server) addCloser(name string, fn func(context.Context) error) {
	s.closers = append(s.closers, closer{name: name, fn: fn})
}

// Run слушает grpc.port до SIGINT/SIGTERM или отмены ctx. Трассировка и
// сервер метрик поднимаются здесь же.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.Tracing.Enabled {
		tp, err := telemetry.Init(ctx, telemetry.FromConfig(s.cfg.App, s.cfg.Tracing))
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			s.addCloser("telemetry", tp.Shutdown)
		}
	}
	if s.cfg.Metrics.Enabled {
		s.serveMetrics()
	}

	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", ":"+strconv.Itoa(s.cfg.GRPC.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, lis)
}

func (s *Server) serveMetrics() {
	ms := metrics.NewServer(s.cfg.Metrics.Port, s.cfg.Metrics.Path)
	s.addCloser("metrics server", ms.Shutdown)
	go func() {
		logger.Info("Metrics server listening", "addr", ms.Addr, "path", s.cfg.Metrics.Path)
		if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics server failed", "error", err)
		}
	}()
}

// Serve обслуживает lis до сигнала или отмены ctx, затем вызывает Shutdown
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s.setServing(grpc_health_v1.HealthCheckResponse_SERVING)
	metrics.Get().SetServiceInfo(s.cfg.App.Version, s.cfg.App.Environment)

	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(lis) }()

	logger.Info("gRPC server listening",
		"service", s.cfg.App.Name,
		"addr", lis.Addr().String(),
		"environment", s.cfg.App.Environment,
		"version", s.cfg.App.Version,
	)
	s.auditLifecycle(audit.ActionStart, "server.start", map[string]any{
		"addr":        lis.Addr().String(),
		"version":     s.cfg.App.Version,
		"environment": s.cfg.App.Environment,
	})

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Shutting down", "cause", context.Cause(ctx))
	}
	s.Shutdown(context.WithoutCancel(ctx))
	return nil
}

// Shutdown переводит health в NOT_SERVING, ждёт текущие вызовы не дольше
// drainTimeout и закрывает ресурсы
func (s *Server) Shutdown(parent context.Context) {
	s.auditLifecycle(audit.ActionStop, "server.stop", nil)
	s.setServing(grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	ctx, cancel := context.WithTimeout(parent, drainTimeout)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		logger.Warn("Drain timeout, forcing stop", "timeout", drainTimeout)
		s.grpc.Stop()
	}

	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if err := c.fn(ctx); err != nil {
			logger.Warn("Close failed", "resource", c.name, "error", err)
		}
	}
	s.closers = nil
}

// SetServingStatus статус сервиса cfg.App.Name в health
func (s *Server) SetServingStatus(st grpc_health_v1.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus(s.cfg.App.Name, st)
}

func (s *Server) setServing(st grpc_health_v1.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus(s.cfg.App.Name, st)
	s.health.SetServingStatus("", st)
}

func (s *Server) auditLifecycle(action audit.Action, method string, details map[string]any) {
	if s.audit == nil {
		return
	}
	e := audit.NewEntry(s.cfg.App.Name, method, action)
	for k, v := range details {
		e.Set(k, v)
	}
	if err := s.audit.Log(context.Background(), e); err != nil {
		logger.Warn("Audit entry dropped", "method", method, "error", err)
	}
}
