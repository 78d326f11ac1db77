package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	sitingv1 "siting/api/siting/v1"
	"siting/pkg/auth"
	"siting/pkg/client"
	"siting/pkg/config"
	"siting/pkg/logger"
	"siting/pkg/metrics"
	"siting/pkg/ratelimit"
	"siting/pkg/swagger"
	"siting/pkg/telemetry"
	"siting/services/gateway-svc/internal/handlers"
	"siting/services/gateway-svc/internal/middleware"
)

// maxMessageSize отчёты и GeoJSON крупнее дефолтных 4 MiB gRPC
const maxMessageSize = 64 << 20

func main() {
	// Загружаем конфигурацию
	cfg, err := config.LoadService("gateway-svc")
	if err != nil {
		logger.Init("error")
		logger.Fatal("Failed to load config", "error", err)
	}

	if err := logger.InitWithConfig(logger.FromConfig(cfg.Log)); err != nil {
		logger.Warn("Log output fallback to stdout", "error", err)
	}

	logger.Log.Info("Starting Gateway Service (ConnectRPC)",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.InitMetrics(cfg.Metrics.Namespace, cfg.MetricsSubsystem())
	m.SetServiceInfo(cfg.App.Version, cfg.App.Environment)

	tp, err := telemetry.Init(ctx, telemetry.FromConfig(cfg.App, cfg.Tracing))
	if err != nil {
		logger.Log.Warn("Failed to init tracing", "error", err)
	}

	// Клиент к siting-svc (gRPC)
	sitingCfg := client.FromEndpoint(cfg.Services.Siting)
	sitingCfg.MaxMsgSize = maxMessageSize
	siting, err := client.NewSitingClient(ctx, sitingCfg)
	if err != nil {
		logger.Fatal("Failed to initialize siting client", "error", err)
	}
	defer func() {
		if err := siting.Close(); err != nil {
			logger.Log.Warn("Failed to close siting client", "error", err)
		}
	}()

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter, err = ratelimit.New(ratelimit.FromConfig(cfg.RateLimit))
		if err != nil {
			logger.Log.Warn("Failed to create rate limiter, continuing without it", "error", err)
			limiter = nil
		} else {
			defer limiter.Close()
		}
	}

	authn, err := auth.FromConfig(cfg.Auth)
	if err != nil {
		logger.Fatal("Failed to initialize authentication", "error", err)
	}
	if authn == nil {
		logger.Log.Warn("Authentication disabled")
	}

	gatewayHandler := handlers.NewGatewayHandler(
		siting,
		handlers.NewGRPCHealth(siting.Conn(), "", 0),
		cfg,
	)

	// Создаём HTTP mux
	mux := http.NewServeMux()

	// Процедуры siting.v1.SitingService
	gatewayHandler.Register(mux, connect.WithInterceptors(
		middleware.NewLoggingInterceptor(),
		middleware.NewTracingInterceptor(),
		middleware.NewMetricsInterceptor(),
		middleware.NewAuthInterceptor(authn),
		middleware.NewRateLimitInterceptor(limiter, cfg.RateLimit),
	))

	// Health endpoints (обычный HTTP для k8s probes)
	mux.HandleFunc("/health", gatewayHandler.HandleHealth)
	mux.HandleFunc("/ready", gatewayHandler.HandleReady)
	mux.HandleFunc("/info", gatewayHandler.HandleInfo)

	if cfg.Metrics.Enabled {
		mux.Handle("/metrics", metrics.Handler())
	}

	// Swagger UI и OpenAPI документ процедур
	if cfg.HTTP.Docs {
		if err := swagger.RegisterRoutes(mux, nil, sitingv1.OpenAPISpec); err != nil {
			logger.Log.Warn("Docs disabled", "error", err)
		}
	}

	var httpHandler http.Handler = mux
	if cfg.HTTP.CORS.Enabled {
		httpHandler = middleware.CORS(cfg.HTTP.CORS)(mux)
	}

	// HTTP/1.1 и h2c на одном порту
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           h2c.NewHandler(httpHandler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.Log.Info("Gateway listening",
			"port", cfg.HTTP.Port,
			"protocol", "HTTP/1.1 + H2C (ConnectRPC)",
			"siting", sitingCfg.Address,
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down...")

	shutdownTimeout := cfg.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server shutdown error", "error", err)
	}
	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Log.Warn("Tracer shutdown error", "error", err)
		}
	}

	logger.Log.Info("Server stopped")
}
