package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"siting/pkg/logger"
)

const (
	statusServing    = "SERVING"
	statusNotServing = "NOT_SERVING"
)

// HealthChecker проверяет готовность siting-svc
type HealthChecker interface {
	Check(ctx context.Context) error
}

// GRPCHealth проверка через стандартный grpc.health.v1
type GRPCHealth struct {
	client  grpc_health_v1.HealthClient
	service string
	timeout time.Duration
}

// NewGRPCHealth создаёт проверку поверх соединения с siting-svc
func NewGRPCHealth(conn grpc.ClientConnInterface, service string, timeout time.Duration) *GRPCHealth {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &GRPCHealth{
		client:  grpc_health_v1.NewHealthClient(conn),
		service: service,
		timeout: timeout,
	}
}

// Check возвращает ошибку, если сервис не в состоянии SERVING
func (g *GRPCHealth) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: g.service})
	if err != nil {
		return err
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("siting service status %s", resp.GetStatus())
	}
	return nil
}

// HandleHealth liveness проба
func (h *GatewayHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady readiness проба: шлюз готов, когда готов siting-svc
func (h *GatewayHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	status := statusServing
	code := http.StatusOK
	body := map[string]any{"ready": true}

	if h.health != nil {
		if err := h.health.Check(r.Context()); err != nil {
			logger.Log.Warn("Siting service not ready", "error", err)
			status = statusNotServing
			code = http.StatusServiceUnavailable
			body["ready"] = false
			body["error"] = err.Error()
		}
	}
	body["services"] = map[string]string{"siting": status}

	writeJSON(w, code, body)
}

// HandleInfo сведения о шлюзе
func (h *GatewayHandler) HandleInfo(w http.ResponseWriter, _ *http.Request) {
	info := map[string]any{
		"started_at":     h.startedAt.UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"features":       []string{"healthcare", "waste", "routes", "history", "geojson", "reports"},
	}
	if h.config != nil {
		info["name"] = h.config.App.Name
		info["version"] = h.config.App.Version
		info["environment"] = h.config.App.Environment
		info["rate_limit"] = map[string]any{
			"enabled":  h.config.RateLimit.Enabled,
			"requests": h.config.RateLimit.Requests,
			"window":   h.config.RateLimit.Window.String(),
		}
	}
	writeJSON(w, http.StatusOK, info)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Ответ уже начат, остаётся только лог
		logger.Log.Debug("Failed to write response", "error", err)
	}
}
