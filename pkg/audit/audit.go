// Package audit журнал обращений к прогонам размещения: кто, что запускал
// и чем закончилось. Записи пишутся в stdout, ротируемый файл или память.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action вид действия
type Action string

const (
	ActionOptimize   Action = "OPTIMIZE"
	ActionPlanRoutes Action = "PLAN_ROUTES"
	ActionExport     Action = "EXPORT"
	ActionRead       Action = "READ"
	ActionStart      Action = "START"
	ActionStop       Action = "STOP"
)

// Outcome итог действия
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
	// OutcomeDenied отказ по лимиту или правам
	OutcomeDenied Outcome = "DENIED"
)

// Entry запись журнала
type Entry struct {
	ID        string         `json:"id"`
	Time      time.Time      `json:"time"`
	Service   string         `json:"service"`
	Method    string         `json:"method"`
	Action    Action         `json:"action"`
	Outcome   Outcome        `json:"outcome"`
	UserID    string         `json:"user_id,omitempty"`
	Username  string         `json:"username,omitempty"`
	ClientIP  string         `json:"client_ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	LatencyMs int64          `json:"latency_ms"`
	Code      string         `json:"code,omitempty"`
	Message   string         `json:"message,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// NewEntry запись с новым id и текущим временем, итог по умолчанию SUCCESS
func NewEntry(service, method string, action Action) *Entry {
	return &Entry{
		ID:      uuid.NewString(),
		Time:    time.Now().UTC(),
		Service: service,
		Method:  method,
		Action:  action,
		Outcome: OutcomeSuccess,
	}
}

// Fail отмечает запись неуспешной
func (e *Entry) Fail(outcome Outcome, code, message string) {
	e.Outcome = outcome
	e.Code = code
	e.Message = message
}

// Set добавляет произвольную деталь
func (e *Entry) Set(key string, v any) {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = v
}

// Attach кладёт сообщение запроса или ответа в детали. Поля из mask
// заменяются на любой глубине; не-объекты сохраняются как есть.
func (e *Entry) Attach(key string, msg any, mask []string) {
	raw, err := json.Marshal(msg)
	if err != nil {
		e.Set(key, fmt.Sprintf("unencodable: %v", err))
		return
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		e.Set(key, json.RawMessage(raw))
		return
	}
	redact(tree, mask)
	e.Set(key, tree)
}

const redacted = "***"

func redact(node any, mask []string) {
	switch n := node.(type) {
	case map[string]any:
		for k, child := range n {
			if masked(k, mask) {
				n[k] = redacted
			} else {
				redact(child, mask)
			}
		}
	case []any:
		for _, child := range n {
			redact(child, mask)
		}
	}
}

func masked(key string, mask []string) bool {
	for _, m := range mask {
		if strings.EqualFold(key, m) {
			return true
		}
	}
	return false
}

// Logger приёмник записей
type Logger interface {
	Log(ctx context.Context, e *Entry) error
	Close() error
}

// Querier реализуют приёмники, умеющие искать записи
type Querier interface {
	Query(ctx context.Context, f Filter) ([]*Entry, error)
}

// Filter условия поиска; пустые поля не ограничивают
type Filter struct {
	Since   time.Time
	Until   time.Time
	Method  string
	Action  Action
	Outcome Outcome
	UserID  string
	RunID   string
	Limit   int
	Offset  int
}

func (f Filter) match(e *Entry) bool {
	if !f.Since.IsZero() && e.Time.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.Time.Before(f.Until) {
		return false
	}
	return (f.Method == "" || e.Method == f.Method) &&
		(f.Action == "" || e.Action == f.Action) &&
		(f.Outcome == "" || e.Outcome == f.Outcome) &&
		(f.UserID == "" || e.UserID == f.UserID) &&
		(f.RunID == "" || e.RunID == f.RunID)
}

// Discard ничего не пишет
var Discard Logger = discard{}

type discard struct{}

func (discard) Log(context.Context, *Entry) error { return nil }
func (discard) Close() error                      { return nil }
