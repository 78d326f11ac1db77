package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siting/pkg/config"
	"siting/pkg/logger"
)

func init() {
	logger.Init("error")
}

func TestStreamLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewStreamLogger(&buf, "[AUDIT] ")

	e := NewEntry("siting-svc", "/siting.v1.SitingService/Optimize", ActionOptimize)
	e.RunID = "run-1"
	require.NoError(t, l.Log(context.Background(), e))

	line := buf.String()
	require.True(t, strings.HasPrefix(line, "[AUDIT] "))

	var back Entry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "[AUDIT] ")), &back))
	assert.Equal(t, "run-1", back.RunID)

	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.Log(context.Background(), e), ErrClosed)
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := NewFileLogger(config.AuditConfig{FilePath: path, BufferSize: 4, FlushPeriod: time.Hour})
	require.NoError(t, err)

	// Больше записей, чем вмещает очередь: часть пишется синхронно
	for i := 0; i < 10; i++ {
		e := NewEntry("siting-svc", "/m", ActionRead)
		e.RunID = fmt.Sprintf("run-%d", i)
		require.NoError(t, l.Log(context.Background(), e))
	}
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	seen := map[string]bool{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		seen[e.RunID] = true
	}
	require.NoError(t, sc.Err())
	assert.Len(t, seen, 10)
}

func TestFileLogger_BadPath(t *testing.T) {
	_, err := NewFileLogger(config.AuditConfig{FilePath: "/nonexistent/dir/audit.log"})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AuditConfig
		want any
	}{
		{"disabled", config.AuditConfig{Enabled: false, Backend: "memory"}, discard{}},
		{"memory", config.AuditConfig{Enabled: true, Backend: "memory"}, &MemoryLogger{}},
		{"stdout", config.AuditConfig{Enabled: true}, &StreamLogger{}},
		{"unknown", config.AuditConfig{Enabled: true, Backend: "kafka"}, &StreamLogger{}},
		{"file", config.AuditConfig{Enabled: true, Backend: "file", FilePath: filepath.Join(t.TempDir(), "a.log")}, &StreamLogger{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = l.Close() })
			assert.IsType(t, tt.want, l)
		})
	}
}

func TestMemoryLogger_Query(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLogger(3)

	for i := 0; i < 5; i++ {
		e := NewEntry("siting-svc", "/m", ActionOptimize)
		e.RunID = fmt.Sprintf("run-%d", i)
		if i%2 == 1 {
			e.Fail(OutcomeFailure, "Internal", "boom")
		}
		require.NoError(t, l.Log(ctx, e))
	}

	all, err := l.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "run-2", all[0].RunID)
	assert.Equal(t, "run-4", all[2].RunID)

	failed, err := l.Query(ctx, Filter{Outcome: OutcomeFailure})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "run-3", failed[0].RunID)

	page, err := l.Query(ctx, Filter{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "run-3", page[0].RunID)
}

func TestMemoryLogger_Partial(t *testing.T) {
	l := NewMemoryLogger(0)
	require.NoError(t, l.Log(context.Background(), NewEntry("s", "/m", ActionRead)))

	got, err := l.Query(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.NoError(t, l.Close())
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard.Log(context.Background(), NewEntry("s", "/m", ActionRead)))
	assert.NoError(t, Discard.Close())
}
