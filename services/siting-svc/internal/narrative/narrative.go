// Package narrative формирует текстовое обоснование выбранных площадок.
// Обоснование никогда не влияет на числовой результат.
package narrative

import (
	"context"
	"fmt"
	"strings"
	"time"

	"siting/pkg/domain"
	"siting/pkg/logger"
)

// Summary показатели прогона для обоснования
type Summary struct {
	Coverage         domain.CoverageImprovement
	UnderservedAreas int
	UnderservedPop   int64
	Reason           domain.Reason
}

// Generator источник обоснований
type Generator interface {
	Justify(ctx context.Context, sites []domain.SelectedSite, s Summary) (string, error)
}

// GeneratorFunc адаптер функции к Generator
type GeneratorFunc func(ctx context.Context, sites []domain.SelectedSite, s Summary) (string, error)

// Justify реализует Generator
func (f GeneratorFunc) Justify(ctx context.Context, sites []domain.SelectedSite, s Summary) (string, error) {
	return f(ctx, sites, s)
}

// Template детерминированный текст по шаблону
type Template struct{}

// Justify реализует Generator
func (Template) Justify(_ context.Context, sites []domain.SelectedSite, s Summary) (string, error) {
	var b strings.Builder
	if len(sites) == 0 {
		fmt.Fprintf(&b, "No new facilities were recommended")
		if s.Reason != "" {
			fmt.Fprintf(&b, " (%s)", s.Reason)
		}
		fmt.Fprintf(&b, ". Current coverage is %.1f%% of %d residents.",
			s.Coverage.Before.CoveragePercentage*100, s.Coverage.Before.TotalPopulation)
		return b.String(), nil
	}

	noun := "facilities"
	if len(sites) == 1 {
		noun = "facility"
	}
	fmt.Fprintf(&b, "Recommended %d new %s, raising population coverage from %.1f%% to %.1f%% (+%.1f points).",
		len(sites), noun,
		s.Coverage.Before.CoveragePercentage*100,
		s.Coverage.After.CoveragePercentage*100,
		s.Coverage.Improvement*100,
	)
	if s.UnderservedAreas > 0 {
		fmt.Fprintf(&b, " %d underserved areas with %d residents were identified.", s.UnderservedAreas, s.UnderservedPop)
	}
	for _, site := range sites {
		fmt.Fprintf(&b, "\n%d. Site %s at (%.5f, %.5f) adds %d residents within the service radius (cumulative %.1f%%).",
			site.SelectionOrder, site.ID, site.Coords.Lat, site.Coords.Lon,
			site.AdditionalCoverage, site.CumulativeCoveragePercentage*100)
	}
	return b.String(), nil
}

// fallback оборачивает генератор: при ошибке, пустом ответе или таймауте
// возвращается шаблонный текст
type fallback struct {
	primary Generator
	timeout time.Duration
}

// WithFallback оборачивает генератор шаблонным запасным вариантом.
// timeout <= 0 означает без отдельного ограничения.
func WithFallback(primary Generator, timeout time.Duration) Generator {
	if primary == nil {
		return Template{}
	}
	return &fallback{primary: primary, timeout: timeout}
}

// Justify реализует Generator
func (f *fallback) Justify(ctx context.Context, sites []domain.SelectedSite, s Summary) (string, error) {
	callCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	text, err := f.primary.Justify(callCtx, sites, s)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}

	if err == nil {
		err = fmt.Errorf("empty justification")
	}
	logger.WithContext(ctx, "component", "narrative").Warn("justification generator failed, using template",
		"error", err,
	)
	return Template{}.Justify(ctx, sites, s)
}
