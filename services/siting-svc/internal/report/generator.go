package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sitingv1 "siting/api/siting/v1"
	"siting/pkg/apperror"
	"siting/pkg/config"
	"siting/services/siting-svc/internal/repository"
)

// Data данные отчёта по сохранённому прогону
type Data struct {
	Title       string
	Run         *repository.Run
	Healthcare  *sitingv1.OptimizeResponse
	Waste       *sitingv1.WasteResponse
	Routes      *sitingv1.RouteResponse
	GeneratedAt time.Time
}

// NewData разбирает сохранённый результат прогона по его режиму
func NewData(run *repository.Run, title string) (*Data, error) {
	if run == nil {
		return nil, apperror.New(apperror.CodeReportFailed, "run is required")
	}

	data := &Data{Title: title, Run: run, GeneratedAt: time.Now().UTC()}

	var target any
	switch run.Mode {
	case sitingv1.ModeHealthcare:
		data.Healthcare = &sitingv1.OptimizeResponse{}
		target = data.Healthcare
	case sitingv1.ModeWaste:
		data.Waste = &sitingv1.WasteResponse{}
		target = data.Waste
	case sitingv1.ModeRoutes:
		data.Routes = &sitingv1.RouteResponse{}
		target = data.Routes
	default:
		return nil, apperror.Configuration("mode", "unknown run mode %q", run.Mode)
	}

	if len(run.Result) > 0 {
		if err := json.Unmarshal(run.Result, target); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeReportFailed, "stored run result is unreadable")
		}
	}

	return data, nil
}

// Generator генератор отчёта одного формата
type Generator interface {
	Generate(ctx context.Context, data *Data) ([]byte, error)
	Format() string
	ContentType() string
	Extension() string
}

// Rendered готовый отчёт
type Rendered struct {
	Content     []byte
	ContentType string
	Filename    string
}

// Registry генераторы по форматам
type Registry struct {
	cfg        config.ReportConfig
	generators map[string]Generator
}

// NewRegistry создаёт генераторы всех поддерживаемых форматов
func NewRegistry(cfg config.ReportConfig) *Registry {
	base := baseGenerator{cfg: cfg}
	r := &Registry{cfg: cfg, generators: make(map[string]Generator)}
	for _, g := range []Generator{
		&MarkdownGenerator{baseGenerator: base},
		&ExcelGenerator{baseGenerator: base},
		&PDFGenerator{baseGenerator: base},
	} {
		r.generators[g.Format()] = g
	}
	return r
}

// Get возвращает генератор; пустой формат берётся из конфигурации
func (r *Registry) Get(format string) (Generator, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = r.cfg.DefaultFormat
	}
	if format == "" {
		format = sitingv1.FormatMarkdown
	}

	g, ok := r.generators[format]
	if !ok {
		return nil, apperror.NewWithField(apperror.CodeUnknownOption,
			fmt.Sprintf("unsupported report format %q", format), "format")
	}
	return g, nil
}

// Render формирует отчёт и проверяет лимит размера
func (r *Registry) Render(ctx context.Context, format string, data *Data) (*Rendered, error) {
	g, err := r.Get(format)
	if err != nil {
		return nil, err
	}

	content, err := g.Generate(ctx, data)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeReportFailed, "report generation failed")
	}

	if maxSize := r.cfg.MaxReportSizeBytes; maxSize > 0 && int64(len(content)) > maxSize {
		return nil, apperror.New(apperror.CodeReportFailed,
			fmt.Sprintf("report is %d bytes, limit is %d", len(content), maxSize)).
			WithDetails("size_bytes", len(content))
	}

	return &Rendered{
		Content:     content,
		ContentType: g.ContentType(),
		Filename:    fmt.Sprintf("run-%s.%s", data.Run.ID, g.Extension()),
	}, nil
}

// baseGenerator общие утилиты генераторов
type baseGenerator struct {
	cfg config.ReportConfig
}

func (b baseGenerator) title(data *Data) string {
	if data.Title != "" {
		return data.Title
	}
	switch data.Run.Mode {
	case sitingv1.ModeHealthcare:
		return "Healthcare Facility Siting Report"
	case sitingv1.ModeWaste:
		return "Waste Facility Siting Report"
	case sitingv1.ModeRoutes:
		return "Collection Routes Report"
	default:
		return "Siting Report"
	}
}

func (b baseGenerator) author() string {
	if b.cfg.CompanyName != "" {
		return b.cfg.CompanyName
	}
	return "Siting Platform"
}

// limit ограничивает число строк таблицы; 0 означает без ограничений
func limit(n, maxRows int) int {
	if maxRows > 0 && n > maxRows {
		return maxRows
	}
	return n
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func formatFloat(v float64, precision int) string {
	return fmt.Sprintf("%.*f", precision, v)
}

func formatDuration(ms float64) string {
	if ms < 1000 {
		return fmt.Sprintf("%.2f ms", ms)
	}
	return fmt.Sprintf("%.2f s", ms/1000)
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func formatCoords(lat, lon float64) string {
	return fmt.Sprintf("%.5f, %.5f", lat, lon)
}

type keyValue struct {
	Key   string
	Value string
}

// summary сводка прогона, общая для всех форматов
func summary(data *Data) []keyValue {
	run := data.Run
	bbox := run.BoundingBox
	items := []keyValue{
		{"Run ID", run.ID.String()},
		{"Mode", run.Mode},
		{"Created", formatTimestamp(run.CreatedAt)},
		{"Bounding Box", fmt.Sprintf("[%.4f, %.4f] - [%.4f, %.4f]", bbox.MinLat, bbox.MinLon, bbox.MaxLat, bbox.MaxLon)},
		{"Seed", fmt.Sprintf("%d", run.Seed)},
		{"Computation Time", formatDuration(run.ComputationMs)},
	}

	switch {
	case data.Healthcare != nil:
		res := data.Healthcare.Result
		items = append(items,
			keyValue{"Max Facilities", fmt.Sprintf("%d", run.MaxFacilities)},
			keyValue{"Selected Sites", fmt.Sprintf("%d", len(res.SelectedSites))},
			keyValue{"Coverage Before", formatPercent(res.CoverageImprovement.Before.CoveragePercentage)},
			keyValue{"Coverage After", formatPercent(res.CoverageImprovement.After.CoveragePercentage)},
			keyValue{"Improvement", formatPercent(res.CoverageImprovement.Improvement)},
			keyValue{"Total Population", fmt.Sprintf("%d", res.Population.Total)},
			keyValue{"Candidates Evaluated", fmt.Sprintf("%d", res.CandidatesEvaluated)},
			keyValue{"Underserved Cells", fmt.Sprintf("%d", res.UnderservedCells)},
			keyValue{"Efficiency Score", formatFloat(res.EfficiencyScore, 4)},
		)
		if res.Reason != "" {
			items = append(items, keyValue{"Stop Reason", string(res.Reason)})
		}
		if data.Healthcare.PopulationSource != "" {
			items = append(items, keyValue{"Population Source", data.Healthcare.PopulationSource})
		}
	case data.Waste != nil:
		w := data.Waste
		items = append(items,
			keyValue{"Facilities", fmt.Sprintf("%d", len(w.Facilities))},
			keyValue{"Fitness", formatFloat(w.Fitness.Total, 4)},
			keyValue{"Generations", fmt.Sprintf("%d", w.Generations)},
			keyValue{"Stopped On Plateau", fmt.Sprintf("%t", w.StoppedOnPlateau)},
		)
		if w.Routes != nil {
			items = append(items,
				keyValue{"Routes", fmt.Sprintf("%d", len(w.Routes.Routes))},
				keyValue{"Total Distance (km)", formatFloat(w.Routes.TotalDistanceKm, 2)},
			)
		}
	case data.Routes != nil:
		p := data.Routes.Plan
		items = append(items,
			keyValue{"Routes", fmt.Sprintf("%d", len(p.Routes))},
			keyValue{"Total Distance (km)", formatFloat(p.TotalDistanceKm, 2)},
			keyValue{"Total Load", formatFloat(p.TotalLoad, 2)},
			keyValue{"Unassigned Points", fmt.Sprintf("%d", len(p.Unassigned))},
		)
	}

	return items
}

// routePlan план маршрутов прогона, если он есть
func routePlan(data *Data) *sitingv1.RoutePlan {
	switch {
	case data.Routes != nil:
		return &data.Routes.Plan
	case data.Waste != nil:
		return data.Waste.Routes
	default:
		return nil
	}
}
