package service

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/attribute"

	sitingv1 "siting/api/siting/v1"
	"siting/pkg/apperror"
	"siting/pkg/logger"
	"siting/pkg/telemetry"
	"siting/services/siting-svc/internal/report"
	"siting/services/siting-svc/internal/repository"
)

// GetRun возвращает сохранённый прогон вместе с результатом
func (s *SitingService) GetRun(ctx context.Context, req *sitingv1.GetRunRequest) (*sitingv1.GetRunResponse, error) {
	run, err := s.loadRun(ctx, req.RunID)
	if err != nil {
		return nil, err
	}
	return &sitingv1.GetRunResponse{Run: toRun(run, true)}, nil
}

// ListRuns история прогонов без тел результатов
func (s *SitingService) ListRuns(ctx context.Context, req *sitingv1.ListRunsRequest) (*sitingv1.ListRunsResponse, error) {
	if s.repo == nil {
		return &sitingv1.ListRunsResponse{Runs: []*sitingv1.Run{}}, nil
	}

	runs, total, err := s.repo.List(ctx, repository.ListOptions{
		Limit:  int(req.Limit),
		Offset: int(req.Offset),
		Modes:  req.Modes,
	})
	if err != nil {
		return nil, mapRepoError(err)
	}

	resp := &sitingv1.ListRunsResponse{
		Runs:  make([]*sitingv1.Run, 0, len(runs)),
		Total: total,
	}
	for _, r := range runs {
		resp.Runs = append(resp.Runs, toRun(r, false))
	}
	return resp, nil
}

// ExportGeoJSON FeatureCollection сохранённого прогона
func (s *SitingService) ExportGeoJSON(ctx context.Context, req *sitingv1.GetRunRequest) (*sitingv1.GeoJSONResponse, error) {
	run, err := s.loadRun(ctx, req.RunID)
	if err != nil {
		return nil, err
	}

	var stored struct {
		GeoJSON json.RawMessage `json:"geojson"`
	}
	if err := json.Unmarshal(run.Result, &stored); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "stored run result is unreadable")
	}
	if len(stored.GeoJSON) == 0 {
		return nil, apperror.NewWithField(apperror.CodeNotFound, "run has no geojson", "run_id")
	}

	return &sitingv1.GeoJSONResponse{
		RunID:             run.ID.String(),
		FeatureCollection: stored.GeoJSON,
	}, nil
}

// GenerateReport отчёт по сохранённому прогону
func (s *SitingService) GenerateReport(ctx context.Context, req *sitingv1.ReportRequest) (*sitingv1.ReportResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "SitingService.GenerateReport")
	defer span.End()
	span.SetAttributes(attribute.String("format", req.Format))

	run, err := s.loadRun(ctx, req.RunID)
	if err != nil {
		return nil, err
	}

	data, err := report.NewData(run, req.Title)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, err
	}

	rendered, err := s.reports.Render(ctx, req.Format, data)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, err
	}

	logger.WithContext(ctx).Info("report generated",
		"run_id", req.RunID,
		"content_type", rendered.ContentType,
		"size_bytes", len(rendered.Content),
	)

	return &sitingv1.ReportResponse{
		Content:     rendered.Content,
		ContentType: rendered.ContentType,
		Filename:    rendered.Filename,
		SizeBytes:   int64(len(rendered.Content)),
	}, nil
}

func (s *SitingService) loadRun(ctx context.Context, runID string) (*repository.Run, error) {
	id, err := repository.ParseID(runID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if s.repo == nil {
		return nil, mapRepoError(repository.ErrRunNotFound)
	}

	run, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return run, nil
}
