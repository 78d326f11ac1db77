package sitingv1

import (
	"slices"

	"siting/pkg/apperror"
)

// MaxListLimit верхняя граница размера страницы ListRuns
const MaxListLimit = 500

// GetRunID возвращает идентификатор прогона
func (r *OptimizeResponse) GetRunID() string {
	if r == nil {
		return ""
	}
	return r.RunID
}

// GetRunID возвращает идентификатор прогона
func (r *WasteResponse) GetRunID() string {
	if r == nil {
		return ""
	}
	return r.RunID
}

// GetRunID возвращает идентификатор прогона
func (r *GetRunRequest) GetRunID() string {
	if r == nil {
		return ""
	}
	return r.RunID
}

// GetRunID возвращает идентификатор прогона
func (r *GeoJSONResponse) GetRunID() string {
	if r == nil {
		return ""
	}
	return r.RunID
}

// GetRunID возвращает идентификатор прогона
func (r *ReportRequest) GetRunID() string {
	if r == nil {
		return ""
	}
	return r.RunID
}

// Validate проверяет запрос прогона
func (r *GetRunRequest) Validate() error {
	if r.RunID == "" {
		return apperror.Configuration("run_id", "run_id is required")
	}
	return nil
}

// Validate проверяет параметры страницы и режимы
func (r *ListRunsRequest) Validate() error {
	if r.Limit < 0 || r.Limit > MaxListLimit {
		return apperror.NewWithField(apperror.CodeInvalidPagination, "limit must be in [0, 500]", "limit")
	}
	if r.Offset < 0 {
		return apperror.NewWithField(apperror.CodeInvalidPagination, "offset must be >= 0", "offset")
	}
	for _, m := range r.Modes {
		if !slices.Contains([]string{ModeHealthcare, ModeWaste, ModeRoutes}, m) {
			return apperror.Configuration("modes", "unknown mode %q", m)
		}
	}
	return nil
}

// Validate проверяет запрос отчёта; пустой формат означает markdown
func (r *ReportRequest) Validate() error {
	if r.RunID == "" {
		return apperror.Configuration("run_id", "run_id is required")
	}
	switch r.Format {
	case "", FormatMarkdown, FormatXLSX, FormatPDF:
		return nil
	default:
		return apperror.NewWithField(apperror.CodeUnknownOption, "unknown report format "+r.Format, "format")
	}
}
