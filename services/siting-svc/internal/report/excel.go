package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	sitingv1 "siting/api/siting/v1"
)

// ExcelGenerator генератор Excel отчётов
type ExcelGenerator struct {
	baseGenerator
}

// Format возвращает формат генератора
func (g *ExcelGenerator) Format() string { return sitingv1.FormatXLSX }

// ContentType MIME тип
func (g *ExcelGenerator) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension расширение файла
func (g *ExcelGenerator) Extension() string { return "xlsx" }

// Generate генерирует Excel отчёт
func (g *ExcelGenerator) Generate(ctx context.Context, data *Data) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	g.writeSummary(f, data, headerStyle)

	switch {
	case data.Healthcare != nil:
		g.writeSites(f, data.Healthcare.Result, headerStyle)
		g.writeUnderserved(f, data.Healthcare.Result, headerStyle)
		g.writePareto(f, data.Healthcare.Result, headerStyle)
	case data.Waste != nil:
		g.writeFacilities(f, data.Waste, headerStyle)
	}

	if plan := routePlan(data); plan != nil {
		g.writeRoutes(f, plan, headerStyle)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Удаляем дефолтный лист после создания своих
	f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex("Summary"); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (g *ExcelGenerator) writeSummary(f *excelize.File, data *Data, headerStyle int) {
	sheet := "Summary"
	f.NewSheet(sheet)

	row := 1
	f.SetCellValue(sheet, cellAddr("A", row), g.title(data))
	f.MergeCell(sheet, cellAddr("A", row), cellAddr("B", row))
	row += 2

	f.SetCellValue(sheet, cellAddr("A", row), "Parameter")
	f.SetCellValue(sheet, cellAddr("B", row), "Value")
	f.SetCellStyle(sheet, cellAddr("A", row), cellAddr("B", row), headerStyle)
	row++

	for _, item := range summary(data) {
		f.SetCellValue(sheet, cellAddr("A", row), item.Key)
		f.SetCellValue(sheet, cellAddr("B", row), item.Value)
		row++
	}

	row++
	f.SetCellValue(sheet, cellAddr("A", row), "Generated")
	f.SetCellValue(sheet, cellAddr("B", row), formatTimestamp(data.GeneratedAt))
	row++
	f.SetCellValue(sheet, cellAddr("A", row), "Author")
	f.SetCellValue(sheet, cellAddr("B", row), g.author())

	f.SetColWidth(sheet, "A", "A", 24)
	f.SetColWidth(sheet, "B", "B", 40)
}

func (g *ExcelGenerator) writeSites(f *excelize.File, res sitingv1.OptimizeResult, headerStyle int) {
	n := limit(len(res.SelectedSites), g.cfg.MaxSitesInTable)
	if n == 0 {
		return
	}

	sheet := "Sites"
	f.NewSheet(sheet)

	headers := []string{"Order", "Site ID", "Latitude", "Longitude", "Type", "Served Population", "Additional Coverage", "Cumulative Coverage"}
	writeHeaderRow(f, sheet, headers, headerStyle)

	for i, s := range res.SelectedSites[:n] {
		row := i + 2
		f.SetCellValue(sheet, cellAddr("A", row), s.SelectionOrder)
		f.SetCellValue(sheet, cellAddr("B", row), s.ID)
		f.SetCellValue(sheet, cellAddr("C", row), s.Coords.Lat)
		f.SetCellValue(sheet, cellAddr("D", row), s.Coords.Lon)
		f.SetCellValue(sheet, cellAddr("E", row), string(s.Type))
		f.SetCellValue(sheet, cellAddr("F", row), s.EstimatedServedPopulation)
		f.SetCellValue(sheet, cellAddr("G", row), s.AdditionalCoverage)
		f.SetCellValue(sheet, cellAddr("H", row), s.CumulativeCoveragePercentage)
	}

	f.SetColWidth(sheet, "A", "H", 18)
	f.SetColWidth(sheet, "B", "B", 40)
}

func (g *ExcelGenerator) writeUnderserved(f *excelize.File, res sitingv1.OptimizeResult, headerStyle int) {
	n := limit(len(res.UnderservedAreas), g.cfg.MaxClustersInTable)
	if n == 0 {
		return
	}

	sheet := "Underserved"
	f.NewSheet(sheet)

	writeHeaderRow(f, sheet, []string{"Cluster", "Latitude", "Longitude", "Cells", "Population", "Priority"}, headerStyle)

	for i, c := range res.UnderservedAreas[:n] {
		row := i + 2
		f.SetCellValue(sheet, cellAddr("A", row), i+1)
		f.SetCellValue(sheet, cellAddr("B", row), c.Centroid.Lat)
		f.SetCellValue(sheet, cellAddr("C", row), c.Centroid.Lon)
		f.SetCellValue(sheet, cellAddr("D", row), len(c.Members))
		f.SetCellValue(sheet, cellAddr("E", row), c.TotalPopulation)
		f.SetCellValue(sheet, cellAddr("F", row), c.Priority)
	}

	f.SetColWidth(sheet, "A", "F", 16)
}

func (g *ExcelGenerator) writePareto(f *excelize.File, res sitingv1.OptimizeResult, headerStyle int) {
	if len(res.ParetoFront) == 0 {
		return
	}

	sheet := "Pareto"
	f.NewSheet(sheet)

	writeHeaderRow(f, sheet, []string{"Solution", "Sites", "Rank", "Accessibility", "Coverage", "Resilience", "Cost", "Equity"}, headerStyle)

	for i, s := range res.ParetoFront {
		row := i + 2
		o := s.Objectives
		f.SetCellValue(sheet, cellAddr("A", row), i+1)
		f.SetCellValue(sheet, cellAddr("B", row), len(s.FacilitySet))
		f.SetCellValue(sheet, cellAddr("C", row), s.Rank)
		f.SetCellValue(sheet, cellAddr("D", row), o.Accessibility)
		f.SetCellValue(sheet, cellAddr("E", row), o.Coverage)
		f.SetCellValue(sheet, cellAddr("F", row), o.Resilience)
		f.SetCellValue(sheet, cellAddr("G", row), o.Cost)
		f.SetCellValue(sheet, cellAddr("H", row), o.Equity)
	}

	f.SetColWidth(sheet, "A", "H", 14)
}

func (g *ExcelGenerator) writeFacilities(f *excelize.File, resp *sitingv1.WasteResponse, headerStyle int) {
	n := limit(len(resp.Facilities), g.cfg.MaxSitesInTable)
	if n == 0 {
		return
	}

	sheet := "Facilities"
	f.NewSheet(sheet)

	writeHeaderRow(f, sheet, []string{"#", "Facility ID", "Latitude", "Longitude", "Type", "Capacity"}, headerStyle)

	for i, fac := range resp.Facilities[:n] {
		row := i + 2
		f.SetCellValue(sheet, cellAddr("A", row), i+1)
		f.SetCellValue(sheet, cellAddr("B", row), fac.ID)
		f.SetCellValue(sheet, cellAddr("C", row), fac.Coords.Lat)
		f.SetCellValue(sheet, cellAddr("D", row), fac.Coords.Lon)
		f.SetCellValue(sheet, cellAddr("E", row), string(fac.Type))
		f.SetCellValue(sheet, cellAddr("F", row), fac.Capacity)
	}

	f.SetColWidth(sheet, "A", "F", 16)
}

func (g *ExcelGenerator) writeRoutes(f *excelize.File, plan *sitingv1.RoutePlan, headerStyle int) {
	if len(plan.Routes) == 0 {
		return
	}

	sheet := "Routes"
	f.NewSheet(sheet)

	writeHeaderRow(f, sheet, []string{"Vehicle", "Stop", "Point ID", "Latitude", "Longitude", "Quantity"}, headerStyle)

	row := 2
	for _, r := range plan.Routes {
		for i, stop := range r.Stops {
			f.SetCellValue(sheet, cellAddr("A", row), r.VehicleID)
			f.SetCellValue(sheet, cellAddr("B", row), i+1)
			f.SetCellValue(sheet, cellAddr("C", row), stop.ID)
			f.SetCellValue(sheet, cellAddr("D", row), stop.Coords.Lat)
			f.SetCellValue(sheet, cellAddr("E", row), stop.Coords.Lon)
			f.SetCellValue(sheet, cellAddr("F", row), stop.Quantity)
			row++
		}
	}

	row++
	f.SetCellValue(sheet, cellAddr("A", row), "Total Distance (km)")
	f.SetCellValue(sheet, cellAddr("B", row), plan.TotalDistanceKm)
	row++
	f.SetCellValue(sheet, cellAddr("A", row), "Total Load")
	f.SetCellValue(sheet, cellAddr("B", row), plan.TotalLoad)

	f.SetColWidth(sheet, "A", "F", 16)
}

func writeHeaderRow(f *excelize.File, sheet string, headers []string, style int) {
	for i, h := range headers {
		f.SetCellValue(sheet, cellByIndex(i, 1), h)
	}
	f.SetCellStyle(sheet, cellByIndex(0, 1), cellByIndex(len(headers)-1, 1), style)
}

// colName преобразует индекс колонки в буквенное обозначение (0 -> A, 26 -> AA)
func colName(index int) string {
	result := ""
	for {
		result = string(rune('A'+index%26)) + result
		index = index/26 - 1
		if index < 0 {
			break
		}
	}
	return result
}

func cellAddr(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func cellByIndex(colIndex, row int) string {
	return cellAddr(colName(colIndex), row)
}
