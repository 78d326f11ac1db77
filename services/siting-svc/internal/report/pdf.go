package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/border"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/core/entity"
	"github.com/johnfercher/maroto/v2/pkg/props"

	sitingv1 "siting/api/siting/v1"
)

// PDFGenerator генератор PDF отчётов
type PDFGenerator struct {
	baseGenerator
}

// Format возвращает формат генератора
func (g *PDFGenerator) Format() string { return sitingv1.FormatPDF }

// ContentType MIME тип
func (g *PDFGenerator) ContentType() string { return "application/pdf" }

// Extension расширение файла
func (g *PDFGenerator) Extension() string { return "pdf" }

// Стили
var (
	primaryColor   = &props.Color{Red: 52, Green: 152, Blue: 219}  // #3498db
	headerBgColor  = &props.Color{Red: 44, Green: 62, Blue: 80}    // #2c3e50
	lightGrayColor = &props.Color{Red: 236, Green: 240, Blue: 241} // #ecf0f1
	darkGrayColor  = &props.Color{Red: 127, Green: 140, Blue: 141} // #7f8c8d

	titleStyle = props.Text{
		Size:  22,
		Style: fontstyle.Bold,
		Align: align.Center,
		Color: headerBgColor,
	}

	h2Style = props.Text{
		Size:  14,
		Style: fontstyle.Bold,
		Color: headerBgColor,
		Top:   5,
	}

	normalStyle = props.Text{Size: 10}

	boldStyle = props.Text{
		Size:  10,
		Style: fontstyle.Bold,
	}

	smallStyle = props.Text{
		Size:  8,
		Color: darkGrayColor,
	}

	metricValueStyle = props.Text{
		Size:  18,
		Style: fontstyle.Bold,
		Align: align.Center,
		Color: primaryColor,
	}

	metricLabelStyle = props.Text{
		Size:  9,
		Align: align.Center,
		Color: darkGrayColor,
		Top:   9,
	}

	tableHeaderStyle = &props.Cell{
		BackgroundColor: primaryColor,
	}

	tableHeaderTextStyle = props.Text{
		Size:  9,
		Style: fontstyle.Bold,
		Color: &props.Color{Red: 255, Green: 255, Blue: 255},
		Align: align.Center,
	}

	tableCellStyle = &props.Cell{
		BorderType:  border.Bottom,
		BorderColor: lightGrayColor,
	}

	tableCellTextStyle = props.Text{
		Size:  9,
		Align: align.Center,
	}
)

// Generate генерирует PDF отчёт
func (g *PDFGenerator) Generate(ctx context.Context, data *Data) ([]byte, error) {
	m := maroto.New(g.buildConfig())

	g.addHeader(m, data)

	g.addSection(m, "Summary")
	g.addMetricCards(m, g.metrics(data))
	m.AddRow(4)
	g.addKeyValueTable(m, summary(data))

	switch {
	case data.Healthcare != nil:
		g.addHealthcareContent(m, data.Healthcare.Result)
	case data.Waste != nil:
		g.addWasteContent(m, data.Waste)
	}

	if plan := routePlan(data); plan != nil && len(plan.Routes) > 0 {
		g.addSection(m, "Routes")
		g.addRoutesTable(m, plan)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.addFooter(m, data)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return doc.GetBytes(), nil
}

func (g *PDFGenerator) buildConfig() *entity.Config {
	pdf := g.cfg.PDF
	b := config.NewBuilder().
		WithLeftMargin(marginOr(pdf.MarginLeft)).
		WithTopMargin(marginOr(pdf.MarginTop)).
		WithRightMargin(marginOr(pdf.MarginRight)).
		WithPageSize(pageSize(pdf.PageSize))

	if strings.EqualFold(pdf.Orientation, "landscape") {
		b = b.WithOrientation(orientation.Horizontal)
	}
	if pdf.EnablePageNumbers {
		b = b.WithPageNumber()
	}
	if pdf.FontSize > 0 {
		b = b.WithDefaultFont(&props.Font{Size: pdf.FontSize})
	}

	return b.Build()
}

func marginOr(v float64) float64 {
	if v <= 0 {
		return 15
	}
	return v
}

func pageSize(name string) pagesize.Type {
	switch strings.ToUpper(name) {
	case "LETTER":
		return pagesize.Letter
	case "LEGAL":
		return pagesize.Legal
	case "A3":
		return pagesize.A3
	default:
		return pagesize.A4
	}
}

func (g *PDFGenerator) addHeader(m core.Maroto, data *Data) {
	m.AddRow(15,
		text.NewCol(12, g.title(data), titleStyle),
	)

	m.AddRow(5,
		line.NewCol(12),
	)

	m.AddRow(6,
		text.NewCol(6, fmt.Sprintf("Author: %s", g.author()), smallStyle),
		text.NewCol(6, fmt.Sprintf("Generated: %s", formatTimestamp(data.GeneratedAt)),
			props.Text{Size: 8, Color: darkGrayColor, Align: align.Right}),
	)

	m.AddRow(8)
}

type metricCard struct {
	Label     string
	Value     string
	Highlight bool
}

func (g *PDFGenerator) metrics(data *Data) []metricCard {
	switch {
	case data.Healthcare != nil:
		res := data.Healthcare.Result
		return []metricCard{
			{Label: "Sites", Value: fmt.Sprintf("%d", len(res.SelectedSites))},
			{Label: "Coverage Before", Value: formatPercent(res.CoverageImprovement.Before.CoveragePercentage)},
			{Label: "Coverage After", Value: formatPercent(res.CoverageImprovement.After.CoveragePercentage), Highlight: true},
			{Label: "Improvement", Value: formatPercent(res.CoverageImprovement.Improvement), Highlight: true},
		}
	case data.Waste != nil:
		return []metricCard{
			{Label: "Facilities", Value: fmt.Sprintf("%d", len(data.Waste.Facilities))},
			{Label: "Fitness", Value: formatFloat(data.Waste.Fitness.Total, 3), Highlight: true},
			{Label: "Generations", Value: fmt.Sprintf("%d", data.Waste.Generations)},
		}
	case data.Routes != nil:
		p := data.Routes.Plan
		return []metricCard{
			{Label: "Routes", Value: fmt.Sprintf("%d", len(p.Routes))},
			{Label: "Distance (km)", Value: formatFloat(p.TotalDistanceKm, 1), Highlight: true},
			{Label: "Unassigned", Value: fmt.Sprintf("%d", len(p.Unassigned))},
		}
	default:
		return nil
	}
}

func (g *PDFGenerator) addHealthcareContent(m core.Maroto, res sitingv1.OptimizeResult) {
	if len(res.SelectedSites) > 0 {
		g.addSection(m, "Selected Sites")
		g.addSitesTable(m, res)
	}

	if len(res.UnderservedAreas) > 0 {
		g.addSection(m, "Underserved Areas")
		g.addClustersTable(m, res)
	}

	if len(res.ParetoFront) > 0 {
		g.addSection(m, "Pareto Front")
		g.addParetoTable(m, res)
	}

	if res.Justification != "" {
		g.addSection(m, "Justification")
		for _, para := range strings.Split(strings.TrimSpace(res.Justification), "\n") {
			if para = strings.TrimSpace(para); para != "" {
				m.AddAutoRow(text.NewCol(12, para, normalStyle))
			}
		}
	}
}

func (g *PDFGenerator) addWasteContent(m core.Maroto, resp *sitingv1.WasteResponse) {
	f := resp.Fitness
	g.addSection(m, "Fitness Components")
	g.addKeyValueTable(m, []keyValue{
		{"Population Coverage", formatFloat(f.PopulationCoverage, 4)},
		{"Cost Efficiency", formatFloat(f.CostEfficiency, 4)},
		{"Environmental Penalty", formatFloat(f.EnvironmentalPenalty, 4)},
		{"Accessibility", formatFloat(f.Accessibility, 4)},
	})

	n := limit(len(resp.Facilities), g.cfg.MaxSitesInTable)
	if n == 0 {
		return
	}

	g.addSection(m, "Facilities")
	m.AddRow(8,
		text.NewCol(2, "#", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(4, "Facility", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(4, "Location", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Type", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
	)
	for i, fac := range resp.Facilities[:n] {
		m.AddRow(6,
			text.NewCol(2, fmt.Sprintf("%d", i+1), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(4, fac.ID, tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(4, formatCoords(fac.Coords.Lat, fac.Coords.Lon), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, string(fac.Type), tableCellTextStyle).WithStyle(tableCellStyle),
		)
	}
}

func (g *PDFGenerator) addSitesTable(m core.Maroto, res sitingv1.OptimizeResult) {
	m.AddRow(8,
		text.NewCol(1, "#", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(4, "Location", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(3, "Type", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Added", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Cumulative", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
	)

	n := limit(len(res.SelectedSites), g.cfg.MaxSitesInTable)
	for _, s := range res.SelectedSites[:n] {
		m.AddRow(6,
			text.NewCol(1, fmt.Sprintf("%d", s.SelectionOrder), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(4, formatCoords(s.Coords.Lat, s.Coords.Lon), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(3, string(s.Type), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, fmt.Sprintf("%d", s.AdditionalCoverage), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, formatPercent(s.CumulativeCoveragePercentage), tableCellTextStyle).WithStyle(tableCellStyle),
		)
	}
	if rest := len(res.SelectedSites) - n; rest > 0 {
		m.AddRow(6,
			text.NewCol(12, fmt.Sprintf("... and %d more sites", rest), smallStyle),
		)
	}
}

func (g *PDFGenerator) addClustersTable(m core.Maroto, res sitingv1.OptimizeResult) {
	m.AddRow(8,
		text.NewCol(1, "#", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(5, "Centroid", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Cells", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Population", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Priority", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
	)

	n := limit(len(res.UnderservedAreas), g.cfg.MaxClustersInTable)
	for i, c := range res.UnderservedAreas[:n] {
		m.AddRow(6,
			text.NewCol(1, fmt.Sprintf("%d", i+1), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(5, formatCoords(c.Centroid.Lat, c.Centroid.Lon), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, fmt.Sprintf("%d", len(c.Members)), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, fmt.Sprintf("%d", c.TotalPopulation), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, formatFloat(c.Priority, 3), tableCellTextStyle).WithStyle(tableCellStyle),
		)
	}
}

func (g *PDFGenerator) addParetoTable(m core.Maroto, res sitingv1.OptimizeResult) {
	m.AddRow(8,
		text.NewCol(2, "Sites", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Access", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Coverage", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Resilience", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Cost", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Equity", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
	)

	for _, s := range res.ParetoFront {
		o := s.Objectives
		m.AddRow(6,
			text.NewCol(2, fmt.Sprintf("%d", len(s.FacilitySet)), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, formatFloat(o.Accessibility, 3), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, formatFloat(o.Coverage, 3), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, formatFloat(o.Resilience, 3), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, formatFloat(o.Cost, 3), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, formatFloat(o.Equity, 3), tableCellTextStyle).WithStyle(tableCellStyle),
		)
	}
}

func (g *PDFGenerator) addRoutesTable(m core.Maroto, plan *sitingv1.RoutePlan) {
	m.AddRow(8,
		text.NewCol(3, "Vehicle", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Stops", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Load", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(3, "Distance (km)", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Time (h)", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
	)

	for _, r := range plan.Routes {
		m.AddRow(6,
			text.NewCol(3, r.VehicleID, tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, fmt.Sprintf("%d", len(r.Stops)), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, formatFloat(r.Load, 1), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(3, formatFloat(r.TotalDistanceKm, 2), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, formatFloat(r.TotalTimeHours, 2), tableCellTextStyle).WithStyle(tableCellStyle),
		)
	}

	if len(plan.Unassigned) > 0 {
		m.AddRow(6,
			text.NewCol(12, fmt.Sprintf("%d points left unassigned", len(plan.Unassigned)), smallStyle),
		)
	}
}

func (g *PDFGenerator) addMetricCards(m core.Maroto, cards []metricCard) {
	if len(cards) == 0 {
		return
	}

	colSize := 12 / len(cards)
	if colSize < 2 {
		colSize = 2
	}

	var cols []core.Col
	for _, card := range cards {
		valueStyle := metricValueStyle
		if !card.Highlight {
			valueStyle.Size = 14
		}

		cols = append(cols,
			col.New(colSize).Add(
				text.New(card.Value, valueStyle),
				text.New(card.Label, metricLabelStyle),
			),
		)
	}

	m.AddRow(20, cols...)
}

func (g *PDFGenerator) addKeyValueTable(m core.Maroto, items []keyValue) {
	for _, item := range items {
		m.AddRow(6,
			text.NewCol(5, item.Key, boldStyle),
			text.NewCol(7, item.Value, normalStyle),
		)
	}
}

func (g *PDFGenerator) addSection(m core.Maroto, title string) {
	m.AddRow(10,
		text.NewCol(12, title, h2Style),
	)
	m.AddRow(2,
		line.NewCol(12, props.Line{Color: primaryColor}),
	)
	m.AddRow(4)
}

func (g *PDFGenerator) addFooter(m core.Maroto, data *Data) {
	m.AddRow(10)
	m.AddRow(2,
		line.NewCol(12, props.Line{Color: lightGrayColor}),
	)
	m.AddRow(6,
		text.NewCol(12,
			fmt.Sprintf("Generated by %s | %s", g.author(), formatTimestamp(data.GeneratedAt)),
			props.Text{Size: 8, Color: darkGrayColor, Align: align.Center},
		),
	)
}
