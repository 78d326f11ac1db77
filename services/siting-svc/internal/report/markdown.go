package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	sitingv1 "siting/api/siting/v1"
)

// MarkdownGenerator генератор Markdown отчётов
type MarkdownGenerator struct {
	baseGenerator
}

// Format возвращает формат генератора
func (g *MarkdownGenerator) Format() string { return sitingv1.FormatMarkdown }

// ContentType MIME тип
func (g *MarkdownGenerator) ContentType() string { return "text/markdown; charset=utf-8" }

// Extension расширение файла
func (g *MarkdownGenerator) Extension() string { return "md" }

// Generate генерирует Markdown отчёт
func (g *MarkdownGenerator) Generate(ctx context.Context, data *Data) ([]byte, error) {
	var buf bytes.Buffer

	g.writeHeader(&buf, data)

	buf.WriteString("## Summary\n\n")
	for _, item := range summary(data) {
		fmt.Fprintf(&buf, "- **%s:** %s\n", item.Key, item.Value)
	}
	buf.WriteString("\n")

	switch {
	case data.Healthcare != nil:
		g.writeHealthcare(&buf, data.Healthcare)
	case data.Waste != nil:
		g.writeWaste(&buf, data.Waste)
	}

	if plan := routePlan(data); plan != nil {
		g.writeRoutes(&buf, plan)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.writeFooter(&buf, data)

	return buf.Bytes(), nil
}

func (g *MarkdownGenerator) writeHeader(buf *bytes.Buffer, data *Data) {
	fmt.Fprintf(buf, "# %s\n\n", g.title(data))

	buf.WriteString("## Report Information\n\n")
	fmt.Fprintf(buf, "- **Generated:** %s\n", formatTimestamp(data.GeneratedAt))
	fmt.Fprintf(buf, "- **Author:** %s\n", g.author())
	buf.WriteString("\n---\n\n")
}

func (g *MarkdownGenerator) writeHealthcare(buf *bytes.Buffer, resp *sitingv1.OptimizeResponse) {
	res := resp.Result

	if n := limit(len(res.SelectedSites), g.cfg.MaxSitesInTable); n > 0 {
		buf.WriteString("## Selected Sites\n\n")
		buf.WriteString("| # | Site | Location | Type | Additional Coverage | Cumulative Coverage |\n")
		buf.WriteString("|---|------|----------|------|---------------------|---------------------|\n")
		for _, s := range res.SelectedSites[:n] {
			fmt.Fprintf(buf, "| %d | %s | %s | %s | %d | %s |\n",
				s.SelectionOrder, s.ID, formatCoords(s.Coords.Lat, s.Coords.Lon), s.Type,
				s.AdditionalCoverage, formatPercent(s.CumulativeCoveragePercentage))
		}
		if rest := len(res.SelectedSites) - n; rest > 0 {
			fmt.Fprintf(buf, "\n*... and %d more sites*\n", rest)
		}
		buf.WriteString("\n")
	}

	if n := limit(len(res.UnderservedAreas), g.cfg.MaxClustersInTable); n > 0 {
		buf.WriteString("## Underserved Areas\n\n")
		buf.WriteString("| # | Centroid | Cells | Population | Priority |\n")
		buf.WriteString("|---|----------|-------|------------|----------|\n")
		for i, c := range res.UnderservedAreas[:n] {
			fmt.Fprintf(buf, "| %d | %s | %d | %d | %s |\n",
				i+1, formatCoords(c.Centroid.Lat, c.Centroid.Lon), len(c.Members),
				c.TotalPopulation, formatFloat(c.Priority, 4))
		}
		buf.WriteString("\n")
	}

	if len(res.ParetoFront) > 0 {
		buf.WriteString("## Pareto Front\n\n")
		buf.WriteString("| # | Sites | Accessibility | Coverage | Resilience | Cost | Equity |\n")
		buf.WriteString("|---|-------|---------------|----------|------------|------|--------|\n")
		for i, s := range res.ParetoFront {
			o := s.Objectives
			fmt.Fprintf(buf, "| %d | %d | %s | %s | %s | %s | %s |\n",
				i+1, len(s.FacilitySet),
				formatFloat(o.Accessibility, 4), formatFloat(o.Coverage, 4),
				formatFloat(o.Resilience, 4), formatFloat(o.Cost, 4), formatFloat(o.Equity, 4))
		}
		buf.WriteString("\n")
	}

	if res.Justification != "" {
		buf.WriteString("## Justification\n\n")
		buf.WriteString(strings.TrimSpace(res.Justification))
		buf.WriteString("\n\n")
	}
}

func (g *MarkdownGenerator) writeWaste(buf *bytes.Buffer, resp *sitingv1.WasteResponse) {
	f := resp.Fitness
	buf.WriteString("## Fitness\n\n")
	fmt.Fprintf(buf, "- **Population Coverage:** %s\n", formatFloat(f.PopulationCoverage, 4))
	fmt.Fprintf(buf, "- **Cost Efficiency:** %s\n", formatFloat(f.CostEfficiency, 4))
	fmt.Fprintf(buf, "- **Environmental Penalty:** %s\n", formatFloat(f.EnvironmentalPenalty, 4))
	fmt.Fprintf(buf, "- **Accessibility:** %s\n", formatFloat(f.Accessibility, 4))
	fmt.Fprintf(buf, "- **Total:** %s\n\n", formatFloat(f.Total, 4))

	if n := limit(len(resp.Facilities), g.cfg.MaxSitesInTable); n > 0 {
		buf.WriteString("## Facilities\n\n")
		buf.WriteString("| # | Facility | Location | Type |\n")
		buf.WriteString("|---|----------|----------|------|\n")
		for i, fac := range resp.Facilities[:n] {
			fmt.Fprintf(buf, "| %d | %s | %s | %s |\n",
				i+1, fac.ID, formatCoords(fac.Coords.Lat, fac.Coords.Lon), fac.Type)
		}
		buf.WriteString("\n")
	}
}

func (g *MarkdownGenerator) writeRoutes(buf *bytes.Buffer, plan *sitingv1.RoutePlan) {
	if len(plan.Routes) == 0 {
		return
	}

	buf.WriteString("## Routes\n\n")
	buf.WriteString("| Vehicle | Stops | Load | Distance (km) | Time (h) |\n")
	buf.WriteString("|---------|-------|------|---------------|----------|\n")
	for _, r := range plan.Routes {
		fmt.Fprintf(buf, "| %s | %d | %s | %s | %s |\n",
			r.VehicleID, len(r.Stops), formatFloat(r.Load, 2),
			formatFloat(r.TotalDistanceKm, 2), formatFloat(r.TotalTimeHours, 2))
	}
	buf.WriteString("\n")

	if len(plan.Unassigned) > 0 {
		ids := make([]string, 0, len(plan.Unassigned))
		for _, p := range plan.Unassigned {
			ids = append(ids, p.ID)
		}
		fmt.Fprintf(buf, "**Unassigned points:** %s\n\n", strings.Join(ids, ", "))
	}
}

func (g *MarkdownGenerator) writeFooter(buf *bytes.Buffer, data *Data) {
	buf.WriteString("---\n\n")
	fmt.Fprintf(buf, "*Generated by %s | %s*\n", g.author(), formatTimestamp(data.GeneratedAt))
}
