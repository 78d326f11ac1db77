// Package mclp реализует жадную эвристику задачи максимального покрытия
// (Maximal Covering Location Problem).
//
// На каждом раунде выбирается кандидат с наибольшим приростом непокрытого
// населения в радиусе обслуживания. Ничьи разрешаются порядком кандидатов
// во входном списке, поэтому результат детерминирован. Остановка на
// MaxFacilities площадках или когда ни один кандидат не добавляет покрытия.
package mclp

import (
	"context"
	"fmt"

	"siting/pkg/domain"
	"siting/pkg/logger"
	"siting/pkg/parallel"
)

// Options параметры решателя
type Options struct {
	MaxFacilities   int
	ServiceRadiusKm float64
	Workers         int
	// Precovered ячейки, уже покрытые до начала отбора (например, существующими объектами)
	Precovered map[int]struct{}
}

// Validate проверяет параметры
func (o Options) Validate() error {
	if o.MaxFacilities <= 0 {
		return fmt.Errorf("max facilities must be positive, got %d", o.MaxFacilities)
	}
	if !(o.ServiceRadiusKm > 0) {
		return fmt.Errorf("service radius must be positive, got %v", o.ServiceRadiusKm)
	}
	return nil
}

// Result результат жадного отбора
type Result struct {
	Selected               []domain.SelectedSite
	TotalPopulationCovered int64
	AverageCoveragePerSite float64
	EfficiencyScore        float64
	Coverage               domain.CoverageResult
	// History доля покрытия после каждого раунда; первый элемент до отбора
	History []float64
	Reason  domain.Reason
	Rounds  int
}

// Solve выполняет жадный отбор. Контекст проверяется между раундами;
// при отмене возвращается частичный результат вместе с ошибкой контекста.
func Solve(ctx context.Context, grid CellLocator, candidates []domain.CandidateSite, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	covered := make([]bool, grid.Len())
	var coveredPop int64
	for i := range opts.Precovered {
		if i >= 0 && i < len(covered) && !covered[i] {
			covered[i] = true
			coveredPop += grid.Cell(i).Population
		}
	}

	total := grid.TotalPopulation()
	res := &Result{Selected: make([]domain.SelectedSite, 0, opts.MaxFacilities)}
	res.History = append(res.History, domain.NewCoverageResult(coveredPop, total).CoveragePercentage)

	finish := func(reason domain.Reason) *Result {
		res.Reason = reason
		res.TotalPopulationCovered = coveredPop
		res.Coverage = domain.NewCoverageResult(coveredPop, total)
		if n := len(res.Selected); n > 0 {
			var added int64
			for _, s := range res.Selected {
				added += s.AdditionalCoverage
			}
			res.AverageCoveragePerSite = float64(added) / float64(n)
		}
		if total > 0 {
			res.EfficiencyScore = float64(coveredPop) / float64(total) * 100
		}
		return res
	}

	if len(candidates) == 0 {
		return finish(domain.ReasonNoSuitableCandidates), nil
	}

	index, err := NewCoverageIndex(ctx, grid, candidates, opts.ServiceRadiusKm, opts.Workers)
	if err != nil {
		return finish(domain.ReasonCancelled), err
	}

	// Пул хранит позиции кандидатов во входном порядке
	pool := make([]int, len(candidates))
	for i := range pool {
		pool[i] = i
	}

	log := logger.WithComponent("mclp")

	for round := 0; round < opts.MaxFacilities && len(pool) > 0; round++ {
		if err := ctx.Err(); err != nil {
			return finish(domain.ReasonCancelled), err
		}

		gains, err := parallel.Map(ctx, len(pool), opts.Workers, func(i int) (int64, error) {
			return index.NewPopulation(pool[i], covered), nil
		})
		if err != nil {
			return finish(domain.ReasonCancelled), err
		}

		best := 0
		for i := 1; i < len(gains); i++ {
			if gains[i] > gains[best] {
				best = i
			}
		}
		if gains[best] == 0 {
			log.Debug("no candidate adds coverage", "round", round)
			return finish(domain.ReasonNoAdditionalCoverage), nil
		}

		cand := pool[best]
		for _, c := range index.Cells(cand) {
			covered[c] = true
		}
		coveredPop += gains[best]
		res.Rounds++

		cum := domain.NewCoverageResult(coveredPop, total)
		res.Selected = append(res.Selected, domain.SelectedSite{
			CandidateSite:                candidates[cand],
			SelectionOrder:               round + 1,
			AdditionalCoverage:           gains[best],
			CumulativeCoverage:           coveredPop,
			CumulativeCoveragePercentage: cum.CoveragePercentage,
		})
		res.History = append(res.History, cum.CoveragePercentage)

		log.Debug("site selected",
			"round", round+1,
			"site_id", candidates[cand].ID,
			"added", gains[best],
			"coverage", cum.CoveragePercentage,
		)

		pool = append(pool[:best], pool[best+1:]...)
	}

	if len(res.Selected) < opts.MaxFacilities {
		return finish(domain.ReasonNoAdditionalCoverage), nil
	}
	return finish(domain.ReasonMaxFacilities), nil
}
