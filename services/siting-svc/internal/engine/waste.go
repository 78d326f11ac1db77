package engine

import (
	"context"
	"math/rand"

	"siting/pkg/apperror"
	"siting/pkg/domain"
	"siting/pkg/logger"
	"siting/pkg/telemetry"
	"siting/services/siting-svc/internal/demand"
	"siting/services/siting-svc/internal/genetic"
	"siting/services/siting-svc/internal/routing"
)

// WasteInput входные данные размещения объектов обращения с отходами
type WasteInput struct {
	Bounds         domain.BoundingBox  `json:"bounds"`
	PopulationGrid []domain.DemandCell `json:"population_grid"`
	NumFacilities  int                 `json:"num_facilities"`
	// Candidates необязательные стартовые точки популяции
	Candidates []domain.Coordinates `json:"candidates,omitempty"`
	// Маршруты строятся, если задано депо и есть машины
	Depot    *domain.Coordinates `json:"depot,omitempty"`
	Vehicles []domain.Vehicle    `json:"vehicles,omitempty"`
	Points   []domain.WastePoint `json:"points,omitempty"`
	Seed     *int64              `json:"seed,omitempty"`
}

// WasteOutput результат генетического размещения
type WasteOutput struct {
	Facilities       []domain.Facility   `json:"facilities"`
	Fitness          domain.WasteFitness `json:"fitness"`
	Generations      int                 `json:"generations"`
	FitnessHistory   []float64           `json:"fitness_history"`
	StoppedOnPlateau bool                `json:"stopped_on_plateau"`
	Routes           *routing.Plan       `json:"routes,omitempty"`
	Seed             int64               `json:"seed"`
}

// Validate проверяет вход
func (in WasteInput) Validate() error {
	if err := in.Bounds.Validate(); err != nil {
		return apperror.Configuration("bounding_box", "%v", err)
	}
	if in.Bounds.IsDegenerate() {
		return apperror.Configuration("bounding_box", "waste siting needs a non-degenerate area")
	}
	if in.NumFacilities <= 0 {
		return apperror.Configuration("num_facilities", "must be positive, got %d", in.NumFacilities)
	}
	for _, cell := range in.PopulationGrid {
		if err := cell.Validate(); err != nil {
			return apperror.Configuration("population_grid", "%v", err)
		}
	}
	for i, p := range in.Candidates {
		if err := p.Validate(); err != nil {
			return apperror.Configuration("candidates", "candidate %d: %v", i, err)
		}
	}
	if in.Depot != nil {
		if err := routing.Validate(*in.Depot, in.Vehicles, in.Points); err != nil {
			return apperror.Configuration("routing", "%v", err)
		}
	}
	return nil
}

// OptimizeWaste размещает объекты генетическим алгоритмом и, если задано
// депо, строит маршруты вывоза. Отмена возвращает CANCELLED или TIMEOUT.
func (o *Optimizer) OptimizeWaste(ctx context.Context, in WasteInput) (*WasteOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	seed := o.seed(in.Seed)
	log := logger.WithContext(ctx, "component", "engine", "seed", seed)
	telemetry.SetAttributes(ctx, telemetry.RequestAttributes("waste", in.NumFacilities, len(in.PopulationGrid), 0)...)

	grid, err := demand.FromCells(in.Bounds, in.PopulationGrid)
	if err != nil {
		return nil, apperror.Configuration("population_grid", "%v", err)
	}

	sctx, end := o.stage(ctx, StageGenetic)
	res, err := genetic.NewOptimizer(o.cfg.Genetic).Optimize(sctx, genetic.Problem{
		Bounds:        in.Bounds,
		Demand:        grid,
		NumFacilities: in.NumFacilities,
		SpeedKmh:      o.cfg.accessConfig(o.cfg.Thresholds.TierTimes()).Speed(),
		Candidates:    in.Candidates,
	}, rand.New(rand.NewSource(seed)))
	end(err)
	if err != nil {
		return nil, apperror.FromContext(err)
	}

	out := &WasteOutput{
		Facilities:       res.AsFacilities("waste"),
		Fitness:          res.Fitness,
		Generations:      res.Generations,
		FitnessHistory:   res.History,
		StoppedOnPlateau: res.StoppedOnPlateau,
		Seed:             seed,
	}
	telemetry.SetAttributes(ctx, telemetry.GeneticAttributes(res.Generations, res.Fitness.Total)...)

	if in.Depot != nil {
		_, end = o.stage(ctx, StageRouting)
		plan, err := routing.Build(*in.Depot, in.Vehicles, in.Points)
		end(err)
		if err != nil {
			return nil, apperror.Configuration("routing", "%v", err)
		}
		out.Routes = plan
	}

	log.Info("waste siting finished",
		"facilities", len(out.Facilities),
		"fitness", out.Fitness.Total,
		"generations", out.Generations,
	)
	return out, nil
}

// PlanRoutes строит только маршруты вывоза
func (o *Optimizer) PlanRoutes(ctx context.Context, depot domain.Coordinates, vehicles []domain.Vehicle, points []domain.WastePoint) (*routing.Plan, error) {
	_, end := o.stage(ctx, StageRouting)
	plan, err := routing.Build(depot, vehicles, points)
	end(err)
	if err != nil {
		return nil, apperror.Configuration("routing", "%v", err)
	}
	return plan, nil
}
