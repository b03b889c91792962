package placement

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/nvandessel/vampireman/internal/models"
)

// Expander replaces heat-pump groups with individually placed heat pumps.
type Expander struct {
	Grid        Grid
	MaxAttempts int
	Logger      *slog.Logger
}

// NewExpander creates an expander for grid with the default redraw budget.
func NewExpander(grid Grid, logger *slog.Logger) *Expander {
	if logger == nil {
		logger = slog.Default()
	}
	return &Expander{Grid: grid, MaxAttempts: grid.DefaultAttempts(), Logger: logger}
}

// Expand returns the heat-pump parameters with every group replaced by
// Count heat pumps named "<group>_<i>". Explicit heat pumps come first in
// their declared order and reserve their locations before any random
// placement; generated heat pumps follow in group order.
//
// For each generated heat pump the location is drawn first, then injection
// temperature and rate. On a collision only the location is redrawn.
// Locations of the returned heat pumps are in grid-index space.
// Failures are reported as *HeatPumpError.
func (e *Expander) Expand(params []models.Parameter, rng *rand.Rand) ([]models.Parameter, error) {
	out := make([]models.Parameter, 0, len(params))
	names := make(map[string]struct{}, len(params))
	occ := make(Occupancy)

	for _, p := range params {
		hp, ok := p.Value.(*models.HeatPump)
		if !ok {
			continue
		}
		if hp.Location != nil {
			if !e.Grid.Contains(*hp.Location) {
				return nil, &HeatPumpError{Name: p.Name, Err: fmt.Errorf("location %v: %w %v", *hp.Location, ErrOutsideGrid, e.Grid.Cells)}
			}
			if occ.Taken(*hp.Location) {
				return nil, &HeatPumpError{Name: p.Name, Err: fmt.Errorf("location %v: %w", *hp.Location, ErrDuplicateLocation)}
			}
			occ.Take(*hp.Location)
		}
		names[p.Name] = struct{}{}
		out = append(out, p.Clone())
	}

	for _, p := range params {
		switch v := p.Value.(type) {
		case *models.HeatPump:
			continue
		case *models.HeatPumpGroup:
			generated, err := e.expandGroup(p, v, rng, names, occ)
			if err != nil {
				return nil, err
			}
			out = append(out, generated...)
		default:
			kind := "nil"
			if p.Value != nil {
				kind = string(p.Value.Kind())
			}
			return nil, &HeatPumpError{Name: p.Name, Err: fmt.Errorf("non heat pump value of kind %s", kind)}
		}
	}

	return out, nil
}

func (e *Expander) expandGroup(p models.Parameter, g *models.HeatPumpGroup, rng *rand.Rand, names map[string]struct{}, occ Occupancy) ([]models.Parameter, error) {
	if g.Count < 1 {
		return nil, &HeatPumpError{Name: p.Name, Err: fmt.Errorf("group count must be >= 1, got %d", g.Count)}
	}

	generated := make([]models.Parameter, 0, g.Count)
	for i := 0; i < g.Count; i++ {
		name := fmt.Sprintf("%s_%d", p.Name, i)
		if _, taken := names[name]; taken {
			return nil, &HeatPumpError{Name: name, Err: ErrNamingClash}
		}

		loc := DrawLocation(rng, e.Grid.Cells)
		temp := g.InjectionTemp.Draw(rng)
		rate := g.InjectionRate.Draw(rng)

		if occ.Taken(loc) {
			var err error
			loc, err = DrawFree(rng, e.Grid.Cells, occ, nil, e.MaxAttempts)
			if err != nil {
				return nil, &HeatPumpError{Name: name, Err: err}
			}
		}
		occ.Take(loc)
		names[name] = struct{}{}

		e.Logger.Debug("generated heat pump",
			"name", name,
			"location", loc,
			"injection_temp", temp,
			"injection_rate", rate)

		generated = append(generated, models.Parameter{
			Name:         name,
			Vary:         p.Vary,
			Distribution: p.Distribution,
			Value: &models.HeatPump{
				Location:      &loc,
				InjectionTemp: models.Scalar(temp),
				InjectionRate: models.Scalar(rate),
			},
		})
	}
	return generated, nil
}
