package variation

import (
	"errors"
	"fmt"

	"github.com/nvandessel/vampireman/internal/constants"
	"github.com/nvandessel/vampireman/internal/models"
	"github.com/nvandessel/vampireman/internal/placement"
)

// Prepare readies ds for variation. In order it:
//   - checks the grid shape and cell resolution
//   - expands heat-pump groups into individual heat pumps
//   - normalizes heat-pump injection values to time series
//   - resolves range-valued noise frequencies into three draws
//   - converts declared heat-pump locations to physical coordinates
//
// The parameters of ds are replaced only when every step succeeds. A dataset
// is prepared once; calling Prepare again returns ErrAlreadyPrepared.
func (e *Engine) Prepare(ds *models.Dataset) error {
	if ds.Prepared() {
		return ErrAlreadyPrepared
	}
	if err := checkGrid(ds.General); err != nil {
		return err
	}
	if err := checkUniqueNames(ds.Hydrogeological, ds.HeatPumps); err != nil {
		return err
	}

	g := e.grid(ds)
	expander := placement.NewExpander(g, e.logger)
	expander.MaxAttempts = e.attempts(g)

	heatpumps, err := expander.Expand(ds.HeatPumps, ds.Rand())
	if err != nil {
		var hpErr *placement.HeatPumpError
		if errors.As(err, &hpErr) {
			return configErr(hpErr.Name, PreparationDatapoint, hpErr.Err)
		}
		return err
	}
	hydro := models.CloneParameters(ds.Hydrogeological)
	// generated names may collide with hydrogeological ones
	if err := checkUniqueNames(hydro, heatpumps); err != nil {
		return err
	}
	e.trace.Log("heatpumps_expanded", map[string]any{"count": len(heatpumps)})

	for _, p := range heatpumps {
		hp := p.Value.(*models.HeatPump)
		temp, err := models.ToTimeSeries(hp.InjectionTemp, constants.DefaultTimeUnit)
		if err != nil {
			return configErr(p.Name, PreparationDatapoint, err)
		}
		rate, err := models.ToTimeSeries(hp.InjectionRate, constants.DefaultTimeUnit)
		if err != nil {
			return configErr(p.Name, PreparationDatapoint, err)
		}
		hp.InjectionTemp, hp.InjectionRate = temp, rate
	}

	for _, p := range hydro {
		n, ok := p.Value.(*models.Noise)
		if !ok || n.Frequency.Resolved() {
			continue
		}
		r := *n.Frequency.Range
		for i := range n.Frequency.XYZ {
			n.Frequency.XYZ[i] = r.Draw(ds.Rand())
		}
		n.Frequency.Range = nil
		e.logger.Debug("resolved noise frequency", "parameter", p.Name, "frequency", n.Frequency.XYZ)
		e.trace.Log("frequency_resolved", map[string]any{"parameter": p.Name, "frequency": n.Frequency.XYZ})
	}

	for _, p := range heatpumps {
		hp := p.Value.(*models.HeatPump)
		if hp.Location == nil {
			continue
		}
		phys := placement.ToPhysical(*hp.Location, g.Resolution)
		hp.Location = &phys
	}

	ds.Hydrogeological, ds.HeatPumps = hydro, heatpumps
	ds.MarkPrepared()
	return nil
}

func checkGrid(g models.General) error {
	for i, n := range g.NumberCells {
		if n < 1 {
			return configErr("number_cells", PreparationDatapoint,
				fmt.Errorf("%w: axis %d has %d cells", ErrInvalidGrid, i, n))
		}
	}
	for i, r := range g.CellResolution {
		if !(r > 0) {
			return configErr("cell_resolution", PreparationDatapoint,
				fmt.Errorf("%w: axis %d has resolution %g", ErrInvalidGrid, i, r))
		}
	}
	return nil
}

func checkUniqueNames(groups ...[]models.Parameter) error {
	seen := make(map[string]struct{})
	for _, params := range groups {
		for _, p := range params {
			if _, dup := seen[p.Name]; dup {
				return configErr(p.Name, PreparationDatapoint, ErrDuplicateParameter)
			}
			seen[p.Name] = struct{}{}
		}
	}
	return nil
}
