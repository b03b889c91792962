package variation

import (
	"fmt"
	"math"

	"github.com/nvandessel/vampireman/internal/constants"
	"github.com/nvandessel/vampireman/internal/models"
	"github.com/nvandessel/vampireman/internal/noise"
	"github.com/nvandessel/vampireman/internal/placement"
)

// Resolve produces the value of p for datapoint index. occ holds the
// physical locations of heat pumps already placed in this datapoint; a
// heat pump drawn under the space policy avoids them and is added to occ.
func (e *Engine) Resolve(ds *models.Dataset, p models.Parameter, index int, occ placement.Occupancy) (*models.Data, error) {
	var (
		v   models.Value
		err error
	)
	switch p.Vary {
	case models.VaryFixed:
		v, err = e.resolveFixed(ds, p)
	case models.VaryConst:
		v, err = e.resolveConst(ds, p, index)
	case models.VarySpace:
		v, err = e.resolveSpace(ds, p, occ)
	default:
		err = fmt.Errorf("%w: unknown vary %q", ErrInvalidPolicy, p.Vary)
	}
	if err != nil {
		return nil, configErr(p.Name, index, err)
	}
	return &models.Data{Name: p.Name, Value: v}, nil
}

func (e *Engine) resolveFixed(ds *models.Dataset, p models.Parameter) (models.Value, error) {
	switch v := p.Value.(type) {
	case models.Scalar, *models.Field:
		return v.Clone(), nil
	case *models.TimeSeries:
		ts := v.Clone().(*models.TimeSeries)
		ts.ResolveRanges(ds.Rand())
		return ts, nil
	case *models.HeatPump:
		if v.Location == nil {
			return nil, ErrMissingLocation
		}
		return resolveInjection(ds, v)
	case models.Range:
		return nil, fmt.Errorf("%w: fixed range, use vary const for a sweep", ErrInvalidPolicy)
	case *models.Noise:
		return nil, fmt.Errorf("%w: fixed noise, use vary space for a field", ErrInvalidPolicy)
	default:
		return nil, unsupported(p)
	}
}

func (e *Engine) resolveConst(ds *models.Dataset, p models.Parameter, index int) (models.Value, error) {
	r, ok := p.Value.(models.Range)
	if !ok {
		return nil, fmt.Errorf("%w: const needs a range, got %s", ErrInvalidPolicy, kindOf(p.Value))
	}
	v, err := Sweep(r, p.Distribution, ds.General.NumberDatapoints, index)
	if err != nil {
		return nil, err
	}
	return models.Scalar(v), nil
}

func (e *Engine) resolveSpace(ds *models.Dataset, p models.Parameter, occ placement.Occupancy) (models.Value, error) {
	switch v := p.Value.(type) {
	case *models.Noise:
		f, err := e.synth.Synthesize(ds.Rand(), ds.General.NumberCells, v, p.Distribution)
		if err != nil {
			return nil, err
		}
		if p.Name == constants.HydraulicHeadParameter {
			f = noise.PressureFromGradient(f, ds.General.CellResolution)
		}
		return f, nil
	case *models.HeatPump:
		hp, err := resolveInjection(ds, v)
		if err != nil {
			return nil, err
		}
		g := e.grid(ds)
		toPhysical := func(loc models.Vec3) models.Vec3 { return placement.ToPhysical(loc, g.Resolution) }
		loc, err := placement.DrawFree(ds.Rand(), g.Cells, occ, toPhysical, e.attempts(g))
		if err != nil {
			return nil, err
		}
		phys := toPhysical(loc)
		occ.Take(phys)
		hp.Location = &phys
		return hp, nil
	case models.Scalar:
		return nil, fmt.Errorf("%w: space scalar, use vary fixed", ErrInvalidPolicy)
	case models.Range:
		return nil, fmt.Errorf("%w: space range, use vary const or a noise value", ErrInvalidPolicy)
	default:
		return nil, unsupported(p)
	}
}

// resolveInjection copies hp and draws every range entry of its injection
// series, temperature first.
func resolveInjection(ds *models.Dataset, hp *models.HeatPump) (*models.HeatPump, error) {
	c := hp.Clone().(*models.HeatPump)
	temp, err := models.ToTimeSeries(c.InjectionTemp, constants.DefaultTimeUnit)
	if err != nil {
		return nil, fmt.Errorf("injection temperature: %w", err)
	}
	rate, err := models.ToTimeSeries(c.InjectionRate, constants.DefaultTimeUnit)
	if err != nil {
		return nil, fmt.Errorf("injection rate: %w", err)
	}
	temp.ResolveRanges(ds.Rand())
	rate.ResolveRanges(ds.Rand())
	c.InjectionTemp, c.InjectionRate = temp, rate
	return c, nil
}

// Sweep returns the value of a const range at index i of n datapoints:
// min + step*i with step = (max-min)/(n-1), computed in log10 space for the
// log distribution. Index 0 yields min and index n-1 yields max exactly;
// n == 1 yields min.
func Sweep(r models.Range, dist models.Distribution, n, i int) (float64, error) {
	if n < 1 || i < 0 || i >= n {
		return 0, fmt.Errorf("sweep index %d out of range for %d datapoints", i, n)
	}
	if dist == models.DistributionLog && (r.Min <= 0 || r.Max <= 0) {
		return 0, fmt.Errorf("%w: log range [%g, %g] needs positive bounds", ErrInvalidPolicy, r.Min, r.Max)
	}
	switch {
	case i == 0:
		return r.Min, nil
	case i == n-1:
		return r.Max, nil
	}

	lo, hi := r.Min, r.Max
	if dist == models.DistributionLog {
		lo, hi = math.Log10(lo), math.Log10(hi)
	}
	step := (hi - lo) / float64(n-1)
	v := lo + step*float64(i)
	if dist == models.DistributionLog {
		v = math.Pow(10, v)
	}
	return v, nil
}

func unsupported(p models.Parameter) error {
	return fmt.Errorf("%w: %s under vary %s", ErrUnsupported, kindOf(p.Value), p.Vary)
}

func kindOf(v models.Value) models.Kind {
	if v == nil {
		return "nil"
	}
	return v.Kind()
}
