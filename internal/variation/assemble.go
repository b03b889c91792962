package variation

import (
	"context"
	"fmt"
	"math/rand"
	"slices"

	"github.com/nvandessel/vampireman/internal/logging"
	"github.com/nvandessel/vampireman/internal/models"
	"github.com/nvandessel/vampireman/internal/placement"
)

// Vary resolves every parameter for every datapoint and, if the dataset asks
// for it, shuffles the result. ds must have been prepared. On error
// ds.Datapoints is left empty.
func (e *Engine) Vary(ds *models.Dataset) error {
	if !ds.Prepared() {
		return ErrNotPrepared
	}
	n := ds.General.NumberDatapoints
	if n < 1 {
		return fmt.Errorf("number of datapoints must be >= 1, got %d", n)
	}

	params := ds.Parameters()
	reserved := reservedLocations(params)
	ctx := context.Background()
	tracing := e.trace.Enabled() || e.logger.Enabled(ctx, logging.LevelTrace)

	ds.Datapoints = make([]models.DataPoint, 0, n)
	for i := 0; i < n; i++ {
		occ := make(placement.Occupancy, len(reserved))
		for loc := range reserved {
			occ.Take(loc)
		}

		dp := models.DataPoint{Index: i, Data: make(map[string]*models.Data, len(params))}
		for _, p := range params {
			d, err := e.Resolve(ds, p, i, occ)
			if err != nil {
				ds.Datapoints = nil
				return err
			}
			dp.Data[p.Name] = d

			if tracing {
				summary := models.Summarize(d.Value)
				e.logger.Log(ctx, logging.LevelTrace, "resolved parameter",
					"datapoint", i, "parameter", p.Name, "kind", summary.Kind)
				e.trace.Log("resolved", map[string]any{"datapoint": i, "parameter": p.Name, "value": summary})
			}
		}
		ds.Datapoints = append(ds.Datapoints, dp)
		e.logger.Debug("assembled datapoint", "index", i)
	}

	if ds.General.ShuffleDatapoints {
		Shuffle(ds)
		e.logger.Debug("shuffled datapoints", "parameters", len(params))
		e.trace.Log("shuffled", map[string]any{"parameters": ds.ParameterNames()})
	}
	return nil
}

// Shuffle permutes, in parameter order, which datapoint holds which Data.
// Every parameter gets its own permutation, except heat pumps placed under
// the space policy: their locations were drawn to avoid each other within a
// datapoint, so they share one permutation, drawn at the first of them.
// Data values themselves are not modified and datapoint indices stay in place.
func Shuffle(ds *models.Dataset) {
	n := len(ds.Datapoints)
	var (
		joint     []string
		jointPerm []int
	)
	for _, p := range ds.Parameters() {
		if _, ok := p.Value.(*models.HeatPump); ok && p.Vary == models.VarySpace {
			joint = append(joint, p.Name)
		}
	}

	for _, name := range ds.ParameterNames() {
		if slices.Contains(joint, name) {
			if jointPerm == nil {
				jointPerm = permutation(ds.Rand(), n)
				for _, jn := range joint {
					applyPermutation(ds.Datapoints, jn, jointPerm)
				}
			}
			continue
		}
		applyPermutation(ds.Datapoints, name, permutation(ds.Rand(), n))
	}
}

// permutation returns a Fisher-Yates shuffle of 0..n-1.
func permutation(rng *rand.Rand, n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	rng.Shuffle(n, func(i, j int) {
		perm[i], perm[j] = perm[j], perm[i]
	})
	return perm
}

// applyPermutation moves the Data at datapoint perm[i] into datapoint i.
func applyPermutation(dps []models.DataPoint, name string, perm []int) {
	column := make([]*models.Data, len(dps))
	for i, src := range perm {
		column[i] = dps[src].Data[name]
	}
	for i, dp := range dps {
		dp.Data[name] = column[i]
	}
}

// reservedLocations collects the physical locations of heat pumps that keep
// their declared location in every datapoint.
func reservedLocations(params []models.Parameter) placement.Occupancy {
	occ := make(placement.Occupancy)
	for _, p := range params {
		hp, ok := p.Value.(*models.HeatPump)
		if !ok || hp.Location == nil || p.Vary == models.VarySpace {
			continue
		}
		occ.Take(*hp.Location)
	}
	return occ
}
