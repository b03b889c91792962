package models

import (
	"math/rand"
	"time"
)

// General holds the dataset-wide settings the variation pass depends on.
type General struct {
	NumberCells       [3]int `json:"number_cells"`
	CellResolution    Vec3   `json:"cell_resolution"`
	NumberDatapoints  int    `json:"number_datapoints"`
	ShuffleDatapoints bool   `json:"shuffle_datapoints"`
	// Seed is nil for a nondeterministic run.
	Seed *int64 `json:"random_seed,omitempty"`
}

// Dataset is the top-level state of one variation pass. It owns the single
// random source every randomized step draws from.
type Dataset struct {
	General         General
	Hydrogeological []Parameter
	HeatPumps       []Parameter
	Datapoints      []DataPoint

	seed     int64
	rng      *rand.Rand
	prepared bool
}

// NewDataset creates a dataset from deep copies of the given parameters.
// When general.Seed is nil a seed is taken from the clock; Seed() reports it.
func NewDataset(general General, hydrogeological, heatpumps []Parameter) *Dataset {
	seed := time.Now().UnixNano()
	if general.Seed != nil {
		seed = *general.Seed
	}
	return &Dataset{
		General:         general,
		Hydrogeological: CloneParameters(hydrogeological),
		HeatPumps:       CloneParameters(heatpumps),
		seed:            seed,
		rng:             rand.New(rand.NewSource(seed)),
	}
}

// Rand returns the dataset's shared random source. It is not safe for
// concurrent use.
func (d *Dataset) Rand() *rand.Rand {
	return d.rng
}

// Seed returns the seed the random source was created with.
func (d *Dataset) Seed() int64 {
	return d.seed
}

// Prepared reports whether MarkPrepared was called.
func (d *Dataset) Prepared() bool {
	return d.prepared
}

// MarkPrepared records that groups were expanded and locations converted, so
// the parameters must not be prepared again.
func (d *Dataset) MarkPrepared() {
	d.prepared = true
}

// Parameters returns hydrogeological parameters followed by heat pumps.
func (d *Dataset) Parameters() []Parameter {
	out := make([]Parameter, 0, len(d.Hydrogeological)+len(d.HeatPumps))
	out = append(out, d.Hydrogeological...)
	return append(out, d.HeatPumps...)
}

// ParameterNames returns parameter names in resolution order.
func (d *Dataset) ParameterNames() []string {
	params := d.Parameters()
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return names
}

// Parameter looks up a parameter by name.
func (d *Dataset) Parameter(name string) (Parameter, bool) {
	for _, p := range d.Parameters() {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}
