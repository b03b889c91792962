package models

import (
	"fmt"
	"math/rand"
	"sort"
)

// Kind identifies which variant a Value holds.
type Kind string

const (
	KindScalar        Kind = "scalar"
	KindRange         Kind = "range"
	KindNoise         Kind = "noise"
	KindTimeSeries    Kind = "time_series"
	KindHeatPump      Kind = "heatpump"
	KindHeatPumpGroup Kind = "heatpump_group"
	KindField         Kind = "field"
)

// Value is the closed set of parameter and data values. The concrete types are
// Scalar, Range, *Noise, *TimeSeries, *HeatPump, *HeatPumpGroup and *Field;
// callers dispatch on them with a type switch.
//
// Clone always returns a deep copy. Two Data values never share backing memory.
type Value interface {
	Kind() Kind
	Clone() Value
	isValue()
}

// Vec3 is an (x, y, z) triple.
type Vec3 [3]float64

// Scalar is a single number.
type Scalar float64

func (Scalar) Kind() Kind     { return KindScalar }
func (s Scalar) Clone() Value { return s }
func (Scalar) isValue()       {}

// Range is a closed interval. Under the const policy it defines a sweep,
// inside time series and groups it defines a uniform draw.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

func (Range) Kind() Kind     { return KindRange }
func (r Range) Clone() Value { return r }
func (Range) isValue()       {}

// Draw returns a uniform sample from the interval using rng.
// The sample is computed as max - u*(max-min), u in [0, 1).
func (r Range) Draw(rng *rand.Rand) float64 {
	return r.Max - rng.Float64()*(r.Max-r.Min)
}

// Frequency is either fixed per axis or a Range that is resolved into three
// draws once per run.
type Frequency struct {
	XYZ   Vec3
	Range *Range
}

// Resolved reports whether the frequency holds concrete per-axis values.
func (f Frequency) Resolved() bool {
	return f.Range == nil
}

// Noise describes a stochastic 3D field spanning [Min, Max].
type Noise struct {
	Frequency Frequency
	Min       float64
	Max       float64
}

func (*Noise) Kind() Kind { return KindNoise }
func (*Noise) isValue()   {}

func (n *Noise) Clone() Value {
	c := *n
	if n.Frequency.Range != nil {
		r := *n.Frequency.Range
		c.Frequency.Range = &r
	}
	return &c
}

// TimeEntry is one point of a time series. A non-nil Range marks an entry
// that still has to be drawn.
type TimeEntry struct {
	Time  float64
	Value float64
	Range *Range
}

// TimeSeries maps non-negative times to values. Entries are kept sorted by Time.
type TimeSeries struct {
	Unit    string
	Entries []TimeEntry
}

func (*TimeSeries) Kind() Kind { return KindTimeSeries }
func (*TimeSeries) isValue()   {}

func (ts *TimeSeries) Clone() Value {
	c := &TimeSeries{Unit: ts.Unit, Entries: make([]TimeEntry, len(ts.Entries))}
	for i, e := range ts.Entries {
		c.Entries[i] = e
		if e.Range != nil {
			r := *e.Range
			c.Entries[i].Range = &r
		}
	}
	return c
}

// NewTimeSeries builds a series from the given entries, sorted by time.
// Duplicate times are rejected.
func NewTimeSeries(unit string, entries ...TimeEntry) (*TimeSeries, error) {
	ts := &TimeSeries{Unit: unit, Entries: append([]TimeEntry(nil), entries...)}
	sort.SliceStable(ts.Entries, func(i, j int) bool { return ts.Entries[i].Time < ts.Entries[j].Time })
	for i, e := range ts.Entries {
		if e.Time < 0 {
			return nil, fmt.Errorf("time series key %g is negative", e.Time)
		}
		if i > 0 && ts.Entries[i-1].Time == e.Time {
			return nil, fmt.Errorf("time series key %g is duplicated", e.Time)
		}
	}
	return ts, nil
}

// Get returns the concrete value stored at time t.
func (ts *TimeSeries) Get(t float64) (float64, bool) {
	for _, e := range ts.Entries {
		if e.Time == t && e.Range == nil {
			return e.Value, true
		}
	}
	return 0, false
}

// Resolved reports whether every entry holds a concrete value.
func (ts *TimeSeries) Resolved() bool {
	for _, e := range ts.Entries {
		if e.Range != nil {
			return false
		}
	}
	return true
}

// ResolveRanges replaces every Range entry with one draw from rng, in time order.
func (ts *TimeSeries) ResolveRanges(rng *rand.Rand) {
	for i := range ts.Entries {
		if r := ts.Entries[i].Range; r != nil {
			ts.Entries[i].Value = r.Draw(rng)
			ts.Entries[i].Range = nil
		}
	}
}

// ToTimeSeries normalizes a Scalar or Range into a single-entry series at
// time 0. A *TimeSeries is returned as a copy.
func ToTimeSeries(v Value, unit string) (*TimeSeries, error) {
	switch tv := v.(type) {
	case Scalar:
		return &TimeSeries{Unit: unit, Entries: []TimeEntry{{Time: 0, Value: float64(tv)}}}, nil
	case Range:
		r := tv
		return &TimeSeries{Unit: unit, Entries: []TimeEntry{{Time: 0, Range: &r}}}, nil
	case *TimeSeries:
		return tv.Clone().(*TimeSeries), nil
	case nil:
		return nil, fmt.Errorf("missing value")
	default:
		return nil, fmt.Errorf("cannot use %s as a time series", v.Kind())
	}
}

// HeatPump is a single injector. Location is in grid-index space until the
// preparation pass converts it; a nil Location is drawn per datapoint.
// InjectionTemp and InjectionRate are Scalar, Range or *TimeSeries on input
// and always *TimeSeries once normalized.
type HeatPump struct {
	Location      *Vec3
	InjectionTemp Value
	InjectionRate Value
}

func (*HeatPump) Kind() Kind { return KindHeatPump }
func (*HeatPump) isValue()   {}

func (hp *HeatPump) Clone() Value {
	c := &HeatPump{}
	if hp.Location != nil {
		loc := *hp.Location
		c.Location = &loc
	}
	if hp.InjectionTemp != nil {
		c.InjectionTemp = hp.InjectionTemp.Clone()
	}
	if hp.InjectionRate != nil {
		c.InjectionRate = hp.InjectionRate.Clone()
	}
	return c
}

// TempSeries returns the normalized injection temperature, or nil.
func (hp *HeatPump) TempSeries() *TimeSeries {
	ts, _ := hp.InjectionTemp.(*TimeSeries)
	return ts
}

// RateSeries returns the normalized injection rate, or nil.
func (hp *HeatPump) RateSeries() *TimeSeries {
	ts, _ := hp.InjectionRate.(*TimeSeries)
	return ts
}

// HeatPumpGroup is a factory for Count anonymous heat pumps.
type HeatPumpGroup struct {
	Count         int
	InjectionTemp Range
	InjectionRate Range
}

func (*HeatPumpGroup) Kind() Kind { return KindHeatPumpGroup }
func (*HeatPumpGroup) isValue()   {}

func (g *HeatPumpGroup) Clone() Value {
	c := *g
	return &c
}
