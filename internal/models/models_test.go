package models

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVary(t *testing.T) {
	tests := []struct {
		input   string
		want    Vary
		wantErr bool
	}{
		{"fixed", VaryFixed, false},
		{"", VaryFixed, false},
		{"CONST", VaryConst, false},
		{" space ", VarySpace, false},
		{"perlin", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseVary(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDistribution(t *testing.T) {
	got, err := ParseDistribution("")
	require.NoError(t, err)
	assert.Equal(t, DistributionLinear, got)

	got, err = ParseDistribution("Log")
	require.NoError(t, err)
	assert.Equal(t, DistributionLog, got)

	_, err = ParseDistribution("gaussian")
	assert.Error(t, err)
}

func TestRange_Draw(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	ref := rand.New(rand.NewSource(1))
	r := Range{Min: 2, Max: 6}

	for i := 0; i < 100; i++ {
		got := r.Draw(rng)
		assert.Equal(t, 6-ref.Float64()*4, got)
		assert.True(t, got > 2 && got <= 6)
	}
}

func TestNewTimeSeries(t *testing.T) {
	ts, err := NewTimeSeries("year",
		TimeEntry{Time: 10, Value: 3},
		TimeEntry{Time: 0, Value: 1},
		TimeEntry{Time: 2.5, Range: &Range{Min: 1, Max: 2}},
	)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2.5, 10}, []float64{ts.Entries[0].Time, ts.Entries[1].Time, ts.Entries[2].Time})
	assert.False(t, ts.Resolved())

	_, ok := ts.Get(2.5)
	assert.False(t, ok, "unresolved entries have no value")

	ts.ResolveRanges(rand.New(rand.NewSource(3)))
	assert.True(t, ts.Resolved())
	v, ok := ts.Get(2.5)
	assert.True(t, ok)
	assert.True(t, v > 1 && v <= 2)

	_, err = NewTimeSeries("year", TimeEntry{Time: 1}, TimeEntry{Time: 1})
	assert.Error(t, err)

	_, err = NewTimeSeries("year", TimeEntry{Time: -1})
	assert.Error(t, err)
}

func TestToTimeSeries(t *testing.T) {
	ts, err := ToTimeSeries(Scalar(10), "year")
	require.NoError(t, err)
	require.Len(t, ts.Entries, 1)
	assert.Equal(t, TimeEntry{Time: 0, Value: 10}, ts.Entries[0])

	ts, err = ToTimeSeries(Range{Min: 1, Max: 2}, "year")
	require.NoError(t, err)
	require.NotNil(t, ts.Entries[0].Range)
	assert.Equal(t, Range{Min: 1, Max: 2}, *ts.Entries[0].Range)

	orig := &TimeSeries{Unit: "day", Entries: []TimeEntry{{Time: 3, Value: 4}}}
	ts, err = ToTimeSeries(orig, "year")
	require.NoError(t, err)
	ts.Entries[0].Value = 99
	assert.Equal(t, 4.0, orig.Entries[0].Value)
	assert.Equal(t, "day", ts.Unit)

	_, err = ToTimeSeries(nil, "year")
	assert.Error(t, err)
	_, err = ToTimeSeries(&Noise{}, "year")
	assert.Error(t, err)
}

func TestClone_Deep(t *testing.T) {
	loc := Vec3{1, 2, 3}
	series := &TimeSeries{Entries: []TimeEntry{{Time: 0, Range: &Range{Min: 1, Max: 2}}}}
	hp := &HeatPump{Location: &loc, InjectionTemp: series, InjectionRate: Scalar(1)}

	c := hp.Clone().(*HeatPump)
	c.Location[0] = 100
	c.TempSeries().Entries[0].Range.Max = 50

	assert.Equal(t, 1.0, loc[0])
	assert.Equal(t, 2.0, series.Entries[0].Range.Max)

	n := &Noise{Frequency: Frequency{Range: &Range{Min: 1, Max: 2}}, Min: 0, Max: 1}
	nc := n.Clone().(*Noise)
	nc.Frequency.Range.Min = 9
	assert.Equal(t, 1.0, n.Frequency.Range.Min)

	f := NewConstantField([3]int{2, 1, 1}, 3)
	fc := f.Clone().(*Field)
	fc.Values[0] = 0
	assert.Equal(t, 3.0, f.Values[0])

	p := Parameter{Name: "hp", Value: hp}
	pc := p.Clone()
	pc.Value.(*HeatPump).InjectionRate = Scalar(7)
	assert.Equal(t, Scalar(1), hp.InjectionRate)
}

func TestField(t *testing.T) {
	f := NewField([3]int{2, 3, 2})
	require.NoError(t, f.Validate())
	assert.Equal(t, 12, f.Len())

	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 2; k++ {
				f.Set(i, j, k, float64(100*i+10*j+k))
			}
		}
	}
	assert.Equal(t, 121.0, f.At(1, 2, 1))
	assert.Equal(t, 0.0, f.Min())
	assert.Equal(t, 121.0, f.Max())

	// x varies fastest, then y, then z
	fo := f.FortranOrder()
	assert.Equal(t, []float64{0, 100, 10, 110, 20, 120}, fo[:6])
	assert.Equal(t, 1.0, fo[6])

	bad := &Field{Shape: [3]int{2, 2, 1}, Values: []float64{1}}
	assert.Error(t, bad.Validate())
	assert.Error(t, NewField([3]int{0, 1, 1}).Validate())
}

func TestDataset(t *testing.T) {
	seed := int64(17)
	hydro := []Parameter{{Name: "temperature", Vary: VaryFixed, Value: Scalar(10.6)}}
	hps := []Parameter{{Name: "hp1", Vary: VaryFixed, Value: &HeatPump{Location: &Vec3{1, 1, 1}}}}

	ds := NewDataset(General{NumberDatapoints: 2, Seed: &seed}, hydro, hps)
	assert.Equal(t, int64(17), ds.Seed())
	assert.Equal(t, []string{"temperature", "hp1"}, ds.ParameterNames())

	p, ok := ds.Parameter("hp1")
	require.True(t, ok)
	assert.Equal(t, KindHeatPump, p.Value.Kind())

	_, ok = ds.Parameter("missing")
	assert.False(t, ok)

	// parameters are copied on construction
	hydro[0].Value = Scalar(0)
	assert.Equal(t, Scalar(10.6), ds.Hydrogeological[0].Value)

	ref := rand.New(rand.NewSource(17))
	assert.Equal(t, ref.Float64(), ds.Rand().Float64())
}

func TestSummarize(t *testing.T) {
	s := Summarize(Scalar(4))
	require.NotNil(t, s.Value)
	assert.Equal(t, 4.0, *s.Value)

	f := NewConstantField([3]int{2, 2, 1}, 3)
	f.Values[0] = 1
	s = Summarize(f)
	assert.Equal(t, KindField, s.Kind)
	assert.Equal(t, 1.0, *s.Min)
	assert.Equal(t, 3.0, *s.Max)
	assert.Equal(t, 2.5, *s.Mean)

	hp := &HeatPump{
		Location:      &Vec3{2.5, 2.5, 2.5},
		InjectionTemp: Scalar(12),
		InjectionRate: &TimeSeries{Entries: []TimeEntry{{Time: 0, Value: 1}, {Time: 5, Value: 2}}},
	}
	s = Summarize(hp)
	assert.Equal(t, Vec3{2.5, 2.5, 2.5}, *s.Location)
	assert.Equal(t, []SeriesPoint{{Time: 0, Value: 12}}, s.InjectionTemp)
	assert.Len(t, s.InjectionRate, 2)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestDataPoint_HeatPumps(t *testing.T) {
	dp := DataPoint{Data: map[string]*Data{
		"temperature": {Name: "temperature", Value: Scalar(1)},
		"b":           {Name: "b", Value: &HeatPump{}},
		"a":           {Name: "a", Value: &HeatPump{}},
	}}
	assert.Equal(t, []string{"b", "a"}, dp.HeatPumps([]string{"temperature", "b", "a", "missing"}))
}
