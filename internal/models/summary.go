package models

// SeriesPoint is one resolved time-series entry.
type SeriesPoint struct {
	Time  float64 `json:"time"`
	Value float64 `json:"value"`
}

// Summary is a compact, serializable description of a resolved value.
// Fields carry their statistics instead of every cell.
type Summary struct {
	Kind          Kind          `json:"kind"`
	Value         *float64      `json:"value,omitempty"`
	Min           *float64      `json:"min,omitempty"`
	Max           *float64      `json:"max,omitempty"`
	Mean          *float64      `json:"mean,omitempty"`
	Shape         *[3]int       `json:"shape,omitempty"`
	Location      *Vec3         `json:"location,omitempty"`
	InjectionTemp []SeriesPoint `json:"injection_temp,omitempty"`
	InjectionRate []SeriesPoint `json:"injection_rate,omitempty"`
	Series        []SeriesPoint `json:"series,omitempty"`
}

func ptr[T any](v T) *T { return &v }

// Summarize describes v. Unresolved ranges inside a series are skipped.
func Summarize(v Value) Summary {
	if v == nil {
		return Summary{}
	}
	s := Summary{Kind: v.Kind()}
	switch tv := v.(type) {
	case Scalar:
		s.Value = ptr(float64(tv))
	case Range:
		s.Min, s.Max = ptr(tv.Min), ptr(tv.Max)
	case *Noise:
		s.Min, s.Max = ptr(tv.Min), ptr(tv.Max)
	case *Field:
		s.Min, s.Max, s.Mean = ptr(tv.Min()), ptr(tv.Max()), ptr(tv.Mean())
		s.Shape = ptr(tv.Shape)
	case *TimeSeries:
		s.Series = seriesPoints(tv)
	case *HeatPump:
		if tv.Location != nil {
			s.Location = ptr(*tv.Location)
		}
		if ts, err := ToTimeSeries(tv.InjectionTemp, ""); err == nil {
			s.InjectionTemp = seriesPoints(ts)
		}
		if ts, err := ToTimeSeries(tv.InjectionRate, ""); err == nil {
			s.InjectionRate = seriesPoints(ts)
		}
	case *HeatPumpGroup:
		s.Value = ptr(float64(tv.Count))
	}
	return s
}

func seriesPoints(ts *TimeSeries) []SeriesPoint {
	points := make([]SeriesPoint, 0, len(ts.Entries))
	for _, e := range ts.Entries {
		if e.Range != nil {
			continue
		}
		points = append(points, SeriesPoint{Time: e.Time, Value: e.Value})
	}
	return points
}
