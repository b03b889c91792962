package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/nvandessel/vampireman/internal/constants"
	"github.com/nvandessel/vampireman/internal/fieldio"
	"github.com/nvandessel/vampireman/internal/models"
)

// rawConfig is the format-independent form of a config file. Values are
// loosely typed: numbers may be ints, floats or numeric strings.
type rawConfig struct {
	General         map[string]any
	Hydrogeological []rawParameter
	HeatPumps       []rawParameter
}

type rawParameter struct {
	Name         string `yaml:"-"`
	Vary         string `yaml:"vary"`
	Distribution string `yaml:"distribution"`
	Value        any    `yaml:"value"`
}

// apply decodes raw onto c. baseDir resolves relative value-file paths.
func (c *Config) apply(raw *rawConfig, baseDir string) error {
	if err := decodeGeneral(raw.General, &c.General); err != nil {
		return fmt.Errorf("general: %w", err)
	}

	for _, rp := range raw.Hydrogeological {
		p, err := c.decodeParameter(rp, baseDir)
		if err != nil {
			return fmt.Errorf("hydrogeological parameter %q: %w", rp.Name, err)
		}
		c.Hydrogeological = upsert(c.Hydrogeological, p)
	}

	for _, rp := range raw.HeatPumps {
		p, err := c.decodeParameter(rp, baseDir)
		if err != nil {
			return fmt.Errorf("heat pump parameter %q: %w", rp.Name, err)
		}
		switch p.Value.(type) {
		case *models.HeatPump, *models.HeatPumpGroup:
		default:
			return fmt.Errorf("heat pump parameter %q: value must be a heat pump or heat pump group, got %s", rp.Name, p.Value.Kind())
		}
		c.HeatPumps = append(c.HeatPumps, p)
	}
	return nil
}

// upsert replaces the parameter with p's name or appends p.
func upsert(params []models.Parameter, p models.Parameter) []models.Parameter {
	for i := range params {
		if params[i].Name == p.Name {
			params[i] = p
			return params
		}
	}
	return append(params, p)
}

func decodeGeneral(m map[string]any, g *GeneralConfig) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v := m[key]
		var err error
		switch key {
		case "number_cells":
			g.NumberCells, err = toIntTriple(v)
		case "cell_resolution":
			var r models.Vec3
			r, err = toVec3(v)
			g.CellResolution = r
		case "number_datapoints":
			g.NumberDatapoints, err = cast.ToIntE(v)
		case "shuffle_datapoints":
			g.ShuffleDatapoints, err = cast.ToBoolE(v)
		case "random_seed":
			if v == nil {
				g.RandomSeed = nil
				continue
			}
			var seed int64
			seed, err = cast.ToInt64E(v)
			g.RandomSeed = &seed
		case "output_directory":
			g.OutputDirectory, err = cast.ToStringE(v)
		case "time_to_simulate":
			g.TimeToSimulate, err = cast.ToFloat64E(v)
		case "noise_basis":
			g.NoiseBasis, err = cast.ToStringE(v)
		case "noise_octaves":
			g.NoiseOctaves, err = cast.ToIntE(v)
		case "mpirun":
			g.Mpirun, err = cast.ToBoolE(v)
		case "mpirun_procs":
			g.MpirunProcs, err = cast.ToIntE(v)
		case "mute_simulation_output":
			g.MuteSimulationOutput, err = cast.ToBoolE(v)
		case "log_level":
			g.LogLevel, err = cast.ToStringE(v)
		case "log_format":
			g.LogFormat, err = cast.ToStringE(v)
		default:
			return fmt.Errorf("unknown key %q", key)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func (c *Config) decodeParameter(rp rawParameter, baseDir string) (models.Parameter, error) {
	if rp.Name == "" {
		return models.Parameter{}, errors.New("parameter name is empty")
	}
	vary, err := models.ParseVary(rp.Vary)
	if err != nil {
		return models.Parameter{}, err
	}
	dist, err := models.ParseDistribution(rp.Distribution)
	if err != nil {
		return models.Parameter{}, err
	}

	var value models.Value
	if path, ok := valueFile(rp.Value); ok {
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		value, err = loadValueFile(rp.Name, path)
		if err == nil {
			c.sources[rp.Name] = path
		}
	} else {
		value, err = decodeValue(rp.Value)
	}
	if err != nil {
		return models.Parameter{}, err
	}

	return models.Parameter{Name: rp.Name, Vary: vary, Distribution: dist, Value: value}, nil
}

// valueFile reports whether raw is a non-numeric string, i.e. a file reference.
func valueFile(raw any) (string, bool) {
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	if _, err := cast.ToFloat64E(strings.TrimSpace(s)); err == nil {
		return "", false
	}
	return s, true
}

// loadValueFile reads a parameter value from an Arrow field file or a JSON
// document holding a value in config syntax.
func loadValueFile(name, path string) (models.Value, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".arrow":
		f, err := fieldio.Read(path, name)
		if err != nil {
			return nil, fmt.Errorf("reading value file: %w", err)
		}
		return f, nil
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading value file: %w", err)
		}
		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing value file %s: %w", path, err)
		}
		return decodeValue(raw)
	default:
		return nil, fmt.Errorf("don't know how to read value file %q (valid: .arrow, .json)", path)
	}
}

// decodeValue maps a loosely typed value onto the value variants:
//
//	10                                   -> Scalar
//	{min, max}                           -> Range
//	{frequency, min, max}                -> Noise
//	{0: v, 5: {min, max}}                -> TimeSeries
//	{location, injection_temp, ...}      -> HeatPump
//	{number, injection_temp, ...}        -> HeatPumpGroup
func decodeValue(raw any) (models.Value, error) {
	switch v := raw.(type) {
	case nil:
		return nil, errors.New("value is missing")
	case bool:
		return nil, fmt.Errorf("value %v is not a number", v)
	case []any:
		return nil, errors.New("a list is not a parameter value")
	}

	if m, ok := asMap(raw); ok {
		return decodeMapValue(m)
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return nil, fmt.Errorf("value %v: %w", raw, err)
	}
	return models.Scalar(f), nil
}

func decodeMapValue(m map[string]any) (models.Value, error) {
	has := func(k string) bool {
		_, ok := m[k]
		return ok
	}

	switch {
	case has("frequency"):
		return decodeNoise(m)
	case has("number") || has("count"):
		return decodeGroup(m)
	case has("location") || has("injection_temp") || has("injection_rate"):
		return decodeHeatPump(m)
	case has("min") || has("max"):
		return decodeRange(m)
	case len(m) > 0 && numericKeys(m):
		return decodeTimeSeries(m)
	default:
		return nil, fmt.Errorf("cannot tell value kind from keys %v", sortedKeys(m))
	}
}

func decodeRange(m map[string]any) (models.Range, error) {
	if err := onlyKeys(m, "min", "max"); err != nil {
		return models.Range{}, err
	}
	lo, err := requiredFloat(m, "min")
	if err != nil {
		return models.Range{}, err
	}
	hi, err := requiredFloat(m, "max")
	if err != nil {
		return models.Range{}, err
	}
	return models.Range{Min: lo, Max: hi}, nil
}

func decodeNoise(m map[string]any) (*models.Noise, error) {
	if err := onlyKeys(m, "frequency", "min", "max"); err != nil {
		return nil, err
	}
	n := &models.Noise{}
	var err error
	if n.Min, err = requiredFloat(m, "min"); err != nil {
		return nil, err
	}
	if n.Max, err = requiredFloat(m, "max"); err != nil {
		return nil, err
	}

	switch fv := m["frequency"].(type) {
	case []any:
		if n.Frequency.XYZ, err = toVec3(fv); err != nil {
			return nil, fmt.Errorf("frequency: %w", err)
		}
	default:
		if fm, ok := asMap(fv); ok {
			r, err := decodeRange(fm)
			if err != nil {
				return nil, fmt.Errorf("frequency: %w", err)
			}
			n.Frequency.Range = &r
			break
		}
		f, err := cast.ToFloat64E(fv)
		if err != nil {
			return nil, fmt.Errorf("frequency: %w", err)
		}
		n.Frequency.XYZ = models.Vec3{f, f, f}
	}
	return n, nil
}

func decodeHeatPump(m map[string]any) (*models.HeatPump, error) {
	if err := onlyKeys(m, "location", "injection_temp", "injection_rate"); err != nil {
		return nil, err
	}
	hp := &models.HeatPump{}
	if raw, ok := m["location"]; ok && raw != nil {
		loc, err := toVec3(raw)
		if err != nil {
			return nil, fmt.Errorf("location: %w", err)
		}
		for i, v := range loc {
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("location[%d] = %g is not a cell index", i, v)
			}
		}
		hp.Location = &loc
	}

	var err error
	if hp.InjectionTemp, err = decodeInjection(m, "injection_temp"); err != nil {
		return nil, err
	}
	if hp.InjectionRate, err = decodeInjection(m, "injection_rate"); err != nil {
		return nil, err
	}
	return hp, nil
}

// decodeInjection accepts a scalar, a range or a time series.
func decodeInjection(m map[string]any, key string) (models.Value, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil, fmt.Errorf("%s is missing", key)
	}
	v, err := decodeValue(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	switch v.(type) {
	case models.Scalar, models.Range, *models.TimeSeries:
		return v, nil
	default:
		return nil, fmt.Errorf("%s must be a number, range or time series, got %s", key, v.Kind())
	}
}

func decodeGroup(m map[string]any) (*models.HeatPumpGroup, error) {
	if err := onlyKeys(m, "number", "count", "injection_temp", "injection_rate"); err != nil {
		return nil, err
	}
	countRaw, ok := m["number"]
	if !ok {
		countRaw = m["count"]
	}
	count, err := cast.ToIntE(countRaw)
	if err != nil {
		return nil, fmt.Errorf("number: %w", err)
	}

	g := &models.HeatPumpGroup{Count: count}
	for key, dst := range map[string]*models.Range{"injection_temp": &g.InjectionTemp, "injection_rate": &g.InjectionRate} {
		rm, ok := asMap(m[key])
		if !ok {
			return nil, fmt.Errorf("%s must be a {min, max} range", key)
		}
		r, err := decodeRange(rm)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		*dst = r
	}
	return g, nil
}

func decodeTimeSeries(m map[string]any) (*models.TimeSeries, error) {
	entries := make([]models.TimeEntry, 0, len(m))
	for k, raw := range m {
		t, err := cast.ToFloat64E(k)
		if err != nil {
			return nil, fmt.Errorf("time key %q: %w", k, err)
		}
		entry := models.TimeEntry{Time: t}
		if rm, ok := asMap(raw); ok {
			r, err := decodeRange(rm)
			if err != nil {
				return nil, fmt.Errorf("time %s: %w", k, err)
			}
			entry.Range = &r
		} else {
			v, err := cast.ToFloat64E(raw)
			if err != nil {
				return nil, fmt.Errorf("time %s: %w", k, err)
			}
			entry.Value = v
		}
		entries = append(entries, entry)
	}
	return models.NewTimeSeries(constants.DefaultTimeUnit, entries...)
}

func asMap(raw any) (map[string]any, bool) {
	switch raw.(type) {
	case map[string]any, map[any]any:
		m, err := cast.ToStringMapE(raw)
		return m, err == nil
	}
	return nil, false
}

func numericKeys(m map[string]any) bool {
	for k := range m {
		if _, err := cast.ToFloat64E(k); err != nil {
			return false
		}
	}
	return true
}

func onlyKeys(m map[string]any, allowed ...string) error {
	for k := range m {
		found := false
		for _, a := range allowed {
			if k == a {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown key %q (valid: %s)", k, strings.Join(allowed, ", "))
		}
	}
	return nil
}

func requiredFloat(m map[string]any, key string) (float64, error) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return 0, fmt.Errorf("%s is missing", key)
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func toVec3(raw any) (models.Vec3, error) {
	var out models.Vec3
	s, err := cast.ToSliceE(raw)
	if err != nil {
		return out, err
	}
	if len(s) != 3 {
		return out, fmt.Errorf("need 3 values, got %d", len(s))
	}
	for i, v := range s {
		if out[i], err = cast.ToFloat64E(v); err != nil {
			return out, err
		}
	}
	return out, nil
}

func toIntTriple(raw any) ([3]int, error) {
	var out [3]int
	v, err := toVec3(raw)
	if err != nil {
		return out, err
	}
	for i, f := range v {
		if f != math.Trunc(f) {
			return out, fmt.Errorf("value %g is not an integer", f)
		}
		out[i] = int(f)
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
