package models

import (
	"fmt"
	"strings"
)

// Vary is the variation policy of a parameter.
type Vary string

const (
	VaryFixed Vary = "fixed" // Same value in every datapoint
	VaryConst Vary = "const" // Arithmetic sweep across the dataset
	VarySpace Vary = "space" // Fresh stochastic value per datapoint
)

// ParseVary maps a config string to a Vary. Empty defaults to fixed.
func ParseVary(s string) (Vary, error) {
	switch Vary(strings.ToLower(strings.TrimSpace(s))) {
	case "", VaryFixed:
		return VaryFixed, nil
	case VaryConst:
		return VaryConst, nil
	case VarySpace:
		return VarySpace, nil
	default:
		return "", fmt.Errorf("unknown vary %q (valid: fixed, const, space)", s)
	}
}

// Distribution selects linear or log10 spacing for ranges and noise.
type Distribution string

const (
	DistributionLinear Distribution = "linear"
	DistributionLog    Distribution = "log"
)

// ParseDistribution maps a config string to a Distribution. Empty defaults to linear.
func ParseDistribution(s string) (Distribution, error) {
	switch Distribution(strings.ToLower(strings.TrimSpace(s))) {
	case "", DistributionLinear:
		return DistributionLinear, nil
	case DistributionLog:
		return DistributionLog, nil
	default:
		return "", fmt.Errorf("unknown distribution %q (valid: linear, log)", s)
	}
}

// Parameter is a declared input of the variation pass.
type Parameter struct {
	Name         string
	Vary         Vary
	Distribution Distribution
	Value        Value
}

// Clone returns a deep copy of p.
func (p Parameter) Clone() Parameter {
	c := p
	if p.Value != nil {
		c.Value = p.Value.Clone()
	}
	return c
}

// CloneParameters deep-copies a parameter list.
func CloneParameters(params []Parameter) []Parameter {
	if params == nil {
		return nil
	}
	out := make([]Parameter, len(params))
	for i, p := range params {
		out[i] = p.Clone()
	}
	return out
}

// Data is the resolved value of one parameter in one datapoint.
type Data struct {
	Name  string
	Value Value
}

// DataPoint is one complete parameter assignment for a simulation run.
type DataPoint struct {
	Index int
	Data  map[string]*Data
}

// Get returns the data stored under name, or nil.
func (dp DataPoint) Get(name string) *Data {
	return dp.Data[name]
}

// HeatPumps returns the names of all heat-pump data in dp, in the given order.
func (dp DataPoint) HeatPumps(order []string) []string {
	var names []string
	for _, name := range order {
		if d, ok := dp.Data[name]; ok {
			if _, isHP := d.Value.(*HeatPump); isHP {
				names = append(names, name)
			}
		}
	}
	return names
}
