package config

import (
	"fmt"

	"github.com/nvandessel/vampireman/internal/models"
	"github.com/nvandessel/vampireman/internal/placement"
	"github.com/nvandessel/vampireman/internal/sanitize"
)

// validateParameters checks names, vary/value combinations that can be
// rejected up front, log bounds and declared heat-pump locations.
func (c *Config) validateParameters() error {
	seen := make(map[string]string)
	check := func(section string, p models.Parameter) error {
		if err := sanitize.CheckName(p.Name); err != nil {
			return fmt.Errorf("%s: %w", section, err)
		}
		if prev, dup := seen[p.Name]; dup {
			return fmt.Errorf("parameter %q is declared in both %s and %s", p.Name, prev, section)
		}
		seen[p.Name] = section
		if p.Value == nil {
			return fmt.Errorf("parameter %q has no value", p.Name)
		}
		return validateValue(p)
	}

	for _, p := range c.Hydrogeological {
		if err := check("hydrogeological_parameters", p); err != nil {
			return err
		}
		switch v := p.Value.(type) {
		case *models.HeatPump, *models.HeatPumpGroup:
			return fmt.Errorf("parameter %q: heat pumps belong in heatpump_parameters", p.Name)
		case *models.Field:
			if v.Shape != c.General.NumberCells {
				return fmt.Errorf("parameter %q: field shape %v does not match number_cells %v", p.Name, v.Shape, c.General.NumberCells)
			}
		}
	}

	grid := placement.Grid{Cells: c.General.NumberCells, Resolution: c.General.CellResolution}
	occ := make(placement.Occupancy)
	for _, p := range c.HeatPumps {
		if err := check("heatpump_parameters", p); err != nil {
			return err
		}
		switch v := p.Value.(type) {
		case *models.HeatPump:
			if v.Location == nil {
				if p.Vary != models.VarySpace {
					return fmt.Errorf("heat pump %q has no location; declare one or use vary space", p.Name)
				}
				continue
			}
			if !grid.Contains(*v.Location) {
				return fmt.Errorf("heat pump %q location %v is outside the %v grid", p.Name, *v.Location, grid.Cells)
			}
			if occ.Taken(*v.Location) {
				return fmt.Errorf("heat pump %q location %v is already taken", p.Name, *v.Location)
			}
			occ.Take(*v.Location)
		case *models.HeatPumpGroup:
			if v.Count < 1 {
				return fmt.Errorf("heat pump group %q: number must be >= 1, got %d", p.Name, v.Count)
			}
		default:
			return fmt.Errorf("parameter %q: heatpump_parameters only hold heat pumps and groups", p.Name)
		}
	}
	return nil
}

func validateValue(p models.Parameter) error {
	logBounds := func(lo, hi float64) error {
		if p.Distribution == models.DistributionLog && (lo <= 0 || hi <= 0) {
			return fmt.Errorf("parameter %q: log distribution needs positive bounds, got [%g, %g]", p.Name, lo, hi)
		}
		return nil
	}

	switch v := p.Value.(type) {
	case models.Range:
		if p.Vary != models.VaryConst {
			return fmt.Errorf("parameter %q: a range needs vary const", p.Name)
		}
		return logBounds(v.Min, v.Max)
	case *models.Noise:
		if p.Vary != models.VarySpace {
			return fmt.Errorf("parameter %q: a noise value needs vary space", p.Name)
		}
		if v.Min == v.Max {
			return fmt.Errorf("parameter %q: noise min and max are equal (%g); use a fixed value", p.Name, v.Min)
		}
		if r := v.Frequency.Range; r != nil && (r.Min <= 0 || r.Max <= 0) {
			return fmt.Errorf("parameter %q: frequency range must be positive", p.Name)
		}
		return logBounds(v.Min, v.Max)
	case models.Scalar, *models.Field, *models.TimeSeries:
		if p.Vary != models.VaryFixed {
			return fmt.Errorf("parameter %q: a %s value needs vary fixed", p.Name, v.Kind())
		}
	}
	return nil
}
