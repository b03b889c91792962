// Package manifest records what a dataset run produced: the seed, the
// parameters and a summary of every datapoint. The manifest lives next to
// the datapoint directories as dataset.vmp.
package manifest

import (
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/vampireman/internal/models"
)

// Manifest is the payload of a manifest file.
type Manifest struct {
	Version    int               `json:"version"`
	RunID      string            `json:"run_id"`
	CreatedAt  time.Time         `json:"created_at"`
	Seed       int64             `json:"seed"`
	General    models.General    `json:"general"`
	Parameters []ParameterInfo   `json:"parameters"`
	Datapoints []Datapoint       `json:"datapoints"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ParameterInfo describes one parameter after preparation.
type ParameterInfo struct {
	Name         string              `json:"name"`
	Section      string              `json:"section"`
	Vary         models.Vary         `json:"vary"`
	Distribution models.Distribution `json:"distribution"`
	Kind         models.Kind         `json:"kind"`
}

// Datapoint summarizes the resolved values of one datapoint.
type Datapoint struct {
	Index  int                       `json:"index"`
	Values map[string]models.Summary `json:"values"`
}

// Sections of ParameterInfo.
const (
	SectionHydrogeological = "hydrogeological"
	SectionHeatPump        = "heatpump"
)

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Build summarizes a varied dataset.
func Build(ds *models.Dataset, runID string, createdAt time.Time) *Manifest {
	m := &Manifest{
		Version:    FormatVersion,
		RunID:      runID,
		CreatedAt:  createdAt,
		Seed:       ds.Seed(),
		General:    ds.General,
		Datapoints: make([]Datapoint, 0, len(ds.Datapoints)),
	}

	for _, p := range ds.Hydrogeological {
		m.Parameters = append(m.Parameters, info(p, SectionHydrogeological))
	}
	for _, p := range ds.HeatPumps {
		m.Parameters = append(m.Parameters, info(p, SectionHeatPump))
	}

	for _, dp := range ds.Datapoints {
		d := Datapoint{Index: dp.Index, Values: make(map[string]models.Summary, len(dp.Data))}
		for name, data := range dp.Data {
			d.Values[name] = models.Summarize(data.Value)
		}
		m.Datapoints = append(m.Datapoints, d)
	}
	return m
}

func info(p models.Parameter, section string) ParameterInfo {
	pi := ParameterInfo{Name: p.Name, Section: section, Vary: p.Vary, Distribution: p.Distribution}
	if p.Value != nil {
		pi.Kind = p.Value.Kind()
	}
	return pi
}
