// Package store indexes generated datasets so runs can be listed and
// inspected without reading every datapoint directory.
package store

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/nvandessel/vampireman/internal/constants"
	"github.com/nvandessel/vampireman/internal/manifest"
	"github.com/nvandessel/vampireman/internal/models"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Run statuses, advanced as stages complete.
const (
	StatusVaried    = "varied"
	StatusRendered  = "rendered"
	StatusSimulated = "simulated"
)

// Run is one indexed dataset.
type Run struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"created_at"`
	Seed             int64     `json:"seed"`
	OutputDir        string    `json:"output_dir"`
	ConfigPath       string    `json:"config_path,omitempty"`
	NumberCells      [3]int    `json:"number_cells"`
	NumberDatapoints int       `json:"number_datapoints"`
	Status           string    `json:"status"`
}

// DatasetStore records runs and their resolved values.
type DatasetStore interface {
	// RecordRun stores the manifest of a varied dataset.
	RecordRun(ctx context.Context, m *manifest.Manifest, outputDir, configPath string) error

	// SetStatus updates the status of a run.
	SetStatus(ctx context.Context, runID, status string) error

	// ListRuns returns all runs, newest first.
	ListRuns(ctx context.Context) ([]Run, error)

	// GetRun returns a run by id or by unique id prefix.
	GetRun(ctx context.Context, id string) (*Run, error)

	// Parameters returns the parameters of a run in resolution order.
	Parameters(ctx context.Context, runID string) ([]manifest.ParameterInfo, error)

	// DatapointValues returns the value summaries of one datapoint.
	DatapointValues(ctx context.Context, runID string, datapoint int) (map[string]models.Summary, error)

	// ParameterValues returns one parameter's summary for every datapoint.
	ParameterValues(ctx context.Context, runID, parameter string) ([]models.Summary, error)

	Close() error
}

// IndexPath returns the path of the dataset index below outputDir.
func IndexPath(outputDir string) string {
	return filepath.Join(outputDir, constants.IndexFile)
}
