// Package variation turns declared parameters into a dataset of fully
// resolved datapoints.
//
// A pass has two phases. Prepare runs once: it expands heat-pump groups,
// normalizes injection values to time series, resolves randomized noise
// frequencies and converts declared heat-pump locations to physical
// coordinates. Vary then resolves every parameter for every datapoint under
// its vary policy and optionally shuffles values across datapoints.
//
// All randomness comes from the dataset's single random source, drawn in a
// fixed order: preparation, then datapoints in ascending index with
// parameters in declared order, then the shuffle per parameter. A fixed seed
// therefore reproduces the dataset exactly.
package variation

import (
	"log/slog"

	"github.com/nvandessel/vampireman/internal/logging"
	"github.com/nvandessel/vampireman/internal/models"
	"github.com/nvandessel/vampireman/internal/noise"
	"github.com/nvandessel/vampireman/internal/placement"
)

// Engine resolves datasets. It holds no per-run state and may be reused.
type Engine struct {
	logger      *slog.Logger
	synth       *noise.Synthesizer
	maxAttempts int
	trace       *logging.TraceLog
}

// Option configures an Engine.
type Option func(*Engine)

// WithBasis selects the noise basis used for noise fields.
func WithBasis(b noise.Basis) Option {
	return func(e *Engine) { e.synth = noise.NewSynthesizer(b) }
}

// WithMaxAttempts overrides the heat-pump placement redraw budget.
// Zero or less uses the grid default.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) { e.maxAttempts = n }
}

// WithTrace attaches a JSONL trace log.
func WithTrace(tl *logging.TraceLog) Option {
	return func(e *Engine) { e.trace = tl }
}

// NewEngine creates an engine. A nil logger falls back to slog.Default().
// The default noise basis is single-octave Perlin noise.
func NewEngine(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		logger: logger,
		synth:  noise.NewSynthesizer(noise.NewPerlinBasis(1)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run prepares and varies ds. On error ds.Datapoints is left empty, except
// for ErrAlreadyPrepared, which leaves ds untouched.
func (e *Engine) Run(ds *models.Dataset) error {
	if ds.Prepared() {
		return ErrAlreadyPrepared
	}
	e.logger.Info("starting variation",
		"seed", ds.Seed(),
		"datapoints", ds.General.NumberDatapoints,
		"cells", ds.General.NumberCells)

	if err := e.Prepare(ds); err != nil {
		ds.Datapoints = nil
		return err
	}
	if err := e.Vary(ds); err != nil {
		ds.Datapoints = nil
		return err
	}

	e.logger.Info("variation complete", "datapoints", len(ds.Datapoints), "parameters", len(ds.Parameters()))
	return nil
}

func (e *Engine) grid(ds *models.Dataset) placement.Grid {
	return placement.Grid{Cells: ds.General.NumberCells, Resolution: ds.General.CellResolution}
}

func (e *Engine) attempts(g placement.Grid) int {
	if e.maxAttempts > 0 {
		return e.maxAttempts
	}
	return g.DefaultAttempts()
}
