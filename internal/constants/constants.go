// Package constants provides named constants used throughout the vampireman codebase.
// This centralizes physical constants and defaults for better maintainability.
package constants

// Noise synthesis constants
const (
	// NoiseOffsetScale scales the per-field random offset so every realization
	// samples a well-mixed, non-overlapping region of the noise domain.
	NoiseOffsetScale = 4242.0

	// NoiseBasisSeed seeds the gradient permutation table. Variation between
	// fields comes from the random offset, so the basis itself stays fixed.
	NoiseBasisSeed = 42

	// PerlinAlpha is the per-octave amplitude divisor for Perlin noise.
	PerlinAlpha = 2.0

	// PerlinBeta is the per-octave frequency multiplier for Perlin noise.
	PerlinBeta = 2.0

	// DefaultNoiseOctaves is the number of noise octaves summed per sample.
	DefaultNoiseOctaves = 1
)

// Hydrostatic pressure constants
const (
	// HydraulicHeadParameter is the one parameter whose noise field is
	// integrated into a pressure field.
	HydraulicHeadParameter = "hydraulic_head"

	// ReferencePressure is standard atmospheric pressure in Pa.
	ReferencePressure = 101325.0

	// PressureUnitScale converts a head gradient times cell length into Pa.
	PressureUnitScale = 1000.0
)

// Placement constants
const (
	// PlacementAttemptsPerCell bounds the collision redraw loop at this many
	// attempts per grid cell before the grid is reported as saturated.
	PlacementAttemptsPerCell = 100
)

// Default general settings
const (
	DefaultNumberCellsX = 32
	DefaultNumberCellsY = 256
	DefaultNumberCellsZ = 1

	DefaultCellResolution = 5.0

	DefaultNumberDatapoints = 1

	// DefaultTimeToSimulate is in years.
	DefaultTimeToSimulate = 27.5

	DefaultOutputDirectory = "./datasets_out"

	DefaultMpirunProcs = 1

	// DefaultTimeUnit is the unit of time-series keys.
	DefaultTimeUnit = "year"
)

// Default hydrogeological parameters
const (
	DefaultPermeability     = 1.2882090745857623e-10
	DefaultPressureGradient = -0.0024757478454929587
	DefaultTemperature      = 10.6
)

// Output file names
const (
	DatapointDirPrefix = "datapoint-"
	MeshFile           = "mesh.uge"
	PflotranInputFile  = "pflotran.in"
	PflotranOutputFile = "pflotran.out"
	PflotranResultFile = "pflotran.h5"
	FieldFileSuffix    = "_field.arrow"
	ManifestFile       = "dataset.vmp"
	ConfigSnapshotFile = "config.yaml"
	IndexFile          = "vampireman.db"
	TraceFile          = "variation.jsonl"
)

// Simulator invocation
const (
	SimulatorBinary = "pflotran"
	MpirunBinary    = "mpirun"
)
