// Package placement expands heat-pump groups into individual heat pumps and
// draws collision-free injector locations on the simulation grid.
//
// Locations are handled in two coordinate spaces: one-based grid indices
// (what users declare and what random draws produce) and physical positions
// at cell centers (what the simulator consumes). ToPhysical converts between
// them.
package placement

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/nvandessel/vampireman/internal/constants"
	"github.com/nvandessel/vampireman/internal/models"
)

var (
	// ErrNamingClash is returned when a generated heat-pump name is already taken.
	ErrNamingClash = errors.New("heat pump naming clash")

	// ErrGridSaturated is returned when no free cell was found within the
	// attempt budget.
	ErrGridSaturated = errors.New("grid saturated: no free heat pump location")

	// ErrOutsideGrid is returned for a declared location outside the grid.
	ErrOutsideGrid = errors.New("heat pump location outside grid")

	// ErrDuplicateLocation is returned when two declared heat pumps share a cell.
	ErrDuplicateLocation = errors.New("duplicate heat pump location")
)

// HeatPumpError names the heat pump whose expansion or placement failed.
type HeatPumpError struct {
	Name string
	Err  error
}

func (e *HeatPumpError) Error() string {
	return fmt.Sprintf("heat pump %q: %v", e.Name, e.Err)
}

func (e *HeatPumpError) Unwrap() error {
	return e.Err
}

// Grid describes the simulation grid.
type Grid struct {
	Cells      [3]int
	Resolution models.Vec3
}

// CellCount is the number of cells in the grid.
func (g Grid) CellCount() int {
	return g.Cells[0] * g.Cells[1] * g.Cells[2]
}

// DefaultAttempts is the redraw budget for a grid before it counts as saturated.
func (g Grid) DefaultAttempts() int {
	return constants.PlacementAttemptsPerCell * g.CellCount()
}

// Contains reports whether a one-based grid-index location lies inside the grid.
func (g Grid) Contains(loc models.Vec3) bool {
	for i, v := range loc {
		if v < 1 || v > float64(g.Cells[i]) {
			return false
		}
	}
	return true
}

// DrawLocation draws a uniform grid-index location as ceil(u*n) per axis,
// consuming three draws from rng in x, y, z order. A zero draw maps to index 1.
func DrawLocation(rng *rand.Rand, cells [3]int) models.Vec3 {
	var loc models.Vec3
	for i := range loc {
		loc[i] = math.Max(1, math.Ceil(rng.Float64()*float64(cells[i])))
	}
	return loc
}

// ToPhysical converts a one-based grid index into the physical position of
// that cell's center: (idx-1)*res + res/2.
func ToPhysical(loc, resolution models.Vec3) models.Vec3 {
	var out models.Vec3
	for i := range loc {
		out[i] = (loc[i]-1)*resolution[i] + resolution[i]*0.5
	}
	return out
}

// Occupancy tracks taken locations. Locations are compared exactly, so all
// entries of one Occupancy must live in the same coordinate space.
type Occupancy map[models.Vec3]struct{}

// Taken reports whether loc is occupied.
func (o Occupancy) Taken(loc models.Vec3) bool {
	_, ok := o[loc]
	return ok
}

// Take marks loc as occupied.
func (o Occupancy) Take(loc models.Vec3) {
	o[loc] = struct{}{}
}

// DrawFree draws grid-index locations until one is free in occ (compared
// after applying convert, which may be nil), taking at most maxAttempts
// draws. The returned location is in grid-index space and is not marked taken.
func DrawFree(rng *rand.Rand, cells [3]int, occ Occupancy, convert func(models.Vec3) models.Vec3, maxAttempts int) (models.Vec3, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		loc := DrawLocation(rng, cells)
		key := loc
		if convert != nil {
			key = convert(loc)
		}
		if !occ.Taken(key) {
			return loc, nil
		}
	}
	return models.Vec3{}, fmt.Errorf("%w after %d attempts on %d cells", ErrGridSaturated, maxAttempts, cells[0]*cells[1]*cells[2])
}
