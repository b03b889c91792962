package render

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nvandessel/vampireman/internal/constants"
	"github.com/nvandessel/vampireman/internal/models"
)

// ErrNotCubic is returned when the cell resolution differs between axes.
var ErrNotCubic = errors.New("grid cells are not cubic")

// Side names one of the four lateral boundaries of the domain.
type Side string

const (
	North Side = "north"
	East  Side = "east"
	South Side = "south"
	West  Side = "west"
)

// Sides lists the boundaries in the order their files are written.
var Sides = []Side{North, East, South, West}

// BoundaryFile returns the file name of a boundary, e.g. "north.ex".
func BoundaryFile(s Side) string {
	return string(s) + ".ex"
}

// Mesh is an explicit unstructured description of a regular grid. Cell ids
// are one-based with x varying fastest, then y, then z.
type Mesh struct {
	Cells      [3]int
	Resolution models.Vec3
}

// CellID returns the id of the zero-based cell (i, j, k).
func (m Mesh) CellID(i, j, k int) int {
	nx, ny := m.Cells[0], m.Cells[1]
	return i + 1 + j*nx + k*nx*ny
}

// CellCount returns the number of cells.
func (m Mesh) CellCount() int {
	return m.Cells[0] * m.Cells[1] * m.Cells[2]
}

// ConnectionCount returns the number of interior faces.
func (m Mesh) ConnectionCount() int {
	x, y, z := m.Cells[0], m.Cells[1], m.Cells[2]
	return (x-1)*y*z + x*(y-1)*z + x*y*(z-1)
}

// Extent returns the physical size of the domain.
func (m Mesh) Extent() models.Vec3 {
	return models.Vec3{
		float64(m.Cells[0]) * m.Resolution[0],
		float64(m.Cells[1]) * m.Resolution[1],
		float64(m.Cells[2]) * m.Resolution[2],
	}
}

func (m Mesh) faceArea() (float64, error) {
	r := m.Resolution
	if r[0] != r[1] || r[1] != r[2] {
		return 0, fmt.Errorf("%w: resolution %v", ErrNotCubic, r)
	}
	return r[0] * r[0], nil
}

// WriteMesh writes the CELLS and CONNECTIONS sections of a .uge file.
func (m Mesh) WriteMesh(w io.Writer) error {
	area, err := m.faceArea()
	if err != nil {
		return err
	}
	nx, ny, nz := m.Cells[0], m.Cells[1], m.Cells[2]
	res := m.Resolution
	volume := res[0] * res[1] * res[2]

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "CELLS %d\n", m.CellCount())
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				c := m.center(i, j, k)
				fmt.Fprintf(bw, "%d %s %s %s %s\n", m.CellID(i, j, k), num(c[0]), num(c[1]), num(c[2]), num(volume))
			}
		}
	}

	fmt.Fprintf(bw, "CONNECTIONS %d\n", m.ConnectionCount())
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				id := m.CellID(i, j, k)
				c := m.center(i, j, k)
				if i < nx-1 {
					fmt.Fprintf(bw, "%d %d %s %s %s %s\n", id, id+1, num(float64(i+1)*res[0]), num(c[1]), num(c[2]), num(area))
				}
				if j < ny-1 {
					fmt.Fprintf(bw, "%d %d %s %s %s %s\n", id, id+nx, num(c[0]), num(float64(j+1)*res[1]), num(c[2]), num(area))
				}
				if k < nz-1 {
					fmt.Fprintf(bw, "%d %d %s %s %s %s\n", id, id+nx*ny, num(c[0]), num(c[1]), num(float64(k+1)*res[2]), num(area))
				}
			}
		}
	}
	return bw.Flush()
}

// WriteBoundary writes the connections of one lateral boundary: the cells
// touching it and the face centers on it.
func (m Mesh) WriteBoundary(w io.Writer, side Side) error {
	area, err := m.faceArea()
	if err != nil {
		return err
	}
	nx, ny, nz := m.Cells[0], m.Cells[1], m.Cells[2]
	extent := m.Extent()

	bw := bufio.NewWriter(w)
	switch side {
	case North, South:
		fmt.Fprintf(bw, "CONNECTIONS %d\n", nx*nz)
		j, y := 0, 0.0
		if side == North {
			j, y = ny-1, extent[1]
		}
		for k := 0; k < nz; k++ {
			for i := 0; i < nx; i++ {
				c := m.center(i, j, k)
				fmt.Fprintf(bw, "%d %s %s %s %s\n", m.CellID(i, j, k), num(c[0]), num(y), num(c[2]), num(area))
			}
		}
	case East, West:
		fmt.Fprintf(bw, "CONNECTIONS %d\n", ny*nz)
		i, x := 0, 0.0
		if side == East {
			i, x = nx-1, extent[0]
		}
		for k := 0; k < nz; k++ {
			for j := 0; j < ny; j++ {
				c := m.center(i, j, k)
				fmt.Fprintf(bw, "%d %s %s %s %s\n", m.CellID(i, j, k), num(x), num(c[1]), num(c[2]), num(area))
			}
		}
	default:
		return fmt.Errorf("unknown boundary %q", side)
	}
	return bw.Flush()
}

// WriteFiles writes mesh.uge and the four boundary files into dir.
func (m Mesh) WriteFiles(dir string) error {
	if _, err := m.faceArea(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := writeTo(filepath.Join(dir, constants.MeshFile), m.WriteMesh); err != nil {
		return err
	}
	for _, side := range Sides {
		err := writeTo(filepath.Join(dir, BoundaryFile(side)), func(w io.Writer) error {
			return m.WriteBoundary(w, side)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (m Mesh) center(i, j, k int) models.Vec3 {
	r := m.Resolution
	return models.Vec3{
		(float64(i) + 0.5) * r[0],
		(float64(j) + 0.5) * r[1],
		(float64(k) + 0.5) * r[2],
	}
}

func writeTo(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := write(f); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
