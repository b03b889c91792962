package models

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Field is a dense 3D array of cell values stored in row-major (x, y, z) order.
type Field struct {
	Shape  [3]int
	Values []float64
}

func (*Field) Kind() Kind { return KindField }
func (*Field) isValue()   {}

func (f *Field) Clone() Value {
	return &Field{Shape: f.Shape, Values: append([]float64(nil), f.Values...)}
}

// NewField allocates a zeroed field of the given shape.
func NewField(shape [3]int) *Field {
	return &Field{Shape: shape, Values: make([]float64, shape[0]*shape[1]*shape[2])}
}

// NewConstantField allocates a field where every cell holds v.
func NewConstantField(shape [3]int, v float64) *Field {
	f := NewField(shape)
	for i := range f.Values {
		f.Values[i] = v
	}
	return f
}

// Index returns the flat offset of cell (i, j, k).
func (f *Field) Index(i, j, k int) int {
	return (i*f.Shape[1]+j)*f.Shape[2] + k
}

// At returns the value at cell (i, j, k).
func (f *Field) At(i, j, k int) float64 {
	return f.Values[f.Index(i, j, k)]
}

// Set stores v at cell (i, j, k).
func (f *Field) Set(i, j, k int, v float64) {
	f.Values[f.Index(i, j, k)] = v
}

// Len is the number of cells.
func (f *Field) Len() int {
	return len(f.Values)
}

// Min returns the smallest cell value.
func (f *Field) Min() float64 {
	return floats.Min(f.Values)
}

// Max returns the largest cell value.
func (f *Field) Max() float64 {
	return floats.Max(f.Values)
}

// Mean returns the arithmetic mean of all cells.
func (f *Field) Mean() float64 {
	return floats.Sum(f.Values) / float64(len(f.Values))
}

// FortranOrder flattens the field with x varying fastest, the cell ordering
// expected by the simulator's cell ids.
func (f *Field) FortranOrder() []float64 {
	nx, ny, nz := f.Shape[0], f.Shape[1], f.Shape[2]
	out := make([]float64, 0, len(f.Values))
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				out = append(out, f.At(i, j, k))
			}
		}
	}
	return out
}

// Validate checks that Values matches Shape.
func (f *Field) Validate() error {
	for axis, n := range f.Shape {
		if n <= 0 {
			return fmt.Errorf("field axis %d has non-positive size %d", axis, n)
		}
	}
	if want := f.Shape[0] * f.Shape[1] * f.Shape[2]; len(f.Values) != want {
		return fmt.Errorf("field has %d values, shape %v needs %d", len(f.Values), f.Shape, want)
	}
	return nil
}
