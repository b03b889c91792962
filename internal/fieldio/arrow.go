// Package fieldio reads and writes per-cell field files.
//
// A field file is an Arrow IPC file with one record batch and two columns:
// "Cell Ids" (int32, one-based) and the title-cased parameter name (float64).
// Values are flattened with x varying fastest, matching the simulator's cell
// numbering. The grid shape is kept in the schema metadata under "shape".
package fieldio

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/nvandessel/vampireman/internal/models"
)

// CellIDColumn is the name of the cell id column.
const CellIDColumn = "Cell Ids"

const shapeKey = "shape"

// ErrMalformed is returned for a field file that does not follow the layout.
var ErrMalformed = errors.New("malformed field file")

// ColumnName returns the value column name for a parameter, e.g.
// "permeability" -> "Permeability", "hydraulic_head" -> "Hydraulic_Head".
func ColumnName(parameter string) string {
	var b strings.Builder
	upper := true
	for _, r := range parameter {
		if upper {
			b.WriteRune(unicode.ToUpper(r))
		} else {
			b.WriteRune(unicode.ToLower(r))
		}
		upper = !unicode.IsLetter(r)
	}
	return b.String()
}

// Write stores f as the field file for parameter at path.
func Write(path, parameter string, f *models.Field) error {
	if err := f.Validate(); err != nil {
		return err
	}

	md := arrow.NewMetadata([]string{shapeKey}, []string{formatShape(f.Shape)})
	schema := arrow.NewSchema([]arrow.Field{
		{Name: CellIDColumn, Type: arrow.PrimitiveTypes.Int32},
		{Name: ColumnName(parameter), Type: arrow.PrimitiveTypes.Float64},
	}, &md)

	mem := memory.DefaultAllocator
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	n := f.Len()
	ids := make([]int32, n)
	for i := range ids {
		ids[i] = int32(i + 1)
	}
	b.Field(0).(*array.Int32Builder).AppendValues(ids, nil)
	b.Field(1).(*array.Float64Builder).AppendValues(f.FortranOrder(), nil)

	rec := b.NewRecord()
	defer rec.Release()

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating field file: %w", err)
	}
	defer out.Close()

	w, err := ipc.NewFileWriter(out, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("opening field writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return fmt.Errorf("writing field record: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing field writer: %w", err)
	}
	return out.Close()
}

// Read loads the field stored for parameter at path.
func Read(path, parameter string) (*models.Field, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening field file: %w", err)
	}
	defer in.Close()

	r, err := ipc.NewFileReader(in, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, fmt.Errorf("reading field file %s: %w", path, err)
	}
	defer r.Close()

	md := r.Schema().Metadata()
	idx := md.FindKey(shapeKey)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s has no shape metadata", ErrMalformed, path)
	}
	shape, err := parseShape(md.Values()[idx])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if r.NumRecords() != 1 {
		return nil, fmt.Errorf("%w: %s has %d record batches, want 1", ErrMalformed, path, r.NumRecords())
	}

	rec, err := r.Record(0)
	if err != nil {
		return nil, fmt.Errorf("reading field record: %w", err)
	}

	column := ColumnName(parameter)
	fields := rec.Schema().FieldIndices(column)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s has no column %q", ErrMalformed, path, column)
	}
	values, ok := rec.Column(fields[0]).(*array.Float64)
	if !ok {
		return nil, fmt.Errorf("%w: column %q is not float64", ErrMalformed, column)
	}

	f := models.NewField(shape)
	if values.Len() != f.Len() {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrMalformed, values.Len(), shape)
	}

	// undo the x-fastest flattening
	nx, ny, nz := shape[0], shape[1], shape[2]
	pos := 0
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				f.Set(i, j, k, values.Value(pos))
				pos++
			}
		}
	}
	return f, nil
}

func formatShape(s [3]int) string {
	return fmt.Sprintf("%d,%d,%d", s[0], s[1], s[2])
}

func parseShape(s string) ([3]int, error) {
	var shape [3]int
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return shape, fmt.Errorf("shape %q needs three values", s)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return shape, fmt.Errorf("invalid shape %q", s)
		}
		shape[i] = n
	}
	return shape, nil
}
