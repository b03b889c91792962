// Package render turns a varied dataset into simulator input: a shared mesh
// with boundary files in the output directory, and one directory per
// datapoint holding pflotran.in and the Arrow field files it references.
package render

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/nvandessel/vampireman/internal/constants"
	"github.com/nvandessel/vampireman/internal/fieldio"
	"github.com/nvandessel/vampireman/internal/models"
	"github.com/nvandessel/vampireman/internal/pathutil"
)

//go:embed templates/pflotran.in.tmpl
var inputTemplate string

// ErrUnrenderable is returned for a datapoint value the simulator input
// cannot express.
var ErrUnrenderable = errors.New("value cannot be rendered")

// Parameter names with a dedicated place in the simulator input.
const (
	Permeability     = "permeability"
	PressureGradient = "pressure_gradient"
	Temperature      = "temperature"
)

// DatapointDir returns the directory of datapoint index below outputDir.
func DatapointDir(outputDir string, index int) string {
	return filepath.Join(outputDir, constants.DatapointDirPrefix+strconv.Itoa(index))
}

// FieldFile returns the field file name for a parameter, e.g.
// "permeability_field.arrow".
func FieldFile(parameter string) string {
	return parameter + constants.FieldFileSuffix
}

// FindDatapointDirs lists the datapoint directories below outputDir in index
// order. Entries resolving outside outputDir are rejected.
func FindDatapointDirs(outputDir string) ([]string, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("reading output directory: %w", err)
	}

	type indexed struct {
		index int
		dir   string
	}
	var found []indexed
	for _, e := range entries {
		suffix, ok := strings.CutPrefix(e.Name(), constants.DatapointDirPrefix)
		if !ok {
			continue
		}
		idx, err := strconv.Atoi(suffix)
		if err != nil || idx < 0 {
			continue
		}
		dir := filepath.Join(outputDir, e.Name())
		if err := pathutil.Within(dir, outputDir); err != nil {
			return nil, err
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		found = append(found, indexed{idx, dir})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].index < found[j].index })

	dirs := make([]string, len(found))
	for i, f := range found {
		dirs[i] = f.dir
	}
	return dirs, nil
}

// Stage renders datasets into an output directory.
type Stage struct {
	outputDir      string
	timeToSimulate float64
	logger         *slog.Logger
	tmpl           *template.Template
}

// NewStage creates a render stage writing below outputDir. timeToSimulate
// is in years.
func NewStage(outputDir string, timeToSimulate float64, logger *slog.Logger) (*Stage, error) {
	tmpl, err := template.New(constants.PflotranInputFile).Funcs(template.FuncMap{
		"num": formatNumber,
		"vec": formatVec,
	}).Parse(inputTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing input template: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{
		outputDir:      outputDir,
		timeToSimulate: timeToSimulate,
		logger:         logger,
		tmpl:           tmpl,
	}, nil
}

// Render writes the mesh and every datapoint of ds. It returns the datapoint
// directories in datapoint order. The dataset is not modified.
func (s *Stage) Render(ctx context.Context, ds *models.Dataset) ([]string, error) {
	mesh := Mesh{Cells: ds.General.NumberCells, Resolution: ds.General.CellResolution}
	if err := mesh.WriteFiles(s.outputDir); err != nil {
		return nil, fmt.Errorf("writing mesh: %w", err)
	}
	s.logger.Info("wrote mesh", "dir", s.outputDir, "cells", mesh.CellCount(), "connections", mesh.ConnectionCount())

	order := ds.ParameterNames()
	dirs := make([]string, 0, len(ds.Datapoints))
	for _, dp := range ds.Datapoints {
		if err := ctx.Err(); err != nil {
			return dirs, err
		}
		dir := DatapointDir(s.outputDir, dp.Index)
		if err := s.renderDatapoint(dir, mesh, dp, order); err != nil {
			return dirs, fmt.Errorf("datapoint %d: %w", dp.Index, err)
		}
		s.logger.Debug("rendered datapoint", "index", dp.Index, "dir", dir)
		dirs = append(dirs, dir)
	}
	s.logger.Info("rendered datapoints", "count", len(dirs))
	return dirs, nil
}

// inputData is what the pflotran.in template sees.
type inputData struct {
	Index             int
	MeshFile          string
	TimeToSimulate    float64
	Extent            models.Vec3
	Boundaries        []Side
	Fields            []fieldRef
	Permeability      string
	PressureGradient  models.Vec3
	ReferencePressure float64
	InitialPressure   string
	Temperature       float64
	TemperatureField  string
	HeatPumps         []heatPumpData
}

type fieldRef struct {
	Name   string
	Column string
	File   string
}

type heatPumpData struct {
	Name     string
	Location models.Vec3
	Unit     string
	Temp     []models.TimeEntry
	Rate     []models.TimeEntry
}

func (s *Stage) renderDatapoint(dir string, mesh Mesh, dp models.DataPoint, order []string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating datapoint directory: %w", err)
	}

	in := inputData{
		Index:             dp.Index,
		MeshFile:          constants.MeshFile,
		TimeToSimulate:    s.timeToSimulate,
		Extent:            mesh.Extent(),
		Boundaries:        Sides,
		Permeability:      Permeability,
		ReferencePressure: constants.ReferencePressure,
		Temperature:       constants.DefaultTemperature,
		PressureGradient:  models.Vec3{0, constants.DefaultPressureGradient, 0},
	}

	fields := make(map[string]*models.Field)
	var fieldOrder []string
	addField := func(name string, f *models.Field) {
		if _, ok := fields[name]; !ok {
			fieldOrder = append(fieldOrder, name)
		}
		fields[name] = f
	}

	for _, name := range order {
		d := dp.Get(name)
		if d == nil {
			continue
		}
		switch v := d.Value.(type) {
		case *models.HeatPump:
			hp, err := heatPump(name, v)
			if err != nil {
				return err
			}
			in.HeatPumps = append(in.HeatPumps, hp)
		case *models.Field:
			addField(name, v)
			switch name {
			case Temperature:
				in.TemperatureField = name
			case constants.HydraulicHeadParameter:
				in.InitialPressure = name
			case PressureGradient:
				return fmt.Errorf("%w: %s must be a scalar", ErrUnrenderable, name)
			}
		case models.Scalar:
			switch name {
			case Permeability:
				addField(name, models.NewConstantField(mesh.Cells, float64(v)))
			case PressureGradient:
				in.PressureGradient = models.Vec3{0, float64(v), 0}
			case Temperature:
				in.Temperature = float64(v)
			}
		default:
			if name == Permeability || name == PressureGradient || name == Temperature {
				return fmt.Errorf("%w: %s is a %s", ErrUnrenderable, name, v.Kind())
			}
		}
	}
	if _, ok := fields[Permeability]; !ok {
		addField(Permeability, models.NewConstantField(mesh.Cells, constants.DefaultPermeability))
	}

	for _, name := range fieldOrder {
		f := fields[name]
		if f.Shape != mesh.Cells {
			return fmt.Errorf("%w: %s field shape %v does not match grid %v", ErrUnrenderable, name, f.Shape, mesh.Cells)
		}
		file := FieldFile(name)
		if err := fieldio.Write(filepath.Join(dir, file), name, f); err != nil {
			return fmt.Errorf("writing %s: %w", file, err)
		}
		in.Fields = append(in.Fields, fieldRef{Name: name, Column: fieldio.ColumnName(name), File: file})
	}

	return writeTo(filepath.Join(dir, constants.PflotranInputFile), func(w io.Writer) error {
		return s.tmpl.Execute(w, in)
	})
}

func heatPump(name string, hp *models.HeatPump) (heatPumpData, error) {
	if hp.Location == nil {
		return heatPumpData{}, fmt.Errorf("%w: heat pump %s has no location", ErrUnrenderable, name)
	}
	temp, rate := hp.TempSeries(), hp.RateSeries()
	if temp == nil || rate == nil || !temp.Resolved() || !rate.Resolved() {
		return heatPumpData{}, fmt.Errorf("%w: heat pump %s has unresolved injection values", ErrUnrenderable, name)
	}
	return heatPumpData{
		Name:     name,
		Location: *hp.Location,
		Unit:     timeUnit(temp.Unit),
		Temp:     temp.Entries,
		Rate:     rate.Entries,
	}, nil
}

// timeUnit maps a series unit onto the simulator's unit abbreviation.
func timeUnit(unit string) string {
	switch strings.ToLower(unit) {
	case "", "year", "years", "y":
		return "y"
	case "day", "days", "d":
		return "d"
	case "hour", "hours", "h":
		return "h"
	case "second", "seconds", "s":
		return "s"
	default:
		return unit
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatVec(v models.Vec3) string {
	return formatNumber(v[0]) + " " + formatNumber(v[1]) + " " + formatNumber(v[2])
}
