package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/vampireman/internal/constants"
	"github.com/nvandessel/vampireman/internal/manifest"
	"github.com/nvandessel/vampireman/internal/models"
	"github.com/nvandessel/vampireman/internal/simulation"
	"github.com/nvandessel/vampireman/internal/store"
)

const runYAML = `
general:
  number_cells: [4, 4, 1]
  cell_resolution: [5, 5, 5]
  number_datapoints: 2
  shuffle_datapoints: false
  random_seed: 11
  output_directory: "%s"
hydrogeological_parameters:
  permeability:
    vary: space
    distribution: log
    value: {frequency: [2, 2, 2], min: 1e-11, max: 1e-9}
  temperature:
    vary: const
    value: {min: 10, max: 12}
heatpump_parameters:
  hp1:
    value:
      location: [2, 2, 1]
      injection_temp: 13
      injection_rate: 0.0002
  ring:
    vary: space
    value:
      number: 2
      injection_temp: {min: 10, max: 15}
      injection_rate: {min: 0.0001, max: 0.0003}
`

// isolateEnv clears the environment overrides so a developer's shell does
// not leak into the run.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VAMPIREMAN_LOG_LEVEL", "VAMPIREMAN_SEED", "VAMPIREMAN_OUTPUT_DIR",
		"VAMPIREMAN_DATAPOINTS", "VAMPIREMAN_NOISE_BASIS",
	} {
		t.Setenv(key, "")
	}
}

// writeRunConfig writes runYAML to a temp dir and returns the config path
// and the output directory it points at.
func writeRunConfig(t *testing.T) (string, string) {
	t.Helper()
	isolateEnv(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(runYAML, out)), 0600))
	return path, out
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

type fakeSimulator struct {
	calls int
}

func (f *fakeSimulator) Run(_ context.Context, dir, name string, args ...string) error {
	f.calls++
	for _, file := range []string{constants.PflotranOutputFile, constants.PflotranResultFile} {
		if err := os.WriteFile(filepath.Join(dir, file), nil, 0644); err != nil {
			return err
		}
	}
	return nil
}

func useFakeSimulator(t *testing.T) *fakeSimulator {
	t.Helper()
	fake := &fakeSimulator{}
	orig := newCommandRunner
	newCommandRunner = func(io.Writer, io.Writer) simulation.CommandRunner { return fake }
	t.Cleanup(func() { newCommandRunner = orig })
	return fake
}

func TestParseStages(t *testing.T) {
	tests := []struct {
		in      string
		want    stages
		wantErr bool
	}{
		{"vary,render", stages{vary: true, render: true}, false},
		{"all", stages{vary: true, render: true, simulate: true}, false},
		{"vary", stages{vary: true}, false},
		{"simulate", stages{simulate: true}, false},
		{" Vary , RENDER ,simulate", stages{vary: true, render: true, simulate: true}, false},
		{"render", stages{}, true},
		{"render,simulate", stages{}, true},
		{"", stages{}, true},
		{",", stages{}, true},
		{"vary,plot", stages{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseStages(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"run", "validate", "list", "show", "verify", "version"} {
		assert.Contains(t, names, want)
	}
	for _, flag := range []string{"json", "config", "log-level"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestRunCmd_HelpNamesFieldFormat(t *testing.T) {
	out, err := execute(t, "run", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Apache Arrow IPC, not HDF5")
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version", "--json")
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, version, got["version"])

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "vampireman version "+version)
}

func TestValidateCmd(t *testing.T) {
	path, _ := writeRunConfig(t)

	out, err := execute(t, "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: "+path)

	out, err = execute(t, "validate", "--config", path, "--json")
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, true, got["valid"])
	assert.EqualValues(t, 3, got["heatpumps"])
	assert.EqualValues(t, 3, got["hydrogeological"])

	out, err = execute(t, "validate", "--config", path, "--print")
	require.NoError(t, err)
	assert.Contains(t, out, "hydrogeological_parameters:")
	assert.Contains(t, out, "permeability:")
	assert.Contains(t, out, "ring:")
}

func TestValidateCmd_Errors(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0600))
		return p
	}

	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"validate", "--config", filepath.Join(dir, "absent.yaml")}},
		{"zero datapoints", []string{"validate", "--config", write("zero.yaml", "general:\n  number_datapoints: 0\n")}},
		{"bad log level", []string{"validate", "--log-level", "verbose"}},
		{"expanded name clash", []string{"validate", "--config", write("clash.yaml", `
general:
  number_cells: [4, 4, 1]
heatpump_parameters:
  ring_0:
    value: {location: [1, 1, 1], injection_temp: 13, injection_rate: 0.0002}
  ring:
    vary: space
    value: {number: 2, injection_temp: {min: 10, max: 12}, injection_rate: {min: 0.0001, max: 0.0002}}
`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestRunCmd_VaryRender(t *testing.T) {
	path, out := writeRunConfig(t)

	stdout, err := execute(t, "run", "--config", path, "--json")
	require.NoError(t, err)

	var summary runSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.NotEmpty(t, summary.RunID)
	require.NotNil(t, summary.Seed)
	assert.Equal(t, int64(11), *summary.Seed)
	assert.Equal(t, 2, summary.Datapoints)
	assert.Len(t, summary.Rendered, 2)
	assert.Zero(t, summary.Simulated)

	for _, f := range []string{
		constants.MeshFile, "north.ex", "east.ex", "south.ex", "west.ex",
		constants.ManifestFile, constants.IndexFile, constants.ConfigSnapshotFile,
		filepath.Join("datapoint-0", constants.PflotranInputFile),
		filepath.Join("datapoint-0", "permeability_field.arrow"),
		filepath.Join("datapoint-1", constants.PflotranInputFile),
	} {
		assert.FileExists(t, filepath.Join(out, f))
	}

	m, err := manifest.Read(filepath.Join(out, constants.ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, m.RunID)
	assert.Equal(t, path, m.Metadata["config"])

	// the snapshot is itself a loadable configuration
	_, err = execute(t, "validate", "--config", filepath.Join(out, constants.ConfigSnapshotFile))
	assert.NoError(t, err)
}

func TestRunCmd_Reproducible(t *testing.T) {
	path, out := writeRunConfig(t)

	_, err := execute(t, "run", "--config", path, "--stages", "vary")
	require.NoError(t, err)
	first, err := manifest.Read(filepath.Join(out, constants.ManifestFile))
	require.NoError(t, err)

	_, err = execute(t, "run", "--config", path, "--stages", "vary")
	require.NoError(t, err)
	second, err := manifest.Read(filepath.Join(out, constants.ManifestFile))
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Datapoints, second.Datapoints)
	assert.NoDirExists(t, filepath.Join(out, "datapoint-0"))
}

func TestRunCmd_Simulate(t *testing.T) {
	path, out := writeRunConfig(t)
	fake := useFakeSimulator(t)

	stdout, err := execute(t, "run", "--config", path, "--stages", "all", "--json")
	require.NoError(t, err)
	var summary runSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, 2, summary.Simulated)
	assert.Equal(t, 2, fake.calls)

	index, err := store.NewSQLiteDatasetStore(store.IndexPath(out))
	require.NoError(t, err)
	run, err := index.GetRun(context.Background(), summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusSimulated, run.Status)
	require.NoError(t, index.Close())

	// finished datapoints are skipped on a resumed run
	stdout, err = execute(t, "run", "--config", path, "--stages", "simulate", "--json")
	require.NoError(t, err)
	summary = runSummary{}
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, 2, summary.Skipped)
	assert.Equal(t, 2, fake.calls)

	_, err = execute(t, "run", "--config", path, "--stages", "simulate", "--force")
	require.NoError(t, err)
	assert.Equal(t, 4, fake.calls)
}

func TestRunCmd_Errors(t *testing.T) {
	path, _ := writeRunConfig(t)
	useFakeSimulator(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown stage", []string{"run", "--config", path, "--stages", "plot"}},
		{"render without vary", []string{"run", "--config", path, "--stages", "render"}},
		{"nothing to simulate", []string{"run", "--config", path, "--stages", "simulate"}},
		{"bad log level", []string{"run", "--config", path, "--log-level", "loud"}},
		{"positional args", []string{"run", "extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestListShowVerify(t *testing.T) {
	path, out := writeRunConfig(t)

	stdout, err := execute(t, "run", "--config", path, "--json")
	require.NoError(t, err)
	var summary runSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))

	t.Run("list", func(t *testing.T) {
		stdout, err := execute(t, "list", "--output", out, "--json")
		require.NoError(t, err)
		var got struct {
			Runs  []store.Run `json:"runs"`
			Count int         `json:"count"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &got))
		require.Equal(t, 1, got.Count)
		assert.Equal(t, summary.RunID, got.Runs[0].ID)
		assert.Equal(t, store.StatusRendered, got.Runs[0].Status)

		// the output directory can also come from the configuration
		text, err := execute(t, "list", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, text, shortID(summary.RunID))
		assert.Contains(t, text, "4x4x1")
	})

	t.Run("show", func(t *testing.T) {
		stdout, err := execute(t, "show", summary.RunID[:8], "--output", out, "--json")
		require.NoError(t, err)
		var got struct {
			Run        store.Run `json:"run"`
			Parameters []struct {
				Name string `json:"name"`
			} `json:"parameters"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &got))
		assert.Equal(t, summary.RunID, got.Run.ID)
		require.Len(t, got.Parameters, 6)
		assert.Equal(t, "permeability", got.Parameters[0].Name)
		assert.Equal(t, "hp1", got.Parameters[3].Name)

		text, err := execute(t, "show", summary.RunID, "--output", out)
		require.NoError(t, err)
		assert.Contains(t, text, "Seed:       11")
		assert.Contains(t, text, "permeability")
	})

	t.Run("show datapoint", func(t *testing.T) {
		stdout, err := execute(t, "show", summary.RunID, "--output", out, "--datapoint", "1", "--json")
		require.NoError(t, err)
		var got struct {
			Values map[string]models.Summary `json:"values"`
		}
		require.NoError(t, json.Unmarshal([]byte(stdout), &got))
		temp := got.Values["temperature"]
		require.NotNil(t, temp.Value)
		assert.Equal(t, 12.0, *temp.Value)
		assert.Equal(t, models.KindField, got.Values["permeability"].Kind)
		assert.Equal(t, models.KindHeatPump, got.Values["hp1"].Kind)

		text, err := execute(t, "show", summary.RunID, "--output", out, "--datapoint", "0")
		require.NoError(t, err)
		assert.Contains(t, text, "heat pump at (7.5, 7.5, 2.5)")
	})

	t.Run("show parameter", func(t *testing.T) {
		text, err := execute(t, "show", summary.RunID, "--output", out, "--parameter", "temperature")
		require.NoError(t, err)
		assert.Contains(t, text, "   0  10\n")
		assert.Contains(t, text, "   1  12\n")

		_, err = execute(t, "show", summary.RunID, "--output", out, "--parameter", "porosity")
		assert.Error(t, err)
	})

	t.Run("show errors", func(t *testing.T) {
		_, err := execute(t, "show", "nope", "--output", out)
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = execute(t, "show", summary.RunID, "--output", out, "--datapoint", "0", "--parameter", "temperature")
		assert.Error(t, err)
	})

	t.Run("verify", func(t *testing.T) {
		text, err := execute(t, "verify", "--output", out)
		require.NoError(t, err)
		assert.Contains(t, text, "OK: checksum verified")

		stdout, err := execute(t, "verify", filepath.Join(out, constants.ManifestFile), "--json")
		require.NoError(t, err)
		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &got))
		assert.Equal(t, true, got["valid"])
		assert.Equal(t, summary.RunID, got["run_id"])
	})
}

func TestVerifyCmd_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), constants.ManifestFile)
	require.NoError(t, os.WriteFile(path, []byte("{\"version\": 1}\ngarbage"), 0644))

	text, err := execute(t, "verify", path)
	assert.Error(t, err)
	assert.Contains(t, text, "FAILED")
}

func TestListCmd_NoIndex(t *testing.T) {
	isolateEnv(t)
	_, err := execute(t, "list", "--output", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no dataset index")
}

func TestDescribe(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	shape := [3]int{4, 4, 1}
	loc := models.Vec3{7.5, 2.5, 2.5}

	tests := []struct {
		name string
		in   models.Summary
		want string
	}{
		{"scalar", models.Summary{Kind: models.KindScalar, Value: f(10.6)}, "10.6"},
		{"range", models.Summary{Kind: models.KindRange, Min: f(1), Max: f(2)}, "range [1, 2]"},
		{"field", models.Summary{Kind: models.KindField, Shape: &shape, Min: f(1), Max: f(3), Mean: f(2)}, "field 4x4x1 min 1 max 3 mean 2"},
		{"series", models.Summary{Kind: models.KindTimeSeries, Series: []models.SeriesPoint{{Time: 0, Value: 1}, {Time: 5, Value: 2}}}, "series {0: 1, 5: 2}"},
		{"heat pump", models.Summary{
			Kind: models.KindHeatPump, Location: &loc,
			InjectionTemp: []models.SeriesPoint{{Time: 0, Value: 13}},
			InjectionRate: []models.SeriesPoint{{Time: 0, Value: 0.0002}},
		}, "heat pump at (7.5, 2.5, 2.5) temp 13 rate 0.0002"},
		{"unplaced heat pump", models.Summary{Kind: models.KindHeatPump}, "heat pump at unplaced temp {} rate {}"},
		{"group", models.Summary{Kind: models.KindHeatPumpGroup, Value: f(3)}, "group of 3"},
		{"incomplete", models.Summary{Kind: models.KindField}, "field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describe(tt.in))
		})
	}
}
