package manifest

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvandessel/vampireman/internal/logging"
	"github.com/nvandessel/vampireman/internal/models"
	"github.com/nvandessel/vampireman/internal/variation"
)

func variedDataset(t *testing.T) *models.Dataset {
	t.Helper()
	seed := int64(3)
	loc := models.Vec3{2, 2, 1}
	ds := models.NewDataset(models.General{
		NumberCells:      [3]int{4, 4, 1},
		CellResolution:   models.Vec3{5, 5, 5},
		NumberDatapoints: 3,
		Seed:             &seed,
	}, []models.Parameter{
		{Name: "permeability", Vary: models.VarySpace, Value: &models.Noise{Frequency: models.Frequency{XYZ: models.Vec3{2, 2, 2}}, Min: 1e-10, Max: 5e-10}},
		{Name: "temperature", Vary: models.VaryConst, Value: models.Range{Min: 10, Max: 12}},
	}, []models.Parameter{
		{Name: "hp1", Vary: models.VaryFixed, Value: &models.HeatPump{Location: &loc, InjectionTemp: models.Scalar(13), InjectionRate: models.Scalar(0.0002)}},
	})
	require.NoError(t, variation.NewEngine(logging.Discard()).Run(ds))
	return ds
}

func TestBuild(t *testing.T) {
	ds := variedDataset(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m := Build(ds, "run-1", created)

	assert.Equal(t, FormatVersion, m.Version)
	assert.Equal(t, "run-1", m.RunID)
	assert.Equal(t, int64(3), m.Seed)
	assert.Equal(t, created, m.CreatedAt)
	require.Len(t, m.Parameters, 3)
	assert.Equal(t, ParameterInfo{Name: "hp1", Section: SectionHeatPump, Vary: models.VaryFixed, Kind: models.KindHeatPump}, m.Parameters[2])
	assert.Equal(t, SectionHydrogeological, m.Parameters[0].Section)

	require.Len(t, m.Datapoints, 3)
	for i, dp := range m.Datapoints {
		assert.Equal(t, i, dp.Index)
		perm := dp.Values["permeability"]
		assert.Equal(t, models.KindField, perm.Kind)
		require.NotNil(t, perm.Min)
		assert.InDelta(t, 1e-10, *perm.Min, 1e-18)
		require.NotNil(t, perm.Shape)
		assert.Equal(t, [3]int{4, 4, 1}, *perm.Shape)

		hp := dp.Values["hp1"]
		require.NotNil(t, hp.Location)
		assert.Equal(t, models.Vec3{7.5, 7.5, 2.5}, *hp.Location)
		assert.Equal(t, []models.SeriesPoint{{Time: 0, Value: 13}}, hp.InjectionTemp)
	}
	assert.Equal(t, 10.0, *m.Datapoints[0].Values["temperature"].Value)
}

func TestWriteRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dataset.vmp")
	original := Build(variedDataset(t), NewRunID(), time.Now().UTC().Truncate(time.Millisecond))
	original.Metadata = map[string]string{"config": "run.yaml"}

	require.NoError(t, Write(path, original))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, original.RunID, got.RunID)
	assert.True(t, original.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, original.Parameters, got.Parameters)
	assert.Equal(t, original.Datapoints, got.Datapoints)
	assert.Equal(t, "run.yaml", got.Metadata["config"])

	header, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, original.RunID, header.RunID)
	assert.Equal(t, 3, header.DatapointCount)
	assert.Equal(t, 3, header.ParameterCount)
	assert.True(t, header.Compressed)
	assert.Contains(t, header.Checksum, "sha256:")
	require.NoError(t, Verify(path))
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestVerify_DetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.vmp")
	require.NoError(t, Write(path, Build(variedDataset(t), "run", time.Now())))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-5] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0644))

	assert.ErrorIs(t, Verify(path), ErrChecksumMismatch)
	_, err = Read(path)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestReadHeader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"not json", "hello\n"},
		{"wrong version", `{"version": 9}` + "\n"},
		{"no newline", `{"version": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "dataset.vmp")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := ReadHeader(path)
			assert.Error(t, err)
			assert.Error(t, Verify(path))
		})
	}

	_, err := ReadHeader(filepath.Join(t.TempDir(), "absent.vmp"))
	assert.Error(t, err)
}

func TestWrite_HeaderIsPlainJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.vmp")
	require.NoError(t, Write(path, Build(variedDataset(t), "run-x", time.Now())))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	line, err := bufio.NewReader(f).ReadBytes('\n')
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(line, &raw))
	assert.Equal(t, "run-x", raw["run_id"])
	assert.EqualValues(t, 3, raw["seed"])
}
