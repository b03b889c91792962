package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/vampireman/internal/manifest"
	"github.com/nvandessel/vampireman/internal/models"
)

// timeFormat keeps fractional seconds at a fixed width so created_at sorts
// lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteDatasetStore implements DatasetStore on a SQLite database file.
type SQLiteDatasetStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

var _ DatasetStore = (*SQLiteDatasetStore)(nil)

// NewSQLiteDatasetStore opens (or creates) the index at dbPath.
func NewSQLiteDatasetStore(dbPath string) (*SQLiteDatasetStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteDatasetStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteDatasetStore) Path() string {
	return s.dbPath
}

// RecordRun stores the run, its parameters and every datapoint summary in
// one transaction.
func (s *SQLiteDatasetStore) RecordRun(ctx context.Context, m *manifest.Manifest, outputDir, configPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cells := m.General.NumberCells
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, seed, output_dir, config_path, cells_x, cells_y, cells_z, number_datapoints, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.RunID, m.CreatedAt.UTC().Format(timeFormat), m.Seed, outputDir, nullString(configPath),
		cells[0], cells[1], cells[2], len(m.Datapoints), StatusVaried)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, p := range m.Parameters {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO parameters (run_id, position, name, section, vary, distribution, kind)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.RunID, i, p.Name, p.Section, string(p.Vary), string(p.Distribution), string(p.Kind))
		if err != nil {
			return fmt.Errorf("failed to insert parameter %s: %w", p.Name, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO datapoint_values (run_id, datapoint, parameter, kind, value, min, max, mean, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare value insert: %w", err)
	}
	defer stmt.Close()

	for _, dp := range m.Datapoints {
		for name, sum := range dp.Values {
			raw, err := json.Marshal(sum)
			if err != nil {
				return fmt.Errorf("failed to marshal summary: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, m.RunID, dp.Index, name, string(sum.Kind),
				nullFloat(sum.Value), nullFloat(sum.Min), nullFloat(sum.Max), nullFloat(sum.Mean), string(raw)); err != nil {
				return fmt.Errorf("failed to insert value %s of datapoint %d: %w", name, dp.Index, err)
			}
		}
	}

	return tx.Commit()
}

// SetStatus updates the status of a run.
func (s *SQLiteDatasetStore) SetStatus(ctx context.Context, runID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ? WHERE id = ?`, status, runID)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return nil
}

const runColumns = `id, created_at, seed, output_dir, config_path, cells_x, cells_y, cells_z, number_datapoints, status`

// ListRuns returns all runs, newest first.
func (s *SQLiteDatasetStore) ListRuns(ctx context.Context) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetRun returns a run by id or by unique id prefix.
func (s *SQLiteDatasetStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ORDER BY id = ? DESC LIMIT 2`,
		id, id+"%", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(found) == 0:
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	case found[0].ID == id || len(found) == 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("run prefix %q is ambiguous", id)
	}
}

// Parameters returns the parameters of a run in resolution order.
func (s *SQLiteDatasetStore) Parameters(ctx context.Context, runID string) ([]manifest.ParameterInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, section, vary, COALESCE(distribution, ''), kind
		FROM parameters WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameters: %w", err)
	}
	defer rows.Close()

	var params []manifest.ParameterInfo
	for rows.Next() {
		var p manifest.ParameterInfo
		var vary, dist, kind string
		if err := rows.Scan(&p.Name, &p.Section, &vary, &dist, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan parameter: %w", err)
		}
		p.Vary, p.Distribution, p.Kind = models.Vary(vary), models.Distribution(dist), models.Kind(kind)
		params = append(params, p)
	}
	return params, rows.Err()
}

// DatapointValues returns the value summaries of one datapoint.
func (s *SQLiteDatasetStore) DatapointValues(ctx context.Context, runID string, datapoint int) (map[string]models.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT parameter, summary FROM datapoint_values WHERE run_id = ? AND datapoint = ?`, runID, datapoint)
	if err != nil {
		return nil, fmt.Errorf("failed to query values: %w", err)
	}
	defer rows.Close()

	values := make(map[string]models.Summary)
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		var sum models.Summary
		if err := json.Unmarshal([]byte(raw), &sum); err != nil {
			return nil, fmt.Errorf("failed to decode summary of %s: %w", name, err)
		}
		values[name] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("run %s datapoint %d: %w", runID, datapoint, ErrNotFound)
	}
	return values, nil
}

// ParameterValues returns one parameter's summary for every datapoint, in
// datapoint order.
func (s *SQLiteDatasetStore) ParameterValues(ctx context.Context, runID, parameter string) ([]models.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT summary FROM datapoint_values WHERE run_id = ? AND parameter = ? ORDER BY datapoint`, runID, parameter)
	if err != nil {
		return nil, fmt.Errorf("failed to query values: %w", err)
	}
	defer rows.Close()

	var out []models.Summary
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		var sum models.Summary
		if err := json.Unmarshal([]byte(raw), &sum); err != nil {
			return nil, fmt.Errorf("failed to decode summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteDatasetStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r       Run
		created string
		config  sql.NullString
	)
	if err := row.Scan(&r.ID, &created, &r.Seed, &r.OutputDir, &config,
		&r.NumberCells[0], &r.NumberCells[1], &r.NumberCells[2], &r.NumberDatapoints, &r.Status); err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	t, err := time.Parse(timeFormat, created)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at of run %s: %w", r.ID, err)
	}
	r.CreatedAt = t
	r.ConfigPath = config.String
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
