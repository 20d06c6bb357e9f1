// Package persistence records a simulation run in SQLite: the run row,
// sampled frames with every person's position, and the final statistics.
// A database holds one run; recording a new run replaces the previous one.
package persistence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/crowd-sim/internal/output"
	"github.com/talgya/crowd-sim/internal/stats"
)

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		scene_file TEXT NOT NULL,
		mode TEXT NOT NULL,
		seed INTEGER NOT NULL,
		scale REAL NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		ticks INTEGER NOT NULL DEFAULT 0,
		end_time REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS frames (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		time REAL NOT NULL,
		population INTEGER NOT NULL,
		completed INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS positions (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		person_id INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		heading REAL NOT NULL,
		panic REAL NOT NULL,
		path_id INTEGER NOT NULL,
		target_index INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS statistics (
		run_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		min REAL NOT NULL,
		max REAL NOT NULL,
		count INTEGER NOT NULL,
		mean REAL NOT NULL,
		variance REAL NOT NULL,
		std_deviation REAL NOT NULL,
		PRIMARY KEY (run_id, kind)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_positions_run_tick ON positions(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run is a stored run.
type Run struct {
	ID         string  `db:"id" json:"id"`
	SceneFile  string  `db:"scene_file" json:"scene_file"`
	Mode       string  `db:"mode" json:"mode"`
	Seed       int64   `db:"seed" json:"seed"`
	Scale      float64 `db:"scale" json:"scale"`
	Width      int     `db:"width" json:"width"`
	Height     int     `db:"height" json:"height"`
	StartedAt  string  `db:"started_at" json:"started_at"`
	FinishedAt *string `db:"finished_at" json:"finished_at,omitempty"`
	Ticks      uint64  `db:"ticks" json:"ticks"`
	EndTime    float64 `db:"end_time" json:"end_time"`
}

// Position is a stored person position.
type Position struct {
	Tick        uint64  `db:"tick"`
	PersonID    uint64  `db:"person_id"`
	X           float64 `db:"x"`
	Y           float64 `db:"y"`
	Heading     float64 `db:"heading"`
	Panic       float64 `db:"panic"`
	PathID      uint8   `db:"path_id"`
	TargetIndex int     `db:"target_index"`
}

// Statistic is a stored statistics summary.
type Statistic struct {
	Kind         string  `db:"kind"`
	Min          float64 `db:"min"`
	Max          float64 `db:"max"`
	Count        uint32  `db:"count"`
	Mean         float64 `db:"mean"`
	Variance     float64 `db:"variance"`
	StdDeviation float64 `db:"std_deviation"`
}

// CreateRun inserts a run row. An empty id gets a fresh UUID.
func (db *DB) CreateRun(h output.Header) (string, error) {
	id := h.RunID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := db.conn.Exec(`INSERT INTO runs
		(id, scene_file, mode, seed, scale, width, height, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, h.SceneFile, h.Mode, h.Seed, h.Scale, h.Width, h.Height, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// SaveFrame writes a frame and its positions in one transaction.
func (db *DB) SaveFrame(runID string, f *output.Frame) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT INTO frames (run_id, tick, time, population, completed) VALUES (?, ?, ?, ?, ?)",
		runID, f.Tick, f.Time, len(f.People), f.Completed,
	); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO positions
		(run_id, tick, person_id, x, y, heading, panic, path_id, target_index)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range f.People {
		if _, err := stmt.Exec(runID, f.Tick, p.ID, p.X, p.Y, p.Heading, p.Panic, p.PathID, p.TargetIndex); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// FinishRun stores the final statistics and marks the run finished.
func (db *DB) FinishRun(runID string, final output.Final) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for kind, s := range map[string]*stats.Summary{
		"completion_time": final.CompletionTime,
		"travel_time":     final.TravelTime,
	} {
		if s == nil {
			continue
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO statistics
			(run_id, kind, min, max, count, mean, variance, std_deviation)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, kind, s.Min, s.Max, s.Count, s.Mean, s.Variance, s.StdDeviation); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(
		"UPDATE runs SET finished_at = ?, ticks = ?, end_time = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), final.Ticks, final.Time, runID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

// GetRun returns one run.
func (db *DB) GetRun(id string) (Run, error) {
	var r Run
	err := db.conn.Get(&r, "SELECT * FROM runs WHERE id = ?", id)
	return r, err
}

// CurrentRun returns the run being recorded.
func (db *DB) CurrentRun() (Run, error) {
	id, err := db.GetMeta(metaRunID)
	if err != nil {
		return Run{}, err
	}
	return db.GetRun(id)
}

// Reset removes every stored run.
func (db *DB) Reset() error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"positions", "frames", "statistics", "runs", "meta"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// Positions returns the recorded positions of a run at one tick.
func (db *DB) Positions(runID string, tick uint64) ([]Position, error) {
	var ps []Position
	err := db.conn.Select(&ps, `SELECT tick, person_id, x, y, heading, panic, path_id, target_index
		FROM positions WHERE run_id = ? AND tick = ? ORDER BY person_id`, runID, tick)
	return ps, err
}

// FrameCount returns how many frames of a run were recorded.
func (db *DB) FrameCount(runID string) (int, error) {
	var n int
	err := db.conn.Get(&n, "SELECT COUNT(*) FROM frames WHERE run_id = ?", runID)
	return n, err
}

// Statistics returns the final statistics of a run.
func (db *DB) Statistics(runID string) ([]Statistic, error) {
	var out []Statistic
	err := db.conn.Select(&out, `SELECT kind, min, max, count, mean, variance, std_deviation
		FROM statistics WHERE run_id = ? ORDER BY kind`, runID)
	return out, err
}

const metaRunID = "run_id"

// Recorder is an output sink storing every Every-th frame of one run.
type Recorder struct {
	db    *DB
	every uint64
	runID string
}

// NewRecorder creates a sink over db. every <= 1 records every frame.
func NewRecorder(db *DB, every uint64) *Recorder {
	if every == 0 {
		every = 1
	}
	return &Recorder{db: db, every: every}
}

// RunID returns the id of the run being recorded.
func (r *Recorder) RunID() string { return r.runID }

func (r *Recorder) Init(h output.Header) error {
	if err := r.db.Reset(); err != nil {
		return fmt.Errorf("reset db: %w", err)
	}
	id, err := r.db.CreateRun(h)
	if err != nil {
		return err
	}
	r.runID = id
	slog.Info("recording run", "run", id, "every", r.every)
	return r.db.SaveMeta(metaRunID, id)
}

func (r *Recorder) WriteFrame(f *output.Frame) error {
	if f.Tick%r.every != 0 {
		return nil
	}
	if err := r.db.SaveFrame(r.runID, f); err != nil {
		return fmt.Errorf("save frame %d: %w", f.Tick, err)
	}
	return nil
}

func (r *Recorder) WriteStatistics(f output.Final) error {
	if err := r.db.FinishRun(r.runID, f); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (r *Recorder) Close() error {
	return r.db.Close()
}
