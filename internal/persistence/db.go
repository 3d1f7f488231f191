// Package persistence records what a run did: a SQLite journal of events and
// unit snapshots, and a compressed per-tick log. Nothing here is read back to
// resume a simulation.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/emergence/internal/engine"
	"github.com/talgya/emergence/internal/units"
)

// DB wraps a SQLite connection for the run journal.
type DB struct {
	conn *sqlx.DB
}

// Run is one simulation run recorded in the journal.
type Run struct {
	ID        string    `db:"id" json:"id"`
	Seed      int64     `db:"seed" json:"seed"`
	Radius    int       `db:"radius" json:"radius"`
	StartedAt time.Time `db:"started_at" json:"started_at"`
}

// Snapshot is a stored unit display state.
type Snapshot struct {
	RunID string `db:"run_id"`
	Tick  uint64 `db:"tick"`
	Unit  uint64 `db:"unit_id"`
	JSON  string `db:"display_json"`
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
		seed INTEGER NOT NULL,
		radius INTEGER NOT NULL,
		started_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS unit_snapshots (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		unit_id INTEGER NOT NULL,
		display_json TEXT NOT NULL,
		PRIMARY KEY (run_id, tick, unit_id)
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_events_category ON events(category);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// StartRun registers a new run and returns it.
func (db *DB) StartRun(seed int64, radius int) (Run, error) {
	run := Run{
		ID:        uuid.NewString(),
		Seed:      seed,
		Radius:    radius,
		StartedAt: time.Now().UTC(),
	}
	_, err := db.conn.NamedExec(
		"INSERT INTO runs (id, seed, radius, started_at) VALUES (:id, :seed, :radius, :started_at)",
		run,
	)
	if err != nil {
		return Run{}, fmt.Errorf("start run: %w", err)
	}
	if err := db.SaveMeta("last_run", run.ID); err != nil {
		return Run{}, err
	}
	return run, nil
}

// Runs lists recorded runs, newest first.
func (db *DB) Runs() ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs, "SELECT id, seed, radius, started_at FROM runs ORDER BY started_at DESC")
	return runs, err
}

// SaveEvents appends events to the journal.
func (db *DB) SaveEvents(runID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex("INSERT INTO events (run_id, tick, description, category) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(runID, e.Tick, e.Description, e.Category); err != nil {
			return fmt.Errorf("insert event at tick %d: %w", e.Tick, err)
		}
	}

	return tx.Commit()
}

// SaveSnapshots stores the display state of every unit at tick.
func (db *DB) SaveSnapshots(runID string, tick uint64, displays []units.Display) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR REPLACE INTO unit_snapshots
		(run_id, tick, unit_id, display_json) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, d := range displays {
		raw, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode unit %d: %w", d.ID, err)
		}
		if _, err := stmt.Exec(runID, tick, uint64(d.ID), string(raw)); err != nil {
			return fmt.Errorf("insert unit %d: %w", d.ID, err)
		}
	}

	return tx.Commit()
}

// UnitHistory returns the stored display states of one unit, oldest first.
func (db *DB) UnitHistory(runID string, id units.ID) ([]units.Display, error) {
	var rows []Snapshot
	err := db.conn.Select(&rows,
		"SELECT run_id, tick, unit_id, display_json FROM unit_snapshots WHERE run_id = ? AND unit_id = ? ORDER BY tick",
		runID, uint64(id),
	)
	if err != nil {
		return nil, err
	}
	out := make([]units.Display, 0, len(rows))
	for _, r := range rows {
		var d units.Display
		if err := json.Unmarshal([]byte(r.JSON), &d); err != nil {
			return nil, fmt.Errorf("decode snapshot at tick %d: %w", r.Tick, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// RecentEvents returns the most recent N events of a run.
func (db *DB) RecentEvents(runID string, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	return events, err
}

// EventCounts tallies a run's events by category.
func (db *DB) EventCounts(runID string) (map[string]int, error) {
	var rows []struct {
		Category string `db:"category"`
		N        int    `db:"n"`
	}
	err := db.conn.Select(&rows,
		"SELECT category, COUNT(*) AS n FROM events WHERE run_id = ? GROUP BY category", runID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Category] = r.N
	}
	return out, nil
}

// Checkpoint journals everything the simulation recorded after the last
// checkpoint along with a snapshot of every unit. It returns the tick it
// covered, to pass as since next time.
func (db *DB) Checkpoint(runID string, sim *engine.Simulation, since uint64) (uint64, error) {
	tick := sim.CurrentTick()
	var events []engine.Event
	for _, e := range sim.EventsSince(since) {
		if e.Tick <= tick {
			events = append(events, e)
		}
	}
	displays := sim.UnitDisplays()

	if err := db.SaveEvents(runID, events); err != nil {
		return since, fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveSnapshots(runID, tick, displays); err != nil {
		return since, fmt.Errorf("save snapshots: %w", err)
	}
	if err := db.SaveMeta("last_tick", fmt.Sprintf("%d", tick)); err != nil {
		return since, fmt.Errorf("save meta: %w", err)
	}

	slog.Debug("journal checkpoint", "tick", tick, "events", len(events), "units", len(displays))
	return tick, nil
}
