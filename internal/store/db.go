// Package store reads the persisted seal, particle and covariate tables and
// writes the structured result bundle of a run to a sqlite database.
package store

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dahliasan/Elephant-Weaners/internal/geo"
)

// DB wraps a sqlite handle.
type DB struct {
	*sql.DB
}

// Open opens (or creates) a sqlite database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return &DB{db}, nil
}

const timeLayout = time.RFC3339

// InitInputSchema creates the input tables if they do not exist. Input
// databases are normally prepared upstream; this exists for fixtures and
// for bootstrapping an empty input file.
func (db *DB) InitInputSchema() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS seals (
			id      TEXT PRIMARY KEY,
			mass_kg REAL
		);
		CREATE TABLE IF NOT EXISTS seal_fixes (
			id          TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			lon         REAL,
			lat         REAL
		);
		CREATE TABLE IF NOT EXISTS particle_fixes (
			id          TEXT NOT NULL,
			recorded_at TEXT NOT NULL,
			lon         REAL,
			lat         REAL,
			u           REAL,
			v           REAL
		);
	`)
	if err != nil {
		return fmt.Errorf("store: init input schema: %w", err)
	}
	return nil
}

// InsertSeal, InsertSealFix and InsertParticleFix populate input tables;
// used by fixtures and input preparation.
func (db *DB) InsertSeal(id string, massKg sql.NullFloat64) error {
	_, err := db.Exec(`INSERT INTO seals (id, mass_kg) VALUES (?, ?)`, id, massKg)
	return err
}

func (db *DB) InsertSealFix(f geo.Fix) error {
	_, err := db.Exec(`INSERT INTO seal_fixes (id, recorded_at, lon, lat) VALUES (?, ?, ?, ?)`,
		f.ID, f.Time.UTC().Format(timeLayout), toNull(f.Lon), toNull(f.Lat))
	return err
}

func (db *DB) InsertParticleFix(p ParticleFix) error {
	_, err := db.Exec(`INSERT INTO particle_fixes (id, recorded_at, lon, lat, u, v) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Time.UTC().Format(timeLayout), toNull(p.Lon), toNull(p.Lat), toNull(p.U), toNull(p.V))
	return err
}

// Seal is one row of the covariate table. Seals without a recorded mass are
// excluded from the analysis before alignment.
type Seal struct {
	ID     string
	MassKg sql.NullFloat64
}

// ParticleFix is a particle position with the auxiliary current velocity
// components carried by the particle dataset.
type ParticleFix struct {
	geo.Fix
	U float64
	V float64
}

// ReadSeals returns the covariate table ordered by id.
func (db *DB) ReadSeals() ([]Seal, error) {
	rows, err := db.Query(`SELECT id, mass_kg FROM seals ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: read seals: %w", err)
	}
	defer rows.Close()

	var out []Seal
	for rows.Next() {
		var s Seal
		if err := rows.Scan(&s.ID, &s.MassKg); err != nil {
			return nil, fmt.Errorf("store: scan seal row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReadSealFixes returns all seal position fixes for one individual, ordered
// by time.
func (db *DB) ReadSealFixes(id string) ([]geo.Fix, error) {
	rows, err := db.Query(`SELECT id, recorded_at, lon, lat FROM seal_fixes WHERE id = ? ORDER BY recorded_at`, id)
	if err != nil {
		return nil, fmt.Errorf("store: read seal fixes for %s: %w", id, err)
	}
	defer rows.Close()

	var out []geo.Fix
	for rows.Next() {
		f, err := scanFix(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ReadParticleFixes returns all particle positions for one individual's
// simulated particle, ordered by time, with current u/v components.
func (db *DB) ReadParticleFixes(id string) ([]ParticleFix, error) {
	rows, err := db.Query(`SELECT id, recorded_at, lon, lat, u, v FROM particle_fixes WHERE id = ? ORDER BY recorded_at`, id)
	if err != nil {
		return nil, fmt.Errorf("store: read particle fixes for %s: %w", id, err)
	}
	defer rows.Close()

	var out []ParticleFix
	for rows.Next() {
		var (
			p          ParticleFix
			ts         string
			lon, lat   sql.NullFloat64
			uVal, vVal sql.NullFloat64
		)
		if err := rows.Scan(&p.ID, &ts, &lon, &lat, &uVal, &vVal); err != nil {
			return nil, fmt.Errorf("store: scan particle row: %w", err)
		}
		t, err := time.Parse(timeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("store: bad particle timestamp %q: %w", ts, err)
		}
		p.Time = t.UTC()
		p.Lon = fromNull(lon)
		p.Lat = fromNull(lat)
		p.U = fromNull(uVal)
		p.V = fromNull(vVal)
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanFix(rows *sql.Rows) (geo.Fix, error) {
	var (
		f        geo.Fix
		ts       string
		lon, lat sql.NullFloat64
	)
	if err := rows.Scan(&f.ID, &ts, &lon, &lat); err != nil {
		return geo.Fix{}, fmt.Errorf("store: scan fix row: %w", err)
	}
	t, err := time.Parse(timeLayout, ts)
	if err != nil {
		return geo.Fix{}, fmt.Errorf("store: bad fix timestamp %q: %w", ts, err)
	}
	f.Time = t.UTC()
	f.Lon = fromNull(lon)
	f.Lat = fromNull(lat)
	return f, nil
}

// toNull maps NaN to NULL so sqlite never sees a NaN float.
func toNull(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// fromNull maps NULL back to NaN.
func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
