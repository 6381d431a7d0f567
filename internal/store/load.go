package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/RemyAM27/projet-dashboard/internal/etl"
	"github.com/RemyAM27/projet-dashboard/internal/observability"
)

const accidentsSchema = `CREATE TABLE accidents_staging (
	id            TEXT PRIMARY KEY,
	dep           TEXT NOT NULL,
	com           TEXT,
	date          TEXT NOT NULL,
	time          TEXT,
	lat           REAL,
	lon           REAL,
	collision     TEXT,
	light         TEXT,
	weather       TEXT,
	road_category TEXT
)`

const victimsSchema = `CREATE TABLE victims_staging (
	accident_id TEXT NOT NULL REFERENCES accidents_staging(id),
	victim_id   TEXT NOT NULL,
	role        TEXT,
	sex         TEXT,
	age         INTEGER,
	severity    TEXT NOT NULL,
	major       INTEGER
)`

// indexes created after the swap, named after the live table names.
var indexes = []string{
	`CREATE INDEX idx_accidents_dep ON accidents(dep)`,
	`CREATE INDEX idx_accidents_date ON accidents(date)`,
	`CREATE INDEX idx_victims_accident ON victims(accident_id)`,
	`CREATE INDEX idx_victims_severity ON victims(severity)`,
}

// LoadResult reports the row counts of a successful full refresh.
type LoadResult struct {
	Accidents int
	Victims   int
}

type Loader struct {
	store  *Store
	logger *slog.Logger
}

func NewLoader(store *Store, logger *slog.Logger) *Loader {
	return &Loader{store: store, logger: observability.Stage(logger, "load")}
}

// Load replaces the store contents with the cleaned CSVs under
// cleanedDir. Rows are inserted into staging tables and swapped in a
// single transaction, so any failure (unreadable row, duplicate id,
// orphaned victim) rolls back and leaves the previous store contents
// untouched.
func (l *Loader) Load(ctx context.Context, cleanedDir string) (LoadResult, error) {
	ctx, span := observability.StartSpan(ctx, "store.load")
	defer span.Finish()

	res, err := l.load(ctx, cleanedDir)
	if err != nil {
		span.SetError(err)
		observability.LoadFailures.Inc()
		return LoadResult{}, err
	}

	observability.LoadsTotal.Inc()
	l.logger.Info("store refreshed",
		"accidents", res.Accidents,
		"victims", res.Victims,
		"path", l.store.path,
	)

	// Refresh planner statistics; cosmetic, so failure is not fatal.
	if _, err := l.store.db.ExecContext(ctx, "ANALYZE"); err != nil {
		l.logger.Warn("analyze failed", "error", err)
	}

	return res, nil
}

func (l *Loader) load(ctx context.Context, cleanedDir string) (LoadResult, error) {
	tx, err := l.store.db.BeginTx(ctx, nil)
	if err != nil {
		return LoadResult{}, err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DROP TABLE IF EXISTS victims_staging`,
		`DROP TABLE IF EXISTS accidents_staging`,
		accidentsSchema,
		victimsSchema,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return LoadResult{}, fmt.Errorf("prepare staging: %w", err)
		}
	}

	nAcc, err := l.loadAccidents(ctx, tx, filepath.Join(cleanedDir, etl.AccidentsFile))
	if err != nil {
		return LoadResult{}, err
	}

	nVic, err := l.loadVictims(ctx, tx, filepath.Join(cleanedDir, etl.VictimsFile))
	if err != nil {
		return LoadResult{}, err
	}

	// Orphans violate the staging foreign key at insert time already;
	// this is the table-level integrity check the swap depends on.
	var orphan sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT v.accident_id FROM victims_staging v
		LEFT JOIN accidents_staging a ON a.id = v.accident_id
		WHERE a.id IS NULL LIMIT 1`).Scan(&orphan)
	if err != nil && err != sql.ErrNoRows {
		return LoadResult{}, err
	}
	if orphan.Valid {
		return LoadResult{}, fmt.Errorf("load victims: accident %q referenced by victims does not exist", orphan.String)
	}

	for _, stmt := range []string{
		`DROP TABLE IF EXISTS victims`,
		`DROP TABLE IF EXISTS accidents`,
		`ALTER TABLE accidents_staging RENAME TO accidents`,
		`ALTER TABLE victims_staging RENAME TO victims`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return LoadResult{}, fmt.Errorf("swap tables: %w", err)
		}
	}

	for _, stmt := range indexes {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return LoadResult{}, fmt.Errorf("create index: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return LoadResult{}, err
	}
	return LoadResult{Accidents: nAcc, Victims: nVic}, nil
}

func (l *Loader) loadAccidents(ctx context.Context, tx *sql.Tx, path string) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO accidents_staging
		(id, dep, com, date, time, lat, lon, collision, light, weather, road_category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	return readCleaned(path, len(etl.AccidentsHeader()), func(rowNum int, rec []string) error {
		_, err := stmt.ExecContext(ctx,
			rec[0], rec[1], nullable(rec[2]), rec[3], nullable(rec[4]),
			nullableFloat(rec[5]), nullableFloat(rec[6]),
			nullable(rec[7]), nullable(rec[8]), nullable(rec[9]), nullable(rec[10]),
		)
		if err != nil {
			return fmt.Errorf("load accidents: row %d: %w", rowNum, err)
		}
		return nil
	})
}

func (l *Loader) loadVictims(ctx context.Context, tx *sql.Tx, path string) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO victims_staging
		(accident_id, victim_id, role, sex, age, severity, major)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	return readCleaned(path, len(etl.VictimsHeader()), func(rowNum int, rec []string) error {
		_, err := stmt.ExecContext(ctx,
			rec[0], rec[1], nullable(rec[2]), nullable(rec[3]),
			nullableInt(rec[4]), rec[5], nullableInt(rec[6]),
		)
		if err != nil {
			return fmt.Errorf("load victims: row %d: %w", rowNum, err)
		}
		return nil
	})
}

// readCleaned streams a cleaned CSV, calling insert for every data row.
// The cleaned files are produced by this repository, so a malformed row
// here is a load error, not something to skip.
func readCleaned(path string, fields int, insert func(rowNum int, rec []string) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open cleaned csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = fields

	if _, err := r.Read(); err != nil {
		return 0, fmt.Errorf("read header of %s: %w", path, err)
	}

	n := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read %s: row %d: %w", path, n+1, err)
		}
		if err := insert(n+1, rec); err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableFloat(v string) any {
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return f
}

func nullableInt(v string) any {
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return i
}
