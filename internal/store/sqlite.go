package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)
)

// Schema for the metric persistence layer. Versions are tracked in the
// schema_versions table.
var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_versions (
    version     INTEGER PRIMARY KEY,
    applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS samples (
    ts             INTEGER NOT NULL,
    host           TEXT NOT NULL,
    cpu_pct        REAL NOT NULL DEFAULT 0.0,
    mem_pct        REAL NOT NULL DEFAULT 0.0,
    swap_pct       REAL NOT NULL DEFAULT 0.0,
    disk_read_bps  REAL NOT NULL DEFAULT 0.0,
    disk_write_bps REAL NOT NULL DEFAULT 0.0,
    net_up_bps     REAL NOT NULL DEFAULT 0.0,
    net_down_bps   REAL NOT NULL DEFAULT 0.0,
    proc_count     INTEGER NOT NULL DEFAULT 0,
    cpu_temp       REAL
);
CREATE INDEX IF NOT EXISTS idx_samples_ts   ON samples(ts);
CREATE INDEX IF NOT EXISTS idx_samples_host ON samples(host, ts);

CREATE TABLE IF NOT EXISTS models (
    name        TEXT PRIMARY KEY,
    algo        TEXT NOT NULL,
    version     TEXT NOT NULL,
    trained_at  DATETIME NOT NULL,
    meta_json   TEXT NOT NULL DEFAULT '',
    blob        BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    ts          INTEGER NOT NULL,
    type        TEXT NOT NULL,
    score       REAL NOT NULL DEFAULT 0.0,
    metric_tags TEXT NOT NULL DEFAULT '',
    explanation TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_events_ts   ON events(ts DESC);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
`,
	},
}

// sqliteStore is the SQLite-backed implementation of Store.
type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path and
// runs all pending schema migrations. Pass ":memory:" for an in-memory store.
func NewSQLiteStore(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// WAL mode lets the sampler write while detection reads.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA synchronous=NORMAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set synchronous: %w", err)
	}

	s := &sqliteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// migrate applies any unapplied migrations in order.
func (s *sqliteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue // already applied
		}

		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}

		if _, err := s.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ─── Samples ──────────────────────────────────────────────────────────────────

func (s *sqliteStore) WriteSamples(ctx context.Context, samples []Sample) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO samples(ts, host, cpu_pct, mem_pct, swap_pct,
            disk_read_bps, disk_write_bps, net_up_bps, net_down_bps,
            proc_count, cpu_temp)
        VALUES(?,?,?,?,?,?,?,?,?,?,?)
    `)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, sm := range samples {
		var temp interface{}
		if sm.CPUTemp != nil {
			temp = *sm.CPUTemp
		}
		if _, err := stmt.ExecContext(ctx,
			sm.TS, sm.Host, sm.CPUPct, sm.MemPct, sm.SwapPct,
			sm.DiskReadBPS, sm.DiskWriteBPS, sm.NetUpBPS, sm.NetDownBPS,
			sm.ProcCount, temp,
		); err != nil {
			return 0, fmt.Errorf("insert sample ts=%d: %w", sm.TS, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(samples), nil
}

func (s *sqliteStore) ReadSamples(ctx context.Context, start, end int64, host string) ([]Sample, error) {
	query := `
        SELECT ts, host, cpu_pct, mem_pct, swap_pct,
               disk_read_bps, disk_write_bps, net_up_bps, net_down_bps,
               proc_count, cpu_temp
        FROM samples
        WHERE ts BETWEEN ? AND ?`
	args := []interface{}{start, end}

	if host != "" {
		query += ` AND host = ?`
		args = append(args, host)
	}
	query += ` ORDER BY ts ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var sm Sample
		var temp sql.NullFloat64
		if err := rows.Scan(&sm.TS, &sm.Host, &sm.CPUPct, &sm.MemPct, &sm.SwapPct,
			&sm.DiskReadBPS, &sm.DiskWriteBPS, &sm.NetUpBPS, &sm.NetDownBPS,
			&sm.ProcCount, &temp); err != nil {
			return nil, err
		}
		if temp.Valid {
			v := temp.Float64
			sm.CPUTemp = &v
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

func (s *sqliteStore) PruneSamples(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM samples WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ─── Model artifacts ──────────────────────────────────────────────────────────

func (s *sqliteStore) SaveModel(ctx context.Context, rec *ModelRecord) error {
	if rec.TrainedAt.IsZero() {
		rec.TrainedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO models(name, algo, version, trained_at, meta_json, blob)
        VALUES(?,?,?,?,?,?)
        ON CONFLICT(name) DO UPDATE SET
            algo       = excluded.algo,
            version    = excluded.version,
            trained_at = excluded.trained_at,
            meta_json  = excluded.meta_json,
            blob       = excluded.blob
    `, rec.Name, rec.Algo, rec.Version, rec.TrainedAt.Format(time.RFC3339), rec.Meta, rec.Blob)
	if err != nil {
		return fmt.Errorf("save model %q: %w", rec.Name, err)
	}
	return nil
}

func (s *sqliteStore) SaveModels(ctx context.Context, recs ...*ModelRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO models(name, algo, version, trained_at, meta_json, blob)
        VALUES(?,?,?,?,?,?)
        ON CONFLICT(name) DO UPDATE SET
            algo       = excluded.algo,
            version    = excluded.version,
            trained_at = excluded.trained_at,
            meta_json  = excluded.meta_json,
            blob       = excluded.blob
    `)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range recs {
		if rec.TrainedAt.IsZero() {
			rec.TrainedAt = time.Now().UTC()
		}
		if _, err := stmt.ExecContext(ctx,
			rec.Name, rec.Algo, rec.Version, rec.TrainedAt.Format(time.RFC3339), rec.Meta, rec.Blob,
		); err != nil {
			return fmt.Errorf("save model %q: %w", rec.Name, err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) LoadModel(ctx context.Context, name string) (*ModelRecord, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT name, algo, version, trained_at, meta_json, blob
        FROM models WHERE name = ?
    `, name)

	rec := &ModelRecord{}
	var trainedAt string
	err := row.Scan(&rec.Name, &rec.Algo, &rec.Version, &trainedAt, &rec.Meta, &rec.Blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load model %q: %w", name, err)
	}
	if t, perr := time.Parse(time.RFC3339, trainedAt); perr == nil {
		rec.TrainedAt = t
	}
	return rec, nil
}

// ─── Events ───────────────────────────────────────────────────────────────────

func (s *sqliteStore) WriteEvent(ctx context.Context, rec *EventRecord) (int64, error) {
	if rec.TS == 0 {
		rec.TS = time.Now().UTC().Unix()
	}
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO events(ts, type, score, metric_tags, explanation)
        VALUES(?,?,?,?,?)
    `, rec.TS, rec.Type, rec.Score, rec.MetricTags, rec.Explanation)
	if err != nil {
		return 0, fmt.Errorf("write event: %w", err)
	}
	return res.LastInsertId()
}

func (s *sqliteStore) ReadEvents(ctx context.Context, start, end int64, eventType string) ([]*EventRecord, error) {
	query := `
        SELECT id, ts, type, score, metric_tags, explanation
        FROM events
        WHERE ts BETWEEN ? AND ?`
	args := []interface{}{start, end}

	if eventType != "" {
		query += ` AND type = ?`
		args = append(args, eventType)
	}
	query += ` ORDER BY ts DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*EventRecord
	for rows.Next() {
		rec := &EventRecord{}
		if err := rows.Scan(&rec.ID, &rec.TS, &rec.Type, &rec.Score, &rec.MetricTags, &rec.Explanation); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
