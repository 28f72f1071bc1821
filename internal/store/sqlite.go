package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/parcel-leads/internal/snapshot"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	borough    TEXT NOT NULL,
	area_code  TEXT NOT NULL,
	area_name  TEXT NOT NULL DEFAULT '',
	version    INTEGER NOT NULL,
	leads      INTEGER NOT NULL DEFAULT 0,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_snapshots_area ON snapshots(borough, area_code, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *snapshot.Snapshot) (*Record, error) {
	payload, err := snapshot.Marshal(snap)
	if err != nil {
		return nil, err
	}
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, borough, area_code, area_name, version, leads, payload, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, snap.Borough, snap.AreaCode, snap.AreaName, snap.Version, len(snap.Leads), string(payload), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert snapshot")
	}
	return newRecord(id, snap, now), nil
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, borough, areaCode string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, borough, area_code, area_name, version, leads, created_at, payload FROM snapshots
		 WHERE borough = ? AND area_code = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		borough, areaCode,
	)

	var r Record
	var payload string
	err := row.Scan(&r.ID, &r.Borough, &r.AreaCode, &r.AreaName, &r.Version, &r.Leads, &r.CreatedAt, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "%s/%s", borough, areaCode)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest snapshot")
	}

	r.Snapshot, err = snapshot.Unmarshal([]byte(payload))
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, filter Filter) ([]Record, error) {
	query := `SELECT id, borough, area_code, area_name, version, leads, created_at FROM snapshots WHERE 1=1`
	var args []any

	if filter.Borough != "" {
		query += ` AND borough = ?`
		args = append(args, filter.Borough)
	}
	if filter.AreaCode != "" {
		query += ` AND area_code = ?`
		args = append(args, filter.AreaCode)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, filter.limit())

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close() //nolint:errcheck

	out := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Borough, &r.AreaCode, &r.AreaName, &r.Version, &r.Leads, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}
