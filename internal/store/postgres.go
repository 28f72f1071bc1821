package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/parcel-leads/internal/snapshot"
)

// Pool is the subset of *pgxpool.Pool the store uses. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	borough    TEXT NOT NULL,
	area_code  TEXT NOT NULL,
	area_name  TEXT NOT NULL DEFAULT '',
	version    INTEGER NOT NULL,
	leads      INTEGER NOT NULL DEFAULT 0,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_snapshots_area ON snapshots(borough, area_code, created_at DESC);

CREATE TABLE IF NOT EXISTS snapshot_leads (
	snapshot_id TEXT NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
	rank        INTEGER NOT NULL,
	bbl         TEXT NOT NULL,
	address     TEXT NOT NULL DEFAULT '',
	owner_name  TEXT NOT NULL DEFAULT '',
	score       DOUBLE PRECISION NOT NULL,
	badges      TEXT[] NOT NULL DEFAULT '{}',
	PRIMARY KEY (snapshot_id, rank)
);

CREATE INDEX IF NOT EXISTS idx_snapshot_leads_bbl ON snapshot_leads(bbl);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveSnapshot inserts the snapshot and copies its leads into
// snapshot_leads in one transaction.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *snapshot.Snapshot) (_ *Record, err error) {
	payload, err := snapshot.Marshal(snap)
	if err != nil {
		return nil, err
	}
	id := uuid.New().String()
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO snapshots (id, borough, area_code, area_name, version, leads, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, snap.Borough, snap.AreaCode, snap.AreaName, snap.Version, len(snap.Leads), payload, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert snapshot")
	}
	if err = copyLeads(ctx, tx, id, snap.Leads); err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit")
	}
	return newRecord(id, snap, now), nil
}

var leadColumns = []string{"snapshot_id", "rank", "bbl", "address", "owner_name", "score", "badges"}

// copyLeads bulk-inserts leads with the COPY protocol.
func copyLeads(ctx context.Context, tx pgx.Tx, snapshotID string, leads []snapshot.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	rows := make([][]any, len(leads))
	for i, l := range leads {
		rows[i] = []any{snapshotID, i + 1, l.BBL, l.Address, l.OwnerName, l.Score, l.SignalBadges}
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"snapshot_leads"}, leadColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return eris.Wrap(err, "postgres: copy leads")
	}
	if n != int64(len(rows)) {
		return eris.Errorf("postgres: copied %d of %d leads", n, len(rows))
	}
	return nil
}

// LatestSnapshot returns the newest snapshot for an area.
func (s *PostgresStore) LatestSnapshot(ctx context.Context, borough, areaCode string) (*Record, error) {
	var r Record
	var payload []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, borough, area_code, area_name, version, leads, created_at, payload FROM snapshots WHERE borough = $1 AND area_code = $2 ORDER BY created_at DESC LIMIT 1`,
		borough, areaCode,
	).Scan(&r.ID, &r.Borough, &r.AreaCode, &r.AreaName, &r.Version, &r.Leads, &r.CreatedAt, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "%s/%s", borough, areaCode)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest snapshot")
	}

	r.Snapshot, err = snapshot.Unmarshal(payload)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, filter Filter) ([]Record, error) {
	query := `SELECT id, borough, area_code, area_name, version, leads, created_at FROM snapshots WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Borough != "" {
		query += fmt.Sprintf(` AND borough = $%d`, argIdx)
		args = append(args, filter.Borough)
		argIdx++
	}
	if filter.AreaCode != "" {
		query += fmt.Sprintf(` AND area_code = $%d`, argIdx)
		args = append(args, filter.AreaCode)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, filter.limit())
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Borough, &r.AreaCode, &r.AreaName, &r.Version, &r.Leads, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}
