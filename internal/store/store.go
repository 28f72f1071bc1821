// Package store persists published snapshots so the latest one for an
// area can be served without re-running the pipeline.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/parcel-leads/internal/config"
	"github.com/sells-group/parcel-leads/internal/snapshot"
)

// ErrNotFound is returned when no snapshot matches a lookup.
var ErrNotFound = eris.New("store: snapshot not found")

const defaultListLimit = 100

// Record is one stored snapshot. Snapshot is nil in list results.
type Record struct {
	ID        string             `json:"id"`
	Borough   string             `json:"borough"`
	AreaCode  string             `json:"area_code"`
	AreaName  string             `json:"area_name"`
	Version   int                `json:"version"`
	Leads     int                `json:"leads"`
	CreatedAt time.Time          `json:"created_at"`
	Snapshot  *snapshot.Snapshot `json:"snapshot,omitempty"`
}

// Filter narrows ListSnapshots. Empty fields match everything.
type Filter struct {
	Borough  string `json:"borough,omitempty"`
	AreaCode string `json:"area_code,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// Store defines snapshot persistence.
type Store interface {
	SaveSnapshot(ctx context.Context, snap *snapshot.Snapshot) (*Record, error)
	LatestSnapshot(ctx context.Context, borough, areaCode string) (*Record, error)
	ListSnapshots(ctx context.Context, filter Filter) ([]Record, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the store selected by cfg.Driver and applies migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "parcel-leads.db"
		}
		s, err = NewSQLite(dsn)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func newRecord(id string, snap *snapshot.Snapshot, createdAt time.Time) *Record {
	return &Record{
		ID:        id,
		Borough:   snap.Borough,
		AreaCode:  snap.AreaCode,
		AreaName:  snap.AreaName,
		Version:   snap.Version,
		Leads:     len(snap.Leads),
		CreatedAt: createdAt,
		Snapshot:  snap,
	}
}
