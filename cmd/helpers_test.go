package main

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/parcel-leads/internal/config"
	"github.com/sells-group/parcel-leads/internal/model"
	"github.com/sells-group/parcel-leads/internal/snapshot"
	"github.com/sells-group/parcel-leads/internal/store"
)

func testSnapshot(area model.Area, leads int) *snapshot.Snapshot {
	snap := &snapshot.Snapshot{
		Version:     snapshot.CurrentVersion,
		LastUpdated: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Borough:     area.Borough,
		AreaCode:    area.Code,
		AreaName:    area.Name,
		Leads:       []snapshot.Lead{},
		Progress:    model.NewProgress(),
	}
	for i := 0; i < leads; i++ {
		snap.Leads = append(snap.Leads, snapshot.Lead{
			BBL:          fmt.Sprintf("%s%05d%04d", area.Borough, 100+i, 1),
			Address:      fmt.Sprintf("%d MAIN ST", 10+i),
			Score:        4.5 - float64(i),
			SignalBadges: []string{"Owned 15 yrs (15+)"},
		})
	}
	snap.Stats.DisplayedLeads = leads
	snap.Stats.TotalAnalyzed = leads
	return snap
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "leads.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}
