package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/parcel-leads/internal/config"
	"github.com/sells-group/parcel-leads/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.SODA.BaseURL = "https://data.example.org"
	c.SODA.PageSize = 1000
	c.SODA.BatchSize = 50
	c.SODA.RatePerSec = 5
	c.SODA.AppToken = "tok"
	c.Datasets.Base = "base-id"
	c.Linker.AreaColumn = "zipcode"
	c.Scoring = config.DefaultScoringConfig()
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "leads.db")
	c.Server.Port = 8080
	return c
}

func TestInitEnv(t *testing.T) {
	env, err := initEnv(context.Background(), testConfig(t), false, nil)
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Pipeline)
	assert.NotNil(t, env.Metrics)
	assert.NotNil(t, env.Registry)
	assert.Nil(t, env.Store)

	families, err := env.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestInitEnv_WithStore(t *testing.T) {
	env, err := initEnv(context.Background(), testConfig(t), true, nil)
	require.NoError(t, err)
	defer env.Close()

	require.NotNil(t, env.Store)
	recs, err := env.Store.ListSnapshots(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestInitEnv_InvalidConfig(t *testing.T) {
	c := testConfig(t)
	c.Datasets.Base = ""
	_, err := initEnv(context.Background(), c, false, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "datasets.base")
}

func TestInitEnv_InvalidScoring(t *testing.T) {
	c := testConfig(t)
	c.Scoring.MaxLeads = 0
	_, err := initEnv(context.Background(), c, false, nil)
	require.Error(t, err)
}

func TestInitEnv_BadStoreDriver(t *testing.T) {
	c := testConfig(t)
	c.Store.Driver = "mysql"
	_, err := initEnv(context.Background(), c, true, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestNewFetcher(t *testing.T) {
	c := testConfig(t)
	f := newFetcher(c.SODA)
	require.NotNil(t, f)
	assert.Len(t, f.Options().AdaptiveLimiters, 1)
	assert.Equal(t, "tok", f.Options().Headers["X-App-Token"])

	c.SODA.RatePerSec = 0
	c.SODA.AppToken = ""
	f = newFetcher(c.SODA)
	assert.Empty(t, f.Options().AdaptiveLimiters)
}

func TestNewFetcher_SendsAppToken(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-App-Token")
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := testConfig(t)
	c.SODA.BaseURL = srv.URL
	c.SODA.RatePerSec = 50
	c.SODA.AppToken = "tok-live"

	body, err := newFetcher(c.SODA).Download(context.Background(), srv.URL+"/resource/x.json")
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "tok-live", got)
}
