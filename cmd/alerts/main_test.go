package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/briangreenhill/alertsua/cache"
)

const cliActiveBody = `{"alerts":[
 {"id":7,"location_title":"Сумська область","location_type":"oblast",
  "started_at":"2024-05-01T08:00:00.000Z","finished_at":null,
  "updated_at":"2024-05-01T08:00:00.000Z","alert_type":"air_raid",
  "location_uid":"20","location_oblast":"Сумська область","location_oblast_uid":20},
 {"id":8,"location_title":"Нікопольський район","location_type":"raion",
  "started_at":"2024-05-01T09:00:00.000Z","finished_at":null,
  "updated_at":"2024-05-01T09:00:00.000Z","alert_type":"artillery_shelling",
  "location_uid":"105","location_oblast":"Дніпропетровська область","location_oblast_uid":9}
],"meta":{"last_updated_at":"2024-05-01T09:01:00.000Z"},"disclaimer":""}`

func newCLIServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			if r.Header.Get("Authorization") != "Bearer cli-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/v1/alerts/active.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(cliActiveBody))
	})
	r.Get("/v1/regions/{uid}/alerts/{period}.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"alerts":[]}`))
	})
	r.Get("/v1/iot/active_air_raid_alerts_by_oblast.json", func(w http.ResponseWriter, _ *http.Request) {
		codes := []byte(strings.Repeat("N", 27))
		codes[19] = 'A'
		_, _ = w.Write([]byte(`"` + string(codes) + `"`))
	})
	r.Get("/v1/iot/active_air_raid_alerts/{uid}.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`"A"`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, &hits
}

// cliEnv points the CLI at srv with a clean environment
func cliEnv(t *testing.T, srv *httptest.Server) {
	t.Helper()
	for _, kv := range os.Environ() {
		if k, _, _ := strings.Cut(kv, "="); strings.HasPrefix(k, "ALERTS_") {
			t.Setenv(k, "")
		}
	}
	t.Setenv("ALERTS_IN_UA_TOKEN", "cli-token")
	t.Setenv("ALERTS_IN_UA_BASE_URL", srv.URL)
	t.Setenv("ALERTS_LOG_LEVEL", "error")
	t.Setenv("ALERTS_CACHE_BACKEND", "memory")
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestActiveText(t *testing.T) {
	srv, _ := newCLIServer(t)
	cliEnv(t, srv)

	out, _, err := run(t, "active")
	require.NoError(t, err)
	assert.Contains(t, out, "Сумська область")
	assert.Contains(t, out, "Нікопольський район")
	assert.Contains(t, out, "2 alerts")
}

func TestActiveFilteredJSON(t *testing.T) {
	srv, _ := newCLIServer(t)
	cliEnv(t, srv)

	out, _, err := run(t, "active", "--type", "artillery_shelling", "-o", "json")
	require.NoError(t, err)

	var got struct {
		Alerts []struct {
			ID          int `json:"id"`
			LocationUID int `json:"location_uid"`
		} `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Alerts, 1)
	assert.Equal(t, 8, got.Alerts[0].ID)
	assert.Equal(t, 105, got.Alerts[0].LocationUID)
}

func TestStatusByOblastYAML(t *testing.T) {
	srv, _ := newCLIServer(t)
	cliEnv(t, srv)

	out, _, err := run(t, "status", "--oblast-level-only", "-o", "yaml")
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Сумська область", got[0]["name"])
	assert.Equal(t, "active", got[0]["status"])
}

func TestStatusSingleLocation(t *testing.T) {
	srv, _ := newCLIServer(t)
	cliEnv(t, srv)

	out, _, err := run(t, "status", "м. Київ")
	require.NoError(t, err)
	assert.Equal(t, "м. Київ (31): active\n", out)
}

func TestHistoryInvalidPeriod(t *testing.T) {
	srv, hits := newCLIServer(t)
	cliEnv(t, srv)

	_, _, err := run(t, "history", "31", "--period", "year_ago")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_parameter")
	assert.Zero(t, atomic.LoadInt32(hits))
}

func TestMissingToken(t *testing.T) {
	srv, _ := newCLIServer(t)
	cliEnv(t, srv)
	t.Setenv("ALERTS_IN_UA_TOKEN", "")

	_, _, err := run(t, "active")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALERTS_IN_UA_TOKEN")

	out, _, err := run(t, "locations")
	require.NoError(t, err)
	assert.Contains(t, out, "Хмельницька область")
	assert.Contains(t, out, "31")
}

func TestUnknownOutputFormat(t *testing.T) {
	srv, _ := newCLIServer(t)
	cliEnv(t, srv)

	_, _, err := run(t, "active", "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestFileCacheAcrossRuns(t *testing.T) {
	srv, hits := newCLIServer(t)
	cliEnv(t, srv)
	dir := filepath.Join(t.TempDir(), "cache")
	t.Setenv("ALERTS_CACHE_BACKEND", "file")
	t.Setenv("ALERTS_CACHE_DIR", dir)

	_, _, err := run(t, "active")
	require.NoError(t, err)
	_, _, err = run(t, "active")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	_, _, err = run(t, "active", "--no-cache")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))

	out, _, err := run(t, "cache", "clear", "--tag", cache.TypeActiveAlerts)
	require.NoError(t, err)
	assert.Contains(t, out, "active_alerts")

	fc, err := cache.NewFileCache(dir)
	require.NoError(t, err)
	assert.NotContains(t, fc.Keys(context.Background()), "/v1/alerts/active.json")

	out, _, err = run(t, "cache", "clear", "--expired")
	require.NoError(t, err)
	assert.Contains(t, out, "expired entries removed")

	_, _, err = run(t, "cache", "clear")
	require.NoError(t, err)
	assert.Empty(t, fc.Keys(context.Background()))
}

func TestCacheClearDisabled(t *testing.T) {
	srv, _ := newCLIServer(t)
	cliEnv(t, srv)
	t.Setenv("ALERTS_CACHE_BACKEND", "none")

	out, _, err := run(t, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "caching is disabled")
}

func TestStats(t *testing.T) {
	srv, _ := newCLIServer(t)
	cliEnv(t, srv)

	_, errOut, err := run(t, "active", "--stats")
	require.NoError(t, err)
	assert.Contains(t, errOut, `alertsua_cache_lookups_total{result=miss,type=active_alerts} 1`)
}
