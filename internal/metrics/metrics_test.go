package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"price-notifications/internal/database"
	"price-notifications/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outcomes() []types.Outcome {
	return []types.Outcome{
		{Event: types.AlertEvent{AssetID: "bitcoin", Direction: types.Above}},
		{Event: types.AlertEvent{AssetID: "ethereum", Direction: types.Below}, Err: errors.New("rejected")},
	}
}

func TestObserveTick(t *testing.T) {
	m := New()
	at := time.Unix(1700000000, 0)

	m.ObserveTick(at, false, []string{"unknown-coin"}, outcomes())
	m.ObserveTick(at, true, nil, nil)

	assert.Equal(t, 2.0, GetMetricValue(m.Ticks))
	assert.Equal(t, 1.0, GetMetricValue(m.TickFailures))
	assert.Equal(t, 1.0, GetMetricValue(m.SkippedAssets.WithLabelValues("unknown-coin")))
	assert.Equal(t, 1.0, GetMetricValue(m.Alerts.WithLabelValues("bitcoin", "above")))
	assert.Equal(t, 1.0, GetMetricValue(m.MessagesSent))
	assert.Equal(t, 1.0, GetMetricValue(m.MessagesFailed))
	assert.Equal(t, 1700000000.0, GetMetricValue(m.LastTick))
}

func TestObserveTick_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveTick(time.Now(), false, nil, outcomes()) })
}

func TestSaveAndLoadFromDB(t *testing.T) {
	require.NoError(t, database.InitDB(filepath.Join(t.TempDir(), "catalog.db")))
	t.Cleanup(func() { database.CloseDB() })

	m := New()
	m.ObserveTick(time.Now(), false, []string{"unknown-coin"}, outcomes())
	m.SaveToDB()

	restored := New()
	restored.LoadFromDB()

	assert.Equal(t, 1.0, GetMetricValue(restored.Ticks))
	assert.Equal(t, 1.0, GetMetricValue(restored.MessagesSent))
	assert.Equal(t, 1.0, GetMetricValue(restored.MessagesFailed))
	assert.Equal(t, 1.0, GetMetricValue(restored.SkippedAssets.WithLabelValues("unknown-coin")))
	assert.Equal(t, 1.0, GetMetricValue(restored.Alerts.WithLabelValues("ethereum", "below")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Ticks.Inc()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "price_notifications_listener_ticks 1")
}

func TestGetMetricValue(t *testing.T) {
	m := New()
	m.TrackedAssets.Set(3)
	assert.Equal(t, 3.0, GetMetricValue(m.TrackedAssets))
}
