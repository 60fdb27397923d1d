package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moshix/searchserver/config"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	return m, reg
}

func TestNew_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestMetrics_Sessions(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.Message()
	m.Command("search")
	m.Command("search")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CommandsTotal.WithLabelValues("search")))
}

func TestMetrics_Observer(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.ObserveFile(config.KindPDF, errors.New("bad xref"))
	m.ObserveFile(config.KindText, nil)
	m.ObserveSearch("matches", 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FileTasksTotal.WithLabelValues("pdf", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FileTasksTotal.WithLabelValues("text", "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SearchDuration))
}

func TestRouter_ServesMetricsAndHealth(t *testing.T) {
	m, reg := newTestMetrics(t)
	require.NoError(t, m.WatchQueue(func() int { return 7 }))
	m.SessionOpened()

	srv := httptest.NewServer(NewRouter(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "searchserver_sessions_active 1")
	assert.Contains(t, string(body), "searchserver_pool_queue_depth 7")

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
