package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                     "/",
		"/":                                    "/",
		"/ws":                                  "/ws",
		"/api/health":                          "/api/health",
		"/api/markets":                         "/api/markets",
		"/api/markets/42":                      "/api/markets/:id",
		"/api/markets/42/price":                "/api/markets/:id/price",
		"/api/pairs/0xaa/0xbb/decimals":        "/api/pairs/:quote/:payout/decimals",
		"/api/auctioneers/0x70997970C51812dc3": "/api/auctioneers/:address",
		"/api/admin/snapshot":                  "/api/admin/snapshot",
	}
	for in, want := range cases {
		assert.Equal(t, want, CanonicalPath(in), in)
	}
}

func TestInstrumentCountsRequests(t *testing.T) {
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/markets/:id", "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/markets/7", nil))
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/markets/:id", "418"))
	assert.Equal(t, before+1, after)
}

func TestObservers(t *testing.T) {
	okBefore := testutil.ToFloat64(priceQueries.WithLabelValues("pair", "ok"))
	errBefore := testutil.ToFloat64(priceQueries.WithLabelValues("pair", "error"))
	ObservePriceQuery("pair", time.Now(), nil)
	ObservePriceQuery("pair", time.Now(), errors.New("stale"))
	assert.Equal(t, okBefore+1, testutil.ToFloat64(priceQueries.WithLabelValues("pair", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(priceQueries.WithLabelValues("pair", "error")))

	snapBefore := testutil.ToFloat64(snapshots.WithLabelValues("error"))
	ObserveSnapshot(errors.New("boom"))
	assert.Equal(t, snapBefore+1, testutil.ToFloat64(snapshots.WithLabelValues("error")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveSnapshot(nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "bondoracle_snapshot_writes_total")
}
