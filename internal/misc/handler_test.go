package misc

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aboudjelida/aimenboudev/internal/middleware"
	"github.com/aboudjelida/aimenboudev/internal/telemetry/metrics"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_rootAndVersion(t *testing.T) {
	metricsManager := metrics.NewTestManager()

	r := mux.NewRouter()
	r.Use(middleware.PanicRecovery(metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(metricsManager))
	r.Use(middleware.Cors())
	r.Use(middleware.DrainAndCloseRequest())

	handler := NewHandler("v1.2.3-abc")
	handler.SetupRoutes(r)

	req, err := http.NewRequest("GET", "/", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "test")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "I'm OK, thanks ;)", rr.Body.String())

	req, err = http.NewRequest("GET", "/version", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "test")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "v1.2.3-abc", rr.Body.String())
}
