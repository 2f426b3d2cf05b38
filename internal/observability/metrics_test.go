package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAdvance(t *testing.T) {
	before := testutil.ToFloat64(workoutsSubmitted.WithLabelValues("rewarded"))
	RecordWorkout(true)
	assert.Equal(t, before+1, testutil.ToFloat64(workoutsSubmitted.WithLabelValues("rewarded")))

	mintedBefore := testutil.ToFloat64(crushMinted.WithLabelValues("workout"))
	RecordMint("workout", 150)
	RecordMint("workout", 0)
	assert.Equal(t, mintedBefore+150, testutil.ToFloat64(crushMinted.WithLabelValues("workout")))
}

func TestHandlerServesRegistry(t *testing.T) {
	done := TrackInFlight()
	RecordHTTPRequest(http.MethodGet, "/api/v1/ping", http.StatusOK, 3*time.Millisecond)
	done()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wodgachi_http_requests_total")
}
