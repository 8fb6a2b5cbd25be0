package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersAreExported(t *testing.T) {
	before := testutil.ToFloat64(FailedLoginAttempts.WithLabelValues("otp"))
	FailedLoginAttempts.WithLabelValues("otp").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(FailedLoginAttempts.WithLabelValues("otp")))

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gameshub_failed_login_attempts_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
