package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware())
	r.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/orders/:id", "204"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/abc", nil))

	after := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/orders/:id", "204"))
	assert.Equal(t, before+1, after)
}

func TestOutcomeCounters(t *testing.T) {
	before := testutil.ToFloat64(transfersTotal.WithLabelValues("accepted"))
	TransferOutcome("accepted")
	assert.Equal(t, before+1, testutil.ToFloat64(transfersTotal.WithLabelValues("accepted")))

	beforeSwept := testutil.ToFloat64(sweptTotal.WithLabelValues("holds"))
	Swept("holds", 3)
	assert.Equal(t, beforeSwept+3, testutil.ToFloat64(sweptTotal.WithLabelValues("holds")))
}
