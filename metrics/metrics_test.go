package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTradingEvent(t *testing.T) {
	placedBefore := testutil.ToFloat64(tradingEvents.WithLabelValues(OrderPlaced))
	satsBefore := testutil.ToFloat64(orderSatoshis.WithLabelValues(OrderPlaced))

	RecordTradingEvent(OrderPlaced, 5000)
	RecordTradingEvent(OrderWithdrawn, 5000)

	assert.Equal(t, placedBefore+1, testutil.ToFloat64(tradingEvents.WithLabelValues(OrderPlaced)))
	assert.Equal(t, satsBefore+5000, testutil.ToFloat64(orderSatoshis.WithLabelValues(OrderPlaced)))
	assert.Equal(t, float64(0), testutil.ToFloat64(orderSatoshis.WithLabelValues(OrderWithdrawn)),
		"withdrawals don't count satoshis")
}

func TestGinMiddlewareLabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(GinMiddleware())
	engine.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	engine.GET("/metrics", gin.WrapH(Handler()))

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/orders/:id", "204"))
	for _, id := range []string{"1", "2"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/"+id, nil))
		require.Equal(t, http.StatusNoContent, w.Code)
	}
	assert.Equal(t, before+2, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/orders/:id", "204")))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "satswap_http_requests_total")
}
