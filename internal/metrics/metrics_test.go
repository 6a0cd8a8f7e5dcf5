package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/v1/library", "200"))
	RecordHTTPRequest(http.MethodGet, "/v1/library", http.StatusOK, 20*time.Millisecond)
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/v1/library", "200"))
	assert.Equal(t, before+1, after)
}

func TestRecordCatalogRequest(t *testing.T) {
	before := testutil.ToFloat64(CatalogRequestsTotal.WithLabelValues("googlebooks", "search", "ok"))
	RecordCatalogRequest("googlebooks", "search", "ok", time.Second)
	after := testutil.ToFloat64(CatalogRequestsTotal.WithLabelValues("googlebooks", "search", "ok"))
	assert.Equal(t, before+1, after)
}
