package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSync(t *testing.T) {
	m := New(DefaultConfig("reconciliation-service"))

	m.RecordSync("purchase_order", 2, 3, 4)
	m.RecordSync("backfill", 0, 1, 1)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProductsResolved.WithLabelValues("reconciliation-service", "created")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.ProductsResolved.WithLabelValues("reconciliation-service", "matched")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.TransitCreated.WithLabelValues("reconciliation-service", "purchase_order")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransitCreated.WithLabelValues("reconciliation-service", "backfill")))
}

func TestRecordReceipt(t *testing.T) {
	m := New(DefaultConfig("reconciliation-service"))

	m.RecordReceipt(6, 0)
	m.RecordReceipt(2, 1.5)
	m.RecordReceiptRejected("INSUFFICIENT_TRANSIT")

	assert.Equal(t, 8.0, testutil.ToFloat64(m.UnitsReceived))
	assert.Equal(t, 1.5, testutil.ToFloat64(m.UnfulfilledUnits))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReceiptsTotal.WithLabelValues("reconciliation-service", "received")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReceiptsTotal.WithLabelValues("reconciliation-service", "INSUFFICIENT_TRANSIT")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New(DefaultConfig("reconciliation-service"))
	m.RecordHTTPRequest(http.MethodGet, "/api/v1/reconciliation/inventory", http.StatusOK, 15*time.Millisecond)
	m.SetOutboxPending(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "wms_http_requests_total")
	assert.Contains(t, body, "wms_outbox_pending_events")
}
