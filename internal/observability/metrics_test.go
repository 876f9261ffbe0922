package observability

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/x", "GET", 200, time.Millisecond)
	m.RecordError("/x", "GET", "NOT_FOUND")
	m.RecordUpdate("complete")
	m.RecordAttachment(true)
	m.RecordHistory(3, 1)
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()
	m.RecordUpdate("complete")
	m.RecordUpdate("complete")
	m.RecordUpdate("logged")
	m.RecordAttachment(true)
	m.RecordAttachment(false)
	m.RecordHistory(5, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.updates.WithLabelValues("complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.updates.WithLabelValues("logged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attachments.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.degradedPayloads))
}

func TestRequestLogger_RecordsRoutePattern(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), m))
	app.Get("/api/tickets/:id", func(c *fiber.Ctx) error {
		return c.SendString(c.Params("id"))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/tickets/abc", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "abc", string(body))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/tickets/:id", "GET", "200")))
}
