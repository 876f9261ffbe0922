package http

import (
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/observability"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util/errorutil"
)

func TestErrorEnvelope(t *testing.T) {
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger, metrics)})
	RegisterMiddlewares(app, logger, metrics, 0)
	app.Get("/conflict", func(*fiber.Ctx) error {
		return apperrors.NewConflict("already closed", map[string]any{"ticket_id": "T1"})
	})
	app.Get("/panic", func(*fiber.Ctx) error { panic("boom") })
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })

	cases := []struct {
		path   string
		status int
		code   string
	}{
		{"/conflict", nethttp.StatusConflict, apperrors.CodeConflict},
		{"/panic", nethttp.StatusInternalServerError, apperrors.CodeInternal},
		{"/missing", nethttp.StatusNotFound, apperrors.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(nethttp.MethodGet, tc.path, nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)

			var body struct {
				Success bool `json:"success"`
				Error   struct {
					Code    string         `json:"code"`
					Message string         `json:"message"`
					Details map[string]any `json:"details"`
				} `json:"error"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, tc.code, body.Error.Code)
		})
	}

	resp, err := app.Test(httptest.NewRequest(nethttp.MethodGet, "/ok", nil))
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}

func TestMetricsRoute(t *testing.T) {
	metrics := observability.NewMetrics()
	app := fiber.New()
	app.Get("/metrics", metricsHandler(metrics))

	resp, err := app.Test(httptest.NewRequest(nethttp.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)
}
