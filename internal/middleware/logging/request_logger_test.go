package loggingmw

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/resale_cart/internal/logging"
)

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &rec))
	return rec
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLogger(logging.NewWithWriter(&buf, "debug")))

	e.GET("/ok", func(c echo.Context) error {
		logging.FromContext(c.Request().Context()).Info("inside")
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/missing", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, map[string]any{"success": false})
	})
	e.GET("/boom", func(c echo.Context) error {
		return errors.New("boom")
	})

	tests := []struct {
		path   string
		status int
		level  string
	}{
		{"/ok", http.StatusOK, "INFO"},
		{"/missing", http.StatusNotFound, "WARN"},
		{"/boom", http.StatusInternalServerError, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			buf.Reset()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set(echo.HeaderXRequestID, "rid-1")
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "rid-1", rec.Header().Get(echo.HeaderXRequestID))

			entry := lastRecord(t, &buf)
			assert.Equal(t, "request completed", entry["msg"])
			assert.Equal(t, tt.level, entry["level"])
			assert.EqualValues(t, tt.status, entry["status"])
			assert.Equal(t, "rid-1", entry["request_id"])
			assert.Equal(t, tt.path, entry["path"])
		})
	}
}
