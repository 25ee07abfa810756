package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = orig })
	return &buf
}

func TestLoggerRedactsReturnCallbackQuery(t *testing.T) {
	buf := captureLog(t)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), Logger())
	router.GET("/api/v1/payments/return", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "http://localhost:3000/payment/status")
	})
	router.GET("/api/v1/contestants", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/return?PRN=prn_1&DV=DEADBEEF", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotContains(t, buf.String(), "DEADBEEF")
	assert.Contains(t, buf.String(), "[redacted]")

	// Ordinary endpoints keep their query string.
	buf.Reset()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/contestants?event=miss-nepal", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), "event=miss-nepal")
}

func TestRecoveryAnswersErrorEnvelope(t *testing.T) {
	captureLog(t)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), Recovery())
	router.GET("/boom", func(c *gin.Context) {
		panic("kaboom")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
	assert.Contains(t, rec.Body.String(), "SYS_001")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
