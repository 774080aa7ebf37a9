package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAccessLog_Levels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)

	r := gin.New()
	r.Use(AccessLog(zap.New(core)))
	r.GET("/api/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/ok"},
		{http.MethodPost, "/api/ok"},
		{http.MethodPost, "/api/bad"},
		{http.MethodGet, "/healthz"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set(userHeader, "u1")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, "u1", entries[2].ContextMap()["user_id"])
}

func TestAccessLog_NilLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AccessLog(nil))
	r.GET("/api/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ok", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
