package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct{ calls []string }

type fakeModule struct {
	name string
	rec  *recorder
}

func (m *fakeModule) Name() string { return m.name }
func (m *fakeModule) Start()       { m.rec.calls = append(m.rec.calls, "start "+m.name) }
func (m *fakeModule) Stop()        { m.rec.calls = append(m.rec.calls, "stop "+m.name) }

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

func TestRegistryLifecycleOrder(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry(zerolog.Nop())
	r.AddBackground(&fakeModule{name: "a", rec: rec}, &fakeModule{name: "b", rec: rec})
	r.AddCloser("debouncer", func() { rec.calls = append(rec.calls, "close debouncer") })
	r.AddCloser("redis", func() { rec.calls = append(rec.calls, "close redis") })

	r.StartAll()
	r.StartAll()
	r.StopAll()
	r.StopAll()

	assert.Equal(t, []string{
		"start a", "start b",
		"stop b", "stop a",
		"close redis", "close debouncer",
	}, rec.calls)
}

func TestRegistryStopWithoutStart(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry(zerolog.Nop())
	r.AddBackground(&fakeModule{name: "a", rec: rec})
	r.StopAll()
	r.StartAll()
	assert.Empty(t, rec.calls)
}

func TestRegistryRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	r := NewRegistry(zerolog.Nop())
	r.AddRoutes(pingRoutes{})
	r.RegisterRoutes(engine.Group("/api/v1"))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	assert.Equal(t, "pong", w.Body.String())
}

func TestHealthReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	h := NewHealth("svc")
	failing := errors.New("down")
	var err error
	h.AddCheck("store", func(context.Context) error { return nil })
	h.AddCheck("redis", func(context.Context) error { return err })
	h.RegisterRoutes(&engine.RouterGroup)

	for _, path := range []string{"/health", "/live", "/ready"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	err = failing
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "redis unavailable", body["error"])
}
