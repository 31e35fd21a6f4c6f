package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStatus struct {
	topics  []string
	running bool
	err     error
}

func (f *fakeStatus) Topics() []string { return f.topics }
func (f *fakeStatus) Running() bool    { return f.running }
func (f *fakeStatus) Err() error       { return f.err }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthcheck(t *testing.T) {
	tests := []struct {
		name       string
		src        *fakeStatus
		wantStatus int
		wantBody   healthResponse
	}{
		{
			name:       "running",
			src:        &fakeStatus{running: true},
			wantStatus: http.StatusOK,
			wantBody:   healthResponse{Status: "ok"},
		},
		{
			name:       "stopped",
			src:        &fakeStatus{},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   healthResponse{Status: "unavailable"},
		},
		{
			name:       "failed",
			src:        &fakeStatus{err: errors.New("connection produced event unknown(7)")},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   healthResponse{Status: "unavailable", Error: "connection produced event unknown(7)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(zap.NewNop(), WithMode(gin.TestMode), WithStatus(tt.src))

			w := get(t, s.Handler(), "/healthcheck")

			assert.Equal(t, tt.wantStatus, w.Code)
			var body healthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestSubscriptions(t *testing.T) {
	s := NewServer(zap.NewNop(), WithMode(gin.TestMode), WithStatus(&fakeStatus{topics: []string{"orders", "payments"}}))

	w := get(t, s.Handler(), "/subscriptions")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"topics":["orders","payments"],"count":2}`, w.Body.String())
}

func TestSubscriptions_Empty(t *testing.T) {
	s := NewServer(zap.NewNop(), WithMode(gin.TestMode), WithStatus(&fakeStatus{}))

	w := get(t, s.Handler(), "/subscriptions")

	assert.JSONEq(t, `{"topics":[],"count":0}`, w.Body.String())
}

func TestServer_CustomHandlerRuns(t *testing.T) {
	var called bool
	s := NewServer(zap.NewNop(), WithMode(gin.TestMode), WithCustomHandler(func(c *gin.Context) {
		called = true
		c.Next()
	}))

	w := get(t, s.Handler(), "/")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}

func TestServer_StartShutdown(t *testing.T) {
	s := NewServer(zap.NewNop(), WithMode(gin.TestMode), WithPort(0), WithStatus(&fakeStatus{running: true}))
	assert.Empty(t, s.Addr())

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	resp, err := http.Get("http://" + s.Addr() + "/healthcheck")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	_, err = http.Get("http://" + s.Addr() + "/healthcheck")
	assert.Error(t, err)
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	s := NewServer(nil, WithMode(gin.TestMode))

	assert.NoError(t, s.Shutdown(context.Background()))
}
