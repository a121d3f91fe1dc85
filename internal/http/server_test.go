package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/maker/internal/pricing"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid config", func(t *testing.T) {
		cfg := &Config{Host: "localhost", Port: 9190}

		server, err := NewServer(zap.NewNop(), cfg)
		require.NoError(t, err)
		assert.NotNil(t, server.echo)
		assert.Equal(t, cfg, server.config)
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1", server.config.Host)
		assert.Equal(t, 9190, server.config.Port)
		assert.Equal(t, defaultHeartbeat, server.heartbeat)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(nil, nil)
		assert.ErrorContains(t, err, "logger is required")
	})
}

func TestHandleHealth(t *testing.T) {
	server := setupTestServer(t, WithVersion("1.2.3"))

	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "disabled", resp.Events)
}

func TestHandleKMin(t *testing.T) {
	server := setupTestServer(t)

	t.Run("computes margin", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/kmin", KMinRequest{
			NumSteps: 1_000_000, PerStepSuccessRate: 0.99, TargetSuccessRate: 0.95,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp KMinResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 4, resp.K)
		assert.GreaterOrEqual(t, resp.SuccessLowerBound, 0.95)
		assert.Equal(t, 7.0, resp.ExpectedSamplesPerStep)
	})

	t.Run("infeasible rate is unprocessable", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/kmin", KMinRequest{
			NumSteps: 10, PerStepSuccessRate: 0.5, TargetSuccessRate: 0.9,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/kmin", KMinRequest{
			NumSteps: 0, PerStepSuccessRate: 0.9, TargetSuccessRate: 0.9,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/kmin", strings.NewReader("{"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleCost(t *testing.T) {
	server := setupTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/cost", CostRequest{
		NumSteps: 1000, K: 3, Model: "google/gemini-2.0-flash-001",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var est pricing.Estimate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &est))
	assert.Equal(t, 5500, est.EstimatedCalls)
	assert.InDelta(t, 0.495, est.TotalCost, 1e-9)

	rec = doJSON(t, server, http.MethodPost, "/api/v1/cost", CostRequest{NumSteps: 10, K: 2, Model: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, server, http.MethodPost, "/api/v1/cost", CostRequest{NumSteps: 10, K: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleModels(t *testing.T) {
	server := setupTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var models []pricing.Model
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &models))
	assert.Len(t, models, len(pricing.Models()))
}

func TestHandleHanoiSimulation(t *testing.T) {
	server := setupTestServer(t)

	t.Run("solves with noisy simulator", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/simulations/hanoi", HanoiRequest{
			RunID: "sim-1", Disks: 4, P: 0.85, K: 3, Seed: 11,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp HanoiResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "sim-1", resp.RunID)
		assert.True(t, resp.Solved)
		assert.Equal(t, 15, resp.Steps)
		assert.Equal(t, 15, resp.StepsCompleted)
		assert.GreaterOrEqual(t, resp.Attempts, 45)
	})

	t.Run("derives k from p", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/simulations/hanoi", HanoiRequest{Disks: 3, P: 0.99})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp HanoiResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.RunID)
		assert.GreaterOrEqual(t, resp.K, 1)
		assert.True(t, resp.Solved)
	})

	t.Run("reports exhausted budget", func(t *testing.T) {
		rec := doJSON(t, server, http.MethodPost, "/api/v1/simulations/hanoi", HanoiRequest{
			Disks: 3, P: 0.01, K: 2, MaxAttempts: 4, Seed: 3,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp HanoiResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Solved)
		assert.Contains(t, resp.Error, "did not converge")
	})

	t.Run("rejects bad input", func(t *testing.T) {
		for _, req := range []HanoiRequest{
			{Disks: 0},
			{Disks: maxSimulationDisks + 1},
			{Disks: 3, P: 0.4},
			{Disks: 3, P: 0.9, K: 3, MaxAttempts: 1},
		} {
			rec := doJSON(t, server, http.MethodPost, "/api/v1/simulations/hanoi", req)
			assert.GreaterOrEqual(t, rec.Code, 400, "%+v", req)
		}
	})
}

func TestRunEvents_NotConfigured(t *testing.T) {
	server := setupTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/api/v1/runs/r1/events", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	server := setupTestServer(t)
	rec := doJSON(t, server, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestServerLifecycle(t *testing.T) {
	server, err := NewServer(zap.NewNop(), &Config{Host: "localhost", Port: 0})
	require.NoError(t, err)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))

	select {
	case err := <-errChan:
		assert.True(t, err == nil || err == http.ErrServerClosed)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}

func TestMiddleware(t *testing.T) {
	t.Run("adds request ID to response", func(t *testing.T) {
		server := setupTestServer(t)
		rec := doJSON(t, server, http.MethodGet, "/health", nil)
		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("recovers from panic", func(t *testing.T) {
		server := setupTestServer(t)
		server.echo.GET("/panic", func(c echo.Context) error {
			panic("test panic")
		})

		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		rec := httptest.NewRecorder()
		assert.NotPanics(t, func() {
			server.echo.ServeHTTP(rec, req)
		})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("logs final status", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		server, err := NewServer(zap.New(core), nil)
		require.NoError(t, err)

		doJSON(t, server, http.MethodPost, "/api/v1/kmin", KMinRequest{NumSteps: 1, PerStepSuccessRate: 0.2})

		entries := logs.FilterMessage("http request").All()
		require.Len(t, entries, 1)
		assert.Equal(t, int64(http.StatusUnprocessableEntity), entries[0].ContextMap()["status"])
	})
}

// setupTestServer creates a test server with default configuration.
func setupTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	server, err := NewServer(zap.NewNop(), &Config{Host: "localhost", Port: 9190}, opts...)
	require.NoError(t, err)
	return server
}

func doJSON(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	return rec
}
