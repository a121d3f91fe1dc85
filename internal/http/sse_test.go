package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fyrsmithlabs/maker/internal/events"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startTestNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		srv.Shutdown()
		srv.WaitForShutdown()
	})

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

type sseEvent struct {
	name string
	data string
}

func readEvents(t *testing.T, resp *http.Response) []sseEvent {
	t.Helper()
	var (
		out     []sseEvent
		current sseEvent
	)
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "" && current.name != "":
			out = append(out, current)
			current = sseEvent{}
		}
	}
	return out
}

func TestRunEvents_StreamsSimulation(t *testing.T) {
	nc := startTestNATS(t)
	server, err := NewServer(zap.NewNop(), nil, WithEvents(nc, "test.runs"))
	require.NoError(t, err)

	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/runs/sim-7/events", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()
	require.Equal(t, http.StatusOK, stream.StatusCode)
	assert.Equal(t, "text/event-stream", stream.Header.Get("Content-Type"))

	body, err := json.Marshal(HanoiRequest{RunID: "sim-7", Disks: 2, P: 1, K: 1})
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/api/v1/simulations/hanoi", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := readEvents(t, stream)
	// run started, 3 steps x (started, decided), run completed
	require.Len(t, got, 8)
	assert.Equal(t, "run", got[0].name)
	assert.Equal(t, "step", got[1].name)
	assert.Equal(t, "run", got[7].name)

	var decided events.StepEvent
	require.NoError(t, json.Unmarshal([]byte(got[2].data), &decided))
	assert.Equal(t, "decided", decided.Status)
	assert.Equal(t, "1:0->1", decided.Action)

	var done events.RunEvent
	require.NoError(t, json.Unmarshal([]byte(got[7].data), &done))
	assert.Equal(t, events.RunCompleted, done.Status)
	assert.Equal(t, 3, done.StepsCompleted)
}

func TestRunEvents_Heartbeat(t *testing.T) {
	nc := startTestNATS(t)
	server, err := NewServer(zap.NewNop(), nil, WithEvents(nc, ""), WithHeartbeat(20*time.Millisecond))
	require.NoError(t, err)

	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/runs/idle/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": heartbeat\n", line)
	cancel()
}

func TestHealth_WithEvents(t *testing.T) {
	nc := startTestNATS(t)
	server := setupTestServer(t, WithEvents(nc, ""))

	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "connected", resp.Events)
	assert.Equal(t, "ok", resp.Status)
}

func TestRunFinished(t *testing.T) {
	assert.True(t, runFinished([]byte(`{"status":"completed"}`)))
	assert.True(t, runFinished([]byte(`{"status":"failed"}`)))
	assert.False(t, runFinished([]byte(`{"status":"started"}`)))
	assert.False(t, runFinished([]byte(`not json`)))
}
