package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fyrsmithlabs/maker/internal/events"
	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// handleRunEvents streams a run's events via Server-Sent Events.
//
// Each NATS message becomes one SSE event named after the subject's last
// token:
//
//	event: step
//	data: {"run_id":"r1","step":3,"total":7,"status":"decided","action":"1:0->2"}
//
//	event: run
//	data: {"run_id":"r1","status":"completed","steps_completed":7}
//
// The stream ends after a completed or failed run event, or when the client
// disconnects.
func (s *Server) handleRunEvents(c echo.Context) error {
	if s.nc == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event streaming is not configured")
	}
	runID := c.Param("run_id")

	msgs := make(chan *nats.Msg, 64)
	sub, err := s.nc.ChanSubscribe(events.Subject(s.prefix, runID, "*"), msgs)
	if err != nil {
		return fmt.Errorf("subscribe to run events: %w", err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()
	// The subscription must reach the server before the client starts a run.
	if err := s.nc.Flush(); err != nil {
		return fmt.Errorf("subscribe to run events: %w", err)
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case msg := <-msgs:
			kind := msg.Subject[strings.LastIndexByte(msg.Subject, '.')+1:]
			fmt.Fprintf(w, "event: %s\n", kind)
			fmt.Fprintf(w, "data: %s\n\n", msg.Data)
			w.Flush()

			if kind == events.KindRun && runFinished(msg.Data) {
				return nil
			}

		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			w.Flush()

		case <-c.Request().Context().Done():
			s.logger.Debug("run event stream closed by client", zap.String("run_id", runID))
			return nil
		}
	}
}

func runFinished(data []byte) bool {
	var ev events.RunEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return false
	}
	return ev.Status == events.RunCompleted || ev.Status == events.RunFailed
}
