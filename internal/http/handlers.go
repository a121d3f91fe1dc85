package http

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/maker/internal/events"
	"github.com/fyrsmithlabs/maker/internal/hanoi"
	"github.com/fyrsmithlabs/maker/internal/pricing"
	"github.com/fyrsmithlabs/maker/internal/reliability"
	"github.com/fyrsmithlabs/maker/internal/solver"
	"github.com/fyrsmithlabs/maker/internal/voting"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// maxSimulationDisks keeps a synchronous simulation request bounded.
const maxSimulationDisks = 12

func (s *Server) handleKMin(c echo.Context) error {
	var req KMinRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid kmin request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	k, err := reliability.EstimateKMin(req.NumSteps, req.PerStepSuccessRate, req.TargetSuccessRate)
	switch {
	case errors.Is(err, reliability.ErrInfeasibleReliability):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, KMinResponse{
		K:                      k,
		ErrorBound:             reliability.ErrorBound(req.PerStepSuccessRate, k),
		SuccessLowerBound:      reliability.SuccessLowerBound(req.NumSteps, req.PerStepSuccessRate, k),
		ExpectedSamplesPerStep: reliability.ExpectedSamplesPerStep(k, req.RedFlagRate),
	})
}

func (s *Server) handleCost(c echo.Context) error {
	var req CostRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid cost request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Model == "" {
		req.Model = pricing.RecommendedModel()
	}

	est, err := pricing.EstimateCost(req.NumSteps, req.K, req.Model, pricing.Options{
		AvgPromptTokens:   req.AvgPromptTokens,
		AvgResponseTokens: req.AvgResponseTokens,
		RedFlagRate:       req.RedFlagRate,
	})
	switch {
	case errors.Is(err, pricing.ErrUnknownModel):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, est)
}

func (s *Server) handleModels(c echo.Context) error {
	return c.JSON(http.StatusOK, pricing.Models())
}

// handleHanoiSimulation runs the Towers of Hanoi benchmark against the
// offline simulator and publishes its progress as run events.
func (s *Server) handleHanoiSimulation(c echo.Context) error {
	var req HanoiRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Disks < 1 || req.Disks > maxSimulationDisks {
		return echo.NewHTTPError(http.StatusBadRequest, "disks must be between 1 and 12")
	}
	if req.P == 0 {
		req.P = 0.99
	}
	if req.K == 0 {
		k, err := reliability.EstimateKMin(hanoi.NumSteps(req.Disks), req.P, 0.95)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		req.K = k
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	sim, err := hanoi.NewSimulator(req.Disks, req.P, req.Seed)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cfg := voting.Config{K: req.K, MaxAttempts: req.MaxAttempts, Parallelism: req.Parallelism}
	if err := cfg.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	total := hanoi.NumSteps(req.Disks)
	publishRun := func(ev events.RunEvent) {
		ev.RunID, ev.Task, ev.TotalSteps, ev.K = req.RunID, "hanoi", total, req.K
		if err := events.PublishRun(ctx, s.publisher, ev); err != nil {
			s.logger.Warn("failed to publish run event", zap.Error(err))
		}
	}
	progress := func(p solver.StepProgress) {
		ev := events.StepEvent{
			RunID: req.RunID, Task: "hanoi", Step: p.Step, Total: p.Total, Status: string(p.Status),
			Action: p.Action, Votes: p.Votes, Attempts: p.Attempts, Error: p.Error,
		}
		if err := s.publisher.PublishStep(ctx, ev); err != nil {
			s.logger.Warn("failed to publish step event", zap.Error(err))
		}
	}

	publishRun(events.RunEvent{Status: events.RunStarted})
	start := time.Now()
	res, err := hanoi.Solve(ctx, req.Disks, sim, cfg,
		[]voting.Option{voting.WithLogger(s.logger)},
		solver.WithProgress(progress),
	)
	elapsed := time.Since(start)

	resp := HanoiResponse{
		RunID:          req.RunID,
		Steps:          total,
		K:              req.K,
		ElapsedSeconds: math.Round(elapsed.Seconds()*1000) / 1000,
	}
	if err != nil {
		var stepErr *voting.StepError
		if errors.As(err, &stepErr) {
			resp.StepsCompleted = stepErr.Step
		}
		resp.Error = err.Error()
		publishRun(events.RunEvent{Status: events.RunFailed, StepsCompleted: resp.StepsCompleted,
			ElapsedSeconds: elapsed.Seconds(), Error: resp.Error})
		return c.JSON(http.StatusOK, resp)
	}

	resp.Solved = hanoi.Verify(req.Disks, res.Actions) == nil
	resp.StepsCompleted = len(res.Actions)
	resp.Attempts = res.Attempts
	publishRun(events.RunEvent{Status: events.RunCompleted, StepsCompleted: resp.StepsCompleted,
		Attempts: res.Attempts, ElapsedSeconds: elapsed.Seconds()})
	return c.JSON(http.StatusOK, resp)
}
