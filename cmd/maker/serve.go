package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	makerhttp "github.com/fyrsmithlabs/maker/internal/http"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the maker HTTP API",
	Long: `Serve the maker HTTP API: margin and cost calculators, offline Towers of
Hanoi benchmark runs, Prometheus metrics and live run events.

When events.nats_url is set, GET /api/v1/runs/{run_id}/events streams the step
and run events of any run publishing to the same NATS server as server-sent
events. Otherwise the stream endpoint answers 503.

Examples:
  maker serve
  maker serve --port 9300
  MAKER_EVENTS_NATS_URL=nats://127.0.0.1:4222 maker serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default: server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default: server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := loadRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close(ctx)
	logger := rt.logger.Underlying()

	srvCfg := &makerhttp.Config{Host: rt.cfg.Server.Host, Port: rt.cfg.Server.Port}
	if serveHost != "" {
		srvCfg.Host = serveHost
	}
	if servePort != 0 {
		srvCfg.Port = servePort
	}

	opts := []makerhttp.Option{
		makerhttp.WithVersion(version),
		makerhttp.WithMetrics(makerhttp.NewHTTPMetrics(logger)),
	}
	if url := rt.cfg.Events.NATSURL; url != "" {
		nc, err := nats.Connect(url,
			nats.Name("maker-serve"),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logger.Warn("nats disconnected", zap.Error(err))
				}
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
			}),
		)
		if err != nil {
			return fmt.Errorf("connect to nats %s: %w", url, err)
		}
		defer nc.Drain()
		opts = append(opts, makerhttp.WithEvents(nc, rt.cfg.Events.SubjectPrefix))
	}

	srv, err := makerhttp.NewServer(logger, srvCfg, opts...)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rt.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
