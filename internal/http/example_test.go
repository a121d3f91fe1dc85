package http_test

import (
	"context"
	"fmt"
	"time"

	httpserver "github.com/fyrsmithlabs/maker/internal/http"
	"go.uber.org/zap"
)

// ExampleServer demonstrates how to create and start the HTTP server.
func ExampleServer() {
	logger := zap.NewNop()

	server, err := httpserver.NewServer(logger, &httpserver.Config{
		Host: "localhost",
		Port: 0,
	}, httpserver.WithVersion("dev"))
	if err != nil {
		panic(err)
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	fmt.Println("Server started and stopped successfully")
	// Output: Server started and stopped successfully
}
