package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roomchat/internal/chat/handler"
	"roomchat/internal/common"
	"roomchat/internal/wire"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the gRPC message stream",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := wire.InitializeApplication()
		if err != nil {
			return fmt.Errorf("failed to initialize chat service: %w", err)
		}
		defer cleanup()
		return serve(app)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(app *wire.Application) error {
	cfg := app.Config.Server
	log := app.Log

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.HTTPPort),
		Handler:      app.HTTP.Router(app.Tokens),
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}

	grpcServer := grpc.NewServer(grpc.ChainStreamInterceptor(
		common.StreamLoggingInterceptor(log.Named("grpc")),
		app.Tokens.StreamAuthInterceptor(),
	))
	handler.RegisterChatStreamServer(grpcServer, app.Stream)

	lis, err := net.Listen("tcp", net.JoinHostPort(cfg.Host, cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", cfg.GRPCPort, err)
	}

	errc := make(chan error, 2)
	go func() {
		log.Infow("HTTP API listening", "addr", httpServer.Addr, "environment", cfg.Environment)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		log.Infow("message stream listening", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			errc <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		log.Infow("shutting down", "signal", sig.String())
	case runErr = <-errc:
		log.Errorw("server failed, shutting down", "error", runErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warnw("HTTP server forced to shutdown", "error", err)
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		grpcServer.Stop()
	}

	log.Info("chat service stopped")
	return runErr
}
