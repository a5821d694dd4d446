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

	"github.com/spf13/cobra"

	"github.com/hupe1980/tripmesh"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/metrics"
	"github.com/hupe1980/tripmesh/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP planning API",
	Long: `Starts the planner behind POST /plan, the websocket stream on
/plan/stream, itinerary downloads, health probes and prometheus metrics.
The listener is bound only after the planning session has been created.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		logger, err := newLogger(cfg, os.Stderr)
		if err != nil {
			return err
		}

		met := metrics.New()

		app, err := newApp(cmd.Context(), cfg, logger, met)
		if err != nil {
			return err
		}

		handler, err := server.New(app.Gateway(), func(o *server.Options) {
			o.Logger = logger
			o.Metrics = met
			o.AllowedOrigins = cfg.Server.AllowedOrigins
		})
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		logger.Info("server.start", "addr", srv.Addr, "provider", cfg.Model.Provider, "mode", cfg.Planner.Mode)

		serverErrors, err := listenAndServe(cmd.Context(), app, srv, logger)
		if err != nil {
			return err
		}

		shutdown := func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("server.shutdown.incomplete", "timeout", cfg.Server.ShutdownTimeout.String(), "error", err.Error())
				_ = srv.Close()
			}
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}

			return nil
		case s := <-sig:
			logger.Info("server.shutdown", "signal", s.String())
			shutdown()
			logger.Info("server.stopped")

			return nil
		}
	},
}

// listenAndServe creates the planner session and only then binds srv.Addr, so
// no request is accepted before the gateway is ready. The returned channel
// yields the Serve error.
func listenAndServe(ctx context.Context, app *tripmesh.App, srv *http.Server, logger logging.Logger) (<-chan error, error) {
	if _, err := app.Init(ctx); err != nil {
		logger.Error("server.init.failed", "error", err.Error())
		return nil, fmt.Errorf("initialise planner session: %w", err)
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("server.listening", "addr", ln.Addr().String())
		serverErrors <- srv.Serve(ln)
	}()

	return serverErrors, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default from config, :8080)")
}
