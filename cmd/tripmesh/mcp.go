package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hupe1980/tripmesh"
	"github.com/hupe1980/tripmesh/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the planner as a Model Context Protocol (MCP) server",
	Long: `Exposes the planner as the MCP tool "plan_trip" and stored itineraries
as resources.

Supported transports:
- stdio (default): for local process integration.
- sse: Server-Sent Events over HTTP (--sse --port).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		// Stdout carries JSON-RPC; logs go to stderr.
		logger, err := newLogger(cfg, os.Stderr)
		if err != nil {
			return err
		}

		app, err := newApp(cmd.Context(), cfg, logger, nil)
		if err != nil {
			return err
		}

		if _, err := app.Init(cmd.Context()); err != nil {
			return fmt.Errorf("initialise planner session: %w", err)
		}

		srv := mcpserver.New(app.Gateway(), func(o *mcpserver.Options) {
			o.Version = tripmesh.Version
			o.Logger = logger
		})

		sse, _ := cmd.Flags().GetBool("sse")
		if !sse {
			logger.Info("mcp.start", "transport", "stdio")
			return srv.ServeStdio()
		}

		port, _ := cmd.Flags().GetInt("port")
		logger.Info("mcp.start", "transport", "sse", "port", port)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		logger.Info("mcp.stopped")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().Bool("sse", false, "Serve over SSE instead of stdio")
	mcpCmd.Flags().Int("port", 8081, "Port to listen on (only for SSE)")
}
