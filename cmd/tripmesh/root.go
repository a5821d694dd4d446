package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tripmesh",
	Short: "tripmesh plans short city trips with a team of agents",
	Long: `tripmesh coordinates an inspiration, a routing and an itinerary agent to
turn a destination, a trip length and a list of interests into a Markdown
itinerary. Run "tripmesh serve" for the HTTP API or "tripmesh mcp" to expose
the planner as an MCP tool.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (default $TRIPMESH_CONFIG)")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")
}
