package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/tripmesh"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of tripmesh",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tripmesh version %s\n", strings.TrimSpace(tripmesh.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
