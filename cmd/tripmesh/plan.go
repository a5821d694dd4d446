package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/tripmesh/client"
	"github.com/hupe1980/tripmesh/internal/render"
	"github.com/hupe1980/tripmesh/planner"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Request an itinerary from a running tripmesh server",
	Example: `  tripmesh plan --location Rome --days 2 --interest art --interest food --avoid crowds
  tripmesh plan --location Lisbon --days 1.5 --out lisbon.md --raw`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		location, _ := cmd.Flags().GetString("location")
		days, _ := cmd.Flags().GetFloat64("days")
		interests, _ := cmd.Flags().GetStringSlice("interest")
		avoid, _ := cmd.Flags().GetStringSlice("avoid")
		serverURL, _ := cmd.Flags().GetString("server")
		outFile, _ := cmd.Flags().GetString("out")
		raw, _ := cmd.Flags().GetBool("raw")

		// The API requires interests to be a list, even when empty.
		if interests == nil {
			interests = []string{}
		}

		res, err := client.New(serverURL).Plan(cmd.Context(), planner.TripRequest{
			Location:     location,
			Interests:    interests,
			DurationDays: days,
			Avoid:        avoid,
		})
		if err != nil {
			return err
		}

		if outFile != "" {
			if err := os.WriteFile(outFile, []byte(res.Itinerary), 0o644); err != nil {
				return fmt.Errorf("write itinerary: %w", err)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Itinerary saved to %s\n", outFile)
		}

		out := res.Itinerary
		if !raw {
			if out, err = render.Markdown(cmd.OutOrStdout(), res.Itinerary); err != nil {
				return err
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), out)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().String("location", "", "Destination city")
	planCmd.Flags().Float64("days", 1, "Trip length in days")
	planCmd.Flags().StringSlice("interest", nil, "Interest (repeatable)")
	planCmd.Flags().StringSlice("avoid", nil, "Thing to avoid (repeatable)")
	planCmd.Flags().String("server", "http://localhost:8080", "tripmesh server URL")
	planCmd.Flags().String("out", "", "Also write the Markdown itinerary to this file")
	planCmd.Flags().Bool("raw", false, "Print Markdown without terminal styling")

	_ = planCmd.MarkFlagRequired("location")
}
