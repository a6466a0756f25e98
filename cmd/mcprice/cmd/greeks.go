package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bcdannyboy/mcprice/pricing"
)

var (
	greeksRequest string
	greeksSpot    float64
	greeksVol     float64
	greeksRate    float64
	greeksTime    float64
)

var greeksCmd = &cobra.Command{
	Use:   "greeks",
	Short: "Price a request file with delta, gamma, vega, rho and theta",
	Long: `Greeks re-prices the request under bumped markets on the same random numbers.
Bump sizes in the request file take precedence over the flags.

Example:
  mcprice greeks -f european.yaml --spot 0.005`,
	RunE: runGreeks,
}

func init() {
	rootCmd.AddCommand(greeksCmd)

	defaults := pricing.DefaultBumps()
	greeksCmd.Flags().StringVarP(&greeksRequest, "file", "f", "", "path to request file, YAML or JSON (required)")
	greeksCmd.Flags().Float64Var(&greeksSpot, "spot", defaults[pricing.BumpSpot], "relative spot bump")
	greeksCmd.Flags().Float64Var(&greeksVol, "vol", defaults[pricing.BumpVol], "absolute volatility bump")
	greeksCmd.Flags().Float64Var(&greeksRate, "rate", defaults[pricing.BumpRate], "parallel rate bump")
	greeksCmd.Flags().Float64Var(&greeksTime, "time", defaults[pricing.BumpTime], "theta roll in years")
	greeksCmd.Flags().IntVarP(&pricePaths, "paths", "n", 0, "override the number of paths")
	greeksCmd.Flags().Uint64Var(&priceSeed, "seed", 0, "override the seed")

	greeksCmd.MarkFlagRequired("file")
}

func runGreeks(cmd *cobra.Command, args []string) error {
	req, err := loadRequest(cmd, greeksRequest)
	if err != nil {
		return err
	}
	if req.Bumps == nil {
		req.Bumps = pricing.Bumps{
			pricing.BumpSpot: greeksSpot,
			pricing.BumpVol:  greeksVol,
			pricing.BumpRate: greeksRate,
			pricing.BumpTime: greeksTime,
		}
	}

	ctx, cancel := signalContext(context.Background())
	defer cancel()
	stop := startMonitor(ctx, cpuStats)

	res, err := newEngine().Run(ctx, req)
	stop()
	if err != nil {
		return fmt.Errorf("greeks: %w", err)
	}
	return writeJSON(cmd.OutOrStdout(), newReport(req.ID, res, precision))
}
