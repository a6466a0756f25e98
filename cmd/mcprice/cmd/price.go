package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	mpb "github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"

	"github.com/bcdannyboy/mcprice/config"
	"github.com/bcdannyboy/mcprice/pricing"
)

var (
	priceRequest  string
	priceProgress bool
	pricePaths    int
	priceSeed     uint64
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Price the product of a request file",
	Long: `Price simulates the request's grid and prints the price, its standard error and
confidence interval as JSON. Greeks listed in the request are computed as well.

Example:
  mcprice price -f autocall.yaml --paths 200000 --progress`,
	RunE: runPrice,
}

func init() {
	rootCmd.AddCommand(priceCmd)

	priceCmd.Flags().StringVarP(&priceRequest, "file", "f", "", "path to request file, YAML or JSON (required)")
	priceCmd.Flags().BoolVar(&priceProgress, "progress", false, "show a progress bar on stderr")
	priceCmd.Flags().IntVarP(&pricePaths, "paths", "n", 0, "override the number of paths")
	priceCmd.Flags().Uint64Var(&priceSeed, "seed", 0, "override the seed")

	priceCmd.MarkFlagRequired("file")
}

func runPrice(cmd *cobra.Command, args []string) error {
	req, err := loadRequest(cmd, priceRequest)
	if err != nil {
		return err
	}

	var opts []pricing.Option
	var progress *mpb.Progress
	var bar *mpb.Bar
	if priceProgress && req.Bumps == nil {
		progress = mpb.New(mpb.WithWidth(64), mpb.WithOutput(cmd.ErrOrStderr()))
		bar = progress.AddBar(int64(req.Grid.NumPaths),
			mpb.PrependDecorators(
				decor.Name("Paths"),
				decor.Percentage(decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.CountersNoUnit("(%d / %d)", decor.WCSyncSpace),
			),
		)
		opts = append(opts, pricing.WithProgress(func(done, total int) {
			bar.SetCurrent(int64(done))
		}))
	}

	ctx, cancel := signalContext(context.Background())
	defer cancel()
	stop := startMonitor(ctx, cpuStats)

	res, err := newEngine(opts...).Run(ctx, req)
	stop()
	if bar != nil {
		if err != nil {
			bar.Abort(false)
		}
		progress.Wait()
	}
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}
	return writeJSON(cmd.OutOrStdout(), newReport(req.ID, res, precision))
}

// loadRequest reads the file and applies the command-line grid overrides.
func loadRequest(cmd *cobra.Command, path string) (pricing.Request, error) {
	rf, err := config.LoadRequest(path)
	if err != nil {
		return pricing.Request{}, err
	}
	req, err := rf.Build(cfg)
	if err != nil {
		return pricing.Request{}, fmt.Errorf("build request: %w", err)
	}
	if cmd.Flags().Changed("paths") {
		req.Grid.NumPaths = pricePaths
	}
	if cmd.Flags().Changed("seed") {
		req.Grid.Seed = priceSeed
	}
	return req, nil
}
