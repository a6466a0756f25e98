package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bcdannyboy/mcprice/config"
	"github.com/bcdannyboy/mcprice/models"
)

var calibrateRequest string

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Fit the calibration block of a request file and print the model",
	Long: `Calibrate fits the volatility model named in the request's calibration block and
prints its parameters as JSON. A local-vol fit that fell back to its implied base
surface reports the instability under "fallback"; one kept despite clamped nodes
reports them under "unstable".`,
	RunE: runCalibrate,
}

func init() {
	rootCmd.AddCommand(calibrateCmd)

	calibrateCmd.Flags().StringVarP(&calibrateRequest, "file", "f", "", "path to request file, YAML or JSON (required)")
	calibrateCmd.MarkFlagRequired("file")
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	req, err := config.LoadCalibration(calibrateRequest, cfg)
	if err != nil {
		return err
	}
	cal, err := newEngine().Calibrate(req)
	if err != nil {
		return fmt.Errorf("calibrate: %w", err)
	}

	out := map[string]interface{}{
		"requested": cal.Requested.String(),
		"kind":      cal.Kind.String(),
		"surface":   describeSurface(cal.Surface),
	}
	if cal.Kind == models.KindHeston {
		out["feller"] = cal.Feller
	}
	if cal.Fallback != nil {
		out["fallback"] = cal.Fallback.Error()
	}
	if cal.Unstable != nil {
		out["unstable"] = cal.Unstable.Error()
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

// describeSurface lays a model out in the same shape a request file's surface block takes.
func describeSurface(s models.Surface) interface{} {
	switch m := s.(type) {
	case models.Flat:
		return config.SurfaceConfig{Kind: m.Kind().String(), Sigma: m.Sigma}
	case *models.SVI:
		sc := config.SurfaceConfig{Kind: m.Kind().String()}
		for _, sl := range m.Slices() {
			p := sl.Params
			sc.SVI = append(sc.SVI, config.SVISliceConfig{Maturity: sl.Maturity, A: p.A, B: p.B, Rho: p.Rho, M: p.M, Sigma: p.Sigma})
		}
		return sc
	case *models.SSVI:
		return config.SurfaceConfig{Kind: m.Kind().String(), SSVI: &config.SSVIConfig{
			Rho: m.Rho, Eta: m.Eta, Gamma: m.Gamma, Maturities: m.Maturities(), Thetas: m.ATMVariances(),
		}}
	case *models.HestonModel:
		return config.SurfaceConfig{Kind: m.Kind().String(), Heston: &config.HestonConfig{
			V0: m.V0, Kappa: m.Kappa, Theta: m.Theta, Xi: m.Xi, Rho: m.Rho,
		}}
	case *models.LocalVol:
		return config.SurfaceConfig{Kind: m.Kind().String(), LocalVol: &config.LocalVolGridConfig{
			Strikes: m.Strikes, Times: m.Times, Variance: m.Variance,
		}}
	}
	return s.Kind().String()
}
