// Command capops runs viability analyses over the built-in archetype
// library: viable-zone rankings, slider sensitivity reports, archetype
// transition paths, and offline weight calibration.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/alexshd/capops"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:           "capops",
		Short:         "Viability modelling over capability/operations maturity grids",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(zonesCmd(), sensitivityCmd(), pathCmd(), calibrateCmd())

	if err := root.Execute(); err != nil {
		logger().Error("command failed", "err", err)
		os.Exit(1)
	}
}

func logger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

func zonesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "zones",
		Short: "Rank archetypes by viable-zone area (most precarious first)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger()
			cache := capops.NewSweepCache()
			start := time.Now()

			ranked, err := capops.RankByPrecariousness(cache, capops.DefaultArchetypes())
			if err != nil {
				return err
			}
			log.Debug("swept archetypes", "grids", cache.Len(), "elapsed", time.Since(start))

			fmt.Printf("%-24s %7s  %-8s %-12s %s\n", "ARCHETYPE", "ZONE%", "DEFAULT", "BINDING", "VERDICT")
			for _, za := range ranked {
				status := "out of zone"
				if za.InZone {
					status = "in zone"
				}
				d, err := capops.DecomposePosition(za.Archetype.Profile, za.Archetype.Sliders, za.Archetype.Position)
				if err != nil {
					return err
				}
				fmt.Printf("%-24s %6.1f%%  %-8s %-12s %s\n",
					za.Archetype.Name, za.ZoneArea, status, za.Binding, d.Verdict)
			}
			return nil
		},
	}
}

func sensitivityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sensitivity <archetype>",
		Short: "Sweep each slider and test every pair for interactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger()
			a, err := capops.DefaultArchetypes().Get(args[0])
			if err != nil {
				return err
			}

			cache := capops.NewSweepCache()
			start := time.Now()
			profile, err := capops.AnalyseSensitivity(cache, a.Profile, a.Sliders)
			if err != nil {
				return err
			}
			log.Debug("analysis complete", "unique_sweeps", cache.Len(), "elapsed", time.Since(start))

			fmt.Printf("%s: default zone %.1f%%\n\n", a.Name, profile.DefaultZoneArea)
			fmt.Printf("%-12s %8s %10s %12s\n", "SLIDER", "DEFAULT", "IMPACT", "MARGINAL/0.1")
			for _, sweep := range profile.Sweeps {
				saturation := ""
				if sweep.Saturated {
					saturation = fmt.Sprintf("  (saturates at %.1f)", sweep.SaturationPoint)
				}
				fmt.Printf("%-12s %8.2f %9.1fpt %12.2f%s\n",
					sweep.Name, sweep.Default, sweep.TotalImpact, sweep.MarginalAtDefault, saturation)
			}
			fmt.Printf("\ndominant: %s   binding lever: %s\n\n", profile.DominantSlider, profile.BindingLever)

			fmt.Printf("%-24s %10s %10s\n", "PAIR", "STRENGTH", "KIND")
			for _, in := range profile.Interactions {
				kind := "additive"
				switch {
				case in.Toxic():
					kind = "toxic"
				case in.Buffering():
					kind = "buffering"
				}
				pair := capops.SliderNames[in.SliderA] + " × " + capops.SliderNames[in.SliderB]
				fmt.Printf("%-24s %8.1fpt %10s\n", pair, in.Strength, kind)
			}
			return nil
		},
	}
}

func pathCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "path <from> <to>",
		Short: "Interpolate a transition between two archetypes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			set := capops.DefaultArchetypes()
			from, err := set.Get(args[0])
			if err != nil {
				return err
			}
			to, err := set.Get(args[1])
			if err != nil {
				return err
			}

			path, err := capops.Interpolate(capops.NewSliderModel(), capops.NewSweepCache(), from, to, steps)
			if err != nil {
				return err
			}

			fmt.Printf("%s -> %s  (zone %.1f%% -> %.1f%%)\n\n", path.From, path.To, path.ZoneAreaStart, path.ZoneAreaEnd)
			fmt.Printf("%5s %6s %6s %7s %9s %s\n", "t", "CAP", "OPS", "ZONE%", "COMBINED", "STATUS")
			for _, step := range path.Steps {
				status := "ok"
				if !step.InZone {
					status = "FAILS (" + step.Binding + ")"
				}
				fmt.Printf("%5.2f %5.0f%% %5.0f%% %6.1f%% %9.4f %s\n",
					step.T, step.Position.Cap*100, step.Position.Ops*100,
					step.ZoneArea, step.Score.Combined, status)
			}
			if path.Precarity {
				fmt.Printf("\npath leaves the viable zone at t=%.2f\n", path.PrecarityT)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 11, "number of points along the path")
	return cmd
}

func calibrateCmd() *cobra.Command {
	var out string
	var skipCV bool
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Fit mapper weights to the reference points and emit a weight table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger()
			points := capops.DefaultReferencePoints()
			cfg := capops.DefaultCalibrateConfig()

			model := capops.NewSliderModel()
			start := time.Now()
			result, err := capops.Calibrate(model, points, cfg)
			if err != nil {
				return err
			}
			log.Info("calibrated",
				"points", len(points),
				"iterations", result.Iterations,
				"converged", result.Converged,
				"loss", fmt.Sprintf("%.6f -> %.6f", result.InitialLoss, result.FinalLoss),
				"mae", fmt.Sprintf("%.4f", result.InSampleMAE),
				"elapsed", time.Since(start))

			if !skipCV {
				cv, err := capops.LeaveOneOutCV(points, cfg)
				if err != nil {
					return err
				}
				for _, fold := range cv.Folds {
					log.Debug("fold", "point", fold.Point, "mae", fmt.Sprintf("%.4f", fold.MAE))
				}
				log.Info("leave-one-out", "mean_mae", fmt.Sprintf("%.4f", cv.MeanMAE),
					"worst_abs_error", fmt.Sprintf("%.4f", cv.WorstAE))
			}

			w := os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := capops.WriteWeights(w, model.Weights()); err != nil {
				return err
			}
			if out != "" {
				log.Info("weight table written", "path", out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the weight table to a file instead of stdout")
	cmd.Flags().BoolVar(&skipCV, "skip-cv", false, "skip leave-one-out cross-validation")
	return cmd
}
