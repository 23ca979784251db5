package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/pprof"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seatrace/rayfield/internal/rayfield"
)

var (
	cores   int
	outBase string
	verbose bool
	cpuProf string
)

func main() {
	root := &cobra.Command{
		Use:   "rayfield",
		Short: "Acoustic ray and arrival-field tracer",
		Long: "rayfield traces acoustic rays through a layered ocean described\n" +
			"by a YAML run file and writes trajectory or arrival outputs.",
		SilenceUsage: true,
	}

	run := &cobra.Command{
		Use:   "run <config.yaml>",
		Short: "Trace a run file",
		Args:  cobra.ExactArgs(1),
		RunE:  runCmd,
	}
	run.Flags().IntVar(&cores, "cores", 0, "worker count (0 = all CPUs; 1 selects exact arrival merging)")
	run.Flags().StringVarP(&outBase, "out", "o", "", "output base name (default: config name without extension)")
	run.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	run.Flags().StringVar(&cpuProf, "cpuprofile", "", "write a CPU profile to this file")
	root.AddCommand(run)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd(cmd *cobra.Command, args []string) error {
	lvl := slog.LevelInfo
	if verbose {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))

	if cpuProf != "" {
		f, err := os.Create(cpuProf)
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return err
		}
		defer func() {
			pprof.StopCPUProfile()
			f.Close()
		}()
	}

	cfgPath := args[0]
	cfg, err := rayfield.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	env, err := cfg.Build()
	if err != nil {
		return err
	}

	out, runErr := rayfield.Run(env, cores)
	if runErr != nil {
		// partial outputs are still written below
		slog.Error("run completed with failures", "err", runErr)
	}

	base := outBase
	if base == "" {
		base = strings.TrimSuffix(cfgPath, ".yaml")
		base = strings.TrimSuffix(base, ".yml")
	}
	if out.Rays != nil {
		path := base + ".ray"
		if err := rayfield.WriteRaysFile(path, cfg.Title, env.Freq, out.Rays); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		slog.Info("wrote trajectories", "path", path, "rays", len(out.Rays))
	} else {
		path := base + ".arr"
		if err := rayfield.WriteArrivalsFile(path, out.RunID, env.Pos, env.Freq, out.Arr); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		slog.Info("wrote arrivals", "path", path)
	}
	return runErr
}
