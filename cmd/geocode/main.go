package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime/pprof"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pspoerri/geocode/internal/config"
	"github.com/pspoerri/geocode/internal/encode"
	"github.com/pspoerri/geocode/internal/geocode"
	"github.com/pspoerri/geocode/internal/raster"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

const example = `  geocode velocity.stk
  geocode velocity.stk timeseries.stk -t smallbaselineApp.cfg --outdir ./geo --update
  geocode timeseries.stk -b -1.2 0.5 -92 -91 -y 0.0001 -x 0.0001
  geocode geo_velocity.stk --geo2radar -l inputs/geometryRadar.stk
  geocode geometryRadar.stk -d height -i bilinear --preview png`

func main() {
	cmd := newRootCmd()
	// "--bbox S N W E" must be joined before pflag sees negative numbers.
	cmd.SetArgs(config.JoinMultiValueArgs(os.Args[1:]))
	if err := cmd.Execute(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		verbose    bool
		progress   bool
		preview    string
		quality    int
		cpuProfile string
	)

	cmd := &cobra.Command{
		Use:   "geocode [flags] FILE...",
		Short: "Resample radar-coded rasters to a lat/lon grid and back",
		Long: `geocode resamples InSAR raster containers between radar coordinates and
geographic coordinates using a lookup table from the InSAR processor.

Options may also come from a template file (text "key = value", YAML or
TOML) using the pysar.geocode.* keys; flags given on the command line win.`,
		Example:       example,
		Args:          cobra.MinimumNArgs(1),
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := config.NewFlags(cmd.Flags())
	cmd.Flags().BoolVar(&verbose, "verbose", false, "verbose progress output")
	cmd.Flags().BoolVar(&progress, "progress", false, "show a progress bar while resampling")
	cmd.Flags().StringVar(&preview, "preview", "", "also write a quicklook image per output: png, jpeg, webp")
	cmd.Flags().IntVar(&quality, "quality", 85, "JPEG/WebP quicklook quality 1-100")
	cmd.Flags().StringVar(&cpuProfile, "cpuprofile", "", "write CPU profile to file")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		log.SetPrefix("[" + uuid.NewString()[:8] + "] ")

		if cpuProfile != "" {
			f, err := os.Create(cpuProfile)
			if err != nil {
				return fmt.Errorf("creating CPU profile: %w", err)
			}
			defer f.Close()
			if err := pprof.StartCPUProfile(f); err != nil {
				return fmt.Errorf("starting CPU profile: %w", err)
			}
			defer pprof.StopCPUProfile()
		}

		opts, err := flags.Options(args)
		if err != nil {
			return err
		}
		var tmpl config.Template
		if opts.Template != "" {
			if tmpl, err = config.LoadTemplate(opts.Template); err != nil {
				return err
			}
		}
		req, err := config.Resolve(opts, tmpl)
		if err != nil {
			return err
		}

		var bar io.Writer
		if progress {
			bar = os.Stderr
		}
		runner := &geocode.Runner{
			Store:     raster.Store{},
			NewEngine: geocode.LookupEngine(raster.Store{}, bar),
			Verbose:   verbose,
		}
		if preview != "" {
			p, err := encode.NewPreview(preview, quality)
			if err != nil {
				return err
			}
			runner.Preview = p
		}

		printSettings(req, preview, quality)

		res, err := runner.Run(req)
		if err != nil {
			return err
		}
		if res.Outcome == geocode.NoOp {
			return nil
		}
		fmt.Printf("Outputs (%d up to date):\n", res.Skipped)
		for _, out := range res.Outputs {
			fmt.Printf("  %s\n", out)
		}
		return nil
	}
	return cmd
}

func printSettings(req geocode.Request, preview string, quality int) {
	fmt.Printf("geocode %s (commit %s, built %s)\n", version, commit, buildDate)
	fmt.Printf("  %-14s %s\n", "Direction:", req.Direction)
	fmt.Printf("  %-14s %s\n", "Lookup table:", req.LookupTable)
	if req.BoundingBox != nil {
		fmt.Printf("  %-14s %s\n", "Bounding box:", req.BoundingBox)
	} else {
		fmt.Printf("  %-14s auto (lookup table extent)\n", "Bounding box:")
	}
	if req.GridStep != nil {
		fmt.Printf("  %-14s %g / %g deg\n", "Step lat/lon:", req.GridStep.Lat, req.GridStep.Lon)
	} else {
		fmt.Printf("  %-14s auto\n", "Step lat/lon:")
	}
	fmt.Printf("  %-14s %s\n", "Interpolation:", req.Interpolation)
	fmt.Printf("  %-14s %g\n", "Fill value:", req.FillValue)
	fmt.Printf("  %-14s %d\n", "Concurrency:", req.Workers)
	if req.UpdateMode {
		fmt.Printf("  %-14s on\n", "Update mode:")
	}
	switch preview {
	case "":
	case "jpeg", "jpg", "webp":
		fmt.Printf("  %-14s %s (quality: %d)\n", "Preview:", preview, quality)
	default:
		fmt.Printf("  %-14s %s\n", "Preview:", preview)
	}
	fmt.Printf("  %-14s %d file(s)\n", "Input:", len(req.InputFiles))
}
