// Command weaners runs the weaner elephant seal drift-agreement analysis: it
// reads tracking and particle-simulation tables from a sqlite database, runs
// the bearing and circular-correlation pipeline, and writes a result bundle
// with plots and a console transcript to an output directory.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dahliasan/Elephant-Weaners/internal/config"
	"github.com/dahliasan/Elephant-Weaners/internal/pipeline"
	"github.com/dahliasan/Elephant-Weaners/internal/runlog"
	"github.com/dahliasan/Elephant-Weaners/internal/store"
)

const usage = `usage: weaners <command> [flags]

commands:
  run      execute a full analysis run
  migrate  manage the results database schema

run 'weaners <command> -h' for command flags
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runCommand(os.Args[2:])
	case "migrate":
		err = migrateCommand(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Fprint(os.Stderr, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

// parseRunParams layers run parameters: defaults, then the -config file,
// then any flags explicitly set on the command line.
func parseRunParams(fs *flag.FlagSet, args []string) (*config.Params, error) {
	configPath := fs.String("config", "", "JSON parameter file applied over defaults")
	input := fs.String("input", "", "input sqlite database with tracks and covariates")
	output := fs.String("output", "", "output directory for the result bundle, plots and transcript")
	resultsDB := fs.String("results-db", "", "results database filename inside the output directory")
	cadence := fs.Float64("cadence-hours", 0, "resample interval in hours")
	minWindow := fs.Int("min-window", 0, "smallest window treated as a valid correlation point")
	basisDim := fs.Int("trend-basis", 0, "B-spline basis dimension of the trend smooth")
	curvePoints := fs.Int("curve-points", 0, "evaluation grid size of the stored trend curve")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	params := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		params.Merge(loaded)
	}

	overrides := &config.Params{}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			overrides.InputDB = input
		case "output":
			overrides.OutputDir = output
		case "results-db":
			overrides.ResultsDB = resultsDB
		case "cadence-hours":
			overrides.CadenceHours = cadence
		case "min-window":
			overrides.MinWindow = minWindow
		case "trend-basis":
			overrides.TrendBasisDim = basisDim
		case "curve-points":
			overrides.TrendCurvePoints = curvePoints
		}
	})
	params.Merge(overrides)

	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	params, err := parseRunParams(fs, args)
	if err != nil {
		return err
	}

	tr, err := runlog.NewTranscript(*params.OutputDir)
	if err != nil {
		return err
	}
	defer tr.Close()

	runlog.Logf("analysis starting: input=%s output=%s cadence=%gh min window=%d",
		*params.InputDB, *params.OutputDir, *params.CadenceHours, *params.MinWindow)
	if err := pipeline.Run(params); err != nil {
		runlog.Logf("run failed: %v", err)
		return err
	}
	runlog.Logf("run complete; transcript at %s", tr.Path())
	return nil
}

func migrateCommand(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := fs.String("db", "", "results sqlite database")
	down := fs.Bool("down", false, "roll the schema back instead of forward")
	version := fs.Bool("version", false, "print the current schema version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return fmt.Errorf("migrate: -db is required")
	}

	db, err := store.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	switch {
	case *version:
		v, dirty, err := db.MigrateVersion()
		if err != nil {
			return err
		}
		log.Printf("schema version %d (dirty=%v)", v, dirty)
		return nil
	case *down:
		return db.MigrateDown()
	default:
		return db.MigrateUp()
	}
}
