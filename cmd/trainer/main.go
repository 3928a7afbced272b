package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"cancer-detect/internal/cfg"
	"cancer-detect/internal/common"
	"cancer-detect/internal/dataset"
	"cancer-detect/internal/logging"
	"cancer-detect/internal/ml"
	"cancer-detect/internal/storage"

	"github.com/rs/zerolog/log"
)

// options are the trainer actions selected on the command line.
type options struct {
	list     bool
	dryRun   bool
	activate bool
}

func main() {
	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	opts, err := parseFlags(flag.CommandLine, os.Args[1:], &config)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid arguments")
	}

	closer := logging.Setup(config.Log)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, opts.list, opts.dryRun, opts.activate); err != nil {
		log.Error().Err(err).Msg("trainer failed")
		closer.Close()
		os.Exit(1)
	}
}

// parseFlags applies every flag given in args on top of config and validates
// the result.
func parseFlags(fs *flag.FlagSet, args []string, config *cfg.Settings) (options, error) {
	var (
		logLevel   = fs.String("log-level", config.Log.Level, "Log level: debug, info, warn, error")
		dataPath   = fs.String("data", config.DataPath, "Directory holding the model database")
		dsPath     = fs.String("dataset", config.DatasetPath, "Dataset file, WDBC or labeled CSV")
		testSize   = fs.Float64("test-size", config.TestSize, "Held-out fraction in (0,1)")
		seed       = fs.Int64("seed", config.SplitSeed, "Split seed")
		regC       = fs.Float64("c", config.RegC, "Inverse regularization strength")
		maxIter    = fs.Int("max-iter", config.MaxIter, "Optimizer iteration cap")
		noDownload = fs.Bool("no-download", false, "Fail instead of downloading a missing dataset")
		dryRun     = fs.Bool("dry-run", false, "Train and report without storing the model")
		noActivate = fs.Bool("no-activate", false, "Store the model without making it active")
		list       = fs.Bool("list", false, "List stored model versions and exit")
	)
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	// Override config with command line arguments
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			config.Log.Level = *logLevel
		case "data":
			config.DataPath = *dataPath
		case "dataset":
			config.DatasetPath = *dsPath
		case "test-size":
			config.TestSize = *testSize
		case "seed":
			config.SplitSeed = *seed
		case "c":
			config.RegC = *regC
		case "max-iter":
			config.MaxIter = *maxIter
		case "no-download":
			if *noDownload {
				config.DatasetDownload = false
			}
		}
	})
	if err := config.Validate(); err != nil {
		return options{}, fmt.Errorf("invalid flags: %w", err)
	}

	return options{list: *list, dryRun: *dryRun, activate: !*noActivate}, nil
}

func run(ctx context.Context, c cfg.Settings, list, dryRun, activate bool) error {
	if list {
		store, err := storage.New(c.DataPath, common.ModelsDBFile)
		if err != nil {
			return err
		}
		defer store.Close()
		versions, err := ml.NewModelManager(store).ListVersions()
		if err != nil {
			return err
		}
		printVersions(versions)
		return nil
	}

	loader := dataset.NewLoader(dataset.LoaderConfig{
		Path:     c.DatasetPath,
		URL:      c.DatasetURL,
		Download: c.DatasetDownload,
		Timeout:  c.DownloadTimeout,
	})
	trainer := ml.NewTrainer(ml.TrainerConfig{
		TestSize: c.TestSize,
		Seed:     c.SplitSeed,
		C:        c.RegC,
		MaxIter:  c.MaxIter,
	}, loader, nil)

	model, err := trainer.Train(ctx)
	if err != nil {
		return err
	}
	printReport(model.Metadata)

	if dryRun {
		return nil
	}

	// The service holds an exclusive lock on the database while running.
	store, err := storage.New(c.DataPath, common.ModelsDBFile)
	if err != nil {
		return fmt.Errorf("open model store (is the service running?): %w", err)
	}
	defer store.Close()

	models := ml.NewModelManager(store)
	if err := models.AddVersion(model); err != nil {
		return err
	}
	if activate {
		if _, err := models.Activate(model.Metadata.Version); err != nil {
			return err
		}
	}
	fmt.Printf("Stored version %s (active: %t)\n", model.Metadata.Version, activate)
	return nil
}

func printReport(md ml.ModelMetadata) {
	ev := md.Evaluation
	fmt.Println("=== Training Report ===")
	fmt.Printf("Version:        %s\n", md.Version)
	fmt.Printf("Rows:           %d train / %d test\n", md.TrainingRows, md.TestRows)
	fmt.Printf("Optimizer:      %d iterations (%s)\n", md.Params.Iterations, md.Params.Status)
	fmt.Printf("Train accuracy: %.4f\n", md.TrainAccuracy)
	fmt.Printf("Test accuracy:  %.4f\n", md.TestAccuracy)
	fmt.Printf("Precision:      %.4f (malignant)\n", ev.Precision)
	fmt.Printf("Recall:         %.4f (malignant)\n", ev.Recall)
	fmt.Printf("F1:             %.4f\n", ev.F1)
	fmt.Printf("Confusion:      [[%d %d] [%d %d]] (rows actual, cols predicted)\n",
		ev.ConfusionMatrix[0][0], ev.ConfusionMatrix[0][1], ev.ConfusionMatrix[1][0], ev.ConfusionMatrix[1][1])

	fmt.Println("Top features:")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for i, fi := range md.Importance {
		if i == 10 {
			break
		}
		fmt.Fprintf(w, "  %s\t%+.4f\t%.4f\n", fi.Name, fi.Coefficient, fi.PermutationScore)
	}
	w.Flush()
	fmt.Println("=======================")
}

func printVersions(versions []ml.ModelVersion) {
	if len(versions) == 0 {
		fmt.Println("No stored model versions")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tACTIVE\tTRAINED\tTEST ACC")
	for _, v := range versions {
		active := ""
		if v.IsActive {
			active = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\n", v.Version, active, v.Metadata.TrainedAt.Format("2006-01-02 15:04:05"), v.Metadata.TestAccuracy)
	}
	w.Flush()
}
