package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/nikolayrodzhev/mapty/internal/config"
	"github.com/nikolayrodzhev/mapty/internal/importer"
	"github.com/nikolayrodzhev/mapty/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	exportPath := flag.String("path", "", "browser export file, or a directory of *.json exports (required)")
	dryRun := flag.Bool("dry-run", false, "report counts without saving")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mapty-import -config config.yaml -path export.json [-dry-run]\n\n")
		fmt.Fprintf(os.Stderr, "Stop the mapty server first: a running server overwrites the saved\n")
		fmt.Fprintf(os.Stderr, "workouts on its next change and the import is lost.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *exportPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Storage.Driver == config.DriverMemory {
		log.Error("importing into memory storage would be lost on exit")
		os.Exit(1)
	}

	ctx := context.Background()

	if *dryRun {
		log.Info("DRY RUN mode: nothing will be saved")
	} else {
		log.Warn("make sure the mapty server is stopped; it would overwrite the import on its next save")
	}

	kv, err := storage.Open(ctx, cfg.Storage, log)
	if err != nil {
		log.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer kv.Close()

	imp := importer.New(kv, log, *dryRun)
	stats, err := imp.Import(ctx, *exportPath)
	if err != nil {
		log.Error("import failed", "error", err)
		printStats(log, stats)
		os.Exit(1)
	}

	printStats(log, stats)
	log.Info("import complete")
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	log.Info("import stats",
		"files_processed", stats.FilesProcessed,
		"files_errored", stats.FilesErrored,
		"workouts_found", stats.WorkoutsFound,
		"workouts_inserted", stats.WorkoutsInserted,
		"workouts_duplicated", stats.WorkoutsDuplicated,
		"workouts_invalid", stats.WorkoutsInvalid,
	)
}
