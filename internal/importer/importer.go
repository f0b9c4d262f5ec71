// Package importer merges workouts exported from the browser version of
// mapty into the configured store.
//
// The importer writes the saved workout list directly. A running mapty server
// holds its own copy of that list and rewrites it on its next change, which
// discards anything imported in the meantime. Stop the server before
// importing; it picks the merged list up on start.
package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/nikolayrodzhev/mapty/internal/models"
	"github.com/nikolayrodzhev/mapty/internal/persistence"
)

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesErrored   int

	WorkoutsFound      int
	WorkoutsInserted   int
	WorkoutsDuplicated int
	WorkoutsInvalid    int
}

// Importer reads browser exports and appends their workouts to the saved list.
type Importer struct {
	kv     persistence.KV
	log    *slog.Logger
	dryRun bool
	stats  Stats
}

// New creates a new Importer.
func New(kv persistence.KV, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{kv: kv, log: log, dryRun: dryRun}
}

// Import reads path, a single export file or a directory of *.json exports,
// and saves the merged list once. Workouts whose id is already stored are
// skipped. The saved list is ordered by creation time.
func (imp *Importer) Import(ctx context.Context, path string) (*Stats, error) {
	files, err := exportFiles(path)
	if err != nil {
		return &imp.stats, err
	}

	existing, err := imp.load(ctx)
	if err != nil {
		return &imp.stats, err
	}
	seen := make(map[string]bool, len(existing))
	for _, w := range existing {
		seen[w.ID()] = true
	}

	merged := existing
	for _, f := range files {
		workouts, err := imp.readFile(f)
		if err != nil {
			imp.stats.FilesErrored++
			imp.log.Warn("skipping export file", "file", f, "error", err)
			continue
		}
		imp.stats.FilesProcessed++
		for _, w := range workouts {
			if seen[w.ID()] {
				imp.stats.WorkoutsDuplicated++
				continue
			}
			seen[w.ID()] = true
			merged = append(merged, w)
			imp.stats.WorkoutsInserted++
		}
	}

	if imp.stats.WorkoutsInserted == 0 {
		imp.log.Info("nothing new to import")
		return &imp.stats, nil
	}
	if imp.dryRun {
		imp.log.Info("dry run: not saving", "would_insert", imp.stats.WorkoutsInserted)
		return &imp.stats, nil
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt().Before(merged[j].CreatedAt())
	})
	data, err := persistence.Encode(merged)
	if err != nil {
		return &imp.stats, fmt.Errorf("encoding workouts: %w", err)
	}
	if err := imp.kv.Set(ctx, persistence.Key, string(data)); err != nil {
		return &imp.stats, fmt.Errorf("saving workouts: %w", err)
	}
	return &imp.stats, nil
}

// load returns the stored workouts. Unlike the app's load, a malformed saved
// document is an error here: overwriting it would lose data.
func (imp *Importer) load(ctx context.Context) ([]models.Workout, error) {
	raw, ok, err := imp.kv.Get(ctx, persistence.Key)
	if err != nil {
		return nil, fmt.Errorf("reading saved workouts: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	workouts, skipped, err := persistence.Decode([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("saved workouts are malformed: %w", err)
	}
	if skipped > 0 {
		imp.log.Warn("saved workouts contain invalid entries", "skipped", skipped)
	}
	return workouts, nil
}

func (imp *Importer) readFile(path string) ([]models.Workout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := unwrap(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	workouts, skipped, err := persistence.Decode(doc)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	imp.stats.WorkoutsFound += len(workouts) + skipped
	imp.stats.WorkoutsInvalid += skipped
	if skipped > 0 {
		imp.log.Warn("skipped invalid workouts", "file", path, "count", skipped)
	}
	return workouts, nil
}

// unwrap accepts either the bare workouts array or a dump of the whole
// localStorage object, where the array is a JSON string under "workouts".
func unwrap(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed, nil
	}

	var storage map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &storage); err != nil {
		return nil, err
	}
	raw, ok := storage[persistence.Key]
	if !ok {
		return nil, fmt.Errorf("no %q key in localStorage dump", persistence.Key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []byte(s), nil
	}
	return raw, nil
}

func exportFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("export path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := filepath.Glob(filepath.Join(path, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}
	sort.Strings(files)
	return files, nil
}
