package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/reqtrace/reqtrace-go/internal/config"
	"github.com/reqtrace/reqtrace-go/internal/graph"
	"github.com/reqtrace/reqtrace-go/internal/storage"
)

// batchDelay is how long the watcher waits after the last change
// before rebuilding, so editor save bursts trigger one run.
var batchDelay = 2 * time.Second

// RebuildCallback receives the freshly built graph and summary of
// each watch-triggered rebuild.
type RebuildCallback func(changed []string, g *graph.Graph, result *PipelineResult)

// WatchProject monitors the project for artifact changes and rebuilds
// the graph when they settle. Linking is global (a one-line edit can
// re-target references anywhere), so every batch triggers a full
// rebuild rather than a per-file patch. Blocks until the context is
// cancelled.
func WatchProject(
	ctx context.Context,
	root string,
	cfg *config.Config,
	store storage.Backend,
	onRebuild RebuildCallback,
) error {
	sel := newSelector(root, cfg)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the project tree recursively.
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if sel.skipDir(info.Name(), path, root) {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}

	changedFiles := make(map[string]bool)
	batchTimer := time.NewTimer(batchDelay)
	batchTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// New directories need their own watch before any file
			// inside them can be seen.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !sel.skipDir(info.Name(), event.Name, root) {
						_ = watcher.Add(event.Name)
					}
					continue
				}
			}

			relPath, err := filepath.Rel(root, event.Name)
			if err != nil || !sel.wants(relPath) {
				continue
			}

			changedFiles[relPath] = true
			batchTimer.Reset(batchDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)

		case <-batchTimer.C:
			if len(changedFiles) == 0 {
				continue
			}

			changed := make([]string, 0, len(changedFiles))
			for relPath := range changedFiles {
				changed = append(changed, relPath)
			}
			sort.Strings(changed)
			changedFiles = make(map[string]bool)

			g, result, err := RunPipeline(ctx, root, cfg, store, nil)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
				continue
			}

			if onRebuild != nil {
				onRebuild(changed, g, result)
			}
		}
	}
}
