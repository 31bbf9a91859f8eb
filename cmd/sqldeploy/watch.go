package main

import (
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

var flagWatch bool

func init() {
	applyCmd.Flags().BoolVar(&flagWatch, "watch", false, "re-apply automatically when files under Migrations/ change (local iteration only)")
}

// watchAndReapply re-runs fn every time a file under <root>/Migrations
// changes, until the watcher errors or the process is interrupted. The
// directories present when the watch starts are watched; directories
// created later are not. This is
// a local-iteration convenience on top of the engine, not a feature of the
// engine itself (spec.md §1 treats filesystem enumeration mechanics beyond
// directory conventions as out of scope).
func watchAndReapply(root string, fn func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Join(root, "Migrations")
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	fmt.Printf("Watching %s for changes; Ctrl-C to stop.\n", dir)
	if err := fn(); err != nil {
		fmt.Println("apply error:", err)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			fmt.Printf("Change detected: %s\n", event.Name)
			if err := fn(); err != nil {
				fmt.Println("apply error:", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher: %w", err)
		}
	}
}
