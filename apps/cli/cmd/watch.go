package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/abdul-hamid-achik/hitexec/packages/core/config"
)

// watchPaths lists the files a send depends on: the config file, a curl
// command file, the @file body, multipart files and the schema.
func watchPaths(opts sendOptions) []string {
	var paths []string

	if opts.config != "" {
		paths = append(paths, opts.config)
	} else if found := config.FindConfigFile("."); found != "" {
		paths = append(paths, found)
	}
	if path, ok := strings.CutPrefix(opts.curl, "@"); ok && path != "" {
		paths = append(paths, path)
	}
	if path, ok := strings.CutPrefix(opts.data, "@"); ok && path != "" {
		paths = append(paths, path)
	}
	for _, f := range opts.form {
		if _, value, ok := strings.Cut(f, "="); ok {
			if path, isFile := strings.CutPrefix(value, "@"); isFile && path != "" {
				paths = append(paths, path)
			}
		}
	}
	if opts.schema != "" {
		paths = append(paths, opts.schema)
	}

	return paths
}

// watch calls rerun after writes to any of paths settle, until ctx is done.
// Directories are watched so editors that replace files are still seen.
func watch(ctx context.Context, out io.Writer, paths []string, rerun func()) error {
	if len(paths) == 0 {
		return usageError(fmt.Errorf("--watch needs a config file, an @file body, a form file or a schema to watch"))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]bool, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	fmt.Fprintf(out, "\nWatching %d file(s) for changes... (Ctrl+C to stop)\n", len(watched))

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !watched[abs] {
				continue
			}
			debounce = time.After(WatchDebounceDelay)

		case <-debounce:
			debounce = nil
			fmt.Fprintf(out, "\n[%s] Change detected, re-sending...\n", time.Now().Format("15:04:05"))
			rerun()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "Watch error: %v\n", err)
		}
	}
}
