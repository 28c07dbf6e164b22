package identity

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/Nu11ified/sync-server/pkg/observability"
)

// WatchSeedFile reloads the seed file into store whenever it changes, until
// ctx is cancelled. The parent directory is watched rather than the file
// itself because editors and config tooling replace files atomically.
func WatchSeedFile(ctx context.Context, path string, store *SQLStore, logger *observability.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	target := filepath.Clean(path)
	logger = logger.WithField("seed_file", target)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				seed, err := LoadSeedFile(target)
				if err != nil {
					logger.WithError(err).Error("seed file changed but could not be loaded")
					continue
				}
				if err := store.ImportSeed(ctx, seed); err != nil {
					logger.WithError(err).Error("failed to import changed seed file")
					continue
				}
				logger.WithFields(map[string]interface{}{
					"identities": len(seed.Identities),
					"mappings":   len(seed.Mappings),
				}).Info("reloaded seed file")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("seed file watcher error")
			}
		}
	}()

	return nil
}
