package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/juju/retry"
)

// protectedCacheEntries survive template cache cleanup: the minified asset
// cache and the access rules.
var protectedCacheEntries = map[string]bool{
	"min":       true,
	".htaccess": true,
}

// cleanTemplateCache empties the project's compiled template cache so the
// archive does not carry regenerable files. Best effort: the shop rebuilds
// the cache on demand, so after the retries are exhausted the failure is
// logged and the backup continues.
func (o *Orchestrator) cleanTemplateCache(ctx context.Context, project string) {
	cacheDir := filepath.Join(o.cfg.ProjectRoot, project, o.cfg.TemplateCacheDir)
	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		o.logger.Debug("Template cache directory %s does not exist, skipping cleanup", cacheDir)
		return
	}

	if o.cfg.DryRun {
		o.logger.Info("[DRY RUN] Would clean template cache: %s", cacheDir)
		return
	}

	o.logger.Step("Cleaning template cache: %s", cacheDir)

	err := retry.Call(retry.CallArgs{
		Func: func() error {
			return removeCacheContents(cacheDir)
		},
		Attempts: o.cfg.CacheCleanAttempts,
		Delay:    o.cfg.CacheCleanDelay,
		Clock:    o.deps.Clock,
		Stop:     ctx.Done(),
		NotifyFunc: func(lastError error, attempt int) {
			o.logger.Warning("Template cache cleanup attempt %d failed: %v", attempt, lastError)
		},
	})
	if err != nil {
		o.logger.Error("Template cache cleanup failed after %d attempts: %v", o.cfg.CacheCleanAttempts, err)
		return
	}

	o.logger.Debug("Template cache cleaned: %s", cacheDir)
}

// removeCacheContents deletes everything under dir except the protected
// entries.
func removeCacheContents(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, entry := range entries {
		if protectedCacheEntries[entry.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove cache entry %s: %w", entry.Name(), err)
		}
	}
	return nil
}
