package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/webdienst24/shopsave/pkg/utils"
)

// Extract unpacks a tar.gz artifact into destRoot, restoring file modes,
// ownership and timestamps where possible. Entries whose cleaned path would
// escape destRoot are rejected.
func (a *Archiver) Extract(ctx context.Context, archivePath, destRoot string) error {
	a.logger.Info("Extracting archive %s to %s", filepath.Base(archivePath), destRoot)

	if a.dryRun {
		a.logger.Info("[DRY RUN] Would extract archive: %s", archivePath)
		return nil
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gzReader.Close()

	if err := utils.EnsureDir(destRoot); err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	tarReader := tar.NewReader(gzReader)
	extracted := 0

	// Directory mtimes are restored after all children are in place,
	// otherwise extracting into a directory resets its timestamp.
	type dirTime struct {
		path    string
		modTime time.Time
	}
	var dirTimes []dirTime

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}

		target, err := safeJoin(destRoot, header.Name)
		if err != nil {
			return err
		}
		if target == destRoot {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(header.Mode)); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
			restoreOwner(a, target, header)
			dirTimes = append(dirTimes, dirTime{path: target, modTime: header.ModTime})

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("failed to create parent directory: %w", err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return fmt.Errorf("failed to create file %s: %w", target, err)
			}
			if _, err := io.Copy(out, tarReader); err != nil {
				out.Close()
				return fmt.Errorf("failed to extract file %s: %w", target, err)
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("failed to close file %s: %w", target, err)
			}
			restoreOwner(a, target, header)
			if err := os.Chtimes(target, time.Now(), header.ModTime); err != nil {
				a.logger.Debug("Failed to restore mtime on %s: %v", target, err)
			}

		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("failed to create parent directory: %w", err)
			}
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to replace %s: %w", target, err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("failed to create symlink %s: %w", target, err)
			}

		default:
			a.logger.Debug("Skipping unsupported tar entry type %d: %s", header.Typeflag, header.Name)
			continue
		}

		extracted++
	}

	for i := len(dirTimes) - 1; i >= 0; i-- {
		if err := os.Chtimes(dirTimes[i].path, time.Now(), dirTimes[i].modTime); err != nil {
			a.logger.Debug("Failed to restore mtime on %s: %v", dirTimes[i].path, err)
		}
	}

	a.logger.Info("Extracted %d entries from %s", extracted, filepath.Base(archivePath))
	return nil
}

// safeJoin resolves a tar entry name below root and rejects path traversal.
func safeJoin(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(name, "./")))
	if clean == "." {
		return root, nil
	}
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	return filepath.Join(root, clean), nil
}

// restoreOwner applies uid/gid from the archive. Chown needs root; failures
// are logged and ignored so unprivileged restores still work.
func restoreOwner(a *Archiver, target string, header *tar.Header) {
	if err := os.Lchown(target, header.Uid, header.Gid); err != nil {
		a.logger.Debug("Failed to restore ownership on %s: %v", target, err)
	}
}
