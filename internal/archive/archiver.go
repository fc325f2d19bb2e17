// Package archive creates, verifies and extracts the tar.gz artifacts of a
// backup set. Compression runs either in-process (gzip) or through an external
// pigz pipeline whose stage failures are tracked independently.
package archive

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/webdienst24/shopsave/internal/logging"
	"github.com/webdienst24/shopsave/internal/types"
	"github.com/webdienst24/shopsave/pkg/utils"
)

// Deps groups external dependencies used by Archiver.
type Deps struct {
	LookPath       func(string) (string, error)
	CommandContext func(context.Context, string, ...string) *exec.Cmd
}

func defaultDeps() Deps {
	return Deps{
		LookPath:       exec.LookPath,
		CommandContext: exec.CommandContext,
	}
}

// CompressionError reports a failure of the external compression stage.
type CompressionError struct {
	Algorithm string
	Err       error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("%s compression failed: %v", e.Algorithm, e.Err)
}

func (e *CompressionError) Unwrap() error {
	return e.Err
}

// CorruptArtifactError reports a failed integrity check. The artifact is left
// on disk for operator inspection.
type CorruptArtifactError struct {
	Path string
	Err  error
}

func (e *CorruptArtifactError) Error() string {
	return fmt.Sprintf("archive %s failed verification: %v", e.Path, e.Err)
}

func (e *CorruptArtifactError) Unwrap() error {
	return e.Err
}

// Archiver handles tar archive creation with gzip-family compression.
type Archiver struct {
	logger             *logging.Logger
	compression        types.CompressionType
	compressionLevel   int
	compressionThreads int
	dryRun             bool
	deps               Deps
}

// Config holds configuration for archive creation.
type Config struct {
	Compression        types.CompressionType
	CompressionLevel   int // 1-9
	CompressionThreads int // pigz only, 0 = auto
	DryRun             bool
}

// New creates a new archiver.
func New(logger *logging.Logger, cfg Config) *Archiver {
	return &Archiver{
		logger:             logger,
		compression:        cfg.Compression,
		compressionLevel:   normalizeLevel(cfg.CompressionLevel),
		compressionThreads: cfg.CompressionThreads,
		dryRun:             cfg.DryRun,
		deps:               defaultDeps(),
	}
}

// SetDeps overrides the external dependencies (for tests).
func (a *Archiver) SetDeps(deps Deps) {
	if deps.LookPath != nil {
		a.deps.LookPath = deps.LookPath
	}
	if deps.CommandContext != nil {
		a.deps.CommandContext = deps.CommandContext
	}
}

func (a *Archiver) cmd(ctx context.Context, name string, args ...string) *exec.Cmd {
	return a.deps.CommandContext(ctx, name, args...)
}

// EffectiveCompression returns the compression algorithm currently in use.
func (a *Archiver) EffectiveCompression() types.CompressionType {
	return a.compression
}

// CompressionLevel returns the current compression level (already normalized).
func (a *Archiver) CompressionLevel() int {
	return a.compressionLevel
}

func normalizeLevel(level int) int {
	if level < 1 || level > 9 {
		return 6
	}
	return level
}

// ResolveCompression ensures the configured compression is available. If pigz
// is requested but absent it falls back to in-process gzip, keeping the caller
// informed via logs. Both variants produce .tar.gz output.
func (a *Archiver) ResolveCompression() types.CompressionType {
	switch a.compression {
	case types.CompressionPigz:
		if _, err := a.deps.LookPath("pigz"); err != nil {
			a.logger.Warning("pigz command not available: %v", err)
			a.compression = types.CompressionGzip
		}
	case types.CompressionGzip:
	default:
		a.logger.Warning("Unknown compression type %s, using gzip fallback", a.compression)
		a.compression = types.CompressionGzip
	}
	a.logger.Debug("Compression resolved to %s (level %d, threads %d)",
		a.compression, a.compressionLevel, a.compressionThreads)
	return a.compression
}

func buildPigzArgs(level, threads int) []string {
	args := make([]string, 0, 3)
	if threads > 0 {
		args = append(args, fmt.Sprintf("-p%d", threads))
	}
	args = append(args, fmt.Sprintf("-%d", level), "-c")
	return args
}

// matchesExclude reports whether a slash-separated relative path matches one
// of the exclude patterns. A pattern matches the path itself, its base name,
// or any parent directory (so "templates_c" excludes the whole subtree).
func matchesExclude(relPath string, patterns []string) bool {
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if ok, _ := path.Match(pattern, relPath); ok {
			return true
		}
		if ok, _ := path.Match(pattern, path.Base(relPath)); ok {
			return true
		}
		prefix := strings.TrimSuffix(pattern, "/*")
		if prefix != pattern || !strings.ContainsAny(pattern, "*?[") {
			if relPath == prefix || strings.HasPrefix(relPath, prefix+"/") {
				return true
			}
		}
	}
	return false
}

// Create produces a compressed tar archive of the named subtrees of
// sourceRoot. relPaths and excludes are slash-separated paths relative to
// sourceRoot. Tar-stage and compressor-stage failures are tracked
// independently so a compressor that exits zero after the tar stage died does
// not mask the failure.
func (a *Archiver) Create(ctx context.Context, sourceRoot string, relPaths, excludes []string, outputPath string) error {
	actual := a.ResolveCompression()
	a.logger.Info("Creating archive %s with %s (level %d)",
		filepath.Base(outputPath), actual, a.compressionLevel)

	if a.dryRun {
		a.logger.Info("[DRY RUN] Would create archive: %s", outputPath)
		return nil
	}

	if err := utils.EnsureDir(filepath.Dir(outputPath)); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	switch actual {
	case types.CompressionPigz:
		return a.createPigzArchive(ctx, sourceRoot, relPaths, excludes, outputPath)
	default:
		return a.createGzipArchive(ctx, sourceRoot, relPaths, excludes, outputPath)
	}
}

// createGzipArchive streams the tar content through Go's stdlib gzip writer.
func (a *Archiver) createGzipArchive(ctx context.Context, sourceRoot string, relPaths, excludes []string, outputPath string) error {
	outFile, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer outFile.Close()

	gzWriter, err := gzip.NewWriterLevel(outFile, a.compressionLevel)
	if err != nil {
		return fmt.Errorf("failed to create gzip writer: %w", err)
	}
	defer gzWriter.Close()

	if err := a.writeTar(ctx, sourceRoot, relPaths, excludes, gzWriter); err != nil {
		return fmt.Errorf("failed to write tar stream: %w", err)
	}

	return nil
}

func (a *Archiver) createPigzArchive(ctx context.Context, sourceRoot string, relPaths, excludes []string, outputPath string) error {
	args := buildPigzArgs(a.compressionLevel, a.compressionThreads)
	cmd := a.cmd(ctx, "pigz", args...)
	return a.pipeTarThroughCommand(ctx, sourceRoot, relPaths, excludes, outputPath, cmd, "pigz")
}

// pipeTarThroughCommand streams the tar content into an external compressor.
// The tar goroutine's error is collected separately from the compressor's exit
// status; success requires both to be clean.
func (a *Archiver) pipeTarThroughCommand(ctx context.Context, sourceRoot string, relPaths, excludes []string, outputPath string, cmd *exec.Cmd, algo string) error {
	outFile, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer outFile.Close()

	pr, pw := io.Pipe()
	cmd.Stdin = pr
	cmd.Stdout = outFile
	if err := a.attachStderrLogger(cmd, algo); err != nil {
		return fmt.Errorf("capture %s output: %w", algo, err)
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		if err := a.writeTar(ctx, sourceRoot, relPaths, excludes, pw); err != nil {
			pw.CloseWithError(err)
			errChan <- err
			return
		}
		pw.Close()
		errChan <- nil
	}()

	if err := cmd.Start(); err != nil {
		pw.Close()
		if startErr := <-errChan; startErr != nil {
			return startErr
		}
		return fmt.Errorf("failed to start %s: %w", algo, err)
	}

	tarErr := <-errChan
	waitErr := cmd.Wait()

	// Combined status: a failure in either stage fails the artifact, even if
	// the other stage exited zero because it only saw a clean EOF.
	if tarErr != nil {
		if waitErr != nil {
			a.logger.Debug("%s also failed after tar stage error: %v", algo, waitErr)
		}
		return tarErr
	}
	if waitErr != nil {
		return &CompressionError{Algorithm: algo, Err: waitErr}
	}

	a.logger.Debug("%s compression completed successfully", strings.ToUpper(algo))
	return nil
}

func (a *Archiver) attachStderrLogger(cmd *exec.Cmd, algo string) error {
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	tag := strings.ToUpper(algo)
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			a.logger.Info("[%s] %s", tag, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			a.logger.Debug("[%s] stderr read error: %v", tag, err)
		}
	}()

	return nil
}

// writeTar writes the selected subtrees as one tar stream.
func (a *Archiver) writeTar(ctx context.Context, sourceRoot string, relPaths, excludes []string, w io.Writer) error {
	tarWriter := tar.NewWriter(w)
	var err error
	for _, relPath := range relPaths {
		if err = a.addToTar(ctx, tarWriter, sourceRoot, relPath, excludes); err != nil {
			break
		}
	}
	if closeErr := tarWriter.Close(); err == nil {
		err = closeErr
	}
	return err
}

// addToTar recursively adds one subtree to the tar archive.
// Symlinks are preserved instead of followed.
func (a *Archiver) addToTar(ctx context.Context, tarWriter *tar.Writer, sourceRoot, relPath string, excludes []string) error {
	base := filepath.Join(sourceRoot, filepath.FromSlash(relPath))
	if _, err := os.Lstat(base); err != nil {
		return fmt.Errorf("archive source %s: %w", base, err)
	}

	return filepath.Walk(base, func(walkPath string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			a.logger.Warning("Error accessing path %s: %v", walkPath, err)
			return nil // Continue with other files
		}

		rel, err := filepath.Rel(sourceRoot, walkPath)
		if err != nil {
			return err
		}
		archivePath := filepath.ToSlash(rel)

		if matchesExclude(archivePath, excludes) {
			a.logger.Debug("Excluded from archive: %s", archivePath)
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		// Use Lstat to get symlink info without following it.
		linkInfo, err := os.Lstat(walkPath)
		if err != nil {
			a.logger.Warning("Failed to stat path %s: %v", walkPath, err)
			return nil
		}

		var linkTarget string
		if linkInfo.Mode()&os.ModeSymlink != 0 {
			linkTarget, err = os.Readlink(walkPath)
			if err != nil {
				a.logger.Warning("Failed to read symlink %s: %v", walkPath, err)
				return nil
			}
		}

		header, err := tar.FileInfoHeader(linkInfo, linkTarget)
		if err != nil {
			a.logger.Warning("Failed to create header for %s: %v", walkPath, err)
			return nil
		}

		// Preserve uid/gid from the original file (critical for restore).
		if stat, ok := linkInfo.Sys().(*syscall.Stat_t); ok {
			header.Uid = int(stat.Uid)
			header.Gid = int(stat.Gid)
			header.AccessTime = time.Unix(stat.Atim.Sec, stat.Atim.Nsec)
			header.ChangeTime = time.Unix(stat.Ctim.Sec, stat.Ctim.Nsec)
			header.ModTime = time.Unix(stat.Mtim.Sec, stat.Mtim.Nsec)
		}

		// PAX format supports the extended timestamps that USTAR does not.
		header.Format = tar.FormatPAX
		header.Name = "./" + archivePath

		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header: %w", err)
		}

		if linkInfo.Mode().IsRegular() {
			file, err := os.Open(walkPath)
			if err != nil {
				a.logger.Warning("Failed to open file %s: %v", walkPath, err)
				return nil
			}
			defer file.Close()

			if _, err := io.Copy(tarWriter, file); err != nil {
				return fmt.Errorf("failed to write file %s to archive: %w", walkPath, err)
			}
		}

		return nil
	})
}

// Verify runs an integrity test over a finished tar.gz artifact. The artifact
// is never deleted here; verification failures are advisory for the caller.
func (a *Archiver) Verify(ctx context.Context, archivePath string) error {
	a.logger.Debug("Verifying archive: %s", archivePath)

	if a.dryRun {
		a.logger.Info("[DRY RUN] Would verify archive: %s", archivePath)
		return nil
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return &CorruptArtifactError{Path: archivePath, Err: fmt.Errorf("archive not found: %w", err)}
	}
	if info.Size() == 0 {
		return &CorruptArtifactError{Path: archivePath, Err: fmt.Errorf("archive is empty")}
	}

	// tar tests the gzip stream while listing.
	cmd := a.cmd(ctx, "tar", "-tzf", archivePath)
	if output, err := cmd.CombinedOutput(); err != nil {
		return &CorruptArtifactError{
			Path: archivePath,
			Err:  fmt.Errorf("tar/gzip verification failed: %w (output: %s)", err, string(output)),
		}
	}

	a.logger.Debug("Archive verification passed: %s", archivePath)
	return nil
}
