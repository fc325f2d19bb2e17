// Package store manages the on-disk backup repository: per-project
// directories of timestamped backup sets, their metadata and the retention
// policy that rotates old sets out.
package store

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/webdienst24/shopsave/internal/logging"
)

const (
	// TimestampLayout names backup set directories, e.g. 20260830_142501.
	TimestampLayout = "20060102_150405"

	// DumpFileName is the SQL dump artifact inside a backup set.
	DumpFileName = "db_backup.sql"

	// WebArchiveName is the web tree artifact inside a backup set.
	WebArchiveName = "web_backup.tar.gz"

	// MediaArchiveName is the media tree artifact inside a backup set.
	MediaArchiveName = "media_backup.tar.gz"

	// MetadataFileName marks a backup set as complete. It is written last,
	// so its presence implies every requested artifact landed.
	MetadataFileName = "metadata.txt"

	// LogFileName is the per-run log inside a backup set.
	LogFileName = "backup.log"
)

// projectDirPrefix namespaces per-project directories under the backup root.
const projectDirPrefix = "bak."

var timestampPattern = regexp.MustCompile(`^\d{8}_\d{6}$`)

// ErrNoBackups indicates a project has no backup sets to restore from.
var ErrNoBackups = errors.New("no backup sets found")

// BackupSet is one timestamped backup directory of a project.
type BackupSet struct {
	Project   string
	Timestamp string
	Dir       string
	Complete  bool
}

// DumpPath returns the path of the SQL dump inside this set.
func (s BackupSet) DumpPath() string {
	return filepath.Join(s.Dir, DumpFileName)
}

// WebArchivePath returns the path of the web archive inside this set.
func (s BackupSet) WebArchivePath() string {
	return filepath.Join(s.Dir, WebArchiveName)
}

// MediaArchivePath returns the path of the media archive inside this set.
func (s BackupSet) MediaArchivePath() string {
	return filepath.Join(s.Dir, MediaArchiveName)
}

// HasMediaArchive reports whether this set carries a media artifact.
func (s BackupSet) HasMediaArchive() bool {
	info, err := os.Stat(s.MediaArchivePath())
	return err == nil && info.Mode().IsRegular()
}

// Store is the backup repository rooted at a single directory.
type Store struct {
	logger     *logging.Logger
	backupRoot string
	now        func() time.Time
}

// New creates a store over backupRoot.
func New(logger *logging.Logger, backupRoot string) *Store {
	return &Store{
		logger:     logger,
		backupRoot: backupRoot,
		now:        time.Now,
	}
}

// SetNow overrides the clock (for tests).
func (s *Store) SetNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// BackupRoot returns the repository root directory.
func (s *Store) BackupRoot() string {
	return s.backupRoot
}

// ProjectDir returns the per-project directory under the backup root.
func (s *Store) ProjectDir(project string) string {
	return filepath.Join(s.backupRoot, projectDirPrefix+project)
}

// CreateSet allocates a fresh backup set directory for a project. The
// directory name is the current timestamp; the set stays incomplete until
// metadata is written.
func (s *Store) CreateSet(project string) (BackupSet, error) {
	timestamp := s.now().Format(TimestampLayout)
	dir := filepath.Join(s.ProjectDir(project), timestamp)

	if _, err := os.Stat(dir); err == nil {
		return BackupSet{}, fmt.Errorf("backup set %s already exists", dir)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return BackupSet{}, fmt.Errorf("failed to create backup set directory: %w", err)
	}

	s.logger.Debug("Created backup set directory: %s", dir)
	return BackupSet{
		Project:   project,
		Timestamp: timestamp,
		Dir:       dir,
	}, nil
}

// ListSets returns the backup sets of a project, newest first. Entries whose
// names do not look like timestamps are ignored; completeness is derived from
// the metadata file.
func (s *Store) ListSets(project string) ([]BackupSet, error) {
	projectDir := s.ProjectDir(project)
	entries, err := os.ReadDir(projectDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read project directory %s: %w", projectDir, err)
	}

	sets := make([]BackupSet, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || !timestampPattern.MatchString(entry.Name()) {
			continue
		}
		dir := filepath.Join(projectDir, entry.Name())
		_, metaErr := os.Stat(filepath.Join(dir, MetadataFileName))
		sets = append(sets, BackupSet{
			Project:   project,
			Timestamp: entry.Name(),
			Dir:       dir,
			Complete:  metaErr == nil,
		})
	}

	// Timestamp names sort chronologically, so lexicographic descending
	// order puts the newest set first.
	sort.Slice(sets, func(i, j int) bool {
		return sets[i].Timestamp > sets[j].Timestamp
	})
	return sets, nil
}

// ListCompleteSets returns only the restorable sets of a project, newest
// first. ErrNoBackups if none exist.
func (s *Store) ListCompleteSets(project string) ([]BackupSet, error) {
	sets, err := s.ListSets(project)
	if err != nil {
		return nil, err
	}
	complete := make([]BackupSet, 0, len(sets))
	for _, set := range sets {
		if set.Complete {
			complete = append(complete, set)
		}
	}
	if len(complete) == 0 {
		return nil, ErrNoBackups
	}
	return complete, nil
}

// Artifact describes one file of a backup set for the metadata report.
type Artifact struct {
	Name   string
	Size   int64
	SHA256 string
}

// Metadata describes a finished backup set.
type Metadata struct {
	Project     string
	Version     string
	Timestamp   string
	Mode        string
	Compression string
	Artifacts   []Artifact
	Warnings    int
}

// CollectArtifacts stats and checksums the named files of a backup set.
// Missing files are skipped silently (a web-only set has no media archive).
func (s *Store) CollectArtifacts(ctx context.Context, set BackupSet, names []string) ([]Artifact, error) {
	artifacts := make([]Artifact, 0, len(names))
	for _, name := range names {
		p := filepath.Join(set.Dir, name)
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to stat artifact %s: %w", name, err)
		}
		sum, err := s.Checksum(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("failed to checksum artifact %s: %w", name, err)
		}
		artifacts = append(artifacts, Artifact{
			Name:   name,
			Size:   info.Size(),
			SHA256: sum,
		})
	}
	return artifacts, nil
}

// WriteMetadata finalizes a backup set. The metadata file doubles as the
// completeness marker, so it must be the last artifact written.
func (s *Store) WriteMetadata(set BackupSet, meta Metadata) error {
	var b strings.Builder
	fmt.Fprintf(&b, "project: %s\n", meta.Project)
	fmt.Fprintf(&b, "version: %s\n", meta.Version)
	fmt.Fprintf(&b, "timestamp: %s\n", meta.Timestamp)
	fmt.Fprintf(&b, "mode: %s\n", meta.Mode)
	fmt.Fprintf(&b, "compression: %s\n", meta.Compression)
	fmt.Fprintf(&b, "created: %s\n", s.now().Format(time.RFC3339))
	fmt.Fprintf(&b, "warnings: %d\n", meta.Warnings)
	b.WriteString("\nartifacts:\n")
	for _, a := range meta.Artifacts {
		fmt.Fprintf(&b, "  %s  %s (%d bytes)  sha256=%s\n",
			a.Name, humanize.IBytes(uint64(a.Size)), a.Size, a.SHA256)
	}

	metaPath := filepath.Join(set.Dir, MetadataFileName)
	if err := os.WriteFile(metaPath, []byte(b.String()), 0640); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	s.logger.Debug("Wrote metadata: %s", metaPath)
	return nil
}

// Checksum calculates the SHA256 checksum of a file.
func (s *Store) Checksum(ctx context.Context, filePath string) (string, error) {
	s.logger.Debug("Generating SHA256 checksum for: %s", filePath)

	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hash := sha256.New()
	reader := bufio.NewReader(file)

	// Copy file to hash in chunks with context checking
	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		n, err := reader.Read(buf)
		if n > 0 {
			hash.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read file: %w", err)
		}
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}
