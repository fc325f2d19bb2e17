package orchestrator

import (
	"context"

	"github.com/juju/clock"

	"github.com/webdienst24/shopsave/internal/archive"
	"github.com/webdienst24/shopsave/internal/config"
	"github.com/webdienst24/shopsave/internal/database"
	"github.com/webdienst24/shopsave/internal/logging"
	"github.com/webdienst24/shopsave/internal/shopcfg"
	"github.com/webdienst24/shopsave/internal/store"
	"github.com/webdienst24/shopsave/internal/types"
)

// Database handles dumping and replaying the shop database.
type Database interface {
	Dump(ctx context.Context, creds shopcfg.Credentials, destPath string) error
	Replay(ctx context.Context, creds shopcfg.Credentials, dumpPath string) error
	DropAllTables(ctx context.Context, creds shopcfg.Credentials) error
}

// Archiver creates, verifies and extracts tar.gz artifacts.
type Archiver interface {
	Create(ctx context.Context, sourceRoot string, relPaths, excludes []string, outputPath string) error
	Verify(ctx context.Context, archivePath string) error
	Extract(ctx context.Context, archivePath, destRoot string) error
	EffectiveCompression() types.CompressionType
	CompressionLevel() int
}

// Store manages backup set directories, metadata and retention.
type Store interface {
	CreateSet(project string) (store.BackupSet, error)
	ListCompleteSets(project string) ([]store.BackupSet, error)
	CollectArtifacts(ctx context.Context, set store.BackupSet, names []string) ([]store.Artifact, error)
	WriteMetadata(set store.BackupSet, meta store.Metadata) error
	Rotate(project string, keepCount int) error
}

// CredentialSource extracts database credentials from a shop config file.
type CredentialSource interface {
	FromFile(path string) (shopcfg.Credentials, error)
	FromArchive(archivePath, project string) (shopcfg.Credentials, error)
}

// Deps bundles the collaborators of an Orchestrator run. Zero fields are
// filled with the production implementations by NewWithDeps.
type Deps struct {
	Database Database
	Archiver Archiver
	Store    Store
	Creds    CredentialSource
	Clock    clock.Clock
}

// Orchestrator drives the backup and restore workflows.
type Orchestrator struct {
	logger *logging.Logger
	cfg    *config.Config
	ui     WorkflowUI
	deps   Deps
}

// New creates an orchestrator with production collaborators.
func New(logger *logging.Logger, cfg *config.Config, ui WorkflowUI) *Orchestrator {
	return NewWithDeps(logger, cfg, ui, Deps{})
}

// NewWithDeps creates an orchestrator with explicit collaborators; nil fields
// fall back to the production implementations.
func NewWithDeps(logger *logging.Logger, cfg *config.Config, ui WorkflowUI, deps Deps) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = clock.WallClock
	}
	if deps.Creds == nil {
		deps.Creds = shopConfigSource{}
	}
	if deps.Database == nil {
		deps.Database = database.NewClient(logger, database.ClientConfig{
			MysqlBin:     cfg.MysqlBin,
			MysqldumpBin: cfg.MysqldumpBin,
			DryRun:       cfg.DryRun,
		})
	}
	if deps.Archiver == nil {
		deps.Archiver = archive.New(logger, archive.Config{
			Compression:        cfg.CompressionType,
			CompressionLevel:   cfg.CompressionLevel,
			CompressionThreads: cfg.CompressionThreads,
			DryRun:             cfg.DryRun,
		})
	}
	if deps.Store == nil {
		deps.Store = store.New(logger, cfg.BackupRoot)
	}
	return &Orchestrator{
		logger: logger,
		cfg:    cfg,
		ui:     ui,
		deps:   deps,
	}
}

// shopConfigSource is the production CredentialSource.
type shopConfigSource struct{}

func (shopConfigSource) FromFile(path string) (shopcfg.Credentials, error) {
	return shopcfg.ExtractFromFile(path)
}

func (shopConfigSource) FromArchive(archivePath, project string) (shopcfg.Credentials, error) {
	return shopcfg.ExtractFromArchive(archivePath, project)
}
