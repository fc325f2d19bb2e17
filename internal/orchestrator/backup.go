package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/webdienst24/shopsave/internal/shopcfg"
	"github.com/webdienst24/shopsave/internal/store"
	"github.com/webdienst24/shopsave/internal/types"
	"github.com/webdienst24/shopsave/internal/version"
	"github.com/webdienst24/shopsave/pkg/utils"
)

// Run presents the top-level menu and dispatches to the chosen workflow.
func (o *Orchestrator) Run(ctx context.Context) error {
	action, err := o.ui.SelectAction(ctx)
	if err != nil {
		return err
	}
	switch action {
	case ActionBackup:
		return o.RunBackup(ctx)
	case ActionRestore:
		return o.RunRestore(ctx)
	default:
		o.logger.Info("Nothing to do, exiting")
		return nil
	}
}

// listProjects enumerates the immediate subdirectories of the project root.
func (o *Orchestrator) listProjects() ([]string, error) {
	projects, err := utils.ListSubdirectories(o.cfg.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects under %s: %w", o.cfg.ProjectRoot, err)
	}
	if len(projects) == 0 {
		return nil, fmt.Errorf("no projects found under %s", o.cfg.ProjectRoot)
	}
	return projects, nil
}

// RunBackup drives one backup run: project and mode selection, credential
// extraction, dump, archives, metadata and retention rotation.
func (o *Orchestrator) RunBackup(ctx context.Context) error {
	projects, err := o.listProjects()
	if err != nil {
		return stepError(types.ExitSetupError, "%v", err)
	}

	project, err := o.ui.SelectProject(ctx, projects)
	if err != nil {
		return err
	}
	mode, err := o.ui.SelectMode(ctx)
	if err != nil {
		return err
	}

	set, err := o.deps.Store.CreateSet(project)
	if err != nil {
		return stepError(types.ExitSetupError, "failed to create backup set: %v", err)
	}

	err = o.runBackupSteps(ctx, project, mode, set)
	if err != nil {
		// A hollow set directory must not linger as retained history. A
		// directory that already holds partial artifacts is kept for
		// operator inspection.
		o.removeSetIfEmpty(set)
	}
	return err
}

func (o *Orchestrator) runBackupSteps(ctx context.Context, project string, mode types.BackupMode, set store.BackupSet) error {
	if err := o.logger.OpenLogFile(filepath.Join(set.Dir, store.LogFileName)); err != nil {
		o.logger.Warning("Could not open backup log file: %v", err)
	} else {
		defer func() {
			if err := o.logger.CloseLogFile(); err != nil {
				o.logger.Warning("Failed to close backup log file: %v", err)
			}
		}()
	}

	o.logger.Step("Starting %s backup of project %q into %s", mode, project, set.Dir)

	configPath := filepath.Join(o.cfg.ProjectRoot, filepath.FromSlash(shopcfg.ConfigRelPath(project)))
	creds, err := o.deps.Creds.FromFile(configPath)
	if err != nil {
		return stepError(types.ExitSetupError, "failed to extract database credentials: %v", err)
	}
	o.logger.Debug("Extracted credentials for database %q on %s", creds.Name, creds.Host)

	o.cleanTemplateCache(ctx, project)

	o.logger.Step("Dumping database %q", creds.Name)
	if err := o.deps.Database.Dump(ctx, creds, set.DumpPath()); err != nil {
		return stepError(types.ExitDumpFailed, "database dump failed: %v", err)
	}

	if mode.IncludesWeb() {
		if err := o.archiveWeb(ctx, project, set); err != nil {
			return err
		}
	}
	if mode.IncludesMedia() {
		if err := o.archiveMedia(ctx, project, set); err != nil {
			return err
		}
	}

	if o.cfg.DryRun {
		o.logger.Info("[DRY RUN] Would write metadata for backup set %s", set.Dir)
	} else if err := o.writeMetadata(ctx, project, mode, set); err != nil {
		return stepError(types.ExitSetupError, "failed to write backup metadata: %v", err)
	}

	if o.cfg.DryRun {
		o.logger.Info("[DRY RUN] Would rotate old backups of %q (keeping %d)", project, o.cfg.KeepCount)
	} else {
		o.logger.Step("Rotating old backups (keeping %d)", o.cfg.KeepCount)
		if err := o.deps.Store.Rotate(project, o.cfg.KeepCount); err != nil {
			return stepError(types.ExitSetupError, "backup rotation failed: %v", err)
		}
	}

	o.logger.Info("Backup of project %q completed: %s", project, set.Dir)
	return nil
}

// archiveWeb archives the whole project tree minus the media subtree and the
// configured exclude patterns.
func (o *Orchestrator) archiveWeb(ctx context.Context, project string, set store.BackupSet) error {
	excludes := make([]string, 0, len(o.cfg.ExcludePatterns)+1)
	excludes = append(excludes, project+"/"+o.cfg.MediaDir)
	excludes = append(excludes, o.cfg.ExcludePatterns...)

	o.logger.Step("Archiving web files of project %q", project)
	if err := o.deps.Archiver.Create(ctx, o.cfg.ProjectRoot, []string{project}, excludes, set.WebArchivePath()); err != nil {
		return stepError(types.ExitWebArchiveFailed, "web archive failed: %v", err)
	}

	o.verifyArtifact(ctx, set.WebArchivePath())
	return nil
}

// archiveMedia archives the project's media subtree. A project without a
// media directory simply has nothing to archive.
func (o *Orchestrator) archiveMedia(ctx context.Context, project string, set store.BackupSet) error {
	mediaDir := filepath.Join(o.cfg.ProjectRoot, project, o.cfg.MediaDir)
	if !utils.DirExists(mediaDir) {
		o.logger.Skip("Project %q has no media directory (%s)", project, mediaDir)
		return nil
	}

	o.logger.Step("Archiving media files of project %q", project)
	relPath := project + "/" + o.cfg.MediaDir
	if err := o.deps.Archiver.Create(ctx, o.cfg.ProjectRoot, []string{relPath}, o.cfg.ExcludePatterns, set.MediaArchivePath()); err != nil {
		return stepError(types.ExitMediaArchiveFailed, "media archive failed: %v", err)
	}

	o.verifyArtifact(ctx, set.MediaArchivePath())
	return nil
}

// verifyArtifact runs the advisory integrity check. A corrupt artifact is
// reported but neither deleted nor fatal to the run.
func (o *Orchestrator) verifyArtifact(ctx context.Context, archivePath string) {
	if err := o.deps.Archiver.Verify(ctx, archivePath); err != nil {
		o.logger.Warning("Archive verification failed: %v", err)
	}
}

func (o *Orchestrator) writeMetadata(ctx context.Context, project string, mode types.BackupMode, set store.BackupSet) error {
	artifacts, err := o.deps.Store.CollectArtifacts(ctx, set, []string{
		store.DumpFileName,
		store.WebArchiveName,
		store.MediaArchiveName,
	})
	if err != nil {
		return err
	}

	return o.deps.Store.WriteMetadata(set, store.Metadata{
		Project:     project,
		Version:     version.String(),
		Timestamp:   set.Timestamp,
		Mode:        mode.String(),
		Compression: fmt.Sprintf("%s level %d", o.deps.Archiver.EffectiveCompression(), o.deps.Archiver.CompressionLevel()),
		Artifacts:   artifacts,
		Warnings:    o.logger.WarningCount(),
	})
}

// removeSetIfEmpty removes a just-created backup set directory, but only when
// nothing was written into it yet.
func (o *Orchestrator) removeSetIfEmpty(set store.BackupSet) {
	empty, err := utils.IsDirEmpty(set.Dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			o.logger.Debug("Could not inspect failed backup set %s: %v", set.Dir, err)
		}
		return
	}
	if !empty {
		o.logger.Warning("Leaving partial backup set for inspection: %s", set.Dir)
		return
	}
	if err := os.Remove(set.Dir); err != nil {
		o.logger.Debug("Could not remove empty backup set %s: %v", set.Dir, err)
		return
	}
	o.logger.Info("Removed empty backup set directory: %s", set.Dir)
}
