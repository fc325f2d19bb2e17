package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/webdienst24/shopsave/internal/store"
	"github.com/webdienst24/shopsave/internal/types"
	"github.com/webdienst24/shopsave/pkg/utils"
)

// RunRestore drives one destructive restore: project and backup-set
// selection, the confirmation gate, then drop, wipe and repopulate. Nothing
// is mutated before the operator confirms.
func (o *Orchestrator) RunRestore(ctx context.Context) error {
	projects, err := o.listProjects()
	if err != nil {
		return stepError(types.ExitSetupError, "%v", err)
	}

	project, err := o.ui.SelectProject(ctx, projects)
	if err != nil {
		return err
	}

	sets, err := o.deps.Store.ListCompleteSets(project)
	if err != nil {
		if errors.Is(err, store.ErrNoBackups) {
			o.ui.ShowError(ctx, "No backups", fmt.Sprintf("Project %q has no complete backups to restore from.", project))
			return stepError(types.ExitSetupError, "project %s has no complete backups", project)
		}
		return stepError(types.ExitSetupError, "failed to list backups: %v", err)
	}

	set, err := o.ui.SelectBackupSet(ctx, sets)
	if err != nil {
		return err
	}

	confirmed, err := o.ui.ConfirmRestore(ctx, set)
	if err != nil {
		return err
	}
	if !confirmed {
		o.logger.Info("Restore cancelled, nothing was changed")
		return ErrUserCancelled
	}

	return o.runRestoreSteps(ctx, project, set)
}

func (o *Orchestrator) runRestoreSteps(ctx context.Context, project string, set store.BackupSet) error {
	o.logger.Step("Restoring project %q from backup %s", project, set.Timestamp)

	// Credentials come from the config file inside the backup, not from the
	// live tree: the live config is about to be wiped, and the backup may
	// predate a credential change.
	webArchive := set.WebArchivePath()
	if !utils.FileExists(webArchive) {
		return stepError(types.ExitSetupError, "backup set %s has no web archive to read credentials from", set.Timestamp)
	}
	creds, err := o.deps.Creds.FromArchive(webArchive, project)
	if err != nil {
		return stepError(types.ExitSetupError, "failed to extract credentials from backup: %v", err)
	}
	o.logger.Debug("Extracted credentials for database %q on %s", creds.Name, creds.Host)

	o.logger.Step("Dropping all tables of database %q", creds.Name)
	if err := o.deps.Database.DropAllTables(ctx, creds); err != nil {
		return stepError(types.ExitDBRestoreFailed, "failed to drop tables: %v", err)
	}

	webRoot := filepath.Join(o.cfg.ProjectRoot, project)
	o.logger.Step("Wiping web directory %s", webRoot)
	if o.cfg.DryRun {
		o.logger.Info("[DRY RUN] Would remove contents of %s", webRoot)
	} else if err := utils.RemoveDirContents(webRoot); err != nil {
		return stepError(types.ExitSetupError, "failed to wipe web directory: %v", err)
	}

	o.logger.Step("Restoring database %q", creds.Name)
	if err := o.deps.Database.Replay(ctx, creds, set.DumpPath()); err != nil {
		// The database is now empty. Do not touch the files on top of a
		// failed database restore.
		return stepError(types.ExitDBRestoreFailed, "database restore failed: %v", err)
	}

	o.logger.Step("Restoring web files of project %q", project)
	if err := o.deps.Archiver.Extract(ctx, webArchive, o.cfg.ProjectRoot); err != nil {
		return stepError(types.ExitWebRestoreFailed, "web file restore failed: %v", err)
	}

	if set.HasMediaArchive() {
		o.logger.Step("Restoring media files of project %q", project)
		if err := o.deps.Archiver.Extract(ctx, set.MediaArchivePath(), o.cfg.ProjectRoot); err != nil {
			return stepError(types.ExitMediaRestoreFailed, "media file restore failed: %v", err)
		}
	}

	o.logger.Info("Restore of project %q from %s completed", project, set.Timestamp)
	return nil
}
