package orchestrator

import (
	"context"

	"github.com/webdienst24/shopsave/internal/store"
	"github.com/webdienst24/shopsave/internal/types"
)

// Action is the operator's top-level choice.
type Action int

const (
	ActionExit Action = iota
	ActionBackup
	ActionRestore
)

// maxMenuAttempts bounds how often a menu re-prompts on invalid input before
// the workflow gives up.
const maxMenuAttempts = 5

// WorkflowUI is the interactive surface of the workflows. Selections return
// ErrUserCancelled when the operator backs out.
type WorkflowUI interface {
	// SelectAction presents the Backup / Restore / Exit menu.
	SelectAction(ctx context.Context) (Action, error)

	// SelectProject presents the projects found under the project root.
	SelectProject(ctx context.Context, projects []string) (string, error)

	// SelectMode presents the three backup modes.
	SelectMode(ctx context.Context) (types.BackupMode, error)

	// SelectBackupSet presents the restorable backup sets of a project,
	// newest first.
	SelectBackupSet(ctx context.Context, sets []store.BackupSet) (store.BackupSet, error)

	// ConfirmRestore shows the destructive-restore warning and reads the
	// confirmation input exactly once. Only the literal answer "ja"
	// confirms; anything else declines.
	ConfirmRestore(ctx context.Context, set store.BackupSet) (bool, error)

	// ShowMessage reports a neutral message to the operator.
	ShowMessage(ctx context.Context, title, message string) error

	// ShowError reports a failure to the operator.
	ShowError(ctx context.Context, title, message string) error
}

// restoreConfirmToken is the only input that arms a destructive restore.
const restoreConfirmToken = "ja"
