package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/webdienst24/shopsave/internal/input"
	"github.com/webdienst24/shopsave/internal/logging"
	"github.com/webdienst24/shopsave/internal/store"
	"github.com/webdienst24/shopsave/internal/types"
)

var titleCaser = cases.Title(language.English)

type cliWorkflowUI struct {
	reader *bufio.Reader
	logger *logging.Logger
}

// NewCLIWorkflowUI creates the plain-terminal workflow UI. A nil reader
// defaults to stdin.
func NewCLIWorkflowUI(reader *bufio.Reader, logger *logging.Logger) WorkflowUI {
	if reader == nil {
		reader = bufio.NewReader(os.Stdin)
	}
	return &cliWorkflowUI{reader: reader, logger: logger}
}

func (u *cliWorkflowUI) ShowMessage(ctx context.Context, title, message string) error {
	if strings.TrimSpace(title) != "" {
		fmt.Printf("\n%s\n", title)
	}
	if strings.TrimSpace(message) != "" {
		fmt.Println(message)
	}
	return nil
}

func (u *cliWorkflowUI) ShowError(ctx context.Context, title, message string) error {
	if strings.TrimSpace(title) != "" {
		fmt.Fprintf(os.Stderr, "\n%s\n", title)
	}
	if strings.TrimSpace(message) != "" {
		fmt.Fprintln(os.Stderr, message)
	}
	return nil
}

// promptChoice renders an indexed menu and reads a selection. 0 always
// cancels; invalid input re-prompts up to maxMenuAttempts times.
func (u *cliWorkflowUI) promptChoice(ctx context.Context, title string, items []string) (int, error) {
	fmt.Printf("\n%s\n", title)
	for i, item := range items {
		fmt.Printf("  [%d] %s\n", i+1, item)
	}
	fmt.Println("  [0] Cancel")

	for attempt := 0; attempt < maxMenuAttempts; attempt++ {
		fmt.Print("Choice: ")
		line, err := input.ReadLineWithContext(ctx, u.reader)
		if err != nil {
			if input.IsAborted(err) || errors.Is(err, context.Canceled) {
				return 0, ErrUserCancelled
			}
			return 0, err
		}

		choice := strings.TrimSpace(line)
		if choice == "0" {
			return 0, ErrUserCancelled
		}
		var index int
		if _, err := fmt.Sscanf(choice, "%d", &index); err == nil && index >= 1 && index <= len(items) {
			return index - 1, nil
		}
		fmt.Printf("Invalid input. Enter a number between 0 and %d.\n", len(items))
	}

	return 0, ErrTooManyInvalidInputs
}

func (u *cliWorkflowUI) SelectAction(ctx context.Context) (Action, error) {
	index, err := u.promptChoice(ctx, "What do you want to do?", []string{
		"Backup",
		"Restore",
	})
	if err != nil {
		if errors.Is(err, ErrUserCancelled) {
			return ActionExit, nil
		}
		return ActionExit, err
	}
	switch index {
	case 0:
		return ActionBackup, nil
	default:
		return ActionRestore, nil
	}
}

func (u *cliWorkflowUI) SelectProject(ctx context.Context, projects []string) (string, error) {
	if len(projects) == 0 {
		return "", errors.New("no projects available")
	}
	index, err := u.promptChoice(ctx, "Select a project:", projects)
	if err != nil {
		return "", err
	}
	return projects[index], nil
}

func (u *cliWorkflowUI) SelectMode(ctx context.Context) (types.BackupMode, error) {
	modes := []types.BackupMode{types.ModeAll, types.ModeWebOnly, types.ModeMediaOnly}
	labels := []string{
		"Full backup (database, web files, media)",
		"Web only (database, web files without media)",
		"Media only (database, media files)",
	}
	index, err := u.promptChoice(ctx, "Select a backup mode:", labels)
	if err != nil {
		return "", err
	}
	return modes[index], nil
}

func (u *cliWorkflowUI) SelectBackupSet(ctx context.Context, sets []store.BackupSet) (store.BackupSet, error) {
	if len(sets) == 0 {
		return store.BackupSet{}, store.ErrNoBackups
	}
	labels := make([]string, len(sets))
	for i, set := range sets {
		label := set.Timestamp
		if set.HasMediaArchive() {
			label += "  (with media)"
		}
		labels[i] = label
	}
	index, err := u.promptChoice(ctx, "Select a backup to restore:", labels)
	if err != nil {
		return store.BackupSet{}, err
	}
	return sets[index], nil
}

// restoreBanner renders the warning shown before the destructive restore
// confirmation. The project name is title-cased for the heading only; the
// restore itself uses the name verbatim.
func restoreBanner(set store.BackupSet) string {
	var b strings.Builder
	b.WriteString("═══════════════════════════════════════════════════════════════\n")
	fmt.Fprintf(&b, "Destructive restore of %s (project %q) from backup %s\n",
		titleCaser.String(set.Project), set.Project, set.Timestamp)
	b.WriteString("\n")
	b.WriteString("This will irreversibly:\n")
	b.WriteString("  • DROP every table of the live database\n")
	b.WriteString("  • DELETE all contents of the live web directory\n")
	b.WriteString("  • replace both with the contents of the chosen backup\n")
	b.WriteString("═══════════════════════════════════════════════════════════════\n")
	return b.String()
}

func (u *cliWorkflowUI) ConfirmRestore(ctx context.Context, set store.BackupSet) (bool, error) {
	fmt.Print(restoreBanner(set))
	fmt.Printf("Type '%s' to proceed (anything else cancels): ", restoreConfirmToken)

	line, err := input.ReadLineWithContext(ctx, u.reader)
	if err != nil {
		if input.IsAborted(err) || errors.Is(err, context.Canceled) {
			return false, nil
		}
		return false, err
	}

	// A single read, compared exactly. No re-prompt on mismatch.
	return strings.TrimSpace(line) == restoreConfirmToken, nil
}
