package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/webdienst24/shopsave/internal/logging"
	"github.com/webdienst24/shopsave/internal/store"
	"github.com/webdienst24/shopsave/internal/tui"
	"github.com/webdienst24/shopsave/internal/types"
)

type tuiWorkflowUI struct {
	logger *logging.Logger
}

// NewTUIWorkflowUI creates the full-screen workflow UI.
func NewTUIWorkflowUI(logger *logging.Logger) WorkflowUI {
	return &tuiWorkflowUI{logger: logger}
}

// selectFromList runs a one-shot tview list screen. Escape cancels.
func (u *tuiWorkflowUI) selectFromList(title string, items [][2]string) (int, error) {
	app := tui.NewApp()
	selected := -1

	list := tview.NewList().ShowSecondaryText(true)
	list.SetMainTextColor(tcell.ColorWhite).
		SetSelectedTextColor(tcell.ColorWhite).
		SetSelectedBackgroundColor(tui.ShopBlue)

	for _, item := range items {
		list.AddItem(item[0], item[1], 0, nil)
	}

	list.SetSelectedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		selected = index
		app.Stop()
	})
	list.SetDoneFunc(func() {
		selected = -1
		app.Stop()
	})

	list.SetBorder(true).
		SetTitle(" " + title + " ").
		SetTitleAlign(tview.AlignCenter).
		SetTitleColor(tui.ShopBlue).
		SetBorderColor(tui.ShopBlue)

	if err := app.SetRoot(list, true).Run(); err != nil {
		return -1, err
	}
	if selected < 0 {
		return -1, ErrUserCancelled
	}
	return selected, nil
}

func (u *tuiWorkflowUI) SelectAction(ctx context.Context) (Action, error) {
	index, err := u.selectFromList("Shop Backup", [][2]string{
		{"Backup", "Create a new backup of a project"},
		{"Restore", "Restore a project from an existing backup"},
		{"Exit", "Leave without changes"},
	})
	if err != nil {
		if err == ErrUserCancelled {
			return ActionExit, nil
		}
		return ActionExit, err
	}
	switch index {
	case 0:
		return ActionBackup, nil
	case 1:
		return ActionRestore, nil
	default:
		return ActionExit, nil
	}
}

func (u *tuiWorkflowUI) SelectProject(ctx context.Context, projects []string) (string, error) {
	items := make([][2]string, len(projects))
	for i, project := range projects {
		items[i] = [2]string{project, ""}
	}
	index, err := u.selectFromList("Select Project", items)
	if err != nil {
		return "", err
	}
	return projects[index], nil
}

func (u *tuiWorkflowUI) SelectMode(ctx context.Context) (types.BackupMode, error) {
	modes := []types.BackupMode{types.ModeAll, types.ModeWebOnly, types.ModeMediaOnly}
	index, err := u.selectFromList("Select Backup Mode", [][2]string{
		{"Full backup", "Database dump, web files and media"},
		{"Web only", "Database dump and web files without media"},
		{"Media only", "Database dump and media files"},
	})
	if err != nil {
		return "", err
	}
	return modes[index], nil
}

func (u *tuiWorkflowUI) SelectBackupSet(ctx context.Context, sets []store.BackupSet) (store.BackupSet, error) {
	if len(sets) == 0 {
		return store.BackupSet{}, store.ErrNoBackups
	}
	items := make([][2]string, len(sets))
	for i, set := range sets {
		secondary := "web + database"
		if set.HasMediaArchive() {
			secondary = "web + database + media"
		}
		items[i] = [2]string{set.Timestamp, secondary}
	}
	index, err := u.selectFromList("Select Backup", items)
	if err != nil {
		return store.BackupSet{}, err
	}
	return sets[index], nil
}

func (u *tuiWorkflowUI) ConfirmRestore(ctx context.Context, set store.BackupSet) (bool, error) {
	app := tui.NewApp()
	confirmed := false

	warning := fmt.Sprintf(
		"Restore project %q from backup %s.\n\n"+
			"This will irreversibly:\n"+
			"  %s DROP every table of the live database\n"+
			"  %s DELETE all contents of the live web directory\n"+
			"  %s replace both with the contents of the chosen backup\n",
		set.Project, set.Timestamp,
		tui.SymbolBullet, tui.SymbolBullet, tui.SymbolBullet)

	text := tview.NewTextView().
		SetText(warning).
		SetTextColor(tui.WarningYellow)

	form := tview.NewForm()
	form.AddInputField(fmt.Sprintf("Type '%s' to proceed", restoreConfirmToken), "", 12, nil, nil)
	form.AddButton("Confirm", func() {
		field, ok := form.GetFormItem(0).(*tview.InputField)
		if ok {
			confirmed = strings.TrimSpace(field.GetText()) == restoreConfirmToken
		}
		app.Stop()
	})
	form.AddButton("Cancel", func() {
		confirmed = false
		app.Stop()
	})
	form.SetCancelFunc(func() {
		confirmed = false
		app.Stop()
	})

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(text, 0, 1, false).
		AddItem(form, 7, 0, true)
	flex.SetBorder(true).
		SetTitle(" Destructive Restore ").
		SetTitleColor(tui.ErrorRed).
		SetBorderColor(tui.ErrorRed)

	if err := app.SetRoot(flex, true).SetFocus(form).Run(); err != nil {
		return false, err
	}
	return confirmed, nil
}

func (u *tuiWorkflowUI) ShowMessage(ctx context.Context, title, message string) error {
	return u.showModal(title, message, tui.ShopBlue)
}

func (u *tuiWorkflowUI) ShowError(ctx context.Context, title, message string) error {
	return u.showModal(title, message, tui.ErrorRed)
}

func (u *tuiWorkflowUI) showModal(title, message string, color tcell.Color) error {
	app := tui.NewApp()

	modal := tview.NewModal().
		SetText(strings.TrimSpace(title + "\n\n" + message)).
		AddButtons([]string{"OK"}).
		SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			app.Stop()
		})
	modal.SetBackgroundColor(tcell.ColorBlack).
		SetBorderColor(color)

	return app.SetRoot(modal, true).Run()
}
