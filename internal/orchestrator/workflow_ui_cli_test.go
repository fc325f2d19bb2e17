package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/webdienst24/shopsave/internal/logging"
	"github.com/webdienst24/shopsave/internal/store"
	"github.com/webdienst24/shopsave/internal/types"
)

func newCLITestUI(input string) WorkflowUI {
	return NewCLIWorkflowUI(bufio.NewReader(strings.NewReader(input)), logging.New(types.LogLevelError, false))
}

func TestCLISelectAction(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Action
	}{
		{"backup", "1\n", ActionBackup},
		{"restore", "2\n", ActionRestore},
		{"cancel", "0\n", ActionExit},
		{"eof", "", ActionExit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ui := newCLITestUI(tt.input)
			got, err := ui.SelectAction(context.Background())
			if err != nil {
				t.Fatalf("SelectAction() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("SelectAction() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCLISelectProject(t *testing.T) {
	projects := []string{"alpha", "beta", "gamma"}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"first", "1\n", "alpha", nil},
		{"last", "3\n", "gamma", nil},
		{"cancel", "0\n", "", ErrUserCancelled},
		{"invalid then valid", "9\nfoo\n2\n", "beta", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ui := newCLITestUI(tt.input)
			got, err := ui.SelectProject(context.Background(), projects)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SelectProject() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectProject() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("SelectProject() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCLISelectProjectBoundedRePrompts(t *testing.T) {
	// More invalid answers than the menu tolerates.
	ui := newCLITestUI("x\nx\nx\nx\nx\nx\nx\n2\n")
	_, err := ui.SelectProject(context.Background(), []string{"alpha", "beta"})
	if !errors.Is(err, ErrTooManyInvalidInputs) {
		t.Fatalf("expected ErrTooManyInvalidInputs, got %v", err)
	}
}

func TestCLISelectMode(t *testing.T) {
	tests := []struct {
		input string
		want  types.BackupMode
	}{
		{"1\n", types.ModeAll},
		{"2\n", types.ModeWebOnly},
		{"3\n", types.ModeMediaOnly},
	}
	for _, tt := range tests {
		ui := newCLITestUI(tt.input)
		got, err := ui.SelectMode(context.Background())
		if err != nil {
			t.Fatalf("SelectMode() error: %v", err)
		}
		if got != tt.want {
			t.Errorf("SelectMode(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestCLIConfirmRestore(t *testing.T) {
	set := store.BackupSet{Project: "demo", Timestamp: "20240101_000000"}

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"exact token", "ja\n", true},
		{"token with whitespace", "  ja  \n", true},
		{"uppercase is refused", "JA\n", false},
		{"anything else", "yes\n", false},
		{"empty line", "\n", false},
		{"eof counts as refusal", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ui := newCLITestUI(tt.input)
			got, err := ui.ConfirmRestore(context.Background(), set)
			if err != nil {
				t.Fatalf("ConfirmRestore() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ConfirmRestore(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// The confirmation is read exactly once: a second line with the token must
// not arm a restore that the first line already declined.
func TestCLIConfirmRestoreSingleRead(t *testing.T) {
	ui := newCLITestUI("no\nja\n")
	got, err := ui.ConfirmRestore(context.Background(), store.BackupSet{Project: "demo"})
	if err != nil {
		t.Fatalf("ConfirmRestore() error: %v", err)
	}
	if got {
		t.Error("ConfirmRestore() must not re-read after a refusal")
	}
}

func TestRestoreBanner(t *testing.T) {
	banner := restoreBanner(store.BackupSet{Project: "demo shop", Timestamp: "20260830_142501"})

	for _, want := range []string{
		"Demo Shop",
		`project "demo shop"`,
		"20260830_142501",
		"DROP every table",
	} {
		if !strings.Contains(banner, want) {
			t.Errorf("banner missing %q:\n%s", want, banner)
		}
	}
}

func TestCLISelectBackupSetEmpty(t *testing.T) {
	ui := newCLITestUI("1\n")
	_, err := ui.SelectBackupSet(context.Background(), nil)
	if !errors.Is(err, store.ErrNoBackups) {
		t.Errorf("expected ErrNoBackups, got %v", err)
	}
}
