package database

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/webdienst24/shopsave/internal/logging"
	"github.com/webdienst24/shopsave/internal/shopcfg"
	"github.com/webdienst24/shopsave/internal/types"
)

func testLogger() *logging.Logger {
	logger := logging.New(types.LogLevelNone, false)
	return logger
}

func testCreds() shopcfg.Credentials {
	return shopcfg.Credentials{
		Host:     "db.example",
		Name:     "demoshop",
		User:     "demo",
		Password: "s3cret",
	}
}

func TestDumpArgs(t *testing.T) {
	args := dumpArgs(testCreds())

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--host=db.example") {
		t.Errorf("missing host flag: %v", args)
	}
	if !strings.Contains(joined, "--user=demo") {
		t.Errorf("missing user flag: %v", args)
	}
	if !strings.Contains(joined, "--single-transaction") {
		t.Errorf("missing --single-transaction: %v", args)
	}
	if !strings.Contains(joined, "--add-drop-table") {
		t.Errorf("missing --add-drop-table: %v", args)
	}
	if args[len(args)-1] != "demoshop" {
		t.Errorf("database name must be the last argument: %v", args)
	}
	// The password goes through the environment, never through argv.
	if strings.Contains(joined, "s3cret") {
		t.Errorf("password leaked into argv: %v", args)
	}
}

func TestReplayArgs(t *testing.T) {
	args := replayArgs(testCreds())
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--host=db.example") || !strings.Contains(joined, "--user=demo") {
		t.Errorf("missing connection flags: %v", args)
	}
	if args[len(args)-1] != "demoshop" {
		t.Errorf("database name must be the last argument: %v", args)
	}
	if strings.Contains(joined, "s3cret") {
		t.Errorf("password leaked into argv: %v", args)
	}
}

func TestCredentialEnv(t *testing.T) {
	env := credentialEnv(testCreds())
	found := false
	for _, entry := range env {
		if entry == "MYSQL_PWD=s3cret" {
			found = true
		}
	}
	if !found {
		t.Error("expected MYSQL_PWD entry in command environment")
	}
}

func TestDSN(t *testing.T) {
	got := dsn(testCreds())
	if !strings.Contains(got, "tcp(db.example") {
		t.Errorf("DSN missing tcp address: %q", got)
	}
	if !strings.Contains(got, "/demoshop") {
		t.Errorf("DSN missing database name: %q", got)
	}
	if !strings.Contains(got, "multiStatements=true") {
		t.Errorf("DSN must enable multi statements: %q", got)
	}
}

func TestBuildDropStatement(t *testing.T) {
	stmt := buildDropStatement([]string{"tartikel", "tbestellung"})

	if !strings.HasPrefix(stmt, "SET FOREIGN_KEY_CHECKS=0;") {
		t.Errorf("batch must disable FK checks first: %q", stmt)
	}
	if !strings.HasSuffix(stmt, "SET FOREIGN_KEY_CHECKS=1;") {
		t.Errorf("batch must re-enable FK checks last: %q", stmt)
	}
	if !strings.Contains(stmt, "DROP TABLE IF EXISTS `tartikel`;") {
		t.Errorf("missing drop for tartikel: %q", stmt)
	}
	if !strings.Contains(stmt, "DROP TABLE IF EXISTS `tbestellung`;") {
		t.Errorf("missing drop for tbestellung: %q", stmt)
	}
}

func TestDumpWritesFile(t *testing.T) {
	client := NewClient(testLogger(), ClientConfig{})
	client.SetDeps(Deps{
		CommandContext: func(ctx context.Context, name string, args ...string) *exec.Cmd {
			// Stand-in that emits a dump on stdout regardless of arguments.
			return exec.CommandContext(ctx, "sh", "-c", "echo 'CREATE TABLE t (id INT);'")
		},
	})

	dest := filepath.Join(t.TempDir(), "db_backup.sql")
	if err := client.Dump(context.Background(), testCreds(), dest); err != nil {
		t.Fatalf("Dump failed: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "CREATE TABLE") {
		t.Errorf("dump content missing: %q", string(data))
	}
}

func TestDumpFailsOnToolError(t *testing.T) {
	client := NewClient(testLogger(), ClientConfig{})
	client.SetDeps(Deps{
		CommandContext: func(ctx context.Context, name string, args ...string) *exec.Cmd {
			return exec.CommandContext(ctx, "false")
		},
	})

	dest := filepath.Join(t.TempDir(), "db_backup.sql")
	if err := client.Dump(context.Background(), testCreds(), dest); err == nil {
		t.Fatal("expected error from failing dump tool")
	}
}

func TestDumpRejectsEmptyOutput(t *testing.T) {
	client := NewClient(testLogger(), ClientConfig{})
	client.SetDeps(Deps{
		CommandContext: func(ctx context.Context, name string, args ...string) *exec.Cmd {
			return exec.CommandContext(ctx, "true")
		},
	})

	dest := filepath.Join(t.TempDir(), "db_backup.sql")
	err := client.Dump(context.Background(), testCreds(), dest)
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected empty-dump error, got %v", err)
	}
}

func TestReplayRunsTool(t *testing.T) {
	dumpPath := filepath.Join(t.TempDir(), "db_backup.sql")
	if err := os.WriteFile(dumpPath, []byte("SELECT 1;"), 0600); err != nil {
		t.Fatal(err)
	}

	client := NewClient(testLogger(), ClientConfig{})
	client.SetDeps(Deps{
		CommandContext: func(ctx context.Context, name string, args ...string) *exec.Cmd {
			// Consumes stdin like the real client would.
			return exec.CommandContext(ctx, "sh", "-c", "cat > /dev/null")
		},
	})

	if err := client.Replay(context.Background(), testCreds(), dumpPath); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
}

func TestReplayFailsOnToolError(t *testing.T) {
	dumpPath := filepath.Join(t.TempDir(), "db_backup.sql")
	if err := os.WriteFile(dumpPath, []byte("SELECT 1;"), 0600); err != nil {
		t.Fatal(err)
	}

	client := NewClient(testLogger(), ClientConfig{})
	client.SetDeps(Deps{
		CommandContext: func(ctx context.Context, name string, args ...string) *exec.Cmd {
			return exec.CommandContext(ctx, "false")
		},
	})

	if err := client.Replay(context.Background(), testCreds(), dumpPath); err == nil {
		t.Fatal("expected error from failing replay tool")
	}
}

func TestDryRunSkipsExecution(t *testing.T) {
	client := NewClient(testLogger(), ClientConfig{DryRun: true})
	client.SetDeps(Deps{
		CommandContext: func(ctx context.Context, name string, args ...string) *exec.Cmd {
			t.Fatal("dry run must not spawn commands")
			return nil
		},
	})

	dest := filepath.Join(t.TempDir(), "db_backup.sql")
	if err := client.Dump(context.Background(), testCreds(), dest); err != nil {
		t.Fatalf("dry-run Dump failed: %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("dry run must not create the dump file")
	}
	if err := client.DropAllTables(context.Background(), testCreds()); err != nil {
		t.Fatalf("dry-run DropAllTables failed: %v", err)
	}
}
