// Package database wraps the external MySQL tooling (mysqldump/mysql) used to
// dump and replay a shop database, plus the direct driver connection used to
// empty it before a restore.
package database

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/webdienst24/shopsave/internal/logging"
	"github.com/webdienst24/shopsave/internal/shopcfg"
)

// Deps groups external dependencies used by Client.
type Deps struct {
	CommandContext func(context.Context, string, ...string) *exec.Cmd
	OpenDB         func(driverName, dsn string) (*sql.DB, error)
}

func defaultDeps() Deps {
	return Deps{
		CommandContext: exec.CommandContext,
		OpenDB:         sql.Open,
	}
}

// Client drives database dump, replay and table-drop operations.
type Client struct {
	logger       *logging.Logger
	mysqlBin     string
	mysqldumpBin string
	dryRun       bool
	deps         Deps
}

// ClientConfig holds configuration for the database client.
type ClientConfig struct {
	MysqlBin     string
	MysqldumpBin string
	DryRun       bool
}

// NewClient creates a new database client.
func NewClient(logger *logging.Logger, cfg ClientConfig) *Client {
	mysqlBin := cfg.MysqlBin
	if mysqlBin == "" {
		mysqlBin = "mysql"
	}
	mysqldumpBin := cfg.MysqldumpBin
	if mysqldumpBin == "" {
		mysqldumpBin = "mysqldump"
	}
	return &Client{
		logger:       logger,
		mysqlBin:     mysqlBin,
		mysqldumpBin: mysqldumpBin,
		dryRun:       cfg.DryRun,
		deps:         defaultDeps(),
	}
}

// SetDeps overrides the external dependencies (for tests).
func (c *Client) SetDeps(deps Deps) {
	if deps.CommandContext != nil {
		c.deps.CommandContext = deps.CommandContext
	}
	if deps.OpenDB != nil {
		c.deps.OpenDB = deps.OpenDB
	}
}

func dumpArgs(creds shopcfg.Credentials) []string {
	return []string{
		"--host=" + creds.Host,
		"--user=" + creds.User,
		"--single-transaction",
		"--add-drop-table",
		"--default-character-set=utf8mb4",
		creds.Name,
	}
}

func replayArgs(creds shopcfg.Credentials) []string {
	return []string{
		"--host=" + creds.Host,
		"--user=" + creds.User,
		"--default-character-set=utf8mb4",
		creds.Name,
	}
}

// credentialEnv passes the password via MYSQL_PWD so it never shows up in the
// process list.
func credentialEnv(creds shopcfg.Credentials) []string {
	return append(os.Environ(), "MYSQL_PWD="+creds.Password)
}

// Dump writes a full schema+data dump of the shop database to destPath.
func (c *Client) Dump(ctx context.Context, creds shopcfg.Credentials, destPath string) error {
	c.logger.Step("Dumping database %s from %s", creds.Name, creds.Host)

	if c.dryRun {
		c.logger.Info("[DRY RUN] Would dump database %s to %s", creds.Name, destPath)
		return nil
	}

	outFile, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create dump file: %w", err)
	}
	defer outFile.Close()

	cmd := c.deps.CommandContext(ctx, c.mysqldumpBin, dumpArgs(creds)...)
	cmd.Env = credentialEnv(creds)
	cmd.Stdout = outFile
	if err := c.attachStderrLogger(cmd, "mysqldump"); err != nil {
		return fmt.Errorf("capture mysqldump output: %w", err)
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("mysqldump failed for database %s: %w", creds.Name, err)
	}

	// A dump of a real shop database is never empty; an empty file means the
	// tool produced nothing useful despite exiting zero.
	info, err := os.Stat(destPath)
	if err != nil {
		return fmt.Errorf("stat dump file: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("dump file %s is empty", destPath)
	}

	c.logger.Debug("Database dump completed: %s (%d bytes)", destPath, info.Size())
	return nil
}

// Replay feeds a dump file into the (empty) shop database.
func (c *Client) Replay(ctx context.Context, creds shopcfg.Credentials, dumpPath string) error {
	c.logger.Step("Restoring database %s on %s", creds.Name, creds.Host)

	if c.dryRun {
		c.logger.Info("[DRY RUN] Would replay dump %s into database %s", dumpPath, creds.Name)
		return nil
	}

	dumpFile, err := os.Open(dumpPath)
	if err != nil {
		return fmt.Errorf("failed to open dump file: %w", err)
	}
	defer dumpFile.Close()

	cmd := c.deps.CommandContext(ctx, c.mysqlBin, replayArgs(creds)...)
	cmd.Env = credentialEnv(creds)
	cmd.Stdin = dumpFile
	if err := c.attachStderrLogger(cmd, "mysql"); err != nil {
		return fmt.Errorf("capture mysql output: %w", err)
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("mysql replay failed for database %s: %w", creds.Name, err)
	}

	c.logger.Debug("Database restore completed from %s", dumpPath)
	return nil
}

func (c *Client) attachStderrLogger(cmd *exec.Cmd, tool string) error {
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	tag := strings.ToUpper(tool)
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			c.logger.Info("[%s] %s", tag, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			c.logger.Debug("[%s] stderr read error: %v", tag, err)
		}
	}()

	return nil
}

// dsn builds the driver DSN for a direct connection to the shop database.
func dsn(creds shopcfg.Credentials) string {
	cfg := mysql.NewConfig()
	cfg.User = creds.User
	cfg.Passwd = creds.Password
	cfg.Net = "tcp"
	cfg.Addr = creds.Host
	cfg.DBName = creds.Name
	// The drop batch is sent as one multi-statement round trip.
	cfg.MultiStatements = true
	return cfg.FormatDSN()
}

// buildDropStatement assembles the single batch that disables referential
// integrity checks, drops every table and re-enables the checks.
func buildDropStatement(tables []string) string {
	var sb strings.Builder
	sb.WriteString("SET FOREIGN_KEY_CHECKS=0;\n")
	for _, table := range tables {
		fmt.Fprintf(&sb, "DROP TABLE IF EXISTS `%s`;\n", table)
	}
	sb.WriteString("SET FOREIGN_KEY_CHECKS=1;")
	return sb.String()
}

// DropAllTables empties the shop database. An already-empty database is a
// no-op, not an error.
func (c *Client) DropAllTables(ctx context.Context, creds shopcfg.Credentials) error {
	c.logger.Step("Dropping all tables in database %s", creds.Name)

	if c.dryRun {
		c.logger.Info("[DRY RUN] Would drop all tables in database %s", creds.Name)
		return nil
	}

	db, err := c.deps.OpenDB("mysql", dsn(creds))
	if err != nil {
		return fmt.Errorf("connecting to database %s: %w", creds.Name, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		"SELECT table_name FROM information_schema.tables WHERE table_schema = ?", creds.Name)
	if err != nil {
		return fmt.Errorf("listing tables in %s: %w", creds.Name, err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("reading table list: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading table list: %w", err)
	}

	if len(tables) == 0 {
		c.logger.Info("Database %s is already empty", creds.Name)
		return nil
	}

	c.logger.Debug("Dropping %d tables", len(tables))
	if _, err := db.ExecContext(ctx, buildDropStatement(tables)); err != nil {
		return fmt.Errorf("dropping tables in %s: %w", creds.Name, err)
	}

	return nil
}
