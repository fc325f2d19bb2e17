package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/webdienst24/shopsave/internal/types"
	"github.com/webdienst24/shopsave/pkg/utils"
)

var multiValueKeys = map[string]bool{
	"BACKUP_EXCLUDE_PATTERNS": true,
}

var knownKeys = map[string]bool{
	"PROJECT_ROOT":              true,
	"BACKUP_ROOT":               true,
	"KEEP_COUNT":                true,
	"COMPRESSION_TYPE":          true,
	"COMPRESSION_LEVEL":         true,
	"COMPRESSION_THREADS":       true,
	"BACKUP_EXCLUDE_PATTERNS":   true,
	"MEDIA_DIR":                 true,
	"TEMPLATE_CACHE_DIR":        true,
	"CACHE_CLEAN_ATTEMPTS":      true,
	"CACHE_CLEAN_DELAY_SECONDS": true,
	"MYSQL_BIN":                 true,
	"MYSQLDUMP_BIN":             true,
	"USE_COLOR":                 true,
	"DEBUG_LEVEL":               true,
	"DRY_RUN":                   true,
}

// Config holds the full shopsave configuration.
type Config struct {
	// Paths
	ProjectRoot string
	BackupRoot  string
	ConfigPath  string

	// Retention
	KeepCount int

	// Compression settings
	CompressionType    types.CompressionType
	CompressionLevel   int
	CompressionThreads int

	// Archive settings
	ExcludePatterns  []string
	MediaDir         string
	TemplateCacheDir string

	// Template cache cleanup retry behavior
	CacheCleanAttempts int
	CacheCleanDelay    time.Duration

	// External binaries
	MysqlBin     string
	MysqldumpBin string

	// General settings
	UseColor   bool
	DebugLevel types.LogLevel
	DryRun     bool

	// Unknown keys found while parsing; the caller logs them as warnings.
	UnknownKeys []string

	raw map[string]string
}

// LoadConfig reads and parses a KEY=value configuration file.
func LoadConfig(configPath string) (*Config, error) {
	if !utils.FileExists(configPath) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	rawValues, err := parseEnvFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ConfigPath: configPath,
		raw:        rawValues,
	}

	if err := cfg.parse(); err != nil {
		return nil, fmt.Errorf("error parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseEnvFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open config file: %w", err)
	}
	defer file.Close()

	raw := make(map[string]string)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if utils.IsComment(trimmed) {
			continue
		}

		key, value, ok := utils.SplitKeyValue(line)
		if !ok {
			continue
		}

		if multiValueKeys[key] {
			if existing, ok := raw[key]; ok && existing != "" {
				raw[key] = existing + "\n" + value
			} else {
				raw[key] = value
			}
		} else {
			raw[key] = value
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return raw, nil
}

func (c *Config) parse() error {
	// Defaults
	c.ProjectRoot = "/var/www"
	c.BackupRoot = "/var/backups/shopsave"
	c.KeepCount = 3
	c.CompressionType = types.CompressionGzip
	c.CompressionLevel = 6
	c.CompressionThreads = 0
	c.MediaDir = "media"
	c.TemplateCacheDir = "templates_c"
	c.CacheCleanAttempts = 3
	c.CacheCleanDelay = 2 * time.Second
	c.MysqlBin = "mysql"
	c.MysqldumpBin = "mysqldump"
	c.UseColor = true
	c.DebugLevel = types.LogLevelInfo
	c.DryRun = false

	for key, value := range c.raw {
		switch key {
		case "PROJECT_ROOT":
			c.ProjectRoot = value
		case "BACKUP_ROOT":
			c.BackupRoot = value
		case "KEEP_COUNT":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid KEEP_COUNT %q: %w", value, err)
			}
			c.KeepCount = n
		case "COMPRESSION_TYPE":
			c.CompressionType = types.CompressionType(strings.ToLower(value))
		case "COMPRESSION_LEVEL":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid COMPRESSION_LEVEL %q: %w", value, err)
			}
			c.CompressionLevel = n
		case "COMPRESSION_THREADS":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid COMPRESSION_THREADS %q: %w", value, err)
			}
			c.CompressionThreads = n
		case "BACKUP_EXCLUDE_PATTERNS":
			for _, pattern := range strings.Split(value, "\n") {
				pattern = strings.TrimSpace(pattern)
				if pattern != "" {
					c.ExcludePatterns = append(c.ExcludePatterns, pattern)
				}
			}
		case "MEDIA_DIR":
			c.MediaDir = value
		case "TEMPLATE_CACHE_DIR":
			c.TemplateCacheDir = value
		case "CACHE_CLEAN_ATTEMPTS":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid CACHE_CLEAN_ATTEMPTS %q: %w", value, err)
			}
			c.CacheCleanAttempts = n
		case "CACHE_CLEAN_DELAY_SECONDS":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid CACHE_CLEAN_DELAY_SECONDS %q: %w", value, err)
			}
			c.CacheCleanDelay = time.Duration(n) * time.Second
		case "MYSQL_BIN":
			c.MysqlBin = value
		case "MYSQLDUMP_BIN":
			c.MysqldumpBin = value
		case "USE_COLOR":
			c.UseColor = utils.ParseBool(value)
		case "DEBUG_LEVEL":
			c.DebugLevel = parseDebugLevel(value)
		case "DRY_RUN":
			c.DryRun = utils.ParseBool(value)
		default:
			if !knownKeys[key] {
				c.UnknownKeys = append(c.UnknownKeys, key)
			}
		}
	}

	return nil
}

func parseDebugLevel(s string) types.LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "5":
		return types.LogLevelDebug
	case "info", "4":
		return types.LogLevelInfo
	case "warning", "3":
		return types.LogLevelWarning
	case "error", "2":
		return types.LogLevelError
	case "critical", "1":
		return types.LogLevelCritical
	case "none", "0":
		return types.LogLevelNone
	default:
		return types.LogLevelInfo
	}
}

// Validate checks the parsed configuration for consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ProjectRoot) == "" {
		return fmt.Errorf("PROJECT_ROOT must not be empty")
	}
	if strings.TrimSpace(c.BackupRoot) == "" {
		return fmt.Errorf("BACKUP_ROOT must not be empty")
	}
	if c.KeepCount < 0 {
		return fmt.Errorf("KEEP_COUNT must be >= 0, got %d", c.KeepCount)
	}
	switch c.CompressionType {
	case types.CompressionGzip, types.CompressionPigz:
	default:
		return fmt.Errorf("invalid COMPRESSION_TYPE %q (gzip or pigz)", c.CompressionType)
	}
	if c.CompressionLevel < 1 || c.CompressionLevel > 9 {
		return fmt.Errorf("COMPRESSION_LEVEL must be 1-9, got %d", c.CompressionLevel)
	}
	if c.CompressionThreads < 0 {
		return fmt.Errorf("COMPRESSION_THREADS must be >= 0, got %d", c.CompressionThreads)
	}
	if c.CacheCleanAttempts < 1 {
		return fmt.Errorf("CACHE_CLEAN_ATTEMPTS must be >= 1, got %d", c.CacheCleanAttempts)
	}
	if c.CacheCleanDelay < 0 {
		return fmt.Errorf("CACHE_CLEAN_DELAY_SECONDS must be >= 0")
	}
	if strings.TrimSpace(c.MediaDir) == "" || strings.Contains(c.MediaDir, "/") {
		return fmt.Errorf("MEDIA_DIR must be a plain directory name, got %q", c.MediaDir)
	}
	if strings.TrimSpace(c.TemplateCacheDir) == "" || strings.Contains(c.TemplateCacheDir, "/") {
		return fmt.Errorf("TEMPLATE_CACHE_DIR must be a plain directory name, got %q", c.TemplateCacheDir)
	}
	return nil
}
