// Package types defines shared application data types.
package types

// ExitCode represents the application's exit codes.
type ExitCode int

const (
	// ExitSuccess - Execution completed successfully (or restore cancelled by the user).
	ExitSuccess ExitCode = 0

	// ExitSetupError - Configuration, selection or directory setup failure.
	ExitSetupError ExitCode = 1

	// ExitDumpFailed - Database dump failed.
	ExitDumpFailed ExitCode = 2

	// ExitWebArchiveFailed - Web archive creation failed.
	ExitWebArchiveFailed ExitCode = 3

	// ExitMediaArchiveFailed - Media archive creation failed.
	ExitMediaArchiveFailed ExitCode = 4

	// ExitDBRestoreFailed - Database restore failed.
	ExitDBRestoreFailed ExitCode = 5

	// ExitWebRestoreFailed - Web file restore failed.
	ExitWebRestoreFailed ExitCode = 6

	// ExitMediaRestoreFailed - Media file restore failed.
	ExitMediaRestoreFailed ExitCode = 7
)

// String returns a human-readable description of the exit code.
func (e ExitCode) String() string {
	switch e {
	case ExitSuccess:
		return "success"
	case ExitSetupError:
		return "setup error"
	case ExitDumpFailed:
		return "database dump failed"
	case ExitWebArchiveFailed:
		return "web archive failed"
	case ExitMediaArchiveFailed:
		return "media archive failed"
	case ExitDBRestoreFailed:
		return "database restore failed"
	case ExitWebRestoreFailed:
		return "web file restore failed"
	case ExitMediaRestoreFailed:
		return "media file restore failed"
	default:
		return "unknown error"
	}
}

// Int returns the exit code as integer.
func (e ExitCode) Int() int {
	return int(e)
}

// CompressionType represents the compression type.
type CompressionType string

const (
	// CompressionGzip - gzip compression (in-process)
	CompressionGzip CompressionType = "gzip"

	// CompressionPigz - parallel gzip compression (external pigz)
	CompressionPigz CompressionType = "pigz"
)

// String returns the string representation of the compression type.
func (c CompressionType) String() string {
	return string(c)
}

// BackupMode selects which archives a backup run produces.
// The database dump is taken in every mode.
type BackupMode string

const (
	// ModeAll - database dump, web archive and media archive
	ModeAll BackupMode = "all"

	// ModeWebOnly - database dump and web archive
	ModeWebOnly BackupMode = "web_only"

	// ModeMediaOnly - database dump and media archive
	ModeMediaOnly BackupMode = "media_only"
)

// String returns the string representation of the backup mode.
func (m BackupMode) String() string {
	return string(m)
}

// IncludesWeb reports whether the mode produces a web archive.
func (m BackupMode) IncludesWeb() bool {
	return m == ModeAll || m == ModeWebOnly
}

// IncludesMedia reports whether the mode produces a media archive.
func (m BackupMode) IncludesMedia() bool {
	return m == ModeAll || m == ModeMediaOnly
}

// ParseBackupMode converts a string to a BackupMode.
func ParseBackupMode(s string) (BackupMode, bool) {
	switch BackupMode(s) {
	case ModeAll, ModeWebOnly, ModeMediaOnly:
		return BackupMode(s), true
	default:
		return "", false
	}
}

// LogLevel represents the logging level.
type LogLevel int

const (
	// LogLevelDebug - Debug logs (maximum detail)
	LogLevelDebug LogLevel = 5

	// LogLevelInfo - General information
	LogLevelInfo LogLevel = 4

	// LogLevelWarning - Warnings
	LogLevelWarning LogLevel = 3

	// LogLevelError - Errors
	LogLevelError LogLevel = 2

	// LogLevelCritical - Critical errors
	LogLevelCritical LogLevel = 1

	// LogLevelNone - No logs
	LogLevelNone LogLevel = 0
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarning:
		return "WARNING"
	case LogLevelError:
		return "ERROR"
	case LogLevelCritical:
		return "CRITICAL"
	case LogLevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}
