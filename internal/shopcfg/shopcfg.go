// Package shopcfg extracts database credentials from a JTL-Shop configuration
// file, either live on disk or re-extracted from inside a web backup archive.
package shopcfg

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ConfigFileName is the shop configuration file holding the DB credentials.
const ConfigFileName = "config.JTL-Shop.ini.php"

// ErrConfigNotFound signals that the shop configuration file is missing,
// either on disk or as a member of the web archive.
var ErrConfigNotFound = errors.New("shop configuration file not found")

// MissingCredentialError reports a credential field that was empty or absent
// after extraction. Empty credentials would otherwise surface much later as
// cryptic dump/restore failures.
type MissingCredentialError struct {
	Field string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("missing credential field %s in shop configuration", e.Field)
}

// Credentials is the transient database credential tuple for one run.
// It is never persisted.
type Credentials struct {
	Host     string
	Name     string
	User     string
	Password string
}

// Validate returns a MissingCredentialError for the first empty field.
func (c Credentials) Validate() error {
	for _, field := range []struct {
		name  string
		value string
	}{
		{"DB_HOST", c.Host},
		{"DB_NAME", c.Name},
		{"DB_USER", c.User},
		{"DB_PASS", c.Password},
	} {
		if strings.TrimSpace(field.value) == "" {
			return &MissingCredentialError{Field: field.name}
		}
	}
	return nil
}

// defineRe matches PHP define() statements for the four credential constants.
// Either quote style is accepted independently for key and value; the value is
// captured up to its closing quote.
var defineRe = regexp.MustCompile(`define\(\s*['"](DB_HOST|DB_NAME|DB_USER|DB_PASS)['"]\s*,\s*(?:'([^']*)'|"([^"]*)")\s*\)`)

// ConfigRelPath returns the archive-relative path of the shop configuration
// file for a project.
func ConfigRelPath(project string) string {
	return project + "/includes/" + ConfigFileName
}

// Parse reads a shop configuration and extracts the credential tuple.
// The first match per key wins. Empty fields are reported by Validate, not here.
func Parse(r io.Reader) (Credentials, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Credentials{}, fmt.Errorf("reading shop configuration: %w", err)
	}

	var creds Credentials
	seen := make(map[string]bool, 4)
	for _, match := range defineRe.FindAllStringSubmatch(string(data), -1) {
		key := match[1]
		if seen[key] {
			continue
		}
		seen[key] = true

		// match[2] is the single-quoted capture, match[3] the double-quoted one.
		value := match[2]
		if match[3] != "" {
			value = match[3]
		}
		switch key {
		case "DB_HOST":
			creds.Host = value
		case "DB_NAME":
			creds.Name = value
		case "DB_USER":
			creds.User = value
		case "DB_PASS":
			creds.Password = value
		}
	}

	return creds, nil
}

// ExtractFromFile parses a live shop configuration file.
func ExtractFromFile(path string) (Credentials, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return Credentials{}, fmt.Errorf("opening shop configuration: %w", err)
	}
	defer file.Close()

	creds, err := Parse(file)
	if err != nil {
		return Credentials{}, err
	}
	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// ExtractFromArchive recovers the credentials from the shop configuration
// embedded in a web backup archive. Only the single known member
// <project>/includes/config.JTL-Shop.ini.php is extracted, into a scratch
// directory that is removed again on every exit path.
func ExtractFromArchive(archivePath, project string) (Credentials, error) {
	scratch, err := os.MkdirTemp("", "shopsave-cfg-")
	if err != nil {
		return Credentials{}, fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	configPath := filepath.Join(scratch, ConfigFileName)
	if err := extractMember(archivePath, ConfigRelPath(project), configPath); err != nil {
		return Credentials{}, err
	}

	return ExtractFromFile(configPath)
}

// extractMember copies a single archive member to destPath.
func extractMember(archivePath, member, destPath string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", archivePath, err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("reading archive %s: %w", archivePath, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading archive %s: %w", archivePath, err)
		}

		name := strings.TrimPrefix(header.Name, "./")
		if name != member {
			continue
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("creating scratch file: %w", err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return fmt.Errorf("extracting %s: %w", member, err)
		}
		return out.Close()
	}

	return fmt.Errorf("%w: archive member %s", ErrConfigNotFound, member)
}
