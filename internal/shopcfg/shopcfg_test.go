package shopcfg

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseMixedQuoteStyles(t *testing.T) {
	content := `<?php
define('DB_HOST','example.com');
define("DB_NAME", "shop");
define('DB_USER', "shopuser");
define("DB_PASS", 'geheim');
`
	creds, err := Parse(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if creds.Host != "example.com" {
		t.Errorf("Host = %q, want example.com", creds.Host)
	}
	if creds.Name != "shop" {
		t.Errorf("Name = %q, want shop", creds.Name)
	}
	if creds.User != "shopuser" {
		t.Errorf("User = %q, want shopuser", creds.User)
	}
	if creds.Password != "geheim" {
		t.Errorf("Password = %q, want geheim", creds.Password)
	}
}

func TestParseFirstMatchWins(t *testing.T) {
	content := `define('DB_HOST','first.example');
define('DB_HOST','second.example');`

	creds, err := Parse(strings.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}
	if creds.Host != "first.example" {
		t.Errorf("Host = %q, want first.example", creds.Host)
	}
}

func TestParseIgnoresOtherDefines(t *testing.T) {
	content := `define('PFAD_ROOT','/var/www/shop/');
define('DB_HOST','localhost');
define('BLOWFISH_KEY','abc');`

	creds, err := Parse(strings.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}
	if creds.Host != "localhost" {
		t.Errorf("Host = %q", creds.Host)
	}
	if creds.Name != "" || creds.User != "" || creds.Password != "" {
		t.Errorf("unexpected fields populated: %+v", creds)
	}
}

func TestValidate(t *testing.T) {
	full := Credentials{Host: "h", Name: "n", User: "u", Password: "p"}
	if err := full.Validate(); err != nil {
		t.Errorf("complete credentials should validate: %v", err)
	}

	missing := Credentials{Host: "h", Name: "n", User: "u"}
	err := missing.Validate()
	var mc *MissingCredentialError
	if !errors.As(err, &mc) {
		t.Fatalf("expected MissingCredentialError, got %v", err)
	}
	if mc.Field != "DB_PASS" {
		t.Errorf("Field = %q, want DB_PASS", mc.Field)
	}
}

func TestExtractFromFileIncompleteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	content := `<?php
define('DB_HOST','localhost');
define('DB_NAME','shop');
define('DB_USER','shopuser');
define('DB_PASS','');`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := ExtractFromFile(path)
	var mc *MissingCredentialError
	if !errors.As(err, &mc) {
		t.Fatalf("expected MissingCredentialError, got %v", err)
	}
	if mc.Field != "DB_PASS" {
		t.Errorf("Field = %q, want DB_PASS", mc.Field)
	}
}

func TestExtractFromFileMissing(t *testing.T) {
	_, err := ExtractFromFile(filepath.Join(t.TempDir(), "nope.php"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}

// writeWebArchive builds a minimal web_backup.tar.gz fixture.
func writeWebArchive(t *testing.T, path string, members map[string]string) {
	t.Helper()
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	tw := tar.NewWriter(gz)
	for name, content := range members {
		header := &tar.Header{
			Name: "./" + name,
			Mode: 0644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(header); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestExtractFromArchive(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "web_backup.tar.gz")
	writeWebArchive(t, archive, map[string]string{
		"demo/index.php": "<?php",
		"demo/includes/config.JTL-Shop.ini.php": `<?php
define('DB_HOST','db.internal');
define('DB_NAME','demoshop');
define('DB_USER','demo');
define('DB_PASS','s3cret');`,
	})

	creds, err := ExtractFromArchive(archive, "demo")
	if err != nil {
		t.Fatalf("ExtractFromArchive failed: %v", err)
	}
	if creds.Host != "db.internal" || creds.Name != "demoshop" || creds.User != "demo" || creds.Password != "s3cret" {
		t.Errorf("unexpected credentials: %+v", creds)
	}
}

func TestExtractFromArchiveMemberMissing(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "web_backup.tar.gz")
	writeWebArchive(t, archive, map[string]string{
		"demo/index.php": "<?php",
	})

	_, err := ExtractFromArchive(archive, "demo")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestExtractFromArchiveWrongProject(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "web_backup.tar.gz")
	writeWebArchive(t, archive, map[string]string{
		"other/includes/config.JTL-Shop.ini.php": `define('DB_HOST','x');`,
	})

	_, err := ExtractFromArchive(archive, "demo")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("expected ErrConfigNotFound for wrong project prefix, got %v", err)
	}
}
