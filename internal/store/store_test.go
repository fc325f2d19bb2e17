package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/webdienst24/shopsave/internal/logging"
	"github.com/webdienst24/shopsave/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(logging.New(types.LogLevelError, false), t.TempDir())
}

// makeSet creates a backup set directory directly on disk, optionally with a
// metadata file so it counts as complete.
func makeSet(t *testing.T, s *Store, project, timestamp string, complete bool) string {
	t.Helper()
	dir := filepath.Join(s.ProjectDir(project), timestamp)
	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatal(err)
	}
	if complete {
		if err := os.WriteFile(filepath.Join(dir, MetadataFileName), []byte("project: x\n"), 0640); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestCreateSet(t *testing.T) {
	s := newTestStore(t)
	s.SetNow(func() time.Time {
		return time.Date(2026, 8, 30, 14, 25, 1, 0, time.UTC)
	})

	set, err := s.CreateSet("demo")
	if err != nil {
		t.Fatalf("CreateSet() error: %v", err)
	}
	if set.Timestamp != "20260830_142501" {
		t.Errorf("Timestamp = %q, want 20260830_142501", set.Timestamp)
	}
	if info, err := os.Stat(set.Dir); err != nil || !info.IsDir() {
		t.Errorf("set directory missing: %v", err)
	}
	if set.Complete {
		t.Error("fresh set must be incomplete")
	}
	if !strings.Contains(set.Dir, "bak.demo") {
		t.Errorf("set dir %q not under project namespace", set.Dir)
	}

	if _, err := s.CreateSet("demo"); err == nil {
		t.Error("CreateSet() with same timestamp should fail")
	}
}

func TestListSetsOrderingAndCompleteness(t *testing.T) {
	s := newTestStore(t)
	makeSet(t, s, "demo", "20260101_000000", true)
	makeSet(t, s, "demo", "20260301_000000", false)
	makeSet(t, s, "demo", "20260201_000000", true)
	// Noise entries that must be ignored.
	makeSet(t, s, "demo", "not-a-timestamp", true)
	if err := os.WriteFile(filepath.Join(s.ProjectDir("demo"), "20260401_000000"), []byte("file"), 0640); err != nil {
		t.Fatal(err)
	}

	sets, err := s.ListSets("demo")
	if err != nil {
		t.Fatalf("ListSets() error: %v", err)
	}
	if len(sets) != 3 {
		t.Fatalf("ListSets() returned %d sets, want 3", len(sets))
	}
	wantOrder := []string{"20260301_000000", "20260201_000000", "20260101_000000"}
	for i, want := range wantOrder {
		if sets[i].Timestamp != want {
			t.Errorf("sets[%d].Timestamp = %q, want %q", i, sets[i].Timestamp, want)
		}
	}
	if sets[0].Complete {
		t.Error("set without metadata must be incomplete")
	}
	if !sets[1].Complete || !sets[2].Complete {
		t.Error("sets with metadata must be complete")
	}
}

func TestListSetsMissingProject(t *testing.T) {
	s := newTestStore(t)
	sets, err := s.ListSets("ghost")
	if err != nil {
		t.Fatalf("ListSets() on missing project: %v", err)
	}
	if len(sets) != 0 {
		t.Errorf("expected no sets, got %d", len(sets))
	}
}

func TestListCompleteSets(t *testing.T) {
	s := newTestStore(t)
	makeSet(t, s, "demo", "20260101_000000", false)

	if _, err := s.ListCompleteSets("demo"); !errors.Is(err, ErrNoBackups) {
		t.Errorf("expected ErrNoBackups, got %v", err)
	}

	makeSet(t, s, "demo", "20260201_000000", true)
	sets, err := s.ListCompleteSets("demo")
	if err != nil {
		t.Fatalf("ListCompleteSets() error: %v", err)
	}
	if len(sets) != 1 || sets[0].Timestamp != "20260201_000000" {
		t.Errorf("unexpected complete sets: %+v", sets)
	}
}

func TestChecksum(t *testing.T) {
	s := newTestStore(t)
	p := filepath.Join(t.TempDir(), "dump.sql")
	content := []byte("CREATE TABLE t (id INT);\n")
	if err := os.WriteFile(p, content, 0640); err != nil {
		t.Fatal(err)
	}

	sum, err := s.Checksum(context.Background(), p)
	if err != nil {
		t.Fatalf("Checksum() error: %v", err)
	}
	want := sha256.Sum256(content)
	if sum != hex.EncodeToString(want[:]) {
		t.Errorf("Checksum() = %s, want %s", sum, hex.EncodeToString(want[:]))
	}
}

func TestChecksumCancelled(t *testing.T) {
	s := newTestStore(t)
	p := filepath.Join(t.TempDir(), "dump.sql")
	if err := os.WriteFile(p, []byte("data"), 0640); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Checksum(ctx, p); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWriteMetadataMarksComplete(t *testing.T) {
	s := newTestStore(t)
	set, err := s.CreateSet("demo")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(set.DumpPath(), []byte("-- dump\n"), 0600); err != nil {
		t.Fatal(err)
	}

	artifacts, err := s.CollectArtifacts(context.Background(), set,
		[]string{DumpFileName, WebArchiveName, MediaArchiveName})
	if err != nil {
		t.Fatalf("CollectArtifacts() error: %v", err)
	}
	// Only the dump exists; the missing archives must be skipped.
	if len(artifacts) != 1 || artifacts[0].Name != DumpFileName {
		t.Fatalf("unexpected artifacts: %+v", artifacts)
	}

	meta := Metadata{
		Project:     "demo",
		Version:     "1.2.3",
		Timestamp:   set.Timestamp,
		Mode:        "all",
		Compression: "gzip",
		Artifacts:   artifacts,
	}
	if err := s.WriteMetadata(set, meta); err != nil {
		t.Fatalf("WriteMetadata() error: %v", err)
	}

	sets, err := s.ListSets("demo")
	if err != nil {
		t.Fatal(err)
	}
	if len(sets) != 1 || !sets[0].Complete {
		t.Error("set must be complete after metadata is written")
	}

	content, err := os.ReadFile(filepath.Join(set.Dir, MetadataFileName))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"project: demo", "version: 1.2.3", "mode: all", DumpFileName, "sha256="} {
		if !strings.Contains(string(content), want) {
			t.Errorf("metadata missing %q:\n%s", want, content)
		}
	}
}

func TestRotate(t *testing.T) {
	tests := []struct {
		name      string
		sets      map[string]bool // timestamp -> complete
		keepCount int
		survive   []string
	}{
		{
			name: "keeps newest complete",
			sets: map[string]bool{
				"20260101_000000": true,
				"20260201_000000": true,
				"20260301_000000": true,
				"20260401_000000": true,
			},
			keepCount: 2,
			survive:   []string{"20260401_000000", "20260301_000000"},
		},
		{
			name: "incomplete sets always removed",
			sets: map[string]bool{
				"20260101_000000": true,
				"20260301_000000": false,
				"20260401_000000": true,
			},
			keepCount: 3,
			survive:   []string{"20260401_000000", "20260101_000000"},
		},
		{
			name: "keep zero wipes everything",
			sets: map[string]bool{
				"20260101_000000": true,
				"20260201_000000": false,
			},
			keepCount: 0,
			survive:   nil,
		},
		{
			name: "fewer sets than keep count",
			sets: map[string]bool{
				"20260101_000000": true,
			},
			keepCount: 5,
			survive:   []string{"20260101_000000"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			for ts, complete := range tt.sets {
				makeSet(t, s, "demo", ts, complete)
			}

			if err := s.Rotate("demo", tt.keepCount); err != nil {
				t.Fatalf("Rotate() error: %v", err)
			}

			sets, err := s.ListSets("demo")
			if err != nil {
				t.Fatal(err)
			}
			if len(sets) != len(tt.survive) {
				t.Fatalf("after rotation %d sets survive, want %d: %+v", len(sets), len(tt.survive), sets)
			}
			for i, want := range tt.survive {
				if sets[i].Timestamp != want {
					t.Errorf("sets[%d].Timestamp = %q, want %q", i, sets[i].Timestamp, want)
				}
			}
		})
	}
}

func TestRotationVictimsOldestFirst(t *testing.T) {
	// Newest-first input, as ListSets returns it.
	sets := []BackupSet{
		{Timestamp: "20260401_000000", Complete: true},
		{Timestamp: "20260301_000000", Complete: false},
		{Timestamp: "20260201_000000", Complete: true},
		{Timestamp: "20260101_000000", Complete: true},
	}

	victims := rotationVictims(sets, 1)

	got := make([]string, len(victims))
	for i, v := range victims {
		got[i] = v.Timestamp
	}
	want := []string{"20260101_000000", "20260201_000000", "20260301_000000"}
	if len(got) != len(want) {
		t.Fatalf("rotationVictims() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotationVictims() = %v, want %v (oldest removed first)", got, want)
		}
	}
}

func TestRotateOtherProjectsUntouched(t *testing.T) {
	s := newTestStore(t)
	makeSet(t, s, "demo", "20260101_000000", true)
	other := makeSet(t, s, "other", "20250101_000000", true)

	if err := s.Rotate("demo", 0); err != nil {
		t.Fatalf("Rotate() error: %v", err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("rotation of demo must not touch other projects: %v", err)
	}
}
