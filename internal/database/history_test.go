package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/webmirror/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleReport(pageURL string, started time.Time) *model.MirrorReport {
	r := model.NewMirrorReport(pageURL)
	r.Host = "ex.test"
	r.MirrorDir = "/tmp/mirror/ex.test"
	r.StartedAt = started
	r.FinishedAt = started.Add(2 * time.Second)
	r.State = model.StateDone
	r.RenameMap["logo.png"] = "images/logo.png"
	r.AddOutcome(model.ResourceOutcome{
		Reference:   model.ResourceReference{Kind: model.TagImage, Attribute: "src", RawURL: "logo.png"},
		AbsoluteURL: "https://ex.test/logo.png",
		LocalPath:   "images/logo.png",
		Status:      model.StatusDownloaded,
		Bytes:       42,
		Digest:      "abc",
	})
	r.AddOutcome(model.ResourceOutcome{
		Reference:   model.ResourceReference{Kind: model.TagScript, Attribute: "src", RawURL: "https://cdn.other/app.js"},
		AbsoluteURL: "https://cdn.other/app.js",
		Status:      model.StatusSkipped,
		Reason:      "cross-origin resource skipped",
	})
	return r
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); err != nil {
			t.Errorf("database file was not created: %v", err)
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("unexpected path %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "nonexistent-db")
		_, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err == nil {
			t.Fatal("expected error when database does not exist")
		}
		if !strings.Contains(err.Error(), "database not found") {
			t.Errorf("expected error to contain %q, got %q", "database not found", err.Error())
		}
		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("database directory should not have been created")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "existing-db")
		db1, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		ctx := context.Background()
		if _, err := db1.SaveRun(ctx, sampleReport("https://ex.test/", time.Now())); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		_ = db1.Close()

		db2, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to open existing database: %v", err)
		}
		defer db2.Close()

		runs, err := db2.ListRuns(ctx, "")
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 {
			t.Errorf("expected 1 run, got %d", len(runs))
		}
	})
}

func TestSaveAndGetRun(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	report := sampleReport("https://ex.test/", time.Now())
	id, err := db.SaveRun(ctx, report)
	if err != nil {
		t.Fatalf("failed to save run: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive run ID, got %d", id)
	}

	got, err := db.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}
	if got.URL != report.URL {
		t.Errorf("expected URL %q, got %q", report.URL, got.URL)
	}
	if got.State != model.StateDone {
		t.Errorf("expected state Done, got %s", got.State)
	}
	if len(got.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(got.Outcomes))
	}
	if got.RenameMap["logo.png"] != "images/logo.png" {
		t.Errorf("expected rename map to be kept, got %v", got.RenameMap)
	}
	if s := got.Summary(); s.Downloaded != 1 || s.Skipped != 1 || s.Bytes != 42 {
		t.Errorf("unexpected summary %+v", s)
	}

	resources, err := db.GetResources(ctx, id)
	if err != nil {
		t.Fatalf("failed to get resources: %v", err)
	}
	if len(resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(resources))
	}
	if resources[0].Reference.Kind != model.TagImage || resources[0].LocalPath != "images/logo.png" {
		t.Errorf("unexpected first resource %+v", resources[0])
	}
	if resources[1].Status != model.StatusSkipped || resources[1].LocalPath != "" {
		t.Errorf("unexpected second resource %+v", resources[1])
	}
}

func TestGetRunNotFound(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	_, err := db.GetRun(context.Background(), 999)
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, u := range []string{"https://ex.test/", "https://other.test/", "https://ex.test/"} {
		r := sampleReport(u, base.Add(time.Duration(i)*time.Hour))
		if _, err := db.SaveRun(ctx, r); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}

	failed := model.NewMirrorReport("https://down.test/")
	failed.Host = "down.test"
	failed.StartedAt = base.Add(-time.Hour)
	_ = failed.Fail(errors.New("GET https://down.test/: HTTP 503"))
	if _, err := db.SaveRun(ctx, failed); err != nil {
		t.Fatalf("failed to save failed run: %v", err)
	}

	t.Run("filters by URL newest first", func(t *testing.T) {
		t.Parallel()

		runs, err := db.ListRuns(ctx, "https://ex.test/")
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 2 {
			t.Fatalf("expected 2 runs, got %d", len(runs))
		}
		if !runs[0].StartedAt.After(runs[1].StartedAt) {
			t.Errorf("expected newest first, got %v then %v", runs[0].StartedAt, runs[1].StartedAt)
		}
		if !runs[1].StartedAt.Equal(base) {
			t.Errorf("expected start %v, got %v", base, runs[1].StartedAt)
		}
		if runs[0].Downloaded != 1 || runs[0].Skipped != 1 || runs[0].Bytes != 42 {
			t.Errorf("unexpected counts %+v", runs[0])
		}
	})

	t.Run("lists all runs", func(t *testing.T) {
		t.Parallel()

		runs, err := db.ListRuns(ctx, "")
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 4 {
			t.Fatalf("expected 4 runs, got %d", len(runs))
		}
		last := runs[len(runs)-1]
		if last.State != "Failed" || !strings.Contains(last.Error, "503") {
			t.Errorf("expected failed run last, got %+v", last)
		}
		if last.MirrorDir != "" {
			t.Errorf("expected no mirror dir for failed run, got %q", last.MirrorDir)
		}
	})

	t.Run("lists distinct URLs", func(t *testing.T) {
		t.Parallel()

		urls, err := db.ListMirroredURLs(ctx)
		if err != nil {
			t.Fatalf("failed to list URLs: %v", err)
		}
		want := []string{"https://down.test/", "https://ex.test/", "https://other.test/"}
		if strings.Join(urls, ",") != strings.Join(want, ",") {
			t.Errorf("expected %v, got %v", want, urls)
		}
	})
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		zero  bool
	}{
		{input: "2026-01-02 03:04:05"},
		{input: "2026-01-02T03:04:05Z"},
		{input: "2026-01-02T03:04:05.123456789Z"},
		{input: "2026-01-02T03:04:05+09:00"},
		{input: "not a time", zero: true},
		{input: "", zero: true},
	}
	for _, tt := range tests {
		got := parseTimestamp(tt.input)
		if got.IsZero() != tt.zero {
			t.Errorf("parseTimestamp(%q): expected zero=%v, got %v", tt.input, tt.zero, got)
		}
	}
}
