package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mmcdole/trackr/internal/api/apitest"
	"github.com/mmcdole/trackr/internal/config"
	"github.com/mmcdole/trackr/internal/domain"
)

func setup(t *testing.T) (string, *apitest.Server) {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Server.URL = srv.URL
	cfg.Server.Token = "secret"
	cfg.Cache.Persist = false
	cfg.Logging.File = filepath.Join(dir, "trackr.log")
	if err := config.Save(dir, cfg); err != nil {
		t.Fatalf("config.Save returned error: %v", err)
	}
	return dir, srv
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func TestProgressThenExport(t *testing.T) {
	dir, srv := setup(t)
	srv.AddBook(domain.Book{ID: "b1", Title: "Dungeon Meshi", Chapters: 97})
	srv.Track("b1", domain.BookTracking{Status: domain.StatusReading, CurrentChapter: 3})

	if err := execute(t, "--config-dir", dir, "progress", "b1", "--chapter", "50", "--status", "on hold"); err != nil {
		t.Fatalf("progress returned error: %v", err)
	}

	out := filepath.Join(dir, "library.json")
	if err := execute(t, "--config-dir", dir, "export", "--format", "json", "-o", out); err != nil {
		t.Fatalf("export returned error: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var doc struct {
		Books []struct {
			ID             string `json:"id"`
			Status         string `json:"status"`
			CurrentChapter int    `json:"current_chapter"`
		} `json:"books"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("export is not JSON: %v", err)
	}
	if len(doc.Books) != 1 || doc.Books[0].Status != "on_hold" || doc.Books[0].CurrentChapter != 50 {
		t.Fatalf("exported = %#v", doc.Books)
	}
}

func TestProgressRequiresAField(t *testing.T) {
	dir, _ := setup(t)
	if err := execute(t, "--config-dir", dir, "progress", "b1"); err == nil {
		t.Fatal("progress without flags should fail")
	}
}

func TestCommandsRequireLogin(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Logging.File = filepath.Join(dir, "trackr.log")
	if err := config.Save(dir, cfg); err != nil {
		t.Fatalf("config.Save returned error: %v", err)
	}

	if err := execute(t, "--config-dir", dir, "library"); err != errNotConfigured {
		t.Fatalf("err = %v, want errNotConfigured", err)
	}
}

func TestTrackAndUntrack(t *testing.T) {
	dir, srv := setup(t)
	srv.AddBook(domain.Book{ID: "b9", Title: "Blame!"})

	if err := execute(t, "--config-dir", dir, "track", "b9"); err != nil {
		t.Fatalf("track returned error: %v", err)
	}
	if !srv.IsTracked("b9") {
		t.Fatal("server did not record the track")
	}
	if err := execute(t, "--config-dir", dir, "untrack", "b9"); err != nil {
		t.Fatalf("untrack returned error: %v", err)
	}
	if srv.IsTracked("b9") {
		t.Fatal("server still tracks b9")
	}
}
