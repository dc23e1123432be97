package beatsaver_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"nsac/internal/services"
	"nsac/internal/services/beatsaver"
)

func TestLatestQueryParameters(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"before":     r.URL.Query().Get("before"),
			"automapper": r.URL.Query().Get("automapper"),
			"sort":       r.URL.Query().Get("sort"),
		}
		fmt.Fprint(w, `{"docs":[{"id":"abc","name":"Test Map","lastPublishedAt":"2023-01-01T00:00:00Z","versions":[{"downloadURL":"https://cdn.example/abc.zip"}]}]}`)
	}))
	defer server.Close()

	client := beatsaver.NewClientWithHTTP(server.URL, "nsac/test", server.Client())
	docs, err := client.Latest(context.Background(), "2024-01-01T00:00:00Z")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "abc" {
		t.Fatalf("unexpected docs: %+v", docs)
	}
	if gotQuery["before"] != "2024-01-01T00:00:00Z" || gotQuery["automapper"] != "false" || gotQuery["sort"] != "LAST_PUBLISHED" {
		t.Fatalf("unexpected query parameters: %v", gotQuery)
	}
}

func TestLatestNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := beatsaver.NewClientWithHTTP(server.URL, "", server.Client())
	_, err := client.Latest(context.Background(), "now")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestDownloadLevelWritesAtomically(t *testing.T) {
	payload := []byte("zip-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	client := beatsaver.NewClientWithHTTP(server.URL, "", server.Client())
	dest := filepath.Join(t.TempDir(), "abc", "abc.zip")
	if err := client.DownloadLevel(context.Background(), server.URL+"/abc.zip", dest); err != nil {
		t.Fatalf("DownloadLevel failed: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("unexpected file contents: %q", data)
	}

	entries, err := os.ReadDir(filepath.Dir(dest))
	if err != nil {
		t.Fatalf("read map dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the final file, got %d entries", len(entries))
	}
}

func TestDownloadLevelFailureLeavesNoFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := beatsaver.NewClientWithHTTP(server.URL, "", server.Client())
	dest := filepath.Join(t.TempDir(), "gone.zip")
	err := client.DownloadLevel(context.Background(), server.URL+"/gone.zip", dest)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if _, statErr := os.Stat(dest); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("failed download must not leave a destination file")
	}
}

func TestLevelFilename(t *testing.T) {
	m := beatsaver.Map{
		ID:       "abc",
		Versions: []beatsaver.Version{{DownloadURL: "https://cdn.example/levels/abc123.zip"}},
	}
	name, err := m.LevelFilename()
	if err != nil {
		t.Fatalf("LevelFilename failed: %v", err)
	}
	if name != "abc123.zip" {
		t.Fatalf("unexpected filename %q", name)
	}

	if _, err := (beatsaver.Map{ID: "empty"}).LevelFilename(); err == nil {
		t.Fatal("expected error for map without versions")
	}
}
