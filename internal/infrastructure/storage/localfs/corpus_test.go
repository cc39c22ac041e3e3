package localfs

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/passage-assistant/internal/core/domain"
)

func newTestStore(t *testing.T) (*Store, Layout) {
	t.Helper()
	base := t.TempDir()
	layout := Layout{
		Manifests:  filepath.Join(base, "manifests"),
		Normalized: filepath.Join(base, "normalized"),
		Exports:    filepath.Join(base, "exports"),
		Logs:       filepath.Join(base, "logs"),
	}
	store, err := New(layout)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	store.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	return store, layout
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestListAndReadManifests(t *testing.T) {
	store, layout := newTestStore(t)
	writeFile(t, filepath.Join(layout.Manifests, "b.json"), `{"work_id":"hidden-words","author":"Bahá’u’lláh","work_title":"The Hidden Words"}`)
	writeFile(t, filepath.Join(layout.Manifests, "a.yaml"), "work_id: kitab\nauthor: Author\nwork_title: Title\nlang: ar\n")
	writeFile(t, filepath.Join(layout.Manifests, "notes.txt"), "ignored")

	names, err := store.ListManifests(context.Background())
	if err != nil {
		t.Fatalf("ListManifests() error = %v", err)
	}
	if strings.Join(names, ",") != "a.yaml,b.json" {
		t.Fatalf("unexpected manifest names: %v", names)
	}

	m, err := store.ReadManifest(context.Background(), "a.yaml")
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if m.WorkID != "kitab" || m.Lang != "ar" {
		t.Fatalf("unexpected yaml manifest: %+v", m)
	}

	found, err := store.FindManifest(context.Background(), "hidden-words")
	if err != nil {
		t.Fatalf("FindManifest() error = %v", err)
	}
	if found.WorkTitle != "The Hidden Words" {
		t.Fatalf("unexpected manifest: %+v", found)
	}
}

func TestReadManifestValidation(t *testing.T) {
	store, layout := newTestStore(t)
	writeFile(t, filepath.Join(layout.Manifests, "bad.json"), `{"work_id":"x"}`)
	writeFile(t, filepath.Join(layout.Manifests, "broken.json"), `{`)

	_, err := store.ReadManifest(context.Background(), "bad.json")
	if !domain.IsKind(err, domain.ErrInvalidInput) || !strings.Contains(err.Error(), "author") {
		t.Fatalf("expected invalid input naming author, got %v", err)
	}
	if _, err := store.ReadManifest(context.Background(), "broken.json"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected decode error as invalid input, got %v", err)
	}
	if _, err := store.FindManifest(context.Background(), "nope"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOpenNormalized(t *testing.T) {
	store, layout := newTestStore(t)
	writeFile(t, filepath.Join(layout.Normalized, "w1.html"), "<html></html>")

	rc, err := store.OpenNormalized(context.Background(), "w1")
	if err != nil {
		t.Fatalf("OpenNormalized() error = %v", err)
	}
	raw, _ := io.ReadAll(rc)
	rc.Close()
	if string(raw) != "<html></html>" {
		t.Fatalf("unexpected content %q", raw)
	}

	if _, err := store.OpenNormalized(context.Background(), "missing"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.OpenNormalized(context.Background(), "../etc"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for path traversal, got %v", err)
	}
}

func TestExportsRoundTrip(t *testing.T) {
	store, layout := newTestStore(t)
	h := domain.Hierarchy{
		WorkID: "w1",
		Parents: []domain.ParentChunk{
			{ID: "w1-p0001", WorkID: "w1", Text: "a <b> & c", Hash: "h1"},
		},
		Children: []domain.ChildChunk{
			{ID: "w1-c00001", ParentID: "w1-p0001", WorkID: "w1", Text: "a <b>", Lang: "en", Hash: "c1"},
			{ID: "w1-c00002", ParentID: "w1-p0001", WorkID: "w1", Text: "& c", Lang: "en", Hash: "c2"},
		},
	}
	if err := store.WriteExports(context.Background(), h); err != nil {
		t.Fatalf("WriteExports() error = %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(layout.Exports, "w1_children.jsonl"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], `"text":"a <b>"`) {
		t.Fatalf("unexpected children export: %s", raw)
	}
	for _, field := range []string{"id", "parent_id", "work_id", "author", "work_title", "section_id", "paragraph_id", "text", "source_url", "lang", "hash"} {
		if !strings.Contains(lines[0], `"`+field+`":`) {
			t.Fatalf("child record misses field %s: %s", field, lines[0])
		}
	}

	children, err := store.ReadChildren(context.Background(), "w1")
	if err != nil {
		t.Fatalf("ReadChildren() error = %v", err)
	}
	if len(children) != 2 || children[1].Text != "& c" {
		t.Fatalf("unexpected children: %+v", children)
	}

	parents, err := store.LoadParents(context.Background())
	if err != nil {
		t.Fatalf("LoadParents() error = %v", err)
	}
	if len(parents) != 1 || parents[0].Text != "a <b> & c" {
		t.Fatalf("unexpected parents: %+v", parents)
	}

	if _, err := store.ReadChildren(context.Background(), "w2"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for missing export, got %v", err)
	}
}

func TestWriteRunLog(t *testing.T) {
	store, layout := newTestStore(t)
	path, err := store.WriteRunLog(context.Background(), []domain.RunEntry{
		{WorkID: "w1", Parents: 2, Children: 9, Status: domain.RunStatusOK},
		{WorkID: "w2", Status: domain.RunStatusSkipped, Error: "normalized document missing"},
	})
	if err != nil {
		t.Fatalf("WriteRunLog() error = %v", err)
	}
	if path != filepath.Join(layout.Logs, "chunk_20260304-050607.json") {
		t.Fatalf("unexpected run log path %s", path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	var entries []map[string]any
	if err := json.Unmarshal(raw, &entries); err != nil {
		t.Fatalf("decode run log: %v", err)
	}
	if len(entries) != 2 || entries[0]["children"].(float64) != 9 || entries[1]["status"] != "skipped" {
		t.Fatalf("unexpected run log: %s", raw)
	}
}
