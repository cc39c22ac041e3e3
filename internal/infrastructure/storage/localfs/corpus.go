package localfs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/passage-assistant/internal/core/domain"
)

const (
	childrenSuffix = "_children.jsonl"
	parentsSuffix  = "_parents.jsonl"

	maxRecordBytes = 8 << 20
)

// Layout names the corpus directories.
type Layout struct {
	Manifests  string
	Normalized string
	Exports    string
	Logs       string
}

// Store keeps manifests, normalized documents, chunk exports and run logs on
// the local filesystem.
type Store struct {
	layout Layout
	now    func() time.Time
}

func New(layout Layout) (*Store, error) {
	if layout.Manifests == "" {
		layout.Manifests = "./data/manifests"
	}
	if layout.Normalized == "" {
		layout.Normalized = "./data/normalized"
	}
	if layout.Exports == "" {
		layout.Exports = "./data/exports"
	}
	if layout.Logs == "" {
		layout.Logs = "./data/logs"
	}
	for _, dir := range []string{layout.Manifests, layout.Normalized, layout.Exports, layout.Logs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create corpus dir %s: %w", dir, err)
		}
	}
	return &Store{layout: layout, now: time.Now}, nil
}

func (s *Store) ListManifests(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.layout.Manifests)
	if err != nil {
		return nil, fmt.Errorf("read manifests dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isManifestFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) ReadManifest(_ context.Context, name string) (domain.Manifest, error) {
	if err := checkName(name); err != nil {
		return domain.Manifest{}, err
	}
	raw, err := os.ReadFile(filepath.Join(s.layout.Manifests, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Manifest{}, domain.WrapError(domain.ErrNotFound, "read manifest", err)
		}
		return domain.Manifest{}, fmt.Errorf("read manifest %s: %w", name, err)
	}

	var m domain.Manifest
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &m)
	default:
		err = json.Unmarshal(raw, &m)
	}
	if err != nil {
		return domain.Manifest{}, domain.WrapError(domain.ErrInvalidInput, "decode manifest "+name, err)
	}
	if err := m.Validate(); err != nil {
		return domain.Manifest{}, err
	}
	return m, nil
}

// FindManifest tries {workID}.json/.yaml/.yml first and then scans all
// manifests, since file names are not required to match work ids.
func (s *Store) FindManifest(ctx context.Context, workID string) (domain.Manifest, error) {
	if err := checkName(workID); err != nil {
		return domain.Manifest{}, err
	}
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		m, err := s.ReadManifest(ctx, workID+ext)
		if err == nil && m.WorkID == workID {
			return m, nil
		}
	}

	names, err := s.ListManifests(ctx)
	if err != nil {
		return domain.Manifest{}, err
	}
	for _, name := range names {
		m, err := s.ReadManifest(ctx, name)
		if err != nil {
			continue
		}
		if m.WorkID == workID {
			return m, nil
		}
	}
	return domain.Manifest{}, domain.WrapError(domain.ErrNotFound, "find manifest", fmt.Errorf("work %q", workID))
}

func (s *Store) OpenNormalized(_ context.Context, workID string) (io.ReadCloser, error) {
	if err := checkName(workID); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.layout.Normalized, workID+".html"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrNotFound, "open normalized document", err)
		}
		return nil, fmt.Errorf("open normalized document: %w", err)
	}
	return f, nil
}

func (s *Store) WriteExports(_ context.Context, h domain.Hierarchy) error {
	if err := checkName(h.WorkID); err != nil {
		return err
	}
	if err := writeJSONL(filepath.Join(s.layout.Exports, h.WorkID+childrenSuffix), h.Children); err != nil {
		return fmt.Errorf("write children export: %w", err)
	}
	if err := writeJSONL(filepath.Join(s.layout.Exports, h.WorkID+parentsSuffix), h.Parents); err != nil {
		return fmt.Errorf("write parents export: %w", err)
	}
	return nil
}

func (s *Store) ReadChildren(_ context.Context, workID string) ([]domain.ChildChunk, error) {
	if err := checkName(workID); err != nil {
		return nil, err
	}
	children, err := readJSONL[domain.ChildChunk](filepath.Join(s.layout.Exports, workID+childrenSuffix))
	if err != nil {
		return nil, fmt.Errorf("read children export: %w", err)
	}
	return children, nil
}

// LoadParents reads every parents export in file name order.
func (s *Store) LoadParents(_ context.Context) ([]domain.ParentChunk, error) {
	paths, err := filepath.Glob(filepath.Join(s.layout.Exports, "*"+parentsSuffix))
	if err != nil {
		return nil, fmt.Errorf("glob parents exports: %w", err)
	}
	sort.Strings(paths)

	var parents []domain.ParentChunk
	for _, path := range paths {
		batch, err := readJSONL[domain.ParentChunk](path)
		if err != nil {
			return nil, fmt.Errorf("read parents export %s: %w", filepath.Base(path), err)
		}
		parents = append(parents, batch...)
	}
	return parents, nil
}

func (s *Store) WriteRunLog(_ context.Context, entries []domain.RunEntry) (string, error) {
	if entries == nil {
		entries = []domain.RunEntry{}
	}
	raw, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal run log: %w", err)
	}
	path := filepath.Join(s.layout.Logs, "chunk_"+s.now().Format("20060102-150405")+".json")
	if err := writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(raw)
		return err
	}); err != nil {
		return "", fmt.Errorf("write run log: %w", err)
	}
	return path, nil
}

func writeJSONL[T any](path string, records []T) error {
	return writeAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	})
}

func readJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrNotFound, "open export", err)
		}
		return nil, err
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordBytes)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var rec T
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// writeAtomic writes through a temp file in the target directory so readers
// never observe a half-written export.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	buf := bufio.NewWriter(tmp)
	if err := write(buf); err != nil {
		tmp.Close()
		return err
	}
	if err := buf.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func isManifestFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return !strings.HasPrefix(name, ".")
	default:
		return false
	}
}

func checkName(name string) error {
	if strings.TrimSpace(name) == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return domain.WrapError(domain.ErrInvalidInput, "check name", fmt.Errorf("invalid name %q", name))
	}
	return nil
}
