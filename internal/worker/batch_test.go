package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/steelminer/internal/model"
)

// MockProcessor implements Processor
type MockProcessor struct {
	ShouldError bool
	FailPath    string
	Delay       time.Duration
}

func (m *MockProcessor) ProcessFile(ctx context.Context, path string) (*model.Report, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.ShouldError || path == m.FailPath {
		return nil, errors.New("extract error")
	}
	return &model.Report{
		DocumentID: filepath.Base(path),
		Source:     path,
		Result:     model.NewDocumentResult(),
	}, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestBatchProcessor_ProcessFiles(t *testing.T) {
	processor := NewBatchProcessor(&MockProcessor{Delay: 5 * time.Millisecond}, 2)

	paths := []string{"a.txt", "b.html", "c.pdf", "d.txt", "e.txt"}
	results := processor.ProcessFiles(context.Background(), paths)

	if len(results) != len(paths) {
		t.Fatalf("expected %d results, got %d", len(paths), len(results))
	}

	for i, res := range results {
		if res.Path != paths[i] {
			t.Errorf("expected %s at index %d, got %s", paths[i], i, res.Path)
		}
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.Path, res.Error)
		}
		if res.Report == nil {
			t.Errorf("expected report for %s", res.Path)
		}
	}
}

func TestBatchProcessor_ProcessFiles_PartialFailure(t *testing.T) {
	processor := NewBatchProcessor(&MockProcessor{FailPath: "broken.pdf"}, 2)

	results := processor.ProcessFiles(context.Background(), []string{"ok.txt", "broken.pdf", "fine.html"})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[1].Error == nil {
		t.Error("expected error for broken.pdf")
	}
	if results[1].Report != nil {
		t.Error("expected nil report on error")
	}
	if results[0].Error != nil || results[2].Error != nil {
		t.Error("a failing document must not affect the others")
	}
}

func TestBatchProcessor_ProcessFiles_Empty(t *testing.T) {
	processor := NewBatchProcessor(&MockProcessor{}, 2)

	results := processor.ProcessFiles(context.Background(), []string{})
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessFiles_Cancelled(t *testing.T) {
	processor := NewBatchProcessor(&MockProcessor{Delay: time.Second}, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	paths := []string{"a.txt", "b.txt", "c.txt", "d.txt"}
	results := processor.ProcessFiles(ctx, paths)

	if len(results) != len(paths) {
		t.Fatalf("expected %d results, got %d", len(paths), len(results))
	}
	for _, res := range results {
		if res.Error == nil {
			t.Errorf("expected error for %s after timeout", res.Path)
		}
	}
}

func TestListDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.pdf"), "%PDF")
	writeFile(t, filepath.Join(dir, "a.txt"), "text")
	writeFile(t, filepath.Join(dir, "sub", "c.HTML"), "<p>x</p>")
	writeFile(t, filepath.Join(dir, "notes.docx"), "skip")
	writeFile(t, filepath.Join(dir, ".steelminer-cache", "entry.txt"), "skip")

	paths, err := ListDocuments(dir, []string{".txt", ".pdf", ".html"})
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}

	expected := []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "b.pdf"),
		filepath.Join(dir, "sub", "c.HTML"),
	}
	if len(paths) != len(expected) {
		t.Fatalf("expected %d paths, got %d: %v", len(expected), len(paths), paths)
	}
	for i, p := range paths {
		if p != expected[i] {
			t.Errorf("expected %s at index %d, got %s", expected[i], i, p)
		}
	}
}

func TestReadPathsFromFile(t *testing.T) {
	dir := t.TempDir()
	content := `papers/a.pdf
# comment
/abs/b.txt

papers/a.pdf
papers/c.html   `
	list := filepath.Join(dir, "docs.list")
	writeFile(t, list, content)

	paths, err := ReadPathsFromFile(list)
	if err != nil {
		t.Fatalf("ReadPathsFromFile failed: %v", err)
	}

	expected := []string{
		filepath.Join(dir, "papers", "a.pdf"),
		"/abs/b.txt",
		filepath.Join(dir, "papers", "c.html"),
	}
	if len(paths) != len(expected) {
		t.Fatalf("expected %d paths, got %d", len(expected), len(paths))
	}
	for i, p := range paths {
		if p != expected[i] {
			t.Errorf("expected path %s at index %d, got %s", expected[i], i, p)
		}
	}
}

func TestReadPathsFromFile_NonExistent(t *testing.T) {
	_, err := ReadPathsFromFile("non_existent_file.list")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestExtractResult_GetError(t *testing.T) {
	r1 := &ExtractResult{Path: "a.txt", Error: nil}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("extract failed")
	r2 := &ExtractResult{Path: "a.txt", Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}

func TestBatchProcessor_ProcessPath_Dir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one.txt"), "C 0.2 wt.%")
	writeFile(t, filepath.Join(dir, "two.txt"), "Mn 1.5 wt.%")

	processor := NewBatchProcessor(&MockProcessor{}, 2)

	results, err := processor.ProcessPath(context.Background(), dir, []string{".txt"})
	if err != nil {
		t.Fatalf("ProcessPath failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !strings.HasSuffix(results[0].Path, "one.txt") {
		t.Errorf("expected one.txt first, got %s", results[0].Path)
	}
}

func TestBatchProcessor_ProcessPath_ListFile(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "docs.list")
	writeFile(t, list, "a.txt\nb.txt\n# comment\n\nc.txt\n")

	processor := NewBatchProcessor(&MockProcessor{}, 2)

	results, err := processor.ProcessPath(context.Background(), list, nil)
	if err != nil {
		t.Fatalf("ProcessPath failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessPath_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(&MockProcessor{}, 2)

	_, err := processor.ProcessPath(context.Background(), "no_such_dir", nil)
	if err == nil {
		t.Error("expected error for non-existent path, got nil")
	}
}
