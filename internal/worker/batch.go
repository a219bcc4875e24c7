package worker

import (
	"bufio"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/steelminer/internal/model"
)

// Processor extracts one document into a report
type Processor interface {
	ProcessFile(ctx context.Context, path string) (*model.Report, error)
}

// ExtractJob represents a single document extraction
type ExtractJob struct {
	Index     int
	Path      string
	Processor Processor
}

// Execute executes the extraction job
func (j *ExtractJob) Execute(ctx context.Context) Result {
	report, err := j.Processor.ProcessFile(ctx, j.Path)
	if err != nil {
		return &ExtractResult{
			Index: j.Index,
			Path:  j.Path,
			Error: err,
		}
	}
	return &ExtractResult{
		Index:  j.Index,
		Path:   j.Path,
		Report: report,
	}
}

// ExtractResult represents the outcome for one document
type ExtractResult struct {
	Index  int
	Path   string
	Report *model.Report
	Error  error
}

// GetError returns the error from the extraction
func (r *ExtractResult) GetError() error {
	return r.Error
}

// BatchProcessor processes many documents concurrently. A failing document
// is recorded in its result and never stops the others.
type BatchProcessor struct {
	processor   Processor
	concurrency int
	logger      *zap.Logger
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(processor Processor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
		logger:      zap.L().Named("batch"),
	}
}

// WithLogger replaces the processor's logger
func (b *BatchProcessor) WithLogger(logger *zap.Logger) *BatchProcessor {
	b.logger = logger
	return b
}

// ProcessFiles extracts every path and returns one result per path, in
// input order. Paths never started because ctx ended carry ctx's error.
func (b *BatchProcessor) ProcessFiles(ctx context.Context, paths []string) []*ExtractResult {
	if len(paths) == 0 {
		return []*ExtractResult{}
	}

	pool := NewPoolWithContext(ctx, b.concurrency)
	pool.Start()

	jobs := make([]Job, len(paths))
	for i, path := range paths {
		jobs[i] = &ExtractJob{
			Index:     i,
			Path:      path,
			Processor: b.processor,
		}
	}

	ordered := make([]*ExtractResult, len(paths))
	for _, result := range pool.Run(jobs) {
		r := result.(*ExtractResult)
		ordered[r.Index] = r
	}

	failed := 0
	for i, r := range ordered {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			ordered[i] = &ExtractResult{
				Index: i,
				Path:  paths[i],
				Error: eris.Wrap(err, "batch: document not processed"),
			}
		}
		if ordered[i].Error != nil {
			failed++
			b.logger.Warn("document failed",
				zap.String("path", paths[i]),
				zap.Error(ordered[i].Error))
		}
	}

	b.logger.Debug("batch complete",
		zap.Int("documents", len(paths)),
		zap.Int("failed", failed))

	return ordered
}

// ProcessPath processes a directory of documents or a list file holding
// one document path per line
func (b *BatchProcessor) ProcessPath(ctx context.Context, path string, exts []string) ([]*ExtractResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: stat %s", path)
	}

	var paths []string
	if info.IsDir() {
		paths, err = ListDocuments(path, exts)
	} else {
		paths, err = ReadPathsFromFile(path)
	}
	if err != nil {
		return nil, err
	}

	return b.ProcessFiles(ctx, paths), nil
}

// ListDocuments walks dir and returns files whose extension is in exts,
// sorted by path. Hidden directories such as the cache are skipped.
func ListDocuments(dir string, exts []string) ([]string, error) {
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = true
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if allowed[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "batch: walk %s", dir)
	}

	slices.Sort(paths)
	return paths, nil
}

// ReadPathsFromFile reads document paths from a file (one per line).
// Relative paths resolve against the list file's directory.
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, eris.Wrap(err, "batch: open list")
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(filePath)

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "batch: scan list")
	}

	return paths, nil
}
