package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/domain"

	"go.uber.org/zap"
)

const summaryFileName = "classification_summary.jsonl"

// FileStore writes per-frame classification results and the shared summary
// log under a single results directory. Result files sit next to their frame
// name (<base>_classification.json); the summary is one JSON object per line.
type FileStore struct {
	resultsDir string
	logger     *zap.SugaredLogger

	summaryMu sync.Mutex
}

func NewFileStore(resultsDir string, logger *zap.SugaredLogger) (*FileStore, error) {
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create results directory: %w", err)
	}
	return &FileStore{resultsDir: resultsDir, logger: logger}, nil
}

// SaveResult writes the per-frame result file and returns its path.
func (s *FileStore) SaveResult(ctx context.Context, result *domain.ClassificationResult) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	base := strings.TrimSuffix(result.ImageFile, filepath.Ext(result.ImageFile))
	path := filepath.Join(s.resultsDir, base+"_classification.json")

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write result file: %w", err)
	}

	s.logger.Debugw("classification result saved", "path", path)
	return path, nil
}

// AppendSummary appends one line to the shared summary log. A mutex
// serializes writers so concurrent ticks never interleave within a line.
func (s *FileStore) AppendSummary(ctx context.Context, entry *domain.SummaryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode summary entry: %w", err)
	}

	s.summaryMu.Lock()
	defer s.summaryMu.Unlock()

	path := filepath.Join(s.resultsDir, summaryFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open summary log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append summary entry: %w", err)
	}
	return nil
}

// SummaryPath returns the location of the summary log.
func (s *FileStore) SummaryPath() string {
	return filepath.Join(s.resultsDir, summaryFileName)
}
