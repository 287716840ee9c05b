package retention

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/ports"

	"go.uber.org/zap"
)

// Target names one directory to keep bounded: files matching Pattern beyond
// MaxFiles are deleted oldest-first by modification time.
type Target struct {
	Dir      string
	Pattern  string
	MaxFiles int
}

// Sweeper periodically enforces retention limits across its targets. Delete
// failures are logged and skipped; the sweep never aborts on one bad file.
type Sweeper struct {
	targets  []Target
	interval time.Duration
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewSweeper(targets []Target, interval time.Duration, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		targets:  targets,
		interval: interval,
		metrics:  metrics,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start runs an immediate sweep, then repeats on the interval until Stop is
// called or ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.SweepAll()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.SweepAll()
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the sweep loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// SweepAll enforces every target once.
func (s *Sweeper) SweepAll() {
	for _, target := range s.targets {
		deleted, err := s.sweep(target)
		if err != nil {
			s.logger.Warnw("retention sweep failed", "dir", target.Dir, "error", err)
			continue
		}
		if deleted > 0 {
			s.metrics.RecordRetentionDeletions(target.Dir, deleted)
			s.logger.Infow("retention sweep deleted files",
				"dir", target.Dir,
				"deleted", deleted,
				"max_files", target.MaxFiles,
			)
		}
	}
}

type agedFile struct {
	path    string
	modTime time.Time
}

// sweep deletes the oldest matching files beyond the target's cap and
// returns how many were removed.
func (s *Sweeper) sweep(target Target) (int, error) {
	if target.MaxFiles <= 0 {
		return 0, nil
	}

	matches, err := filepath.Glob(filepath.Join(target.Dir, target.Pattern))
	if err != nil {
		return 0, err
	}

	files := make([]agedFile, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, agedFile{path: path, modTime: info.ModTime()})
	}

	if len(files) <= target.MaxFiles {
		return 0, nil
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	deleted := 0
	for _, f := range files[:len(files)-target.MaxFiles] {
		if err := os.Remove(f.path); err != nil {
			s.logger.Warnw("could not delete expired file", "path", f.path, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}
