package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileStore_SaveResultWritesSiblingFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, zap.NewNop().Sugar())
	require.NoError(t, err)

	path, err := store.SaveResult(context.Background(), &domain.ClassificationResult{
		ImageFile:   "cam1_000001_20260828-120000.jpg",
		ImagePath:   "/frames/cam1_000001_20260828-120000.jpg",
		Description: "a quiet street",
		ProducedAt:  time.Now(),
		Success:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "cam1_000001_20260828-120000_classification.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded domain.ClassificationResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "a quiet street", decoded.Description)
	assert.True(t, decoded.Success)
}

func TestFileStore_AppendSummaryIsOneObjectPerLine(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, zap.NewNop().Sugar())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.AppendSummary(ctx, &domain.SummaryEntry{
		TickID:    "tick-1",
		StreamKey: "cam1",
		Success:   true,
	}))
	require.NoError(t, store.AppendSummary(ctx, &domain.SummaryEntry{
		TickID:      "tick-2",
		StreamKey:   "cam2",
		Success:     false,
		ErrorDetail: "inference returned 502",
	}))

	f, err := os.Open(store.SummaryPath())
	require.NoError(t, err)
	defer f.Close()

	var entries []domain.SummaryEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry domain.SummaryEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, entries, 2)
	assert.Equal(t, "tick-1", entries[0].TickID)
	assert.Equal(t, "tick-2", entries[1].TickID)
	assert.Equal(t, "inference returned 502", entries[1].ErrorDetail)
}

func TestFileStore_CreatesResultsDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "results")

	_, err := NewFileStore(dir, zap.NewNop().Sugar())
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
