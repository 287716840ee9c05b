package domain

import "time"

// CapturedFrame describes a still image extracted from a live stream.
type CapturedFrame struct {
	Path       string
	StreamKey  StreamKey
	Sequence   int64
	CapturedAt time.Time
}

// ClassificationResult holds the vision service's description of one frame.
type ClassificationResult struct {
	ImageFile   string    `json:"image_file"`
	ImagePath   string    `json:"image_path"`
	Description string    `json:"classification"`
	ProducedAt  time.Time `json:"timestamp"`
	Success     bool      `json:"success"`
	ErrorDetail string    `json:"error,omitempty"`
}

// SummaryEntry is one line of the append-only per-run summary log.
// Each entry is self-contained: readers must tolerate arbitrary cross-stream
// interleaving.
type SummaryEntry struct {
	TickID      string      `json:"tick_id"`
	Timestamp   time.Time   `json:"timestamp"`
	StreamKey   StreamKey   `json:"stream_key"`
	ImageFile   string      `json:"image_file"`
	Success     bool        `json:"success"`
	ErrorDetail string      `json:"error,omitempty"`
	Description string      `json:"classification,omitempty"`
	Level       ThreatLevel `json:"level,omitempty"`
	Score       int         `json:"score,omitempty"`
	Confidence  int         `json:"confidence,omitempty"`
	Triggered   bool        `json:"triggered,omitempty"`
}
