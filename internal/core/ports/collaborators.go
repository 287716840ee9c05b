package ports

import (
	"context"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/domain"
)

// FrameExtractor writes a single still image from a live stream to outputPath.
// Implementations must either produce a non-empty file and return nil, or
// return an error and leave nothing usable behind.
type FrameExtractor interface {
	Extract(ctx context.Context, streamURL, outputPath string) error
}

// VisionService turns a frame into a natural-language scene description.
type VisionService interface {
	Describe(ctx context.Context, imagePath, taskDirective string) (string, error)
}

// AlertSender delivers a formatted alert to the outbound channel. The image
// path may be empty or unreadable; implementations fall back to a text-only
// send rather than failing.
type AlertSender interface {
	Send(ctx context.Context, imagePath, message string) error
}

// AlertEvent is what gets pushed to live alert subscribers.
type AlertEvent struct {
	TickID     string                  `json:"tick_id"`
	Assessment domain.ThreatAssessment `json:"assessment"`
	Message    string                  `json:"message"`
}

// AlertPublisher fans triggered assessments out to connected observers
// (dashboards). Publish must never block the pipeline.
type AlertPublisher interface {
	Publish(event AlertEvent)
}
