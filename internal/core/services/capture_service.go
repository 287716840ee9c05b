package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/domain"
	"github.com/blaketylerfullerton/aerialintelligence/internal/core/ports"
	"github.com/blaketylerfullerton/aerialintelligence/pkg/tracing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// CaptureConfig carries the per-tick pipeline settings.
type CaptureConfig struct {
	FrameDir          string
	StreamURLTemplate string
	SettleDelay       time.Duration
	Task              string
	AlertsEnabled     bool
	AlertsPerMinute   float64
	AlertBurst        int
}

// alertLimiterStore keeps one token bucket per stream so a persistently
// alarming scene cannot flood the alert channel.
type alertLimiterStore struct {
	mu       sync.Mutex
	limiters map[domain.StreamKey]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newAlertLimiterStore(perMinute float64, burst int) *alertLimiterStore {
	if burst < 1 {
		burst = 1
	}
	return &alertLimiterStore{
		limiters: make(map[domain.StreamKey]*rate.Limiter),
		rate:     rate.Limit(perMinute / 60.0),
		burst:    burst,
	}
}

func (s *alertLimiterStore) allow(key domain.StreamKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, exists := s.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(s.rate, s.burst)
		s.limiters[key] = limiter
	}
	return limiter.Allow()
}

type captureService struct {
	extractor ports.FrameExtractor
	vision    ports.VisionService
	assessor  ports.ThreatAssessor
	store     ports.ResultStore
	history   ports.AssessmentRepository
	alerts    ports.AlertSender
	publisher ports.AlertPublisher
	metrics   ports.MetricsRecorder
	limiters  *alertLimiterStore
	cfg       CaptureConfig
	logger    *zap.SugaredLogger
}

// NewCaptureService wires one frame-capture pipeline. alerts and publisher
// may be nil when the corresponding channels are disabled.
func NewCaptureService(
	extractor ports.FrameExtractor,
	vision ports.VisionService,
	assessor ports.ThreatAssessor,
	store ports.ResultStore,
	history ports.AssessmentRepository,
	alerts ports.AlertSender,
	publisher ports.AlertPublisher,
	metrics ports.MetricsRecorder,
	cfg CaptureConfig,
	logger *zap.SugaredLogger,
) ports.CaptureService {
	return &captureService{
		extractor: extractor,
		vision:    vision,
		assessor:  assessor,
		store:     store,
		history:   history,
		alerts:    alerts,
		publisher: publisher,
		metrics:   metrics,
		limiters:  newAlertLimiterStore(cfg.AlertsPerMinute, cfg.AlertBurst),
		cfg:       cfg,
		logger:    logger,
	}
}

// RunTick executes one full capture-classify-assess-alert cycle. Every
// failure is terminal for this tick only; side effects are strictly additive.
func (s *captureService) RunTick(ctx context.Context, streamKey domain.StreamKey, sequence int64) error {
	tickID := uuid.NewString()
	start := time.Now()
	s.metrics.RecordTick(streamKey)

	ctx, span := tracing.StartSpan(ctx, "capture.tick")
	defer span.End()
	tracing.AddSpanAttributes(ctx,
		tracing.StreamKeyKey.String(string(streamKey)),
		tracing.SequenceKey.Int64(sequence),
	)
	defer func() {
		s.metrics.ObserveTickDuration(time.Since(start))
	}()

	frame, err := s.captureFrame(ctx, streamKey, sequence)
	if err != nil {
		s.metrics.RecordCaptureFailure("extract")
		tracing.RecordError(ctx, err)
		s.logger.Warnw("frame capture failed, skipping tick",
			"stream_key", streamKey,
			"sequence", sequence,
			"error", err,
		)
		return err
	}

	description, err := s.classify(ctx, frame)
	if err != nil {
		s.metrics.RecordClassification(false)
		tracing.RecordError(ctx, err)
		s.persistFailure(ctx, tickID, frame, err)
		return err
	}
	s.metrics.RecordClassification(true)

	// The result record goes to disk before scoring so the description
	// survives even if the process dies mid-assessment.
	s.persistResult(ctx, tickID, frame, description)

	assessment := s.assess(ctx, streamKey, frame, description)
	s.metrics.RecordAssessment(assessment.Level)

	s.persistVerdict(ctx, tickID, frame, description, assessment)

	if assessment.Triggered {
		s.dispatchAlert(ctx, tickID, frame, description, assessment)
	}

	s.logger.Infow("tick completed",
		"tick_id", tickID,
		"stream_key", streamKey,
		"sequence", sequence,
		"level", assessment.Level,
		"score", assessment.Score,
		"triggered", assessment.Triggered,
		"duration", time.Since(start),
	)
	return nil
}

// captureFrame extracts a still image, waits for the write to settle, and
// verifies the file is non-empty before handing it onwards.
func (s *captureService) captureFrame(ctx context.Context, streamKey domain.StreamKey, sequence int64) (*domain.CapturedFrame, error) {
	capturedAt := time.Now()
	fileName := fmt.Sprintf("%s_%06d_%s.jpg",
		sanitizeStreamKey(streamKey),
		sequence,
		capturedAt.Format("20060102-150405"),
	)
	outputPath := filepath.Join(s.cfg.FrameDir, fileName)
	streamURL := fmt.Sprintf(s.cfg.StreamURLTemplate, streamKey)

	if err := s.extractor.Extract(ctx, streamURL, outputPath); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}

	// The extractor may signal completion before the file hits disk.
	if s.cfg.SettleDelay > 0 {
		select {
		case <-time.After(s.cfg.SettleDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}
	if info.Size() == 0 {
		return nil, domain.ErrEmptyFrame
	}

	return &domain.CapturedFrame{
		Path:       outputPath,
		StreamKey:  streamKey,
		Sequence:   sequence,
		CapturedAt: capturedAt,
	}, nil
}

func (s *captureService) classify(ctx context.Context, frame *domain.CapturedFrame) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "vision.describe")
	defer span.End()

	description, err := s.vision.Describe(ctx, frame.Path, s.cfg.Task)
	if err != nil {
		return "", fmt.Errorf("%w: describe frame %s: %v", domain.ErrVisionUnavailable, filepath.Base(frame.Path), err)
	}
	return description, nil
}

func (s *captureService) assess(ctx context.Context, streamKey domain.StreamKey, frame *domain.CapturedFrame, description string) domain.ThreatAssessment {
	ctx, span := tracing.StartSpan(ctx, "assessment.assess")
	defer span.End()

	assessment := s.assessor.Assess(ctx, description, frame.Path)
	assessment.StreamKey = streamKey
	assessment.ImageFile = filepath.Base(frame.Path)

	tracing.AddSpanAttributes(ctx,
		tracing.LevelKey.String(string(assessment.Level)),
		tracing.ScoreKey.Int(assessment.Score),
	)
	return assessment
}

// persistFailure writes the failure record for ticks that reached the vision
// stage but could not obtain a description.
func (s *captureService) persistFailure(ctx context.Context, tickID string, frame *domain.CapturedFrame, cause error) {
	entry := &domain.SummaryEntry{
		TickID:      tickID,
		Timestamp:   time.Now(),
		StreamKey:   frame.StreamKey,
		ImageFile:   filepath.Base(frame.Path),
		Success:     false,
		ErrorDetail: cause.Error(),
	}
	if err := s.store.AppendSummary(ctx, entry); err != nil {
		s.logger.Errorw("failed to append failure summary", "tick_id", tickID, "error", err)
	}
}

// persistResult writes the individual result record. Storage errors are
// logged, never propagated: the tick continues to assessment regardless.
func (s *captureService) persistResult(ctx context.Context, tickID string, frame *domain.CapturedFrame, description string) {
	result := &domain.ClassificationResult{
		ImageFile:   filepath.Base(frame.Path),
		ImagePath:   frame.Path,
		Description: description,
		ProducedAt:  time.Now(),
		Success:     true,
	}
	if _, err := s.store.SaveResult(ctx, result); err != nil {
		s.logger.Errorw("failed to save classification result", "tick_id", tickID, "error", err)
	}
}

// persistVerdict writes the summary line and the assessment-history entry.
// Storage errors are logged, never propagated: the assessment already
// happened and alerting must still be considered.
func (s *captureService) persistVerdict(ctx context.Context, tickID string, frame *domain.CapturedFrame, description string, assessment domain.ThreatAssessment) {
	entry := &domain.SummaryEntry{
		TickID:      tickID,
		Timestamp:   time.Now(),
		StreamKey:   frame.StreamKey,
		ImageFile:   filepath.Base(frame.Path),
		Success:     true,
		Description: description,
		Level:       assessment.Level,
		Score:       assessment.Score,
		Confidence:  assessment.Confidence,
		Triggered:   assessment.Triggered,
	}
	if err := s.store.AppendSummary(ctx, entry); err != nil {
		s.logger.Errorw("failed to append summary", "tick_id", tickID, "error", err)
	}

	if s.history != nil {
		if err := s.history.Save(ctx, &assessment); err != nil {
			s.logger.Warnw("failed to record assessment history", "tick_id", tickID, "error", err)
		}
	}
}

// dispatchAlert sends the evidence frame plus verdict to the outbound channel
// and to any live subscribers. Delivery failures never roll back the
// persisted assessment.
func (s *captureService) dispatchAlert(ctx context.Context, tickID string, frame *domain.CapturedFrame, description string, assessment domain.ThreatAssessment) {
	message := formatAlertMessage(description, assessment)

	if s.publisher != nil {
		s.publisher.Publish(ports.AlertEvent{
			TickID:     tickID,
			Assessment: assessment,
			Message:    message,
		})
	}

	if !s.cfg.AlertsEnabled || s.alerts == nil {
		return
	}
	if !s.limiters.allow(frame.StreamKey) {
		s.logger.Warnw("alert throttled",
			"tick_id", tickID,
			"stream_key", frame.StreamKey,
			"level", assessment.Level,
		)
		return
	}

	ctx, span := tracing.StartSpan(ctx, "alert.send")
	defer span.End()

	if err := s.alerts.Send(ctx, frame.Path, message); err != nil {
		s.metrics.RecordAlert(false)
		tracing.RecordError(ctx, err)
		s.logger.Errorw("alert delivery failed",
			"tick_id", tickID,
			"stream_key", frame.StreamKey,
			"error", err,
		)
		return
	}
	s.metrics.RecordAlert(true)
}

func formatAlertMessage(description string, assessment domain.ThreatAssessment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SECURITY ALERT [%s]\n", assessment.Level)
	fmt.Fprintf(&b, "Stream: %s\n", assessment.StreamKey)
	fmt.Fprintf(&b, "Score: %d/5 (confidence %d%%)\n", assessment.Score, assessment.Confidence)
	fmt.Fprintf(&b, "Action: %s\n", assessment.Action)
	fmt.Fprintf(&b, "Scene: %s\n", description)
	if len(assessment.Reasons) > 0 {
		b.WriteString("Reasons:\n")
		for _, reason := range assessment.Reasons {
			fmt.Fprintf(&b, "- %s\n", reason)
		}
	}
	fmt.Fprintf(&b, "Time: %s", assessment.AssessedAt.Format(time.RFC3339))
	return b.String()
}

// sanitizeStreamKey flattens the stream key into a filename-safe token.
func sanitizeStreamKey(key domain.StreamKey) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "_", "..", "-")
	return replacer.Replace(string(key))
}
