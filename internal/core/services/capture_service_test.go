package services

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/domain"
	"github.com/blaketylerfullerton/aerialintelligence/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeExtractor writes canned bytes to the requested output path.
type fakeExtractor struct {
	content []byte
	err     error
	calls   atomicCounter
}

type atomicCounter struct {
	mu sync.Mutex
	n  int
}

func (c *atomicCounter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *atomicCounter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func (f *fakeExtractor) Extract(ctx context.Context, streamURL, outputPath string) error {
	f.calls.inc()
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outputPath, f.content, 0o644)
}

// fakeAssessor returns a fixed verdict.
type fakeAssessor struct {
	assessment domain.ThreatAssessment
}

func (f *fakeAssessor) Assess(ctx context.Context, description, imagePath string) domain.ThreatAssessment {
	return f.assessment
}

// recordingStore captures everything persisted through it.
type recordingStore struct {
	mu      sync.Mutex
	results []*domain.ClassificationResult
	entries []*domain.SummaryEntry
}

func (s *recordingStore) SaveResult(ctx context.Context, result *domain.ClassificationResult) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return "result.json", nil
}

func (s *recordingStore) AppendSummary(ctx context.Context, entry *domain.SummaryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// recordingSender captures alert sends.
type recordingSender struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (s *recordingSender) Send(ctx context.Context, imagePath, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, message)
	return nil
}

// recordingPublisher captures published alert events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []ports.AlertEvent
}

func (p *recordingPublisher) Publish(event ports.AlertEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// recordingHistory captures saved assessments.
type recordingHistory struct {
	mu    sync.Mutex
	saved []*domain.ThreatAssessment
}

func (h *recordingHistory) Save(ctx context.Context, assessment *domain.ThreatAssessment) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saved = append(h.saved, assessment)
	return nil
}

func (h *recordingHistory) ListRecent(ctx context.Context, limit int) ([]*domain.ThreatAssessment, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.saved, nil
}

type captureFixture struct {
	extractor *fakeExtractor
	vision    *MockVisionService
	assessor  *fakeAssessor
	store     *recordingStore
	history   *recordingHistory
	sender    *recordingSender
	publisher *recordingPublisher
	service   ports.CaptureService
}

func newCaptureFixture(t *testing.T, assessment domain.ThreatAssessment, perMinute float64) *captureFixture {
	t.Helper()

	f := &captureFixture{
		extractor: &fakeExtractor{content: []byte("jpeg-bytes")},
		vision:    new(MockVisionService),
		assessor:  &fakeAssessor{assessment: assessment},
		store:     &recordingStore{},
		history:   &recordingHistory{},
		sender:    &recordingSender{},
		publisher: &recordingPublisher{},
	}

	f.service = NewCaptureService(
		f.extractor,
		f.vision,
		f.assessor,
		f.store,
		f.history,
		f.sender,
		f.publisher,
		ports.NopMetrics{},
		CaptureConfig{
			FrameDir:          t.TempDir(),
			StreamURLTemplate: "rtmp://127.0.0.1:1935/%s",
			SettleDelay:       0,
			Task:              "<CAPTION>",
			AlertsEnabled:     true,
			AlertsPerMinute:   perMinute,
			AlertBurst:        1,
		},
		zap.NewNop().Sugar(),
	)
	return f
}

func triggeredAssessment() domain.ThreatAssessment {
	return domain.ThreatAssessment{
		Level:      domain.LevelHigh,
		Score:      4,
		Confidence: 80,
		Reasons:    []string{"high indicator: \"suspicious person\""},
		Triggered:  true,
		Action:     domain.ActionInvestigateImmediately,
		AssessedAt: time.Now(),
	}
}

func calmAssessment() domain.ThreatAssessment {
	return domain.ThreatAssessment{
		Level:      domain.LevelNone,
		Score:      1,
		Confidence: 0,
		Triggered:  false,
		Action:     domain.ActionNone,
		AssessedAt: time.Now(),
	}
}

// callLog records the order collaborators were invoked in.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	l.calls = append(l.calls, name)
	l.mu.Unlock()
}

type orderedStore struct {
	log *callLog
}

func (s *orderedStore) SaveResult(ctx context.Context, result *domain.ClassificationResult) (string, error) {
	s.log.add("save_result")
	return "result.json", nil
}

func (s *orderedStore) AppendSummary(ctx context.Context, entry *domain.SummaryEntry) error {
	s.log.add("append_summary")
	return nil
}

type orderedAssessor struct {
	log *callLog
}

func (a *orderedAssessor) Assess(ctx context.Context, description, imagePath string) domain.ThreatAssessment {
	a.log.add("assess")
	return calmAssessment()
}

func TestRunTick_ResultIsDurableBeforeAssessment(t *testing.T) {
	log := &callLog{}
	vision := new(MockVisionService)
	vision.On("Describe", mock.Anything, mock.Anything, mock.Anything).
		Return("a quiet street", nil)

	service := NewCaptureService(
		&fakeExtractor{content: []byte("jpeg-bytes")},
		vision,
		&orderedAssessor{log: log},
		&orderedStore{log: log},
		nil,
		nil,
		nil,
		ports.NopMetrics{},
		CaptureConfig{
			FrameDir:          t.TempDir(),
			StreamURLTemplate: "rtmp://127.0.0.1:1935/%s",
			Task:              "<CAPTION>",
		},
		zap.NewNop().Sugar(),
	)

	require.NoError(t, service.RunTick(context.Background(), "cam1", 1))

	assert.Equal(t, []string{"save_result", "assess", "append_summary"}, log.calls)
}

func TestRunTick_TriggeredAssessmentAlertsAndPersists(t *testing.T) {
	f := newCaptureFixture(t, triggeredAssessment(), 60)
	f.vision.On("Describe", mock.Anything, mock.Anything, "<CAPTION>").
		Return("a suspicious person near the fence", nil)

	err := f.service.RunTick(context.Background(), "cam1", 1)

	assert.NoError(t, err)
	assert.Len(t, f.store.results, 1)
	assert.True(t, f.store.results[0].Success)
	assert.Equal(t, "a suspicious person near the fence", f.store.results[0].Description)

	assert.Len(t, f.store.entries, 1)
	entry := f.store.entries[0]
	assert.True(t, entry.Success)
	assert.Equal(t, domain.StreamKey("cam1"), entry.StreamKey)
	assert.Equal(t, domain.LevelHigh, entry.Level)
	assert.True(t, entry.Triggered)

	assert.Len(t, f.history.saved, 1)
	assert.Len(t, f.publisher.events, 1)
	assert.Len(t, f.sender.messages, 1)
	assert.Contains(t, f.sender.messages[0], "SECURITY ALERT [HIGH]")
}

func TestRunTick_CalmAssessmentDoesNotAlert(t *testing.T) {
	f := newCaptureFixture(t, calmAssessment(), 60)
	f.vision.On("Describe", mock.Anything, mock.Anything, mock.Anything).
		Return("an empty parking lot", nil)

	err := f.service.RunTick(context.Background(), "cam1", 1)

	assert.NoError(t, err)
	assert.Len(t, f.store.entries, 1)
	assert.Empty(t, f.publisher.events)
	assert.Empty(t, f.sender.messages)
}

func TestRunTick_ExtractionFailureSkipsPipeline(t *testing.T) {
	f := newCaptureFixture(t, triggeredAssessment(), 60)
	f.extractor.err = errors.New("connection refused")

	err := f.service.RunTick(context.Background(), "cam1", 1)

	assert.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
	f.vision.AssertNotCalled(t, "Describe", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.store.entries)
}

func TestRunTick_EmptyFrameAborts(t *testing.T) {
	f := newCaptureFixture(t, triggeredAssessment(), 60)
	f.extractor.content = nil

	err := f.service.RunTick(context.Background(), "cam1", 1)

	assert.ErrorIs(t, err, domain.ErrEmptyFrame)
	f.vision.AssertNotCalled(t, "Describe", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunTick_VisionFailurePersistsFailureRecord(t *testing.T) {
	f := newCaptureFixture(t, triggeredAssessment(), 60)
	f.vision.On("Describe", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("inference returned 502"))

	err := f.service.RunTick(context.Background(), "cam1", 7)

	assert.Error(t, err)
	assert.Empty(t, f.store.results)
	assert.Len(t, f.store.entries, 1)

	entry := f.store.entries[0]
	assert.False(t, entry.Success)
	assert.Contains(t, entry.ErrorDetail, "502")
	assert.NotEmpty(t, entry.ImageFile)
}

func TestRunTick_AlertFailureDoesNotFailTick(t *testing.T) {
	f := newCaptureFixture(t, triggeredAssessment(), 60)
	f.sender.err = errors.New("telegram returned 500")
	f.vision.On("Describe", mock.Anything, mock.Anything, mock.Anything).
		Return("a suspicious person", nil)

	err := f.service.RunTick(context.Background(), "cam1", 1)

	assert.NoError(t, err)
	assert.Len(t, f.store.entries, 1)
	assert.Len(t, f.history.saved, 1)
}

func TestRunTick_AlertsAreThrottledPerStream(t *testing.T) {
	f := newCaptureFixture(t, triggeredAssessment(), 0.001)
	f.vision.On("Describe", mock.Anything, mock.Anything, mock.Anything).
		Return("a suspicious person", nil)

	assert.NoError(t, f.service.RunTick(context.Background(), "cam1", 1))
	assert.NoError(t, f.service.RunTick(context.Background(), "cam1", 2))

	// The throttle holds back the second outbound send, but live subscribers
	// still see both events.
	assert.Len(t, f.sender.messages, 1)
	assert.Len(t, f.publisher.events, 2)
}
