package monitoring

import (
	"strconv"
	"time"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements ports.MetricsRecorder. It registers against
// the supplied registerer so tests can use isolated registries.
type PrometheusCollector struct {
	ticksTotal        *prometheus.CounterVec
	ticksDroppedTotal *prometheus.CounterVec
	tickDuration      prometheus.Histogram

	captureFailuresTotal *prometheus.CounterVec
	classificationsTotal *prometheus.CounterVec
	assessmentsTotal     *prometheus.CounterVec
	alertsTotal          *prometheus.CounterVec

	retentionDeletionsTotal *prometheus.CounterVec
	activeSessions          prometheus.Gauge
}

func NewPrometheusCollector(registerer prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(registerer)

	return &PrometheusCollector{
		ticksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aerial_ticks_total",
			Help: "Total number of capture ticks started",
		}, []string{"stream_key"}),

		ticksDroppedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aerial_ticks_dropped_total",
			Help: "Total number of ticks dropped because the previous run was still in flight",
		}, []string{"stream_key"}),

		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "aerial_tick_duration_seconds",
			Help:    "Duration of complete capture pipeline runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),

		captureFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aerial_capture_failures_total",
			Help: "Total number of frame capture failures by stage",
		}, []string{"stage"}),

		classificationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aerial_classifications_total",
			Help: "Total number of vision classifications by outcome",
		}, []string{"success"}),

		assessmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aerial_assessments_total",
			Help: "Total number of threat assessments by level",
		}, []string{"level"}),

		alertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aerial_alerts_total",
			Help: "Total number of alert deliveries by outcome",
		}, []string{"delivered"}),

		retentionDeletionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aerial_retention_deletions_total",
			Help: "Total number of files deleted by the retention sweep",
		}, []string{"dir"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "aerial_active_sessions",
			Help: "Number of currently active stream sessions",
		}),
	}
}

func (p *PrometheusCollector) RecordTick(streamKey domain.StreamKey) {
	p.ticksTotal.WithLabelValues(string(streamKey)).Inc()
}

func (p *PrometheusCollector) RecordTickDropped(streamKey domain.StreamKey) {
	p.ticksDroppedTotal.WithLabelValues(string(streamKey)).Inc()
}

func (p *PrometheusCollector) ObserveTickDuration(d time.Duration) {
	p.tickDuration.Observe(d.Seconds())
}

func (p *PrometheusCollector) RecordCaptureFailure(stage string) {
	p.captureFailuresTotal.WithLabelValues(stage).Inc()
}

func (p *PrometheusCollector) RecordClassification(success bool) {
	p.classificationsTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func (p *PrometheusCollector) RecordAssessment(level domain.ThreatLevel) {
	p.assessmentsTotal.WithLabelValues(string(level)).Inc()
}

func (p *PrometheusCollector) RecordAlert(delivered bool) {
	p.alertsTotal.WithLabelValues(strconv.FormatBool(delivered)).Inc()
}

func (p *PrometheusCollector) RecordRetentionDeletions(dir string, count int) {
	p.retentionDeletionsTotal.WithLabelValues(dir).Add(float64(count))
}

func (p *PrometheusCollector) SetActiveSessions(count int) {
	p.activeSessions.Set(float64(count))
}
