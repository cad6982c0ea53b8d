package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the per-camera counters exported on /metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	framesProcessed *prometheus.CounterVec
	samplesTaken    *prometheus.CounterVec
	saveErrors      *prometheus.CounterVec
	persons         *prometheus.GaugeVec
	running         *prometheus.GaugeVec
	viewers         prometheus.GaugeFunc
}

// New creates a Metrics instance with its own registry. viewers reports the
// number of connected live-view clients.
func New(viewers func() float64) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camsampler_frames_processed_total",
			Help: "Frames delivered to the camera pipeline",
		}, []string{"camera"}),
		samplesTaken: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camsampler_samples_total",
			Help: "Frames persisted as samples, by reason",
		}, []string{"camera", "reason"}),
		saveErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "camsampler_save_errors_total",
			Help: "Samples that could not be written",
		}, []string{"camera"}),
		persons: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "camsampler_persons",
			Help: "Persons detected in the latest frame",
		}, []string{"camera"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "camsampler_pipeline_running",
			Help: "1 while the camera pipeline is running",
		}, []string{"camera"}),
	}

	if viewers == nil {
		viewers = func() float64 { return 0 }
	}
	m.viewers = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "camsampler_live_viewers",
		Help: "Connected live-view clients",
	}, viewers)

	m.registry.MustRegister(m.framesProcessed, m.samplesTaken, m.saveErrors, m.persons, m.running, m.viewers)
	return m
}

// FrameProcessed records one delivered frame and its person count.
func (m *Metrics) FrameProcessed(camera string, persons int) {
	if m == nil {
		return
	}
	m.framesProcessed.WithLabelValues(camera).Inc()
	m.persons.WithLabelValues(camera).Set(float64(persons))
}

// SampleTaken records a persisted sample.
func (m *Metrics) SampleTaken(camera, reason string) {
	if m == nil {
		return
	}
	m.samplesTaken.WithLabelValues(camera, reason).Inc()
}

// SaveFailed records a sample that could not be written.
func (m *Metrics) SaveFailed(camera string) {
	if m == nil {
		return
	}
	m.saveErrors.WithLabelValues(camera).Inc()
}

// SetRunning flags the camera pipeline as running or stopped.
func (m *Metrics) SetRunning(camera string, running bool) {
	if m == nil {
		return
	}
	v := 0.0
	if running {
		v = 1
	}
	m.running.WithLabelValues(camera).Set(v)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
