package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the conversion collectors on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	conversions *prometheus.CounterVec
	duration    prometheus.Histogram
	frames      prometheus.Counter
}

// NewMetrics registers the conversion collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upscale_conversions_total",
			Help: "Conversions by declared input format and outcome.",
		}, []string{"format", "outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "upscale_conversion_seconds",
			Help:    "Wall time of a conversion.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "upscale_frames_total",
			Help: "Frames written by successful conversions.",
		}),
	}
	m.registry.MustRegister(m.conversions, m.duration, m.frames)
	return m
}

// Observe records one finished conversion. outcome is "ok" or an error kind.
func (m *Metrics) Observe(format, outcome string, d time.Duration, frames int) {
	m.conversions.WithLabelValues(strings.ToLower(format), outcome).Inc()
	m.duration.Observe(d.Seconds())
	if frames > 0 {
		m.frames.Add(float64(frames))
	}
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
