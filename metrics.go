package pubstatic

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of one Site on a private
// registry.
type Metrics struct {
	Registry *prometheus.Registry

	builds        *prometheus.CounterVec
	buildDuration prometheus.Histogram
	pages         prometheus.Counter
	excluded      prometheus.Counter
	images        prometheus.Counter
	lastPages     prometheus.Gauge
}

// NewMetrics creates and registers the build collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pubstatic", Name: "builds_total", Help: "Builds run, by result",
		}, []string{"result"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pubstatic", Name: "build_duration_seconds", Help: "Duration of builds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		pages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pubstatic", Name: "pages_written_total", Help: "Pages written across all builds",
		}),
		excluded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pubstatic", Name: "items_excluded_total", Help: "Items dropped by preprocessors, drafts included",
		}),
		images: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pubstatic", Name: "images_generated_total", Help: "Image variants written",
		}),
		lastPages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pubstatic", Name: "last_build_pages", Help: "Pages written by the most recent build",
		}),
	}
	m.Registry.MustRegister(m.builds, m.buildDuration, m.pages, m.excluded, m.images, m.lastPages)
	m.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

func (m *Metrics) observeBuild(res *BuildResult, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.builds.WithLabelValues(result).Inc()
	m.buildDuration.Observe(res.Duration.Seconds())
	m.pages.Add(float64(res.PagesWritten))
	m.excluded.Add(float64(len(res.Excluded)))
	m.images.Add(float64(res.ImagesGenerated))
	if err == nil {
		m.lastPages.Set(float64(res.PagesWritten))
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
