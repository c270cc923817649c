package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	pagesRendered  prom.Counter
	refsResolved   *prom.CounterVec
	refsUnresolved prom.Counter
	backlinks      prom.Counter
	phaseDuration  *prom.HistogramVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on the
// given registry (a fresh one when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		pagesRendered: prom.NewCounter(prom.CounterOpts{
			Namespace: "autorefs",
			Name:      "pages_rendered_total",
			Help:      "Pages processed during the registration pass",
		}),
		refsResolved: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "autorefs",
			Name:      "refs_resolved_total",
			Help:      "Resolved cross-references by target kind",
		}, []string{"target"}),
		refsUnresolved: prom.NewCounter(prom.CounterOpts{
			Namespace: "autorefs",
			Name:      "refs_unresolved_total",
			Help:      "Unresolved non-optional cross-references",
		}),
		backlinks: prom.NewCounter(prom.CounterOpts{
			Namespace: "autorefs",
			Name:      "backlinks_recorded_total",
			Help:      "Backlinks recorded during the rewrite pass",
		}),
		phaseDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "autorefs",
			Name:      "phase_duration_seconds",
			Help:      "Duration of individual build phases",
			Buckets:   prom.DefBuckets,
		}, []string{"phase"}),
	}
	reg.MustRegister(pr.pagesRendered, pr.refsResolved, pr.refsUnresolved, pr.backlinks, pr.phaseDuration)
	return pr
}

func (pr *PrometheusRecorder) PageRendered() { pr.pagesRendered.Inc() }

func (pr *PrometheusRecorder) RefResolved(external bool) {
	target := "internal"
	if external {
		target = "external"
	}
	pr.refsResolved.WithLabelValues(target).Inc()
}

func (pr *PrometheusRecorder) RefUnresolved() { pr.refsUnresolved.Inc() }

func (pr *PrometheusRecorder) BacklinkRecorded() { pr.backlinks.Inc() }

func (pr *PrometheusRecorder) PhaseDuration(phase string, d time.Duration) {
	pr.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}
