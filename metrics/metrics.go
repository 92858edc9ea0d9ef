// Package metrics exports guard outcomes as Prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soulteary/action-guard/guard"
)

// Recorder implements guard.Recorder with Prometheus counters
type Recorder struct {
	acquired prometheus.Counter
	rejected *prometheus.CounterVec
	released *prometheus.CounterVec
}

var _ guard.Recorder = (*Recorder)(nil)

// NewRecorder creates unregistered counters
func NewRecorder() *Recorder {
	return &Recorder{
		acquired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "actionguard_acquired_total",
			Help: "Total number of operations that obtained their lock",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actionguard_rejected_total",
			Help: "Total number of operations rejected before running",
		}, []string{"reason"}),
		released: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actionguard_released_total",
			Help: "Total number of lock releases by outcome",
		}, []string{"result"}),
	}
}

// Acquired counts a successful acquisition
func (r *Recorder) Acquired() {
	r.acquired.Inc()
}

// Rejected counts a rejected operation
func (r *Recorder) Rejected(reason guard.Reason) {
	r.rejected.WithLabelValues(string(reason)).Inc()
}

// Released counts a release attempt
func (r *Recorder) Released(ok bool) {
	result := "failed"
	if ok {
		result = "ok"
	}
	r.released.WithLabelValues(result).Inc()
}

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Register registers the recorder's counters on reg. It panics on duplicate
// registration.
func Register(reg prometheus.Registerer, r *Recorder) {
	reg.MustRegister(r.acquired, r.rejected, r.released)
}

// Handler serves the metrics gathered by reg
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
