// Package metrics records the session core's policy redirects and best-effort
// tracker calls as Prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is used by the transport guard and the activity tracker.
type Recorder interface {
	RecordForcedNavigation(target string)
	RecordTrackerCall(op string, err error)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	forcedNavigations *prometheus.CounterVec
	trackerCalls      *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		forcedNavigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_forced_navigations_total",
			Help: "Forced navigations triggered by policy responses, by target page.",
		}, []string{"target"}),
		trackerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_tracker_calls_total",
			Help: "Live session calls made by the activity tracker, by operation and result.",
		}, []string{"op", "result"}),
	}

	reg.MustRegister(c.forcedNavigations, c.trackerCalls)
	return c
}

func (c *Collector) RecordForcedNavigation(target string) {
	c.forcedNavigations.WithLabelValues(target).Inc()
}

func (c *Collector) RecordTrackerCall(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.trackerCalls.WithLabelValues(op, result).Inc()
}

// Nop discards everything.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordForcedNavigation(string) {}
func (Nop) RecordTrackerCall(string, error) {}

// Handler serves the registry for scraping.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
