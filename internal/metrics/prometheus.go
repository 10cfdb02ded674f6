// Package metrics exposes rule management counters in Prometheus form.
// A CLI run is short-lived, so metrics are written to a node_exporter
// textfile rather than served.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all rule management metrics.
type Registry struct {
	reg *prometheus.Registry

	// Rule operations
	Operations         *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec
	RuleChanges        *prometheus.CounterVec
	CollectionSize     *prometheus.GaugeVec

	// Upstream
	UpstreamLatency *prometheus.HistogramVec
	UpstreamErrors  *prometheus.CounterVec

	// Reachability
	ReachabilityRuns *prometheus.CounterVec
}

// NewRegistry creates a registry with its own Prometheus collector set.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	r := &Registry{reg: reg}

	r.Operations = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "policyctl_rule_operations_total",
		Help: "Rule management operations by outcome",
	}, []string{"operation", "owner_kind", "outcome"})

	r.ValidationFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "policyctl_validation_failures_total",
		Help: "Rejected candidate rules by failure kind",
	}, []string{"kind"})

	r.RuleChanges = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "policyctl_rule_changes_total",
		Help: "Rules added or removed according to the post-replace diff",
	}, []string{"owner_kind", "change"})

	r.CollectionSize = factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "policyctl_collection_rules",
		Help: "Number of rules in an owner's collection after the last replace",
	}, []string{"owner_kind", "owner"})

	r.UpstreamLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "policyctl_upstream_request_duration_seconds",
		Help:    "Store call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"call", "owner_kind"})

	r.UpstreamErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "policyctl_upstream_errors_total",
		Help: "Failed store calls by error kind",
	}, []string{"call", "kind"})

	r.ReachabilityRuns = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "policyctl_reachability_runs_total",
		Help: "Quick test runs by whether the result matched the expectation",
	}, []string{"passed"})

	return r
}

// RecordOperation records the outcome of a manager operation.
func (r *Registry) RecordOperation(op, ownerKind string, err error) {
	if r == nil {
		return
	}
	r.Operations.WithLabelValues(op, ownerKind, outcome(err)).Inc()
}

// RecordValidationFailure counts a rejected rule.
func (r *Registry) RecordValidationFailure(kind string) {
	if r == nil {
		return
	}
	r.ValidationFailures.WithLabelValues(kind).Inc()
}

// RecordChanges records the diff of one replace.
func (r *Registry) RecordChanges(ownerKind, owner string, added, removed, size int) {
	if r == nil {
		return
	}
	r.RuleChanges.WithLabelValues(ownerKind, "added").Add(float64(added))
	r.RuleChanges.WithLabelValues(ownerKind, "removed").Add(float64(removed))
	r.CollectionSize.WithLabelValues(ownerKind, owner).Set(float64(size))
}

// ObserveUpstream records a store call. kind is empty on success.
func (r *Registry) ObserveUpstream(call, ownerKind string, start time.Time, kind string) {
	if r == nil {
		return
	}
	r.UpstreamLatency.WithLabelValues(call, ownerKind).Observe(time.Since(start).Seconds())
	if kind != "" {
		r.UpstreamErrors.WithLabelValues(call, kind).Inc()
	}
}

// RecordReachabilityRun counts a quick test run.
func (r *Registry) RecordReachabilityRun(passed bool) {
	if r == nil {
		return
	}
	r.ReachabilityRuns.WithLabelValues(fmt.Sprintf("%t", passed)).Inc()
}

// WriteTextfile writes every metric in the text exposition format to path,
// atomically, for the node_exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
