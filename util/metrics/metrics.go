package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Policy update results
const (
	ResultPublished = "published"
	ResultUnchanged = "unchanged"
	ResultStale     = "stale"
	ResultError     = "error"
)

var (
	// PolicyUpdatesTotal tracks policy publications with labels for kind and result
	PolicyUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liveroute_policy_updates_total",
			Help: "Total number of policy documents received, by kind and result",
		},
		[]string{"kind", "result"},
	)

	// PolicyVersion tracks the currently published version of each policy kind
	PolicyVersion = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "liveroute_policy_version",
			Help: "Version of the currently published policy, by kind",
		},
		[]string{"kind"},
	)

	// RouteDecisionsTotal tracks routing decisions with labels for service, matched and outcome
	RouteDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liveroute_route_decisions_total",
			Help: "Total number of routing decisions",
		},
		[]string{"service", "matched", "outcome"},
	)

	// AdmissionRejectionsTotal tracks calls refused because an endpoint was at its active limit
	AdmissionRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liveroute_admission_rejections_total",
			Help: "Total number of calls rejected by the active request limit",
		},
		[]string{"service", "endpoint"},
	)

	// CallDuration tracks the duration of recorded calls in seconds
	CallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "liveroute_call_duration",
			Help:    "Duration of recorded outbound calls in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 1, 10},
		},
		[]string{"service", "status"},
	)
)

// RecordPolicyUpdate increments the policy update counter for a given kind and result
func RecordPolicyUpdate(kind, result string) {
	PolicyUpdatesTotal.WithLabelValues(kind, result).Inc()
}

// SetPolicyVersion sets the published version for a given kind
func SetPolicyVersion(kind string, version int64) {
	PolicyVersion.WithLabelValues(kind).Set(float64(version))
}

// RecordRouteDecision increments the decision counter. Outcome is "selected" when an
// endpoint was chosen and "empty" otherwise.
func RecordRouteDecision(service string, matched, selected bool) {
	outcome := "empty"
	if selected {
		outcome = "selected"
	}
	RouteDecisionsTotal.WithLabelValues(service, strconv.FormatBool(matched), outcome).Inc()
}

// RecordAdmissionRejection increments the rejection counter for a given service and endpoint
func RecordAdmissionRejection(service, endpoint string) {
	AdmissionRejectionsTotal.WithLabelValues(service, endpoint).Inc()
}

// RecordCallDuration records the duration of a call in seconds
func RecordCallDuration(service, status string, durationSeconds float64) {
	CallDuration.WithLabelValues(service, status).Observe(durationSeconds)
}
