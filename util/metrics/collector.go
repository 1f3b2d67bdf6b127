package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xiaonanln/liveroute/stats"
)

var counterLabels = []string{"service", "endpoint", "key"}

// CounterCollector exports the live counters of a stats.Registry as const metrics.
// Counters are read at scrape time, so nothing is duplicated in the prometheus registry.
type CounterCollector struct {
	reg *stats.Registry

	active           *prometheus.Desc
	requests         *prometheus.Desc
	failures         *prometheus.Desc
	elapsed          *prometheus.Desc
	maxElapsed       *prometheus.Desc
	estimateResponse *prometheus.Desc
}

// NewCounterCollector creates a collector for reg.
func NewCounterCollector(reg *stats.Registry) *CounterCollector {
	return &CounterCollector{
		reg: reg,
		active: prometheus.NewDesc("liveroute_endpoint_active_requests",
			"In-flight requests per endpoint and request key", counterLabels, nil),
		requests: prometheus.NewDesc("liveroute_endpoint_requests_total",
			"Completed requests per endpoint and request key", counterLabels, nil),
		failures: prometheus.NewDesc("liveroute_endpoint_failures_total",
			"Failed requests per endpoint and request key", counterLabels, nil),
		elapsed: prometheus.NewDesc("liveroute_endpoint_elapsed_milliseconds_total",
			"Accumulated elapsed time in milliseconds", counterLabels, nil),
		maxElapsed: prometheus.NewDesc("liveroute_endpoint_max_elapsed_milliseconds",
			"Largest observed elapsed time in milliseconds", counterLabels, nil),
		estimateResponse: prometheus.NewDesc("liveroute_endpoint_estimate_response_milliseconds",
			"Estimated response time used for endpoint selection", counterLabels, nil),
	}
}

// Describe implements prometheus.Collector
func (cc *CounterCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- cc.active
	ch <- cc.requests
	ch <- cc.failures
	ch <- cc.elapsed
	ch <- cc.maxElapsed
	ch <- cc.estimateResponse
}

// Collect implements prometheus.Collector
func (cc *CounterCollector) Collect(ch chan<- prometheus.Metric) {
	cc.reg.Range(func(sc *stats.ServiceCounter) bool {
		sc.Range(func(ep *stats.EndpointCounter) bool {
			ep.Range(func(key string, c *stats.Counter) bool {
				labels := []string{sc.Name(), ep.ID(), key}
				ch <- prometheus.MustNewConstMetric(cc.active, prometheus.GaugeValue, float64(c.Active()), labels...)
				ch <- prometheus.MustNewConstMetric(cc.requests, prometheus.CounterValue, float64(c.Total()), labels...)
				ch <- prometheus.MustNewConstMetric(cc.failures, prometheus.CounterValue, float64(c.Failed()), labels...)
				ch <- prometheus.MustNewConstMetric(cc.elapsed, prometheus.CounterValue, float64(c.TotalElapsed()), labels...)
				ch <- prometheus.MustNewConstMetric(cc.maxElapsed, prometheus.GaugeValue, float64(c.MaxElapsed()), labels...)
				ch <- prometheus.MustNewConstMetric(cc.estimateResponse, prometheus.GaugeValue,
					float64(c.GetSnapshot().EstimateResponse()), labels...)
				return true
			})
			return true
		})
		return true
	})
}
