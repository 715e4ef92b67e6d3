package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metrics for prediction cycles. A nil *Collector is
// valid and records nothing.
type Collector struct {
	reg *prometheus.Registry

	Cycles        *prometheus.CounterVec // result label: ok|no_data|error
	CycleDuration prometheus.Histogram

	FetchDuration *prometheus.HistogramVec // feed label
	FetchErrors   *prometheus.CounterVec   // feed label

	Dropped     *prometheus.CounterVec // reason label
	Records     prometheus.Gauge
	Predictions *prometheus.GaugeVec // status label

	FeedTimestamp prometheus.Gauge // seconds since epoch
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "busstatus_cycles_total",
			Help: "Prediction cycles run, by result.",
		}, []string{"result"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "busstatus_cycle_duration_seconds",
			Help:    "Duration of a full fetch to predict cycle.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "busstatus_fetch_duration_seconds",
			Help:    "Duration of realtime feed downloads.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"feed"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "busstatus_fetch_errors_total",
			Help: "Failed realtime feed downloads.",
		}, []string{"feed"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "busstatus_dropped_vehicles_total",
			Help: "Vehicles left out of a cycle, by reason.",
		}, []string{"reason"}),
		Records: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "busstatus_feature_records",
			Help: "Feature records built in the last cycle.",
		}),
		Predictions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "busstatus_predictions",
			Help: "Vehicles per predicted status in the last successful cycle.",
		}, []string{"status"}),
		FeedTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "busstatus_vehicle_feed_timestamp_seconds",
			Help: "Header timestamp of the last decoded vehicle positions feed.",
		}),
	}

	reg.MustRegister(
		c.Cycles, c.CycleDuration,
		c.FetchDuration, c.FetchErrors,
		c.Dropped, c.Records, c.Predictions,
		c.FeedTimestamp,
	)

	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.reg
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveFetch(feed string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.FetchDuration.WithLabelValues(feed).Observe(d.Seconds())
	if err != nil {
		c.FetchErrors.WithLabelValues(feed).Inc()
	}
}

func (c *Collector) ObserveCycle(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.Cycles.WithLabelValues(result).Inc()
	c.CycleDuration.Observe(d.Seconds())
}

func (c *Collector) AddDropped(reason string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.Dropped.WithLabelValues(reason).Add(float64(n))
}

func (c *Collector) SetFeedTimestamp(ts uint64) {
	if c == nil {
		return
	}
	c.FeedTimestamp.Set(float64(ts))
}

// Replaces the per status gauges with the counts of a cycle.
func (c *Collector) SetPredictions(records int, byStatus map[string]int) {
	if c == nil {
		return
	}
	c.Records.Set(float64(records))
	c.Predictions.Reset()
	for status, n := range byStatus {
		c.Predictions.WithLabelValues(status).Set(float64(n))
	}
}
