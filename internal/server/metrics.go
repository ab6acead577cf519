package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"github.com/infrahq/broker/internal"
	"github.com/infrahq/broker/internal/logging"
	"github.com/infrahq/broker/internal/server/data"
	"github.com/infrahq/broker/internal/server/models"
)

type metricValue struct {
	Value       float64
	LabelValues []string
}

// collector implements the prometheus.Collector interface
type collector struct {
	desc        *prometheus.Desc
	valueType   prometheus.ValueType
	collectFunc func() []metricValue
}

func newCollector(opts prometheus.Opts, valueType prometheus.ValueType, variableLabels []string, collectFunc func() []metricValue) *collector {
	fqname := prometheus.BuildFQName(opts.Namespace, opts.Subsystem, opts.Name)
	return &collector{
		desc:        prometheus.NewDesc(fqname, opts.Help, variableLabels, opts.ConstLabels),
		valueType:   valueType,
		collectFunc: collectFunc,
	}
}

// NewGaugeCollector creates a collect with type Gauge
func NewGaugeCollector(opts prometheus.Opts, variableLabels []string, collectFunc func() []metricValue) *collector {
	return newCollector(opts, prometheus.GaugeValue, variableLabels, collectFunc)
}

// Describe is implemented by DescribeByCollect
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

// Collect implements Collector. It create a set of constant metrics with the values and labels
// as described by collectFunc
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	for _, metricValue := range c.collectFunc() {
		ch <- prometheus.MustNewConstMetric(c.desc, c.valueType, metricValue.Value, metricValue.LabelValues...)
	}
}

// connectionTokensTotal counts the outcome of every request that issues a
// connection token or reveals its secret.
var connectionTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "broker",
	Name:      "connection_tokens_total",
	Help:      "The number of connection token operations by result",
}, []string{"result"})

const (
	resultCreated       = "created"
	resultPendingReview = "pending_review"
	resultExchanged     = "exchanged"
	resultRevealed      = "revealed"
	resultRejected      = "rejected"
	resultFailed        = "failed"
)

func countGauge(name string, count func() (int64, error)) func() []metricValue {
	return func() []metricValue {
		value, err := count()
		if err != nil {
			logging.L.Warn().Err(err).Msg(name)
			return []metricValue{}
		}
		return []metricValue{{Value: float64(value), LabelValues: []string{}}}
	}
}

func setupMetrics(db *gorm.DB, now func() time.Time) *prometheus.Registry {
	registry := prometheus.NewRegistry()

	if rawDB, err := db.DB(); err == nil {
		registry.MustRegister(collectors.NewDBStatsCollector(rawDB, db.Dialector.Name()))
	}

	registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "A metric with a constant '1' value labeled by version, commit, and date from which the broker was built",
		ConstLabels: prometheus.Labels{
			"version": internal.FullVersion(),
			"commit":  internal.Commit,
			"date":    internal.Date,
		},
	}, func() float64 { return 1 }))

	registry.MustRegister(connectionTokensTotal)

	registry.MustRegister(NewGaugeCollector(prometheus.Opts{
		Namespace: "broker",
		Name:      "active_connection_tokens",
		Help:      "The number of connection tokens that are active and not expired",
	}, []string{}, countGauge("active_connection_tokens", func() (int64, error) {
		return data.GlobalCount[models.ConnectionToken](db, data.ByUsable(now()))
	})))

	registry.MustRegister(NewGaugeCollector(prometheus.Opts{
		Namespace: "broker",
		Name:      "pending_tickets",
		Help:      "The number of review tickets waiting for a decision",
	}, []string{}, countGauge("pending_tickets", func() (int64, error) {
		return data.GlobalCount[models.Ticket](db, data.ByTicketState(models.TicketStatePending))
	})))

	return registry
}
