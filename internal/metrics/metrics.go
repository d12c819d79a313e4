package metrics

import (
	"sync"
	"time"

	"price-notifications/internal/database"
	"price-notifications/internal/types"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"
)

const (
	namespace = "price_notifications"
	subsystem = "listener"
)

// Metrics are the collectors updated by the poll loop.
type Metrics struct {
	Registry *prometheus.Registry

	Ticks          prometheus.Counter
	TickFailures   prometheus.Counter
	SkippedAssets  *prometheus.CounterVec
	Alerts         *prometheus.CounterVec
	MessagesSent   prometheus.Counter
	MessagesFailed prometheus.Counter
	LastTick       prometheus.Gauge
	TrackedAssets  prometheus.Gauge

	Mutex sync.Mutex
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ticks",
			Help:      "The total number of poll ticks",
		}),
		TickFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tick_failures",
			Help:      "The total number of ticks aborted because the price source was unavailable",
		}),
		SkippedAssets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "skipped_assets",
				Help:      "Assets the price source could not resolve",
			},
			[]string{"asset"},
		),
		Alerts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "alerts",
				Help:      "Threshold crossings per asset and direction",
			},
			[]string{"asset", "direction"},
		),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_sent",
			Help:      "The total number of delivered alert messages",
		}),
		MessagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_failed",
			Help:      "The total number of alert messages the transport rejected",
		}),
		LastTick: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "last_tick_timestamp_seconds",
			Help:      "Unix time of the last completed tick",
		}),
		TrackedAssets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tracked_assets",
			Help:      "The number of assets in the watchlist",
		}),
	}

	m.Registry.MustRegister(
		m.Ticks,
		m.TickFailures,
		m.SkippedAssets,
		m.Alerts,
		m.MessagesSent,
		m.MessagesFailed,
		m.LastTick,
		m.TrackedAssets,
	)
	return m
}

// ObserveTick records the outcome of one tick. A nil receiver is a no-op.
func (m *Metrics) ObserveTick(at time.Time, failed bool, skipped []string, outcomes []types.Outcome) {
	if m == nil {
		return
	}

	m.Ticks.Inc()
	if failed {
		m.TickFailures.Inc()
	}
	for _, id := range skipped {
		m.SkippedAssets.WithLabelValues(id).Inc()
	}
	for _, o := range outcomes {
		m.Alerts.WithLabelValues(o.Event.AssetID, string(o.Event.Direction)).Inc()
		if o.Err != nil {
			m.MessagesFailed.Inc()
		} else {
			m.MessagesSent.Inc()
		}
	}
	m.LastTick.Set(float64(at.Unix()))
}

// LoadFromDB restores counters saved by a previous run.
func (m *Metrics) LoadFromDB() {
	m.Mutex.Lock()
	defer m.Mutex.Unlock()

	for name, c := range m.counters() {
		v, err := database.GetMetric(name)
		if err != nil {
			log.Errorf("Failed to load metric %s: %v", name, err)
			continue
		}
		c.Add(v)
	}

	loadLabeledMetrics("skipped_assets", func(labelKey, labelValue string, value float64) {
		if labelKey == "asset" {
			m.SkippedAssets.WithLabelValues(labelValue).Add(value)
		}
	})
	loadLabeledMetrics("alerts", func(asset, direction string, value float64) {
		m.Alerts.WithLabelValues(asset, direction).Add(value)
	})

	log.Debug("Metrics loaded from database.")
}

func loadLabeledMetrics(metricName string, callback func(labelKey, labelValue string, value float64)) {
	metricsWithLabels, err := database.GetMetricsWithLabels(metricName)
	if err != nil {
		log.Errorf("Failed to load metric %s: %v", metricName, err)
		return
	}
	for labelKey, labelValues := range metricsWithLabels {
		for labelValue, value := range labelValues {
			callback(labelKey, labelValue, value)
		}
	}
}

// SaveToDB snapshots the counters so they survive a restart.
func (m *Metrics) SaveToDB() {
	m.Mutex.Lock()
	defer m.Mutex.Unlock()

	for name, c := range m.counters() {
		if err := database.SaveMetric(name, "", "", GetMetricValue(c)); err != nil {
			log.Errorf("Failed to save metric %s: %v", name, err)
		}
	}

	saveLabeledMetrics("skipped_assets", m.SkippedAssets, func(labels map[string]string) (string, string) {
		return "asset", labels["asset"]
	})
	saveLabeledMetrics("alerts", m.Alerts, func(labels map[string]string) (string, string) {
		return labels["asset"], labels["direction"]
	})

	log.Debug("Metrics saved to database.")
}

func (m *Metrics) counters() map[string]prometheus.Counter {
	return map[string]prometheus.Counter{
		"ticks":           m.Ticks,
		"tick_failures":   m.TickFailures,
		"messages_sent":   m.MessagesSent,
		"messages_failed": m.MessagesFailed,
	}
}

func saveLabeledMetrics(metricName string, vec *prometheus.CounterVec, key func(labels map[string]string) (string, string)) {
	metricChan := make(chan prometheus.Metric)
	go func() {
		vec.Collect(metricChan)
		close(metricChan)
	}()

	for metric := range metricChan {
		metricProto := &dto.Metric{}
		if err := metric.Write(metricProto); err != nil {
			log.Errorf("Failed to read %s metric: %v", metricName, err)
			continue
		}
		labels := make(map[string]string, len(metricProto.GetLabel()))
		for _, label := range metricProto.GetLabel() {
			labels[label.GetName()] = label.GetValue()
		}
		labelKey, labelValue := key(labels)
		if err := database.SaveMetric(metricName, labelKey, labelValue, metricProto.GetCounter().GetValue()); err != nil {
			log.Errorf("Failed to save metric %s: %v", metricName, err)
		}
	}
}

// GetMetricValue reads the current value of a single counter or gauge.
func GetMetricValue(metric prometheus.Collector) float64 {
	metricChan := make(chan prometheus.Metric, 1)
	metric.Collect(metricChan)
	close(metricChan)

	m, ok := <-metricChan
	if !ok {
		return 0
	}
	metricProto := &dto.Metric{}
	if err := m.Write(metricProto); err != nil {
		log.Errorf("Failed to read metric value: %v", err)
		return 0
	}

	if metricProto.Counter != nil {
		return metricProto.Counter.GetValue()
	} else if metricProto.Gauge != nil {
		return metricProto.Gauge.GetValue()
	}
	return 0
}
