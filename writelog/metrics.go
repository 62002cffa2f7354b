package writelog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	appended prometheus.Counter
	dropped  prometheus.Counter
	drained  prometheus.Counter
	pending  prometheus.Gauge
	capacity prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		appended: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "writelog_entries_appended_total",
			Help: "writelog_entries_appended_total counts entries successfully pushed onto the ring.",
		}),
		dropped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "writelog_entries_dropped_total",
			Help: "writelog_entries_dropped_total counts Append calls that failed because the ring was full.",
		}),
		drained: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "writelog_entries_drained_total",
			Help: "writelog_entries_drained_total counts entries removed by DrainBatch.",
		}),
		pending: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "writelog_pending_entries",
			Help: "writelog_pending_entries is the current approximate queue depth.",
		}),
		capacity: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "writelog_capacity",
			Help: "writelog_capacity is the configured bound on the ring.",
		}),
	}
}
