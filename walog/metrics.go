package walog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	recordsAppended prometheus.Counter
	bytesAppended   prometheus.Counter
	fsyncs          prometheus.Counter
	replayRecords   prometheus.Counter
	replayCorrupt   prometheus.Counter
	transactions    *prometheus.CounterVec
	truncations     prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		recordsAppended: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "wal_records_appended_total",
			Help: "wal_records_appended_total counts records written to the log file.",
		}),
		bytesAppended: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "wal_bytes_appended_total",
			Help: "wal_bytes_appended_total counts encoded bytes written, including framing.",
		}),
		fsyncs: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "wal_fsyncs_total",
			Help: "wal_fsyncs_total counts calls to Sync on the log file.",
		}),
		replayRecords: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "wal_replay_records_total",
			Help: "wal_replay_records_total counts records successfully replayed on Open.",
		}),
		replayCorrupt: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "wal_replay_corrupt_total",
			Help: "wal_replay_corrupt_total counts replays stopped early by a checksum mismatch; a torn tail is not counted.",
		}),
		transactions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "wal_transactions_total",
			Help: "wal_transactions_total counts completed transactions by outcome.",
		}, []string{"outcome"}),
		truncations: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "wal_truncations_total",
			Help: "wal_truncations_total counts checkpoint truncations performed after a successful flush.",
		}),
	}
}
