package coordinator

import "github.com/prometheus/client_golang/prometheus"

var (
	txnFinishCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinyrep",
			Subsystem: "coordinator",
			Name:      "txn_finished_total",
			Help:      "Counter of finished transactions.",
		}, []string{"result"})

	deadlockVictimCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tinyrep",
			Subsystem: "coordinator",
			Name:      "deadlock_victim_total",
			Help:      "Counter of transactions aborted to break a deadlock.",
		})

	siteEventCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinyrep",
			Subsystem: "site",
			Name:      "event_total",
			Help:      "Counter of site failures and recoveries.",
		}, []string{"event"})

	opCompletedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinyrep",
			Subsystem: "coordinator",
			Name:      "op_completed_total",
			Help:      "Counter of completed operations.",
		}, []string{"kind"})

	pendingOpsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tinyrep",
			Subsystem: "coordinator",
			Name:      "pending_ops",
			Help:      "Number of operations waiting to be executed.",
		})
)

func init() {
	prometheus.MustRegister(txnFinishCounter)
	prometheus.MustRegister(deadlockVictimCounter)
	prometheus.MustRegister(siteEventCounter)
	prometheus.MustRegister(opCompletedCounter)
	prometheus.MustRegister(pendingOpsGauge)
}
