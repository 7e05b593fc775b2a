package native

import "github.com/prometheus/client_golang/prometheus"

var (
	acceptedTxs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neoki",
		Subsystem: "execution",
		Name:      "accepted_total",
		Help:      "total number of accepted transactions per contract",
	}, []string{"contract"})

	rejectedTxs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "neoki",
		Subsystem: "execution",
		Name:      "rejected_total",
		Help:      "total number of rejected transactions per contract",
	}, []string{"contract"})
)

func init() {
	prometheus.MustRegister(acceptedTxs, rejectedTxs)
}
