package httpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var webhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "admitcoach",
	Subsystem: "payments",
	Name:      "webhook_deliveries_total",
	Help:      "Webhook deliveries by outcome.",
}, []string{"result"})

var sessionDebits = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "admitcoach",
	Subsystem: "ledger",
	Name:      "session_debits_total",
	Help:      "Session completion debits by outcome.",
}, []string{"result"})

var gradingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "admitcoach",
	Subsystem: "grading",
	Name:      "requests_total",
	Help:      "Grading requests by outcome.",
}, []string{"result"})

var gradingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "admitcoach",
	Subsystem: "grading",
	Name:      "request_duration_seconds",
	Help:      "Wall time of grading calls including queueing for a slot.",
	Buckets:   prometheus.DefBuckets,
})
