package subscription

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// activeSubscriptions is the number of open handles per purpose
	activeSubscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "hippocampus",
		Subsystem: "subscription",
		Name:      "active",
		Help:      "Open query subscriptions",
	}, []string{"purpose"})

	subscriptionOpens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hippocampus",
		Subsystem: "subscription",
		Name:      "opens_total",
		Help:      "Query subscriptions opened",
	}, []string{"purpose"})

	subscriptionCloses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hippocampus",
		Subsystem: "subscription",
		Name:      "closes_total",
		Help:      "Query subscriptions closed",
	}, []string{"purpose"})

	// snapshotsDelivered counts snapshots handed to consumers
	snapshotsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hippocampus",
		Subsystem: "subscription",
		Name:      "snapshots_total",
		Help:      "Snapshots delivered to consumers",
	}, []string{"purpose"})
)
