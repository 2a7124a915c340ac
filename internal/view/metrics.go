package view

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// viewTransitions counts published transitions by purpose and state
	viewTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hippocampus",
		Subsystem: "view",
		Name:      "transitions_total",
		Help:      "View state transitions",
	}, []string{"purpose", "state"})

	// staleCompletions counts snapshots and fetch results dropped because
	// their subscription was no longer current
	staleCompletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hippocampus",
		Subsystem: "view",
		Name:      "stale_completions_total",
		Help:      "Completions discarded for a closed or replaced subscription",
	}, []string{"purpose", "kind"})

	malformedDocuments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hippocampus",
		Subsystem: "view",
		Name:      "malformed_documents_total",
		Help:      "Documents skipped because they failed validation",
	}, []string{"purpose"})
)
