// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	accessDecisionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cinegate_access_decisions_total",
		Help: "Total number of access decisions by operation, outcome, and deciding rule",
	}, []string{"op", "allowed", "reason"})
)

// RecordAccessDecision records one access decision outcome.
func RecordAccessDecision(op string, allowed bool, reason string) {
	accessDecisionTotal.WithLabelValues(
		normalizeOpLabel(op),
		strconv.FormatBool(allowed),
		normalizeReasonLabel(reason),
	).Inc()
}

func normalizeOpLabel(op string) string {
	switch v := strings.ToLower(strings.TrimSpace(op)); v {
	case "watch", "retrieve_key":
		return v
	default:
		return "unknown"
	}
}

func normalizeReasonLabel(reason string) string {
	switch v := strings.ToLower(strings.TrimSpace(reason)); v {
	case "elevated", "binding_unresolved", "draft_title", "public", "unauthenticated",
		"toggle_disabled", "global_grant", "object_grant", "genre_grant", "no_grant", "not_encrypted":
		return v
	default:
		return "unknown"
	}
}
