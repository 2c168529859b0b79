// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transcodeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cinegate_transcode_runs_total",
		Help: "Total transcoder invocations by result and exit code",
	}, []string{"result", "exit_code"})

	transcodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cinegate_transcode_duration_seconds",
		Help:    "Wall time of transcoder invocations",
		Buckets: prometheus.ExponentialBuckets(1, 2, 16), // 1s to ~9h
	})

	publishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cinegate_publish_runs_total",
		Help: "Total publication pipeline attempts by result",
	}, []string{"result"})

	publishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cinegate_publish_duration_seconds",
		Help:    "Duration of publication pipeline attempts",
		Buckets: prometheus.ExponentialBuckets(1, 2, 16),
	}, []string{"result"})

	storeUploadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cinegate_store_uploads_total",
		Help: "Total artifacts uploaded to the content store by kind",
	}, []string{"kind"})

	storePurgeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cinegate_store_purge_failures_total",
		Help: "Total best-effort prefix purges that failed",
	})

	jobExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cinegate_job_retries_exhausted_total",
		Help: "Total background jobs that failed after their final attempt",
	}, []string{"task"})
)

// RecordTranscode records one transcoder invocation.
func RecordTranscode(result string, exitCode int, elapsed time.Duration) {
	transcodeTotal.WithLabelValues(result, strconv.Itoa(exitCode)).Inc()
	transcodeDuration.Observe(elapsed.Seconds())
}

// RecordPublish records one pipeline attempt.
func RecordPublish(result string, elapsed time.Duration) {
	publishTotal.WithLabelValues(result).Inc()
	publishDuration.WithLabelValues(result).Observe(elapsed.Seconds())
}

// RecordUpload records one uploaded artifact of kind (segment, audio_playlist,
// variant_playlist, master_playlist, key).
func RecordUpload(kind string) {
	storeUploadTotal.WithLabelValues(kind).Inc()
}

// RecordPurgeFailure records a failed best-effort purge.
func RecordPurgeFailure() {
	storePurgeFailures.Inc()
}

// RecordJobExhausted records a job that used its whole retry budget.
func RecordJobExhausted(task string) {
	jobExhaustedTotal.WithLabelValues(task).Inc()
}
