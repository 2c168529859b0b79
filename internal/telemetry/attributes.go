// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by all spans.
const (
	VideoIDKey = "video.id"
	BuildIDKey = "video.build_id"

	PipelineStepKey = "pipeline.step"

	TranscodeRenditionsKey   = "transcode.renditions"
	TranscodeAudioSourcesKey = "transcode.audio_sources"
	TranscodeDurationKey     = "transcode.source_duration_s"
	TranscodeExitCodeKey     = "transcode.exit_code"

	StorePrefixKey    = "store.prefix"
	StoreArtifactsKey = "store.artifacts"

	JobTypeKey    = "job.type"
	JobAttemptKey = "job.attempt"
	JobStatusKey  = "job.status"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// PublishAttributes identify one pipeline run.
func PublishAttributes(videoID int64, buildID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(VideoIDKey, videoID),
		attribute.String(BuildIDKey, buildID),
	}
}

// StepAttributes name a pipeline step span.
func StepAttributes(step string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(PipelineStepKey, step)}
}

// TranscodeAttributes describe a transcoder invocation.
func TranscodeAttributes(renditions, audioSources int, sourceDuration float64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(TranscodeRenditionsKey, renditions),
		attribute.Int(TranscodeAudioSourcesKey, audioSources),
		attribute.Float64(TranscodeDurationKey, sourceDuration),
	}
}

// StoreAttributes describe a batch of content store writes.
func StoreAttributes(prefix string, artifacts int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(StorePrefixKey, prefix),
		attribute.Int(StoreArtifactsKey, artifacts),
	}
}

// JobAttributes describe a background task attempt.
func JobAttributes(jobType, status string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobTypeKey, jobType),
		attribute.String(JobStatusKey, status),
		attribute.Int(JobAttemptKey, attempt),
	}
}

// ErrorAttributes mark a span as failed with a coarse error class.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
