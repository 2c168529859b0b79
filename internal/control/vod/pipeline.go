package vod

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/cinegate/internal/domain/media"
	"github.com/ManuGH/cinegate/internal/encryption"
	"github.com/ManuGH/cinegate/internal/infra/objectstore"
	"github.com/ManuGH/cinegate/internal/library"
	xglog "github.com/ManuGH/cinegate/internal/log"
	"github.com/ManuGH/cinegate/internal/metrics"
	"github.com/ManuGH/cinegate/internal/pipeline/exec/ffmpeg"
	"github.com/ManuGH/cinegate/internal/pipeline/profiles"
	"github.com/ManuGH/cinegate/internal/telemetry"
)

const defaultUploadConcurrency = 8

var tracer = telemetry.Tracer("cinegate/vod")

// Config tunes a Pipeline.
type Config struct {
	// ScratchDir is the parent of per-run working directories. Empty means
	// the system temp dir.
	ScratchDir string
	// Renditions defaults to profiles.Ladder.
	Renditions []profiles.Rendition
	// UploadConcurrency bounds parallel artifact uploads.
	UploadConcurrency int
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the wall clock used for build identifiers.
func WithClock(c Clock) Option { return func(p *Pipeline) { p.clock = c } }

// WithFS replaces the scratch filesystem.
func WithFS(fs FS) Option { return func(p *Pipeline) { p.fs = fs } }

// WithConfig sets scratch location, ladder and upload fan-out.
func WithConfig(cfg Config) Option { return func(p *Pipeline) { p.cfg = cfg } }

// WithKeySource replaces the key material generator.
func WithKeySource(fn func() (encryption.KeyMaterial, error)) Option {
	return func(p *Pipeline) { p.newKey = fn }
}

// Pipeline publishes one video per Run call. It holds no per-run state and
// is safe for concurrent use on different videos.
type Pipeline struct {
	catalog  Catalog
	store    ContentStore
	prober   Prober
	executor Executor
	clock    Clock
	fs       FS
	cfg      Config
	newKey   func() (encryption.KeyMaterial, error)
}

// NewPipeline wires the pipeline collaborators.
func NewPipeline(catalog Catalog, store ContentStore, prober Prober, executor Executor, opts ...Option) *Pipeline {
	if catalog == nil {
		panic("invariant violation: catalog is nil in NewPipeline")
	}
	if store == nil {
		panic("invariant violation: content store is nil in NewPipeline")
	}
	if prober == nil {
		panic("invariant violation: prober is nil in NewPipeline")
	}
	if executor == nil {
		panic("invariant violation: executor is nil in NewPipeline")
	}
	p := &Pipeline{
		catalog:  catalog,
		store:    store,
		prober:   prober,
		executor: executor,
		clock:    RealClock{},
		fs:       RealFS{},
		newKey:   encryption.GenerateKeyMaterial,
	}
	for _, opt := range opts {
		opt(p)
	}
	if len(p.cfg.Renditions) == 0 {
		p.cfg.Renditions = profiles.Ladder
	}
	if p.cfg.UploadConcurrency <= 0 {
		p.cfg.UploadConcurrency = defaultUploadConcurrency
	}
	return p
}

// Result summarizes a successful run.
type Result struct {
	BuildID     string
	Prefix      string
	MasterKey   string
	Renditions  int
	AudioTracks int
	Uploaded    int
}

// run carries the state of one attempt.
type run struct {
	videoID int64
	baseURL string
	buildID string
	prefix  string
	dir     string
	logger  zerolog.Logger
}

// Run performs one publication attempt for videoID. Any failure after the
// video entered processing marks it failed before the error is returned,
// so the caller can retry the attempt as a whole.
func (p *Pipeline) Run(ctx context.Context, videoID int64, baseURL string) (Result, error) {
	start := p.clock.Now()
	buildID := BuildID(start)

	ctx = xglog.ContextWithVideoID(ctx, videoID)
	logger := xglog.WithComponentFromContext(ctx, "publish").With().
		Str(xglog.FieldBuildID, buildID).
		Logger()

	ctx, span := tracer.Start(ctx, "publish.run", trace.WithAttributes(telemetry.PublishAttributes(videoID, buildID)...))
	defer span.End()

	from, err := p.catalog.TransitionStatus(ctx, videoID, media.StatusProcessing)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark processing")
		metrics.RecordPublish("error", p.clock.Now().Sub(start))
		return Result{}, fmt.Errorf("mark processing: %w", err)
	}
	logger.Info().
		Str(xglog.FieldEvent, "publish.start").
		Str(xglog.FieldOldState, string(from)).
		Str(xglog.FieldNewState, string(media.StatusProcessing)).
		Msg("publication started")

	r := &run{
		videoID: videoID,
		baseURL: baseURL,
		buildID: buildID,
		prefix:  BuildPrefix(videoID, buildID),
		logger:  logger,
	}

	res, err := p.publish(ctx, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		span.SetAttributes(telemetry.ErrorAttributes(errorClass(err))...)
		p.markFailed(ctx, r, err)
		metrics.RecordPublish("failed", p.clock.Now().Sub(start))
		return Result{}, err
	}

	elapsed := p.clock.Now().Sub(start)
	metrics.RecordPublish("completed", elapsed)
	logger.Info().
		Str(xglog.FieldEvent, "publish.completed").
		Str(xglog.FieldOldState, string(media.StatusProcessing)).
		Str(xglog.FieldNewState, string(media.StatusCompleted)).
		Str(xglog.FieldPrefix, res.Prefix).
		Int("renditions", res.Renditions).
		Int("audio_tracks", res.AudioTracks).
		Int("uploaded", res.Uploaded).
		Dur("elapsed", elapsed).
		Msg("publication completed")
	return res, nil
}

// markFailed is best effort: the video row may itself be gone.
func (p *Pipeline) markFailed(ctx context.Context, r *run, cause error) {
	ctx = context.WithoutCancel(ctx)
	if _, err := p.catalog.TransitionStatus(ctx, r.videoID, media.StatusFailed); err != nil {
		r.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "publish.mark_failed_error").
			Msg("could not mark video failed")
	}
	r.logger.Error().Err(cause).
		Str(xglog.FieldEvent, "publish.failed").
		Str(xglog.FieldOldState, string(media.StatusProcessing)).
		Str(xglog.FieldNewState, string(media.StatusFailed)).
		Msg("publication failed")
}

func (p *Pipeline) publish(ctx context.Context, r *run) (Result, error) {
	p.purge(ctx, r)

	dir, err := p.fs.MkdirTemp(p.cfg.ScratchDir, "cinegate-"+strconv.FormatInt(r.videoID, 10)+"-")
	if err != nil {
		return Result{}, fmt.Errorf("create scratch dir: %w", err)
	}
	r.dir = dir
	defer func() {
		if err := p.fs.RemoveAll(dir); err != nil {
			r.logger.Warn().Err(err).Str(xglog.FieldPath, dir).Msg("scratch cleanup failed")
		}
	}()
	for _, sub := range []string{"src", "out", "key"} {
		if err := p.fs.MkdirAll(filepath.Join(dir, sub), 0o700); err != nil {
			return Result{}, fmt.Errorf("create scratch dir: %w", err)
		}
	}

	video, err := p.catalog.GetVideo(ctx, r.videoID)
	if err != nil {
		return Result{}, err
	}

	var sourcePath string
	var probe ffmpeg.ProbeResult
	err = p.step(ctx, "download_source", func(ctx context.Context) error {
		sourcePath = filepath.Join(dir, "src", "source"+path.Ext(video.SourceKey))
		if err := p.store.DownloadTo(ctx, video.SourceKey, sourcePath); err != nil {
			return &StoreError{Op: "download", Key: video.SourceKey, Err: err}
		}
		res, err := p.prober.Probe(ctx, sourcePath)
		if err != nil {
			return fmt.Errorf("probe source: %w", err)
		}
		probe = res
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	km, err := p.newKey()
	if err != nil {
		return Result{}, fmt.Errorf("key material: %w", err)
	}
	keyURL, err := encryption.KeyURL(r.baseURL, r.videoID)
	if err != nil {
		return Result{}, err
	}
	keyFiles, err := encryption.WriteFiles(filepath.Join(dir, "key"), km, keyURL)
	if err != nil {
		return Result{}, fmt.Errorf("write key files: %w", err)
	}

	audio, err := p.assembleAudio(ctx, r, video, probe)
	if err != nil {
		return Result{}, err
	}

	outDir := filepath.Join(dir, "out")
	args, err := ffmpeg.BuildCommand(ffmpeg.Plan{
		Source:      sourcePath,
		OutDir:      outDir,
		KeyInfoPath: keyFiles.KeyInfoPath,
		Duration:    probe.DurationSeconds,
		Renditions:  p.cfg.Renditions,
		Audio:       audio,
	})
	if err != nil {
		return Result{}, fmt.Errorf("build command: %w", err)
	}

	err = p.step(ctx, "transcode", func(ctx context.Context) error {
		trace.SpanFromContext(ctx).SetAttributes(
			telemetry.TranscodeAttributes(len(p.cfg.Renditions), len(audio), probe.DurationSeconds)...)
		return p.executor.Execute(ctx, args)
	})
	if err != nil {
		var tf *ffmpeg.TranscodeFailure
		if errors.As(err, &tf) {
			r.logger.Warn().
				Str(xglog.FieldEvent, "transcode.failed").
				Int(xglog.FieldExitCode, tf.ExitCode).
				Str("stderr_tail", tf.Stderr).
				Msg("transcoder exited with failure")
		}
		return Result{}, err
	}

	artifacts, err := p.collect(outDir)
	if err != nil {
		return Result{}, err
	}
	artifacts = append(artifacts, Artifact{Kind: ArtifactKey, Name: encryption.KeyFileName, LocalPath: keyFiles.KeyPath})

	pub, err := p.upload(ctx, r, artifacts)
	if err != nil {
		return Result{}, err
	}

	linked := 0
	err = p.step(ctx, "reconcile", func(ctx context.Context) error {
		return p.catalog.WithTx(ctx, func(tx *library.Tx) error {
			v, err := tx.GetVideo(ctx, r.videoID)
			if err != nil {
				return err
			}
			if v.Status != media.StatusProcessing {
				return &media.ConflictError{Msg: fmt.Sprintf("video %d left processing during the build (now %s)", r.videoID, v.Status)}
			}
			audioKeys, err := p.linkAudio(ctx, tx, r, artifacts)
			if err != nil {
				return err
			}
			linked = len(audioKeys)
			pub.AudioPlaylists = audioKeys
			if err := tx.Reconcile(ctx, r.videoID, pub); err != nil {
				return err
			}
			if _, err := tx.TransitionStatus(ctx, r.videoID, media.StatusCompleted); err != nil {
				return fmt.Errorf("mark completed: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: %w", err)
	}

	return Result{
		BuildID:     r.buildID,
		Prefix:      r.prefix,
		MasterKey:   pub.MasterPlaylistKey,
		Renditions:  len(pub.Renditions),
		AudioTracks: linked,
		Uploaded:    len(artifacts),
	}, nil
}

// purge removes every earlier build of the video. Failures leave stale
// artifacts behind and are only logged.
func (p *Pipeline) purge(ctx context.Context, r *run) {
	prefix := VideoPrefix(r.videoID)
	err := p.step(ctx, "purge", func(ctx context.Context) error {
		return p.store.DeletePrefix(ctx, prefix)
	})
	if err != nil {
		metrics.RecordPurgeFailure()
		r.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "publish.purge_failed").
			Str(xglog.FieldPrefix, prefix).
			Msg("purge of previous builds failed")
	}
}

// assembleAudio lists the audio inputs: the source's own stream first when
// the video declares its language, then every uploaded track default-first.
// An uploaded track for the original language replaces the builtin stream.
func (p *Pipeline) assembleAudio(ctx context.Context, r *run, video media.VideoAsset, probe ffmpeg.ProbeResult) ([]ffmpeg.AudioSource, error) {
	var sources []ffmpeg.AudioSource

	if probe.HasAudioStream && video.OriginalLanguage != "" {
		lang, err := p.catalog.LanguageByCode(ctx, video.OriginalLanguage)
		if err != nil {
			return nil, fmt.Errorf("original language: %w", err)
		}
		track, err := p.catalog.EnsureAudioTrack(ctx, video.ID, lang.ID)
		if err != nil {
			return nil, fmt.Errorf("ensure audio track: %w", err)
		}
		if track.SourceKey == "" {
			sources = append(sources, ffmpeg.AudioSource{Builtin: true, Language: lang.Code, Default: track.IsDefault})
		}
	}

	external, err := p.catalog.ListExternalAudioTracks(ctx, video.ID)
	if err != nil {
		return nil, err
	}
	err = p.step(ctx, "download_audio", func(ctx context.Context) error {
		for _, t := range external {
			local := filepath.Join(r.dir, "src", "audio-"+strconv.FormatInt(t.ID, 10)+path.Ext(t.SourceKey))
			if err := p.store.DownloadTo(ctx, t.SourceKey, local); err != nil {
				return &StoreError{Op: "download", Key: t.SourceKey, Err: err}
			}
			sources = append(sources, ffmpeg.AudioSource{Language: t.LanguageCode, Default: t.IsDefault, Path: local})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sources, nil
}

func (p *Pipeline) collect(outDir string) ([]Artifact, error) {
	entries, err := p.fs.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("list transcoder output: %w", err)
	}
	var out []Artifact
	hasMaster := false
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		a := Classify(e.Name(), p.cfg.Renditions)
		a.LocalPath = filepath.Join(outDir, e.Name())
		if a.Kind == ArtifactMasterPlaylist {
			hasMaster = true
		}
		out = append(out, a)
	}
	if !hasMaster {
		return nil, fmt.Errorf("transcoder produced no %s", profiles.MasterPlaylistName)
	}
	return out, nil
}

// upload pushes every artifact under the build prefix and returns the
// locators for the catalog.
func (p *Pipeline) upload(ctx context.Context, r *run, artifacts []Artifact) (library.Publication, error) {
	var pub library.Publication
	for _, a := range artifacts {
		key := objectstore.Join(r.prefix, a.Name)
		switch a.Kind {
		case ArtifactMasterPlaylist:
			pub.MasterPlaylistKey = key
		case ArtifactKey:
			pub.DecryptKeyKey = key
		case ArtifactVariantPlaylist:
			pub.Renditions = append(pub.Renditions, media.VideoRendition{
				VideoID:     r.videoID,
				Resolution:  a.Rendition.Resolution,
				PlaylistKey: key,
			})
		case ArtifactOther:
			r.logger.Warn().Str(xglog.FieldStorageKey, key).Msg("unrecognized transcoder output, uploading as is")
		}
	}

	err := p.step(ctx, "upload", func(ctx context.Context) error {
		trace.SpanFromContext(ctx).SetAttributes(telemetry.StoreAttributes(r.prefix, len(artifacts))...)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.cfg.UploadConcurrency)
		for _, a := range artifacts {
			g.Go(func() error {
				key := r.prefix + a.Name
				if err := p.store.Upload(gctx, key, a.LocalPath, objectstore.HintsFor(a.Name)); err != nil {
					return &StoreError{Op: "upload", Key: key, Err: err}
				}
				metrics.RecordUpload(string(a.Kind))
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		return library.Publication{}, err
	}
	return pub, nil
}

// linkAudio maps uploaded language playlists to catalog languages. Codes
// without a registered language stay uploaded but unlinked.
func (p *Pipeline) linkAudio(ctx context.Context, tx *library.Tx, r *run, artifacts []Artifact) (map[int64]string, error) {
	keys := make(map[int64]string)
	for _, a := range artifacts {
		if a.Kind != ArtifactAudioPlaylist {
			continue
		}
		lang, err := tx.LanguageByCode(ctx, a.Language)
		if err != nil {
			var unknown *media.UnknownLanguageCodeError
			if errors.As(err, &unknown) {
				r.logger.Warn().
					Str(xglog.FieldEvent, "publish.unknown_language").
					Str(xglog.FieldLanguage, a.Language).
					Msg("audio playlist language is not registered, skipping track link")
				continue
			}
			return nil, err
		}
		keys[lang.ID] = r.prefix + a.Name
	}
	return keys, nil
}

// step runs fn in a child span named after the pipeline step.
func (p *Pipeline) step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "publish."+name, trace.WithAttributes(telemetry.StepAttributes(name)...))
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, name)
		return err
	}
	return nil
}

func errorClass(err error) string {
	var tf *ffmpeg.TranscodeFailure
	var se *StoreError
	var unknown *media.UnknownLanguageCodeError
	switch {
	case errors.As(err, &tf):
		return "transcode"
	case errors.As(err, &se):
		return "store"
	case errors.As(err, &unknown):
		return "unknown_language"
	case media.IsValidation(err):
		return "validation"
	case errors.Is(err, media.ErrNotFound):
		return "not_found"
	}
	return "internal"
}
