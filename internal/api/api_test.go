package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/cinegate/internal/auth"
	"github.com/ManuGH/cinegate/internal/control/catalog"
	"github.com/ManuGH/cinegate/internal/control/delivery"
	"github.com/ManuGH/cinegate/internal/control/http/problem"
	"github.com/ManuGH/cinegate/internal/domain/media"
	"github.com/ManuGH/cinegate/internal/infra/objectstore"
	"github.com/ManuGH/cinegate/internal/library"
	"github.com/ManuGH/cinegate/internal/persistence/sqlite"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type recordingScheduler struct {
	mu    sync.Mutex
	calls []int64
}

func (r *recordingScheduler) EnqueuePublish(_ context.Context, videoID int64, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, videoID)
	return nil
}

func (r *recordingScheduler) Calls() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.calls...)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is gone") }

type fixture struct {
	store     *library.Store
	content   *objectstore.MemoryStore
	scheduler *recordingScheduler
	verifier  *auth.Verifier
	handler   http.Handler
}

func newFixture(t *testing.T, health ...HealthChecker) *fixture {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api.sqlite"), sqlite.DefaultConfig())
	require.NoError(t, err)
	store, err := library.NewStore(db, library.DialectSQLite)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.CreateLanguage(context.Background(), "en", "English")
	require.NoError(t, err)

	f := &fixture{
		store:     store,
		content:   objectstore.NewMemoryStore("media"),
		scheduler: &recordingScheduler{},
		verifier:  auth.NewVerifier(testSecret, "cinegate-test"),
	}
	if health == nil {
		health = []HealthChecker{store}
	}
	srv := NewServer(Config{KeyRateLimit: 60}, Deps{
		Catalog:  catalog.NewService(store, f.content, f.scheduler, "https://cdn.example.test"),
		Delivery: delivery.NewService(store, f.content, delivery.Config{}),
		Verifier: f.verifier,
		Health:   health,
	})
	f.handler = srv.Handler()
	return f
}

func (f *fixture) token(t *testing.T, p auth.Principal) string {
	t.Helper()
	raw, err := f.verifier.Issue(p, time.Hour)
	require.NoError(t, err)
	return raw
}

func (f *fixture) staffToken(t *testing.T) string {
	return f.token(t, auth.Principal{ID: "staff-1", Authenticated: true, Staff: true})
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// publish moves video id to completed with a master playlist and a key.
func (f *fixture) publish(t *testing.T, id int64) {
	t.Helper()
	ctx := context.Background()
	_, err := f.store.TransitionStatus(ctx, id, media.StatusProcessing)
	require.NoError(t, err)
	require.NoError(t, f.store.Reconcile(ctx, id, library.Publication{
		MasterPlaylistKey: "hls/videos/1/b/master.m3u8",
		DecryptKeyKey:     "hls/videos/1/b/hls.key",
	}))
	_, err = f.store.TransitionStatus(ctx, id, media.StatusCompleted)
	require.NoError(t, err)
	f.content.Put("hls/videos/1/b/master.m3u8", []byte("#EXTM3U\n"), objectstore.Hints{})
	f.content.Put("hls/videos/1/b/hls.key", []byte("0123456789abcdef"), objectstore.Hints{})
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	assert.Equal(t, problem.ContentType, rec.Header().Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func createVideo(t *testing.T, f *fixture) videoResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/videos", f.staffToken(t),
		`{"role":"movie","source_key":"uploads/heat.mp4","original_language":"en"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var v videoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestCreateVideo(t *testing.T) {
	f := newFixture(t)
	v := createVideo(t, f)

	assert.Equal(t, media.StatusCreated, v.Status)
	assert.Equal(t, media.VisibilityProtected, v.Visibility)
	assert.False(t, v.Published)
	assert.Equal(t, []int64{v.ID}, f.scheduler.Calls())
}

func TestCreateVideo_Rejections(t *testing.T) {
	f := newFixture(t)
	customer := f.token(t, auth.Principal{ID: "user-1", Authenticated: true})
	body := `{"role":"movie","source_key":"uploads/heat.mp4"}`

	tests := []struct {
		name   string
		token  string
		body   string
		status int
		code   string
	}{
		{"anonymous", "", body, http.StatusUnauthorized, problem.CodeUnauthorized},
		{"customer", customer, body, http.StatusForbidden, problem.CodeForbidden},
		{"invalid token", "not-a-jwt", body, http.StatusUnauthorized, problem.CodeUnauthorized},
		{"unknown role", f.staffToken(t), `{"role":"short","source_key":"a.mp4"}`, http.StatusBadRequest, problem.CodeValidation},
		{"unknown field", f.staffToken(t), `{"role":"movie","source_key":"a.mp4","x":1}`, http.StatusBadRequest, problem.CodeValidation},
		{"unknown language", f.staffToken(t), `{"role":"movie","source_key":"a.mp4","original_language":"zz"}`, http.StatusBadRequest, problem.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/v1/videos", tt.token, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decodeProblem(t, rec)["code"])
		})
	}
	assert.Empty(t, f.scheduler.Calls())
}

func TestUpdateAndDeleteVideo(t *testing.T) {
	f := newFixture(t)
	v := createVideo(t, f)
	path := "/api/v1/videos/" + itoa(v.ID)

	rec := f.do(t, http.MethodPatch, path, f.staffToken(t), `{"visibility":"public"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got videoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, media.VisibilityPublic, got.Visibility)

	rec = f.do(t, http.MethodDelete, path, f.staffToken(t), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, path, f.staffToken(t), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, problem.CodeNotFound, decodeProblem(t, rec)["code"])
}

func TestInvalidPathID(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/videos/abc/playback", "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, problem.CodeValidation, decodeProblem(t, rec)["code"])
}

func TestStoreFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	token := f.staffToken(t)
	require.NoError(t, f.store.Close())

	rec := f.do(t, http.MethodPost, "/api/v1/videos", token, `{"role":"movie","source_key":"uploads/heat.mp4"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
	assert.Equal(t, problem.CodeInternal, decodeProblem(t, rec)["code"])
	assert.NotContains(t, rec.Body.String(), "database is closed")
}

func TestAudioTracksAndRebuild(t *testing.T) {
	f := newFixture(t)
	v := createVideo(t, f)
	videoPath := "/api/v1/videos/" + itoa(v.ID)
	staff := f.staffToken(t)

	rec := f.do(t, http.MethodPost, videoPath+"/rebuild", staff, "")
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "audio_tracks", decodeProblem(t, rec)["field"])

	rec = f.do(t, http.MethodPost, videoPath+"/audio-tracks", staff, `{"language":"EN","is_default":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var track audioTrackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &track))
	assert.Equal(t, "en", track.Language)
	assert.True(t, track.IsDefault)

	rec = f.do(t, http.MethodPost, videoPath+"/audio-tracks", staff, `{"language":"fr"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "language", decodeProblem(t, rec)["field"])

	rec = f.do(t, http.MethodPatch, "/api/v1/audio-tracks/"+itoa(track.ID), staff, `{"source_key":"uploads/en.aac"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, videoPath+"/rebuild", staff, "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"status":"processing"}`, rec.Body.String())
	assert.Equal(t, []int64{v.ID, v.ID}, f.scheduler.Calls())

	rec = f.do(t, http.MethodPost, videoPath+"/rebuild", staff, "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, problem.CodeConflict, decodeProblem(t, rec)["code"])
}

func TestPlaybackAndKey(t *testing.T) {
	f := newFixture(t)
	v := createVideo(t, f)
	base := "/api/v1/videos/" + itoa(v.ID)
	staff := f.staffToken(t)

	rec := f.do(t, http.MethodGet, base+"/playback", staff, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, problem.CodeNoPlaylist, decodeProblem(t, rec)["code"])

	f.publish(t, v.ID)

	rec = f.do(t, http.MethodGet, base+"/playback", staff, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pb delivery.Playback
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pb))
	assert.Equal(t, media.StatusCompleted, pb.Status)
	assert.Contains(t, pb.MasterPlaylistURL, "hls/videos/1/b/master.m3u8")

	rec = f.do(t, http.MethodGet, base+"/hls.key", staff, "")
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	loc := rec.Header().Get("Location")
	assert.Contains(t, loc, "hls/videos/1/b/hls.key")
	assert.Contains(t, loc, "X-Expires=30")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestPlayback_Denied(t *testing.T) {
	f := newFixture(t)
	v := createVideo(t, f)
	f.publish(t, v.ID)
	base := "/api/v1/videos/" + itoa(v.ID)

	rec := f.do(t, http.MethodGet, base+"/playback", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
	assert.Equal(t, problem.CodeUnauthorized, decodeProblem(t, rec)["code"])

	customer := f.token(t, auth.Principal{ID: "user-1", Authenticated: true})
	rec = f.do(t, http.MethodGet, base+"/hls.key", customer, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, problem.CodeForbidden, decodeProblem(t, rec)["code"])
}

func TestWatchToggle(t *testing.T) {
	f := newFixture(t)
	v := createVideo(t, f)
	title, err := f.store.CreateTitle(context.Background(), media.Title{
		Name: "Heat", Type: media.TitleMovie, Status: media.TitlePublished, WatchEnabled: true, MovieVideoID: &v.ID,
	})
	require.NoError(t, err)
	staff := f.staffToken(t)
	path := "/api/v1/titles/" + itoa(title.ID)

	rec := f.do(t, http.MethodPost, path+"/watch:enable", staff, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, path+"/watch:disable", staff, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/seasons/42/watch:enable", staff, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/posters/1/watch:enable", staff, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	f = newFixture(t, failingPinger{})
	rec = f.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, problem.CodeUnavailable, decodeProblem(t, rec)["code"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	_ = f.do(t, http.MethodGet, "/healthz", "", "")
	rec := f.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cinegate_http_request_duration_seconds")
}

func TestNewServer_PanicsOnMissingDeps(t *testing.T) {
	assert.Panics(t, func() { NewServer(Config{}, Deps{}) })
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
