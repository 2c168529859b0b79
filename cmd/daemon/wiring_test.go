package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/cinegate/internal/auth"
	"github.com/ManuGH/cinegate/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testConfig(t *testing.T) config.AppConfig {
	t.Helper()
	cfg := config.Default()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Server.BaseURL = "https://cdn.example.test"
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Auth.JWTSecret = testSecret
	cfg.Database.Path = filepath.Join(t.TempDir(), "db", "cinegate.sqlite")
	cfg.Storage.Driver = config.StorageMemory
	cfg.Queue.Driver = config.QueueLocal
	cfg.Transcoder.FFprobeBin = "ffprobe"
	require.NoError(t, config.Validate(cfg))
	return cfg
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBuildRuntime_LocalStack(t *testing.T) {
	cfg := testConfig(t)
	rt, err := buildRuntime(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, rt.Close(context.Background())) })

	_, err = os.Stat(filepath.Dir(cfg.Database.Path))
	require.NoError(t, err, "database directory is created")
	require.Len(t, rt.workers, 1)
	assert.Equal(t, "publish-local", rt.workers[0].Name)
	assert.Empty(t, rt.hooks)

	rec := do(t, rt.handler, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	staff, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer).
		Issue(auth.Principal{ID: "ops", Authenticated: true, Staff: true}, time.Hour)
	require.NoError(t, err)

	rec = do(t, rt.handler, http.MethodPost, "/api/v1/videos", "", `{"role":"movie","source_key":"uploads/a.mp4"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, rt.handler, http.MethodPost, "/api/v1/videos", staff, `{"role":"movie","source_key":"uploads/a.mp4"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"created"`)
}

func TestBuildRuntime_RebuildLock(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Lock.RedisAddr = mr.Addr()

	rt, err := buildRuntime(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, rt.Close(context.Background())) })

	require.Len(t, rt.hooks, 1)
	assert.Equal(t, "rebuild-lock", rt.hooks[0].name)

	rec := do(t, rt.handler, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	mr.Close()
	rec = do(t, rt.handler, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	assert.NoError(t, rt.hooks[0].fn(context.Background()))
}

func TestBuildRuntime_FailureClosesOpenedResources(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = config.StorageMinio
	cfg.Storage.Bucket = ""

	_, err := buildRuntime(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
}

func TestBuildRuntime_RefusesDamagedCatalog(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o750))
	require.NoError(t, os.WriteFile(cfg.Database.Path, []byte(strings.Repeat("not a database ", 512)), 0o600))

	_, err := buildRuntime(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
}

func TestRuntimeClose_ReverseOrderAndJoinedErrors(t *testing.T) {
	rt := &runtime{logger: zerolog.Nop()}
	var order []string
	boom := errors.New("boom")
	rt.onClose("first", func(context.Context) error { order = append(order, "first"); return nil })
	rt.onClose("second", func(context.Context) error { order = append(order, "second"); return boom })

	err := rt.Close(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "close second")
	assert.Equal(t, []string{"second", "first"}, order)

	require.NoError(t, rt.Close(context.Background()), "closers run once")
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, zerolog.New(io.Discard)) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
}

func TestCheckHealth(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	assert.Equal(t, 0, checkHealth(ok.URL, time.Second))
	assert.Equal(t, 1, checkHealth(down.URL, time.Second))
	assert.Equal(t, 1, runHealthcheckCLI([]string{"-url", "http://127.0.0.1:1/healthz", "-timeout", "200ms"}))
}
