package ffmpeg

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_Success(t *testing.T) {
	e := NewExecutor("sh")
	require.NoError(t, e.Execute(context.Background(), []string{"-c", "echo done"}))
}

func TestExecutor_NonZeroExit(t *testing.T) {
	e := NewExecutor("sh")
	err := e.Execute(context.Background(), []string{"-c", "echo 'Invalid data found' >&2; exit 3"})
	require.Error(t, err)

	var tf *TranscodeFailure
	require.True(t, errors.As(err, &tf))
	assert.Equal(t, 3, tf.ExitCode)
	assert.Contains(t, tf.Stderr, "Invalid data found")
}

func TestExecutor_ArgumentsAreNotShellInterpreted(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "pwned")
	// If args were joined into a shell string the second command would run.
	e := NewExecutor("echo")
	require.NoError(t, e.Execute(context.Background(), []string{"hello; touch " + marker}))
	assert.NoFileExists(t, marker)
}

func TestExecutor_StartFailure(t *testing.T) {
	e := NewExecutor(filepath.Join(t.TempDir(), "missing-ffmpeg"))
	err := e.Execute(context.Background(), nil)
	var tf *TranscodeFailure
	require.True(t, errors.As(err, &tf))
	assert.Equal(t, -1, tf.ExitCode)
}

func TestExecutor_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewExecutor("sh").Execute(ctx, []string{"-c", "exit 0"})
	assert.ErrorIs(t, err, context.Canceled)
}
