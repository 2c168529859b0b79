package validate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_URL(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid http", "http://example.com", false},
		{"valid https with path", "https://cdn.example.com/media", false},
		{"empty url", "", true},
		{"no host", "http://", true},
		{"invalid scheme", "ftp://example.com", true},
		{"no scheme", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.URL("base_url", tt.value, []string{"http", "https"})
			assert.Equal(t, tt.wantErr, !v.IsValid(), v.Err())
		})
	}
}

func TestValidator_Ranges(t *testing.T) {
	v := New()
	v.Range("retries", 2, 0, 10)
	v.DurationRange("expiry", 30*time.Second, time.Second, time.Hour)
	v.Float("sampling", 0.5, 0, 1)
	require.True(t, v.IsValid())

	v.Range("retries", 11, 0, 10)
	v.DurationRange("expiry", 2*time.Hour, time.Second, time.Hour)
	v.Float("sampling", 1.5, 0, 1)
	v.Positive("concurrency", 0)
	v.NonNegative("db", -1)
	require.Len(t, v.Errors(), 5)
	assert.Equal(t, "expiry", v.Errors()[1].Field)
}

func TestValidator_OneOfAndNotEmpty(t *testing.T) {
	v := New()
	v.OneOf("driver", "sqlite", []string{"sqlite", "postgres"})
	v.NotEmpty("issuer", "cinegate")
	require.True(t, v.IsValid())

	v.OneOf("driver", "mysql", []string{"sqlite", "postgres"})
	v.NotEmpty("issuer", "  ")
	assert.Len(t, v.Errors(), 2)
}

func TestValidator_MinLengthHidesValue(t *testing.T) {
	v := New()
	v.MinLength("jwt_secret", "short", 32)
	require.Len(t, v.Errors(), 1)
	assert.Nil(t, v.Errors()[0].Value)
	assert.NotContains(t, v.Err().Error(), "short")
}

func TestValidator_Directory(t *testing.T) {
	root := t.TempDir()
	created := filepath.Join(root, "scratch")

	v := New()
	v.Directory("scratch_dir", created)
	require.True(t, v.IsValid(), v.Err())
	info, err := os.Stat(created)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	v.Directory("scratch_dir", file)
	v.Directory("scratch_dir", "../escape")
	v.Directory("scratch_dir", "")
	assert.Len(t, v.Errors(), 3)
}

func TestValidationError_JoinsMessages(t *testing.T) {
	v := New()
	assert.NoError(t, v.Err())

	v.AddError("a", "bad", 1)
	v.AddError("b", "worse", 2)
	err := v.Err()

	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Errors(), 2)
	assert.Equal(t, "validation failed for a: bad; validation failed for b: worse", err.Error())
}

func TestLogLevel_IsValid(t *testing.T) {
	assert.True(t, LogLevelDebug.IsValid())
	assert.True(t, LogLevel("error").IsValid())
	assert.False(t, LogLevel("trace").IsValid())
	assert.False(t, LogLevel("").IsValid())
}
