package encryption

import (
	"bytes"
	"encoding/hex"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyMaterial(t *testing.T) {
	a, err := GenerateKeyMaterial()
	require.NoError(t, err)
	b, err := GenerateKeyMaterial()
	require.NoError(t, err)

	assert.Len(t, a.Key, KeySize)
	assert.Len(t, a.IVHex, 32)
	_, err = hex.DecodeString(a.IVHex)
	assert.NoError(t, err)
	assert.NotEqual(t, a.Key, b.Key)
	assert.NotEqual(t, a.IVHex, b.IVHex)
}

func TestGenerateKeyMaterialFrom_Deterministic(t *testing.T) {
	src := bytes.Repeat([]byte{0xAB}, 16)
	src = append(src, bytes.Repeat([]byte{0x01}, 16)...)
	km, err := GenerateKeyMaterialFrom(bytes.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xAB}, 16), km.Key)
	assert.Equal(t, strings.Repeat("01", 16), km.IVHex)

	_, err = GenerateKeyMaterialFrom(bytes.NewReader(src[:20]))
	assert.Error(t, err)
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	km, err := GenerateKeyMaterial()
	require.NoError(t, err)

	files, err := WriteFiles(dir, km, "https://cdn.example.com/api/v1/videos/9/hls.key")
	require.NoError(t, err)

	key, err := os.ReadFile(files.KeyPath)
	require.NoError(t, err)
	assert.Equal(t, km.Key, key)

	st, err := os.Stat(files.KeyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	info, err := os.ReadFile(files.KeyInfoPath)
	require.NoError(t, err)
	lines := strings.Split(string(info), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "https://cdn.example.com/api/v1/videos/9/hls.key", lines[0])
	assert.Equal(t, files.KeyPath, lines[1])
	assert.Equal(t, km.IVHex, lines[2])
}

func TestWriteFiles_RejectsBadMaterial(t *testing.T) {
	_, err := WriteFiles(t.TempDir(), KeyMaterial{Key: []byte{1}, IVHex: strings.Repeat("0", 32)}, "u")
	assert.Error(t, err)
	_, err = WriteFiles(t.TempDir(), KeyMaterial{Key: make([]byte, 16), IVHex: "00"}, "u")
	assert.Error(t, err)
}

func TestKeyURL(t *testing.T) {
	got, err := KeyURL("https://api.example.com/", 42)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/api/v1/videos/42/hls.key", got)

	got, err = KeyURL("https://api.example.com/prefix", 7)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/prefix/api/v1/videos/7/hls.key", got)

	_, err = KeyURL("not-absolute", 1)
	assert.Error(t, err)
}
