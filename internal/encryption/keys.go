// Package encryption produces the AES-128 key material used for HLS
// segment encryption and the key-info file the transcoder consumes.
//
// The key itself never appears in a playlist. Playlists reference the
// authorization-gated key endpoint, which redirects to a short-lived
// presigned URL.
package encryption

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
)

// KeySize is the AES-128 key length in bytes.
const KeySize = 16

// File names inside a run's output directory.
const (
	KeyFileName     = "hls.key"
	KeyInfoFileName = "hls.keyinfo"
)

// KeyMaterial is a one-time key and initialization vector.
type KeyMaterial struct {
	Key   []byte
	IVHex string // 32 hex characters
}

// GenerateKeyMaterial returns fresh key material from crypto/rand.
func GenerateKeyMaterial() (KeyMaterial, error) {
	return GenerateKeyMaterialFrom(rand.Reader)
}

// GenerateKeyMaterialFrom reads the key and IV from r.
func GenerateKeyMaterialFrom(r io.Reader) (KeyMaterial, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return KeyMaterial{}, fmt.Errorf("generate key: %w", err)
	}
	iv := make([]byte, KeySize)
	if _, err := io.ReadFull(r, iv); err != nil {
		return KeyMaterial{}, fmt.Errorf("generate iv: %w", err)
	}
	return KeyMaterial{Key: key, IVHex: hex.EncodeToString(iv)}, nil
}

// KeyInfo describes where players fetch the key and where the transcoder
// reads it.
type KeyInfo struct {
	URI     string // public retrieval URL
	KeyPath string // local key file, never exposed
	IVHex   string
}

// String renders the three-line key-info format.
func (k KeyInfo) String() string {
	return strings.Join([]string{k.URI, k.KeyPath, k.IVHex}, "\n")
}

// Files are the local paths written by WriteFiles.
type Files struct {
	KeyPath     string
	KeyInfoPath string
}

// WriteFiles writes the key (mode 0600) and the key-info file into dir.
func WriteFiles(dir string, km KeyMaterial, keyURL string) (Files, error) {
	if len(km.Key) != KeySize {
		return Files{}, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(km.Key))
	}
	if len(km.IVHex) != 2*KeySize {
		return Files{}, fmt.Errorf("iv must be %d hex chars, got %d", 2*KeySize, len(km.IVHex))
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Files{}, fmt.Errorf("mkdirall: %w", err)
	}

	files := Files{
		KeyPath:     filepath.Join(dir, KeyFileName),
		KeyInfoPath: filepath.Join(dir, KeyInfoFileName),
	}
	if err := writeAtomic(files.KeyPath, km.Key); err != nil {
		return Files{}, fmt.Errorf("write key: %w", err)
	}
	info := KeyInfo{URI: keyURL, KeyPath: files.KeyPath, IVHex: km.IVHex}
	if err := writeAtomic(files.KeyInfoPath, []byte(info.String())); err != nil {
		return Files{}, fmt.Errorf("write key info: %w", err)
	}
	return files, nil
}

func writeAtomic(path string, data []byte) error {
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o600))
	if err != nil {
		return err
	}
	defer func() { _ = pending.Cleanup() }()
	if _, err := pending.Write(data); err != nil {
		return err
	}
	return pending.CloseAtomicallyReplace()
}

// KeyEndpointPath is the route of the authorization-gated key endpoint.
func KeyEndpointPath(videoID int64) string {
	return "/api/v1/videos/" + strconv.FormatInt(videoID, 10) + "/" + KeyFileName
}

// KeyURL joins the public base URL and the key endpoint for videoID.
func KeyURL(baseURL string, videoID int64) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("base url %q must be absolute", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + KeyEndpointPath(videoID)
	return u.String(), nil
}
