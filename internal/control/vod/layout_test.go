package vod

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/cinegate/internal/domain/media"
	"github.com/ManuGH/cinegate/internal/pipeline/profiles"
)

func TestBuildID_SortableUTC(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	a := BuildID(time.Date(2025, 3, 9, 23, 59, 59, 999_000_000, berlin))
	b := BuildID(time.Date(2025, 3, 9, 23, 0, 0, 0, time.UTC))

	assert.Equal(t, "20250309T225959.999Z", a)
	assert.Equal(t, "20250309T230000.000Z", b)
	assert.Less(t, a, b)
}

func TestPrefixes(t *testing.T) {
	assert.Equal(t, "hls/videos/7/", VideoPrefix(7))
	assert.Equal(t, "hls/videos/7/20250101T000000.000Z/", BuildPrefix(7, "20250101T000000.000Z"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		kind     ArtifactKind
		language string
		res      media.Resolution
	}{
		{name: "360p_000.ts", kind: ArtifactSegment},
		{name: "language-en_004.ts", kind: ArtifactSegment},
		{name: "master.m3u8", kind: ArtifactMasterPlaylist},
		{name: "language-pt-BR.m3u8", kind: ArtifactAudioPlaylist, language: "pt-BR"},
		{name: "1080p.m3u8", kind: ArtifactVariantPlaylist, res: media.Resolution1080},
		{name: "480p.m3u8", kind: ArtifactVariantPlaylist, res: media.Resolution480},
		{name: "2160p.m3u8", kind: ArtifactOther},
		{name: "ffmpeg2pass-0.log", kind: ArtifactOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Classify(tt.name, profiles.Ladder)
			assert.Equal(t, tt.kind, a.Kind)
			assert.Equal(t, tt.language, a.Language)
			if tt.kind == ArtifactVariantPlaylist {
				require.NotNil(t, a.Rendition)
				assert.Equal(t, tt.res, a.Rendition.Resolution)
			} else {
				assert.Nil(t, a.Rendition)
			}
		})
	}
}

func TestMockClock_FiresOnlyDueWaiters(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	short := c.After(time.Minute)
	long := c.After(time.Hour)

	c.Advance(30 * time.Second)
	assert.Len(t, short, 0)

	c.Advance(30 * time.Second)
	select {
	case got := <-short:
		assert.Equal(t, time.Unix(60, 0), got)
	default:
		t.Fatal("due waiter did not fire")
	}
	assert.Len(t, long, 0)

	immediate := c.After(0)
	assert.Len(t, immediate, 1)
}
