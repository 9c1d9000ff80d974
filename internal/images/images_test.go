package images

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/dexbuilder/internal/cache"
	"git.home.luguber.info/inful/dexbuilder/internal/config"
)

type fakeStore struct {
	artifacts map[string]cache.Artifact
	stored    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{artifacts: make(map[string]cache.Artifact)}
}

func (s *fakeStore) ReadPage(context.Context, string) ([]byte, error) { return nil, cache.ErrMiss }
func (s *fakeStore) WritePage(context.Context, string, []byte) error  { return nil }

func (s *fakeStore) LookupArtifact(_ context.Context, hash, tier string) (cache.ArtifactInfo, bool, error) {
	art, ok := s.artifacts[hash+"|"+tier]
	if !ok {
		return cache.ArtifactInfo{}, false, nil
	}
	return cache.ArtifactInfo{Name: art.Name, Path: "/cache/" + tier + "/" + art.Name, Size: int64(len(art.Data))}, true, nil
}

func (s *fakeStore) StoreArtifact(_ context.Context, art cache.Artifact) (cache.ArtifactInfo, error) {
	s.stored++
	s.artifacts[art.SourceHash+"|"+art.Tier] = art
	return cache.ArtifactInfo{Name: art.Name, Path: "/cache/" + art.Tier + "/" + art.Name, Size: int64(len(art.Data))}, nil
}

func (s *fakeStore) Stats(context.Context) (cache.Stats, error) { return cache.Stats{}, nil }
func (s *fakeStore) Clear(context.Context, string) error        { return nil }
func (s *fakeStore) Close() error                               { return nil }

func (s *fakeStore) only(t *testing.T) cache.Artifact {
	t.Helper()
	require.Len(t, s.artifacts, 1)
	for _, art := range s.artifacts {
		return art
	}
	return cache.Artifact{}
}

func pngBytes(t *testing.T, w, h int, transparent bool) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(255)
			if transparent && x == 0 && y == 0 {
				a = 128
			}
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 100, A: a})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeArtifact(t *testing.T, art cache.Artifact) (image.Image, string) {
	t.Helper()
	img, format, err := image.Decode(bytes.NewReader(art.Data))
	require.NoError(t, err)
	return img, format
}

func TestBuildScalesOpaqueToJPEG(t *testing.T) {
	store := newFakeStore()
	p := NewProcessor(config.QualityFast, store)

	info, reused, err := p.Build(context.Background(), "art-b-a", pngBytes(t, 600, 400, false))
	require.NoError(t, err)
	require.False(t, reused)
	require.Equal(t, "art-b-a.jpg", info.Name)

	img, format := decodeArtifact(t, store.only(t))
	require.Equal(t, "jpeg", format)
	require.Equal(t, 384, img.Bounds().Dx())
	require.Equal(t, 256, img.Bounds().Dy())
}

func TestBuildKeepsTransparencyAsPNG(t *testing.T) {
	store := newFakeStore()
	p := NewProcessor(config.QualityFast, store)

	info, _, err := p.Build(context.Background(), "sprite-d-c", pngBytes(t, 100, 50, true))
	require.NoError(t, err)
	require.Equal(t, "sprite-d-c.png", info.Name)

	img, format := decodeArtifact(t, store.only(t))
	require.Equal(t, "png", format)
	require.Equal(t, 100, img.Bounds().Dx())
	require.Equal(t, 50, img.Bounds().Dy())
}

func TestBuildHighTierDimension(t *testing.T) {
	store := newFakeStore()
	p := NewProcessor(config.QualityHigh, store)

	_, _, err := p.Build(context.Background(), "art-b-a", pngBytes(t, 2000, 1000, false))
	require.NoError(t, err)

	img, _ := decodeArtifact(t, store.only(t))
	require.Equal(t, 1024, img.Bounds().Dx())
	require.Equal(t, 512, img.Bounds().Dy())
}

func TestBuildNeverUpscales(t *testing.T) {
	store := newFakeStore()
	p := NewProcessor(config.QualityHigh, store)

	_, _, err := p.Build(context.Background(), "tiny", pngBytes(t, 10, 8, false))
	require.NoError(t, err)

	img, _ := decodeArtifact(t, store.only(t))
	require.Equal(t, 10, img.Bounds().Dx())
	require.Equal(t, 8, img.Bounds().Dy())
}

func TestBuildReusesRecordedArtifact(t *testing.T) {
	store := newFakeStore()
	p := NewProcessor(config.QualityFast, store)
	src := pngBytes(t, 50, 50, false)

	first, reused, err := p.Build(context.Background(), "art-b-a", src)
	require.NoError(t, err)
	require.False(t, reused)

	second, reused, err := p.Build(context.Background(), "art-b-a", src)
	require.NoError(t, err)
	require.True(t, reused)
	require.Equal(t, first.Name, second.Name)
	require.Equal(t, 1, store.stored)
}

func TestBuildTiersCoexist(t *testing.T) {
	store := newFakeStore()
	src := pngBytes(t, 500, 500, false)

	_, _, err := NewProcessor(config.QualityFast, store).Build(context.Background(), "art", src)
	require.NoError(t, err)
	_, _, err = NewProcessor(config.QualityHigh, store).Build(context.Background(), "art", src)
	require.NoError(t, err)
	require.Equal(t, 2, store.stored)

	_, reused, err := NewProcessor(config.QualityFast, store).Build(context.Background(), "art", src)
	require.NoError(t, err)
	require.True(t, reused)
}

func TestBuildGIFSource(t *testing.T) {
	img := image.NewPaletted(image.Rect(0, 0, 20, 20), color.Palette{
		color.RGBA{R: 255, A: 255}, color.RGBA{G: 255, A: 255},
	})
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, img, nil))

	store := newFakeStore()
	info, _, err := NewProcessor(config.QualityFast, store).Build(context.Background(), "anim", buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, "anim.jpg", info.Name)
}

func TestBuildUnsupportedFormat(t *testing.T) {
	store := newFakeStore()
	_, _, err := NewProcessor(config.QualityFast, store).Build(context.Background(), "bad", []byte("definitely not an image"))

	var ierr *Error
	require.ErrorAs(t, err, &ierr)
	require.Equal(t, KindUnsupportedFormat, ierr.Kind)
	require.Equal(t, "bad", ierr.Key)
	require.Zero(t, store.stored)
}

func TestBuildCorruptSource(t *testing.T) {
	store := newFakeStore()
	src := pngBytes(t, 50, 50, false)[:20]

	_, _, err := NewProcessor(config.QualityFast, store).Build(context.Background(), "cut", src)
	var ierr *Error
	require.ErrorAs(t, err, &ierr)
	require.Equal(t, KindDecodeFailed, ierr.Kind)
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &Error{Kind: KindDecodeFailed, Key: "k", Err: inner}
	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "decode_failed")
}
