// Package images re-encodes fetched source images into the dictionary's
// display renditions. Every artifact is content addressed by the sha256 of
// its source bytes plus the quality tier, so unchanged sources are never
// decoded twice and both tiers can coexist in one cache.
package images

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"

	_ "image/gif"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"git.home.luguber.info/inful/dexbuilder/internal/cache"
	"git.home.luguber.info/inful/dexbuilder/internal/config"
	"git.home.luguber.info/inful/dexbuilder/internal/logfields"
)

// preset is one quality tier's processing profile. Opaque sources encode as
// JPEG, sources with transparency as PNG.
type preset struct {
	maxDim      int
	jpegQuality int
	pngLevel    png.CompressionLevel
	scaler      draw.Scaler
}

func presetFor(tier config.QualityTier) preset {
	if tier == config.QualityHigh {
		return preset{maxDim: 1024, jpegQuality: 92, pngLevel: png.BestCompression, scaler: draw.CatmullRom}
	}
	return preset{maxDim: 384, jpegQuality: 70, pngLevel: png.BestSpeed, scaler: draw.ApproxBiLinear}
}

// Processor turns source image bytes into cached display artifacts for one
// quality tier. Safe for concurrent use; the store serializes writes.
type Processor struct {
	tier   string
	preset preset
	store  cache.Store
	log    *slog.Logger
}

func NewProcessor(tier config.QualityTier, store cache.Store) *Processor {
	return &Processor{
		tier:   string(tier),
		preset: presetFor(tier),
		store:  store,
		log:    slog.Default().With("component", "images"),
	}
}

// Build returns the display artifact for the given source bytes, producing it
// on first sight and re-serving the recorded artifact afterwards. reused
// reports whether the artifact came from the cache without decode work.
func (p *Processor) Build(ctx context.Context, sourceKey string, src []byte) (info cache.ArtifactInfo, reused bool, err error) {
	sum := sha256.Sum256(src)
	hash := hex.EncodeToString(sum[:])

	info, ok, err := p.store.LookupArtifact(ctx, hash, p.tier)
	if err != nil {
		return cache.ArtifactInfo{}, false, err
	}
	if ok {
		p.log.Debug("artifact reused",
			logfields.CacheKey(sourceKey), logfields.Tier(p.tier))
		return info, true, nil
	}

	img, opaque, err := decode(src)
	if err != nil {
		var ierr *Error
		if errors.As(err, &ierr) {
			ierr.Key = sourceKey
		}
		return cache.ArtifactInfo{}, false, err
	}

	scaled := p.scaleDown(img)
	data, ext, err := p.encode(scaled, opaque)
	if err != nil {
		return cache.ArtifactInfo{}, false, err
	}

	info, err = p.store.StoreArtifact(ctx, cache.Artifact{
		SourceHash: hash,
		Tier:       p.tier,
		Name:       sourceKey + "." + ext,
		Data:       data,
	})
	if err != nil {
		return cache.ArtifactInfo{}, false, err
	}
	p.log.Debug("artifact built",
		logfields.CacheKey(sourceKey), logfields.Tier(p.tier), logfields.Count(len(data)))
	return info, false, nil
}

func decode(src []byte) (image.Image, bool, error) {
	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, false, &Error{Kind: KindUnsupportedFormat, Err: err}
		}
		return nil, false, &Error{Kind: KindDecodeFailed, Err: err}
	}
	return img, isOpaque(img), nil
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

// scaleDown fits the image inside the tier's maximum dimension, preserving
// aspect ratio. Sources already small enough pass through untouched; the
// pipeline never upscales.
func (p *Processor) scaleDown(src image.Image) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= p.preset.maxDim && h <= p.preset.maxDim {
		return src
	}
	var nw, nh int
	if w >= h {
		nw = p.preset.maxDim
		nh = max(1, h*p.preset.maxDim/w)
	} else {
		nh = p.preset.maxDim
		nw = max(1, w*p.preset.maxDim/h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	p.preset.scaler.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

func (p *Processor) encode(img image.Image, opaque bool) ([]byte, string, error) {
	var buf bytes.Buffer
	if opaque {
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: p.preset.jpegQuality}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "jpg", nil
	}
	enc := png.Encoder{CompressionLevel: p.preset.pngLevel}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "png", nil
}
