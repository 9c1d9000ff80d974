// Package cache implements the durable on-disk store shared by the fetcher
// and the image pipeline. One store holds two namespaces: fetched source
// documents under pages/ and re-encoded image artifacts under images/<tier>/,
// with a sqlite manifest recording artifact identity. Entries survive runs and
// are only removed by explicit invalidation.
package cache

import (
	"context"
	"errors"
)

// ErrMiss is returned by read operations when the store holds no entry for
// the given key.
var ErrMiss = errors.New("cache miss")

// Artifact is a re-encoded image ready to be recorded in the store.
// SourceHash is the sha256 hex digest of the original fetched bytes; Name is
// the output file name (key plus extension) the dictionary references.
type Artifact struct {
	SourceHash string
	Tier       string
	Name       string
	Data       []byte
}

// ArtifactInfo describes a stored artifact. Path is absolute.
type ArtifactInfo struct {
	Name string
	Path string
	Size int64
}

// Stats summarizes store contents for the cache stats command.
type Stats struct {
	Pages         int
	PageBytes     int64
	Artifacts     map[string]int   // per tier
	ArtifactBytes map[string]int64 // per tier
}

// Store is the cache service injected into the fetcher and image pipeline.
// Implementations must serialize writes per key and write atomically so a
// crashed run never leaves a truncated entry behind.
type Store interface {
	// ReadPage returns the cached document for key, or ErrMiss.
	ReadPage(ctx context.Context, key string) ([]byte, error)
	// WritePage records a fetched document under key.
	WritePage(ctx context.Context, key string, data []byte) error

	// LookupArtifact returns the recorded artifact for (sourceHash, tier)
	// when both its manifest row and blob are present.
	LookupArtifact(ctx context.Context, sourceHash, tier string) (ArtifactInfo, bool, error)
	// StoreArtifact writes the blob and upserts its manifest row.
	StoreArtifact(ctx context.Context, art Artifact) (ArtifactInfo, error)

	// Stats reports entry counts and byte totals per namespace.
	Stats(ctx context.Context) (Stats, error)
	// Clear removes one namespace: a tier name or "pages". Empty clears
	// everything.
	Clear(ctx context.Context, namespace string) error

	Close() error
}
