package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *DiskStore {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPages_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.ReadPage(ctx, "wiki~Bulbasaur_(mon)")
	require.ErrorIs(t, err, ErrMiss)

	body := []byte("<html>entry</html>")
	require.NoError(t, s.WritePage(ctx, "wiki~Bulbasaur_(mon)", body))

	got, err := s.ReadPage(ctx, "wiki~Bulbasaur_(mon)")
	require.NoError(t, err)
	require.Equal(t, body, got)
}

func TestPages_RejectsPathEscapingKeys(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.Error(t, s.WritePage(ctx, "", nil))
	require.Error(t, s.WritePage(ctx, "a/b", nil))
	require.Error(t, s.WritePage(ctx, "..", nil))
}

func TestArtifacts_LookupAfterStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LookupArtifact(ctx, "deadbeef", "fast")
	require.NoError(t, err)
	require.False(t, ok)

	info, err := s.StoreArtifact(ctx, Artifact{
		SourceHash: "deadbeef",
		Tier:       "fast",
		Name:       "bulbasaur-1-a.png",
		Data:       []byte("png-bytes"),
	})
	require.NoError(t, err)
	require.Equal(t, "bulbasaur-1-a.png", info.Name)
	require.FileExists(t, info.Path)

	got, ok, err := s.LookupArtifact(ctx, "deadbeef", "fast")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, info.Path, got.Path)
	require.Equal(t, int64(len("png-bytes")), got.Size)
}

func TestArtifacts_TiersAreIndependent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.StoreArtifact(ctx, Artifact{SourceHash: "h1", Tier: "fast", Name: "a.png", Data: []byte("x")})
	require.NoError(t, err)
	_, err = s.StoreArtifact(ctx, Artifact{SourceHash: "h1", Tier: "high", Name: "a.png", Data: []byte("xxxl")})
	require.NoError(t, err)

	fast, ok, err := s.LookupArtifact(ctx, "h1", "fast")
	require.NoError(t, err)
	require.True(t, ok)
	high, ok2, err := s.LookupArtifact(ctx, "h1", "high")
	require.NoError(t, err)
	require.True(t, ok2)
	require.NotEqual(t, fast.Path, high.Path)
	require.Equal(t, int64(1), fast.Size)
	require.Equal(t, int64(4), high.Size)
}

func TestArtifacts_MissingBlobHealsAsMiss(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	info, err := s.StoreArtifact(ctx, Artifact{SourceHash: "h2", Tier: "fast", Name: "b.png", Data: []byte("x")})
	require.NoError(t, err)
	require.NoError(t, os.Remove(info.Path))

	_, ok, err := s.LookupArtifact(ctx, "h2", "fast")
	require.NoError(t, err)
	require.False(t, ok, "manifest row without blob must read as a miss")
}

func TestClear_TierScoped(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WritePage(ctx, "page1", []byte("p")))
	_, err := s.StoreArtifact(ctx, Artifact{SourceHash: "h3", Tier: "fast", Name: "c.png", Data: []byte("x")})
	require.NoError(t, err)
	_, err = s.StoreArtifact(ctx, Artifact{SourceHash: "h3", Tier: "high", Name: "c.png", Data: []byte("y")})
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx, "fast"))

	_, ok, err := s.LookupArtifact(ctx, "h3", "fast")
	require.NoError(t, err)
	require.False(t, ok)
	_, ok, err = s.LookupArtifact(ctx, "h3", "high")
	require.NoError(t, err)
	require.True(t, ok, "clearing one tier must not touch the other")
	_, err = s.ReadPage(ctx, "page1")
	require.NoError(t, err, "clearing a tier must not touch pages")
}

func TestStats_CountsNamespaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WritePage(ctx, "p1", []byte("abc")))
	require.NoError(t, s.WritePage(ctx, "p2", []byte("de")))
	_, err := s.StoreArtifact(ctx, Artifact{SourceHash: "h4", Tier: "fast", Name: "d.png", Data: []byte("12345")})
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, st.Pages)
	require.Equal(t, int64(5), st.PageBytes)
	require.Equal(t, 1, st.Artifacts["fast"])
	require.Equal(t, int64(5), st.ArtifactBytes["fast"])
}

func TestOpen_SecondProcessLockRefused(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir)
	require.NoError(t, err)
	defer s1.Close()

	_, err = Open(dir)
	require.Error(t, err, "second open of a locked cache must fail")
}

func TestWriteAtomic_LeavesNoTempFiles(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.WritePage(ctx, "p1", []byte("abc")))

	entries, err := os.ReadDir(filepath.Join(s.Root(), "pages"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "p1", entries[0].Name())
}
