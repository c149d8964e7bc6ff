package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const family = "Contoso.Player_8wekyb3d8bbwe"

type fixture struct {
	base  string
	roots Roots
}

// newFixture lays out a package directory the way the OS does:
// <tmp>/Packages/<family>/{LocalCache,RoamingState,LocalState}.
func newFixture(t *testing.T) fixture {
	t.Helper()
	base := filepath.Join(t.TempDir(), "Packages", family)
	roots := Roots{
		LocalCache:   filepath.Join(base, "LocalCache"),
		RoamingState: filepath.Join(base, "RoamingState"),
		LocalState:   filepath.Join(base, "LocalState"),
	}
	for _, d := range roots.All() {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	return fixture{base: base, roots: roots}
}

func touch(t *testing.T, parts ...string) string {
	t.Helper()
	p := filepath.Join(parts...)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	return p
}

type countingRoots struct {
	roots Roots
	calls int
}

func (c *countingRoots) Roots(context.Context) (Roots, error) {
	c.calls++
	return c.roots, nil
}

func TestCandidatesPriorityOrder(t *testing.T) {
	fx := newFixture(t)
	logical := `C:\Users\bob\AppData\Roaming\player\thumbs\clip.mp4`

	got := Candidates(logical, fx.roots)
	require.Len(t, got, 3)

	assert.Equal(t, filepath.Join(fx.roots.LocalCache, "Roaming", "player", "thumbs", "clip.mp4"), got[0].Path)
	assert.Equal(t, RootLocalCache, got[0].Root)
	assert.Equal(t, filepath.Join(fx.roots.RoamingState, "player", "thumbs", "clip.mp4"), got[1].Path)
	assert.Equal(t, RootRoamingState, got[1].Root)
	assert.Equal(t, filepath.Join(fx.roots.RoamingState, "clip.mp4"), got[2].Path)
	assert.Equal(t, SuffixBaseName, got[2].Rule)

	local := Candidates(`C:\Users\bob\AppData\Local\player\a.png`, fx.roots)
	require.Len(t, local, 3)
	assert.Equal(t, filepath.Join(fx.roots.LocalCache, "Local", "player", "a.png"), local[0].Path)
	assert.Equal(t, filepath.Join(fx.roots.LocalState, "player", "a.png"), local[1].Path)
	assert.Equal(t, filepath.Join(fx.roots.LocalState, "a.png"), local[2].Path)

	top := Candidates(`C:\Users\bob\AppData\Local\a.png`, fx.roots)
	require.Len(t, top, 2, "base-name duplicate of a top-level file is dropped")

	assert.Empty(t, Candidates(`D:\videos\clip.mp4`, fx.roots))
	assert.Empty(t, Candidates(`C:\Users\bob\AppData\LocalLow\clip.mp4`, fx.roots))
}

func TestCandidatesSkipUnsetRoots(t *testing.T) {
	got := Candidates(`C:\Users\bob\AppData\Roaming\a\b.mp4`, Roots{RoamingState: "/state"})
	require.Len(t, got, 2)
	assert.Equal(t, RootRoamingState, got[0].Root)
}

func TestIsPhysical(t *testing.T) {
	fx := newFixture(t)

	assert.True(t, IsPhysical(filepath.Join(fx.roots.LocalCache, "Roaming", "a.mp4"), fx.roots))
	assert.True(t, IsPhysical(`C:\Users\bob\AppData\Local\Packages\Other_123\LocalState\a.mp4`, Roots{}))
	assert.True(t, IsPhysical(`c:\users\bob\appdata\local\packages\x\roamingstate\a.mp4`, Roots{}))
	assert.False(t, IsPhysical(`C:\Users\bob\AppData\Roaming\a.mp4`, fx.roots))
	assert.False(t, IsPhysical(`C:\Packages\notes.txt`, Roots{}))
}

func TestSourcePrimaryRootWins(t *testing.T) {
	fx := newFixture(t)
	primary := touch(t, fx.roots.LocalCache, "Roaming", "player", "clip.mp4")
	touch(t, fx.roots.RoamingState, "player", "clip.mp4")

	r := New(StaticRoots(fx.roots))
	res, err := r.Source(context.Background(), `C:\Users\bob\AppData\Roaming\player\clip.mp4`)
	require.NoError(t, err)
	assert.Equal(t, primary, res.Path.String())
	assert.Equal(t, MethodSandbox, res.Method)
	require.NotNil(t, res.Candidate)
	assert.Equal(t, RootLocalCache, res.Candidate.Root)
}

func TestSourceFallsBackInOrder(t *testing.T) {
	fx := newFixture(t)
	r := New(StaticRoots(fx.roots))
	logical := `C:\Users\bob\AppData\Roaming\player\clip.mp4`

	baseOnly := touch(t, fx.roots.RoamingState, "clip.mp4")
	res, err := r.Source(context.Background(), logical)
	require.NoError(t, err)
	assert.Equal(t, baseOnly, res.Path.String())
	assert.Equal(t, SuffixBaseName, res.Candidate.Rule)

	state := touch(t, fx.roots.RoamingState, "player", "clip.mp4")
	res, err = r.Source(context.Background(), logical)
	require.NoError(t, err)
	assert.Equal(t, state, res.Path.String())
}

func TestSourceCaseInsensitiveMarker(t *testing.T) {
	fx := newFixture(t)
	touch(t, fx.roots.LocalCache, "Roaming", "player", "clip.mp4")
	r := New(StaticRoots(fx.roots))

	canonical, err := r.Source(context.Background(), `C:\Users\bob\AppData\Roaming\player\clip.mp4`)
	require.NoError(t, err)

	for _, variant := range []string{
		`C:\Users\bob\appdata\roaming\player\clip.mp4`,
		`C:\Users\bob\APPDATA\ROAMING\player\clip.mp4`,
		`C:/Users/bob/AppData/Roaming/player/clip.mp4`,
	} {
		got, err := r.Source(context.Background(), variant)
		require.NoError(t, err, variant)
		assert.Equal(t, canonical.Path, got.Path, variant)
	}
}

func TestSourceNeverReturnsMissingPath(t *testing.T) {
	fx := newFixture(t)
	r := New(StaticRoots(fx.roots))

	_, err := r.Source(context.Background(), `C:\Users\bob\AppData\Roaming\player\missing.mp4`)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Source(context.Background(), filepath.Join(t.TempDir(), "nowhere.mp4"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Source(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyPath)
}

func TestSourceDirectProbe(t *testing.T) {
	direct := touch(t, t.TempDir(), "videos", "clip.mp4")
	r := New(StaticRoots{})

	res, err := r.Source(context.Background(), direct)
	require.NoError(t, err)
	assert.Equal(t, direct, res.Path.String())
	assert.Equal(t, MethodDirect, res.Method)

	_, err = r.Source(context.Background(), filepath.Dir(direct))
	assert.ErrorIs(t, err, ErrNotFound, "directories are not sources")
}

func TestSourcePhysicalIsProbedNotAssumed(t *testing.T) {
	fx := newFixture(t)
	r := New(StaticRoots(fx.roots))

	missing := filepath.Join(fx.roots.LocalState, "gone.mp4")
	_, err := r.Source(context.Background(), missing)
	assert.ErrorIs(t, err, ErrNotFound)

	present := touch(t, fx.roots.LocalState, "here.mp4")
	res, err := r.Source(context.Background(), present)
	require.NoError(t, err)
	assert.Equal(t, present, res.Path.String(), "physical paths are not rewritten")
	assert.Equal(t, MethodPhysical, res.Method)
}

func TestSourceIdempotentAndRootsQueriedEachCall(t *testing.T) {
	fx := newFixture(t)
	touch(t, fx.roots.LocalCache, "Roaming", "a.mp4")
	provider := &countingRoots{roots: fx.roots}
	r := New(provider)
	logical := `C:\Users\bob\AppData\Roaming\a.mp4`

	first, err1 := r.Source(context.Background(), logical)
	second, err2 := r.Source(context.Background(), logical)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first.Path, second.Path)
	assert.Equal(t, 2, provider.calls)

	_, err1 = r.Source(context.Background(), `C:\Users\bob\AppData\Roaming\b.mp4`)
	_, err2 = r.Source(context.Background(), `C:\Users\bob\AppData\Roaming\b.mp4`)
	assert.ErrorIs(t, err1, ErrNotFound)
	assert.ErrorIs(t, err2, ErrNotFound)
}

func TestDestination(t *testing.T) {
	fx := newFixture(t)
	r := New(StaticRoots(fx.roots))
	ctx := context.Background()

	res, err := r.Destination(ctx, `C:\Users\bob\AppData\Roaming\player\thumbs\clip.png`)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fx.roots.LocalCache, "Roaming", "player", "thumbs", "clip.png"), res.Path.String())
	assert.Equal(t, MethodSandbox, res.Method)

	require.NoError(t, os.RemoveAll(fx.roots.LocalCache))
	res, err = r.Destination(ctx, `C:\Users\bob\AppData\Roaming\player\thumbs\clip.png`)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fx.roots.RoamingState, "player", "thumbs", "clip.png"), res.Path.String())

	for _, d := range fx.roots.All() {
		require.NoError(t, os.RemoveAll(d))
	}
	res, err = r.Destination(ctx, `C:\Users\bob\AppData\Roaming\player\thumbs\clip.png`)
	require.NoError(t, err)
	assert.Equal(t, MethodBestGuess, res.Method)
	assert.True(t, strings.HasPrefix(res.Path.String(), fx.roots.LocalCache))

	plain := filepath.Join(t.TempDir(), "not", "yet", "there.jpg")
	res, err = r.Destination(ctx, plain)
	require.NoError(t, err)
	assert.Equal(t, plain, res.Path.String())
	assert.Equal(t, MethodDirect, res.Method)
}

func TestEnvRoots(t *testing.T) {
	env := map[string]string{"LOCALAPPDATA": "/home/bob/AppData/Local"}
	p := EnvRoots{PackageFamily: family, Getenv: func(k string) string { return env[k] }}

	roots, err := p.Roots(context.Background())
	require.NoError(t, err)
	base := filepath.Join("/home/bob/AppData/Local", "Packages", family)
	assert.Equal(t, filepath.Join(base, "LocalCache"), roots.LocalCache)
	assert.Equal(t, filepath.Join(base, "RoamingState"), roots.RoamingState)
	assert.Equal(t, filepath.Join(base, "LocalState"), roots.LocalState)

	env["LOCALAPPDATA"] = "/other"
	roots, err = p.Roots(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(roots.LocalCache, "/other"), "environment is re-read per call")

	_, err = EnvRoots{Getenv: func(string) string { return "" }}.Roots(context.Background())
	assert.ErrorIs(t, err, ErrNoRoots)
}

func TestChainRoots(t *testing.T) {
	chain := ChainRoots{
		EnvRoots{PackageFamily: family, Getenv: func(string) string { return "" }},
		StaticRoots{RoamingState: "/state"},
	}
	roots, err := chain.Roots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/state", roots.RoamingState)

	_, err = ChainRoots{StaticRoots{}}.Roots(context.Background())
	assert.ErrorIs(t, err, ErrNoRoots)
}
