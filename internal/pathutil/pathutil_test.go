package pathutil

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexFold(t *testing.T) {
	tests := []struct {
		s, sub string
		want   int
	}{
		{`C:\Users\bob\AppData\Roaming\x`, `appdata\roaming`, 13},
		{`C:\Users\bob\APPDATA\ROAMING\x`, `AppData\Roaming`, 13},
		{"abc", "", 0},
		{"abc", "abcd", -1},
		{"héllo wörld", "WÖRLD", 7},
		{"nothing here", "appdata", -1},
	}
	for _, tt := range tests {
		t.Run(tt.s+"/"+tt.sub, func(t *testing.T) {
			assert.Equal(t, tt.want, IndexFold(tt.s, tt.sub))
		})
	}
}

func TestFindSegments(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		marker    string
		wantOK    bool
		wantMatch string
	}{
		{"backslash path", `C:\Users\bob\AppData\Roaming\app\f.mp4`, `AppData\Roaming`, true, `AppData/Roaming`},
		{"forward slash path", `C:/Users/bob/appdata/roaming/f.mp4`, `AppData\Roaming`, true, `appdata/roaming`},
		{"mixed case", `C:\Users\bob\aPpDaTa\rOaMiNg`, `AppData\Roaming`, true, `aPpDaTa/rOaMiNg`},
		{"LocalLow is not Local", `C:\Users\bob\AppData\LocalLow\f.png`, `AppData\Local`, false, ""},
		{"later real match after partial", `C:\AppData\LocalLow\AppData\Local\f`, `AppData\Local`, true, `AppData/Local`},
		{"partial left segment", `C:\XAppData\Roaming\f`, `AppData\Roaming`, false, ""},
		{"empty marker", `C:\f`, ``, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, ok := FindSegments(tt.path, tt.marker)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantMatch, ToSlash(tt.path)[start:end])
			}
		})
	}
}

func TestJoinAndBase(t *testing.T) {
	got := Join("/roots/cache", `Roaming\app\clip.mp4`)
	assert.Equal(t, filepath.Join("/roots/cache", "Roaming", "app", "clip.mp4"), got)

	assert.Equal(t, filepath.Clean("/roots/cache"), Join("/roots/cache", "", `\`))
	assert.Equal(t, "clip.mp4", Base(`C:\a\b/clip.mp4`))
	assert.Equal(t, "", Base(`\\`))
}

func TestHasPrefixFold(t *testing.T) {
	assert.True(t, HasPrefixFold(`C:\Users\Bob\Packages\X\LocalCache\a.png`, `c:/users/bob/packages/x/localcache`))
	assert.True(t, HasPrefixFold(`C:\root`, `C:\root\`))
	assert.False(t, HasPrefixFold(`C:\rootless\a`, `C:\root`))
	assert.False(t, HasPrefixFold(`C:\a`, ``))
	assert.True(t, HasPrefixFold(`\\?\C:\root\a`, `C:\root`))
}

func TestPathKinds(t *testing.T) {
	assert.True(t, IsDriveAbs(`C:\x`))
	assert.True(t, IsDriveAbs(`d:/x`))
	assert.False(t, IsDriveAbs(`C:x`))
	assert.False(t, IsDriveAbs(`/usr/x`))

	assert.True(t, IsUNC(`\\server\share\x`))
	assert.False(t, IsUNC(`\\?\C:\x`))
	assert.False(t, IsUNC(`\\.\pipe\x`))
	assert.False(t, IsUNC(`/x`))
}

func TestExtendedRoundTrip(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`C:\videos\a.mp4`, `\\?\C:\videos\a.mp4`},
		{`C:/videos/a.mp4`, `\\?\C:\videos\a.mp4`},
		{`\\nas\media\a.mp4`, `\\?\UNC\nas\media\a.mp4`},
		{`\\?\C:\already`, `\\?\C:\already`},
		{`relative\a.mp4`, `relative\a.mp4`},
		{`/posix/a.mp4`, `/posix/a.mp4`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Extended(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Extended(got), "Extended must be idempotent")
		})
	}

	assert.Equal(t, `\\nas\media\a.mp4`, StripExtended(`\\?\UNC\nas\media\a.mp4`))
	assert.Equal(t, `C:\videos\a.mp4`, StripExtended(`\\?\C:\videos\a.mp4`))
	assert.Equal(t, `/posix`, StripExtended(`/posix`))
}

func TestNeedsExtended(t *testing.T) {
	long := `C:\` + strings.Repeat("d", MaxPath)
	assert.True(t, NeedsExtended(long))
	assert.False(t, NeedsExtended(`C:\short`))
	assert.False(t, NeedsExtended("/"+strings.Repeat("d", MaxPath)))
}

func TestForProbeAndLegacyOnThisHost(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("host without a legacy path limit only")
	}
	long := "/" + strings.Repeat("d", MaxPath+10)
	assert.Equal(t, long, ForProbe(long))

	got, err := ForLegacyAPI(long)
	require.NoError(t, err)
	assert.Equal(t, long, got)

	got, err = ForLegacyAPI(`\\?\C:\videos\a.mp4`)
	require.NoError(t, err)
	assert.Equal(t, `C:\videos\a.mp4`, got)
}
