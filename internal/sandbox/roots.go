package sandbox

import (
	"context"
	"errors"
	"os"

	"native-thumbnail/internal/pathutil"
)

// ErrNoRoots is returned by a RootsProvider that cannot locate the package
// directories on this host.
var ErrNoRoots = errors.New("sandbox roots unavailable")

// RootKind names one of the real directories backing sandboxed paths.
type RootKind string

const (
	// RootLocalCache is the package's LocalCache folder, where writes to
	// AppData\Roaming and AppData\Local are redirected. It is the primary root.
	RootLocalCache RootKind = "local_cache"
	// RootRoamingState is the package's RoamingState (roaming app data) folder.
	RootRoamingState RootKind = "roaming_state"
	// RootLocalState is the package's LocalState (local app data) folder.
	RootLocalState RootKind = "local_state"
)

// Roots are the real-filesystem directories behind the sandbox, as reported by
// the host at call time. Empty fields are skipped.
type Roots struct {
	LocalCache   string `yaml:"local_cache" json:"localCache"`
	RoamingState string `yaml:"roaming_state" json:"roamingState"`
	LocalState   string `yaml:"local_state" json:"localState"`
}

// Get returns the directory for kind.
func (r Roots) Get(kind RootKind) string {
	switch kind {
	case RootLocalCache:
		return r.LocalCache
	case RootRoamingState:
		return r.RoamingState
	case RootLocalState:
		return r.LocalState
	default:
		return ""
	}
}

// All returns the non-empty roots in priority order.
func (r Roots) All() []string {
	out := make([]string, 0, 3)
	for _, p := range []string{r.LocalCache, r.RoamingState, r.LocalState} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsZero reports whether no root is set.
func (r Roots) IsZero() bool {
	return len(r.All()) == 0
}

// RootsProvider reports the sandbox roots. Resolvers call it on every
// resolution because the roots can change between app sessions.
type RootsProvider interface {
	Roots(ctx context.Context) (Roots, error)
}

// StaticRoots is a RootsProvider with fixed directories.
type StaticRoots Roots

// Roots implements RootsProvider.
func (s StaticRoots) Roots(context.Context) (Roots, error) {
	return Roots(s), nil
}

// EnvRoots derives the roots of an installed package from LOCALAPPDATA:
// %LOCALAPPDATA%\Packages\<PackageFamily>\{LocalCache,RoamingState,LocalState}.
type EnvRoots struct {
	PackageFamily string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Roots implements RootsProvider. The environment is read on every call.
func (e EnvRoots) Roots(context.Context) (Roots, error) {
	getenv := e.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	local := getenv("LOCALAPPDATA")
	if local == "" || e.PackageFamily == "" {
		return Roots{}, ErrNoRoots
	}
	base := pathutil.Join(local, "Packages", e.PackageFamily)
	return Roots{
		LocalCache:   pathutil.Join(base, "LocalCache"),
		RoamingState: pathutil.Join(base, "RoamingState"),
		LocalState:   pathutil.Join(base, "LocalState"),
	}, nil
}

// ChainRoots asks each provider in turn and returns the first usable answer.
type ChainRoots []RootsProvider

// Roots implements RootsProvider.
func (c ChainRoots) Roots(ctx context.Context) (Roots, error) {
	lastErr := ErrNoRoots
	for _, p := range c {
		r, err := p.Roots(ctx)
		if err == nil && !r.IsZero() {
			return r, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	return Roots{}, lastErr
}
