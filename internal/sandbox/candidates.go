package sandbox

import (
	"strings"

	"native-thumbnail/internal/pathutil"
)

// Category is the kind of sandboxed location a logical path points into.
type Category string

const (
	CategoryRoaming Category = "roaming"
	CategoryLocal   Category = "local"
)

// Marker is a segment sequence that identifies a sandboxed logical path.
type Marker struct {
	Category Category
	Segments string
}

// Markers are checked in order; the first match wins.
var Markers = []Marker{
	{Category: CategoryRoaming, Segments: `AppData\Roaming`},
	{Category: CategoryLocal, Segments: `AppData\Local`},
}

// SuffixRule says which part of the logical path is appended to a root.
type SuffixRule string

const (
	// SuffixAfterMarker keeps everything after the marker segments.
	SuffixAfterMarker SuffixRule = "after_marker"
	// SuffixBaseName keeps only the file name.
	SuffixBaseName SuffixRule = "base_name"
)

type candidateRule struct {
	root   RootKind
	subdir string
	rule   SuffixRule
}

// candidateRules is the fixed priority order per category. The package cache
// root comes first; the state folder is the fallback; a bare file name directly
// under the state folder is the last resort.
var candidateRules = map[Category][]candidateRule{
	CategoryRoaming: {
		{root: RootLocalCache, subdir: "Roaming", rule: SuffixAfterMarker},
		{root: RootRoamingState, rule: SuffixAfterMarker},
		{root: RootRoamingState, rule: SuffixBaseName},
	},
	CategoryLocal: {
		{root: RootLocalCache, subdir: "Local", rule: SuffixAfterMarker},
		{root: RootLocalState, rule: SuffixAfterMarker},
		{root: RootLocalState, rule: SuffixBaseName},
	},
}

// packageFolders are the per-package directories that only exist on the real
// filesystem, so a path through them is already physical.
var packageFolders = map[string]bool{
	"localcache":   true,
	"localstate":   true,
	"roamingstate": true,
	"tempstate":    true,
	"ac":           true,
}

// Candidate is one physical path to try for a logical path.
type Candidate struct {
	Path     string
	Root     RootKind
	Rule     SuffixRule
	Category Category
}

// MatchMarker returns the first marker found in logical and the text that
// follows it (without leading separators).
func MatchMarker(logical string) (Marker, string, bool) {
	for _, m := range Markers {
		if _, end, ok := pathutil.FindSegments(logical, m.Segments); ok {
			return m, pathutil.TrimSeparators(logical[end:]), true
		}
	}
	return Marker{}, "", false
}

// IsPhysical reports whether logical already names the real filesystem: it lies
// under one of the roots, or runs through Packages\<family>\<package folder>.
func IsPhysical(logical string, roots Roots) bool {
	for _, root := range roots.All() {
		if pathutil.HasPrefixFold(logical, root) {
			return true
		}
	}
	segs := pathutil.Segments(logical)
	for i := 0; i+2 < len(segs); i++ {
		if strings.EqualFold(segs[i], "Packages") && packageFolders[strings.ToLower(segs[i+2])] {
			return true
		}
	}
	return false
}

// Candidates lists the physical paths to try for logical, in priority order.
// It is empty when logical contains no sandbox marker. Roots that are unset are
// skipped and duplicate paths are dropped.
func Candidates(logical string, roots Roots) []Candidate {
	marker, suffix, ok := MatchMarker(logical)
	if !ok {
		return nil
	}
	base := pathutil.Base(suffix)

	seen := make(map[string]bool)
	var out []Candidate
	for _, rule := range candidateRules[marker.Category] {
		root := roots.Get(rule.root)
		if root == "" {
			continue
		}
		var tail string
		switch rule.rule {
		case SuffixAfterMarker:
			tail = suffix
		case SuffixBaseName:
			tail = base
		}
		if tail == "" {
			continue
		}
		p := pathutil.Join(root, rule.subdir, tail)
		key := strings.ToLower(pathutil.ToSlash(p))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Candidate{Path: p, Root: rule.root, Rule: rule.rule, Category: marker.Category})
	}
	return out
}
