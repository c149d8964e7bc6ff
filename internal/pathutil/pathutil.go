// Package pathutil canonicalizes path strings for existence checks and for the
// decoders that consume them. It understands both separators, drive-letter and
// UNC roots, and the extended-length (\\?\) form, independent of the host OS.
package pathutil

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxPath is the traditional path length limit. Paths at or above it need the
// extended-length form for probing and an alias for tools that reject that form.
const MaxPath = 260

const (
	extendedPrefix    = `\\?\`
	extendedUNCPrefix = `\\?\UNC\`
)

// ErrPathTooLong is returned when a path exceeds MaxPath and no short alias exists.
var ErrPathTooLong = errors.New("path exceeds the legacy length limit and has no short form")

func isSep(c byte) bool {
	return c == '\\' || c == '/'
}

// ToSlash rewrites every backslash as a forward slash.
func ToSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// IndexFold is strings.Index with Unicode case folding. The returned offset is
// into s. Only windows of s with the same byte length as substr are compared.
func IndexFold(s, substr string) int {
	n := len(substr)
	if n == 0 {
		return 0
	}
	for i := 0; i+n <= len(s); {
		if strings.EqualFold(s[i:i+n], substr) {
			return i
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1
}

// FindSegments locates marker (a relative path such as `AppData\Roaming`) in p
// as a run of whole path segments, ignoring case and separator style. It returns
// the byte span of the match in p. The match must start at the beginning of p or
// right after a separator, and end at the end of p or right before a separator.
func FindSegments(p, marker string) (start, end int, ok bool) {
	slashed := ToSlash(p)
	m := strings.Trim(ToSlash(marker), "/")
	if m == "" {
		return 0, 0, false
	}
	for from := 0; from < len(slashed); {
		i := IndexFold(slashed[from:], m)
		if i < 0 {
			return 0, 0, false
		}
		i += from
		j := i + len(m)
		leftOK := i == 0 || slashed[i-1] == '/'
		rightOK := j == len(slashed) || slashed[j] == '/'
		if leftOK && rightOK {
			return i, j, true
		}
		_, size := utf8.DecodeRuneInString(slashed[i:])
		from = i + size
	}
	return 0, 0, false
}

// Segments splits p on either separator, dropping empty elements.
func Segments(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '\\' || r == '/' })
}

// TrimSeparators removes leading and trailing separators.
func TrimSeparators(p string) string {
	return strings.Trim(p, `\/`)
}

// Join appends a suffix written with either separator to root, producing a path
// in the host's native separator style.
func Join(root string, suffix ...string) string {
	parts := make([]string, 0, len(suffix)+1)
	parts = append(parts, filepath.FromSlash(ToSlash(root)))
	for _, s := range suffix {
		s = TrimSeparators(s)
		if s == "" {
			continue
		}
		parts = append(parts, filepath.FromSlash(ToSlash(s)))
	}
	return filepath.Join(parts...)
}

// Base returns the last element of p, accepting either separator.
func Base(p string) string {
	segs := Segments(p)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// HasPrefixFold reports whether p lies under root, ignoring case and separator style.
func HasPrefixFold(p, root string) bool {
	r := strings.TrimRight(ToSlash(StripExtended(root)), "/")
	if r == "" {
		return false
	}
	q := ToSlash(StripExtended(p))
	if len(q) < len(r) || !strings.EqualFold(q[:len(r)], r) {
		return false
	}
	return len(q) == len(r) || q[len(r)] == '/'
}

// IsExtended reports whether p already uses the \\?\ form.
func IsExtended(p string) bool {
	return strings.HasPrefix(p, extendedPrefix)
}

// IsUNC reports whether p is a network path (\\server\share\...).
func IsUNC(p string) bool {
	return len(p) > 2 && isSep(p[0]) && isSep(p[1]) && p[2] != '?' && p[2] != '.' && !isSep(p[2])
}

// IsDriveAbs reports whether p is a drive-rooted absolute path (C:\...).
func IsDriveAbs(p string) bool {
	if len(p) < 3 || p[1] != ':' || !isSep(p[2]) {
		return false
	}
	c := p[0] | 0x20
	return c >= 'a' && c <= 'z'
}

// Extended converts drive and UNC paths to the extended-length form. Other
// paths (relative, POSIX, already extended) are returned unchanged.
func Extended(p string) string {
	switch {
	case IsExtended(p):
		return p
	case IsUNC(p):
		return extendedUNCPrefix + strings.ReplaceAll(p[2:], "/", `\`)
	case IsDriveAbs(p):
		return extendedPrefix + strings.ReplaceAll(p, "/", `\`)
	default:
		return p
	}
}

// StripExtended undoes Extended.
func StripExtended(p string) string {
	switch {
	case strings.HasPrefix(p, extendedUNCPrefix):
		return `\\` + p[len(extendedUNCPrefix):]
	case strings.HasPrefix(p, extendedPrefix):
		return p[len(extendedPrefix):]
	default:
		return p
	}
}

// NeedsExtended reports whether p is long enough that probing it requires the
// extended-length form.
func NeedsExtended(p string) bool {
	return len(p) >= MaxPath && (IsDriveAbs(p) || IsUNC(p))
}

// ForProbe returns the form of p to hand to stat/open calls on this host.
func ForProbe(p string) string {
	if extendedSupported && NeedsExtended(p) {
		return Extended(p)
	}
	return p
}

// ForLegacyAPI returns a form of p accepted by tools that reject extended-length
// paths: p itself when short enough, else its short alias.
func ForLegacyAPI(p string) (string, error) {
	plain := StripExtended(p)
	if !legacyLimit || len(plain) < MaxPath {
		return plain, nil
	}
	short, err := shortPath(plain)
	if err != nil || short == "" || len(short) >= MaxPath {
		return "", ErrPathTooLong
	}
	return short, nil
}
