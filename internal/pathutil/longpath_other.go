//go:build !windows

package pathutil

const (
	extendedSupported = false
	legacyLimit       = false
)

func shortPath(p string) (string, error) {
	return "", ErrPathTooLong
}
