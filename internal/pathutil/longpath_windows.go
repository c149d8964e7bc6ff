//go:build windows

package pathutil

import (
	"golang.org/x/sys/windows"
)

const (
	extendedSupported = true
	legacyLimit       = true
)

// shortPath asks the filesystem for the 8.3 alias of p. Volumes with short
// names disabled return an error or the long name unchanged.
func shortPath(p string) (string, error) {
	long, err := windows.UTF16PtrFromString(Extended(p))
	if err != nil {
		return "", err
	}
	n, err := windows.GetShortPathName(long, nil, 0)
	if err != nil {
		return "", err
	}
	buf := make([]uint16, n)
	n, err = windows.GetShortPathName(long, &buf[0], uint32(len(buf)))
	if err != nil {
		return "", err
	}
	return StripExtended(windows.UTF16ToString(buf[:n])), nil
}
