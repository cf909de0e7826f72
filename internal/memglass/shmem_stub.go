//go:build !linux && !darwin

package memglass

import (
	"errors"
	"os"
)

// ErrPlatformUnsupported is returned by the shared-memory primitive on
// platforms this build has no mmap implementation for. spec.md §6 treats
// the primitive as an external collaborator with POSIX mmap and Windows
// file-mapping implementations; only the POSIX path is implemented here.
var ErrPlatformUnsupported = errors.New("memglass: shared-memory primitive not implemented on this platform")

func init() {
	mapRegion = func(*os.File, int) ([]byte, error) { return nil, ErrPlatformUnsupported }
	unmapRegion = func([]byte) error { return ErrPlatformUnsupported }
}

func createNamed(name string, size uint64) (*mappedRegion, error) {
	return nil, ErrPlatformUnsupported
}

func openNamed(name string) (*mappedRegion, error) {
	return nil, ErrPlatformUnsupported
}

func unlinkNamed(name string) error {
	return ErrPlatformUnsupported
}
