//go:build linux || darwin

package memglass

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

func init() {
	mapRegion = mmapFile
	unmapRegion = munmapImpl
}

// shmDir returns the directory memglass uses for named shared-memory
// segments, preferring /dev/shm where available (Linux tmpfs-backed shared
// memory) and falling back to the OS temp directory otherwise.
func shmDir() string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

func shmPath(name string) string {
	return filepath.Join(shmDir(), "memglass_"+name)
}

// createNamed creates a new named byte region of the given size,
// zero-initialized, and returns it mapped and writable. It fails with
// ErrNameConflict if name already exists.
func createNamed(name string, size uint64) (*mappedRegion, error) {
	path := shmPath(name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNameConflict, name)
		}
		return nil, fmt.Errorf("create shared region %s: %w", name, err)
	}

	cleanup := func() {
		file.Close()
		os.Remove(path)
	}

	if err := file.Truncate(int64(size)); err != nil {
		cleanup()
		return nil, fmt.Errorf("resize shared region %s: %w", name, err)
	}

	mem, err := mapRegion(file, int(size))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("map shared region %s: %w", name, err)
	}

	return &mappedRegion{name: name, path: path, file: file, mem: mem}, nil
}

// openNamed opens an existing named byte region for read/write and returns
// it mapped.
func openNamed(name string) (*mappedRegion, error) {
	path := shmPath(name)

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSessionUnavailable, name)
		}
		return nil, fmt.Errorf("open shared region %s: %w", name, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat shared region %s: %w", name, err)
	}

	mem, err := mapRegion(file, int(info.Size()))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("map shared region %s: %w", name, err)
	}

	return &mappedRegion{name: name, path: path, file: file, mem: mem}, nil
}

// unlinkNamed removes name from the shared-memory namespace so that no
// future process can open it. Existing mappings remain valid until closed.
func unlinkNamed(name string) error {
	path := shmPath(name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unlink shared region %s: %w", name, err)
	}
	return nil
}

func mmapFile(file *os.File, size int) ([]byte, error) {
	data, err := syscall.Mmap(int(file.Fd()), 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return data, nil
}

func munmapImpl(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := syscall.Munmap(data); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}
