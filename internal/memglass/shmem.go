package memglass

import "os"

// mappedRegion is a mapped, named byte region: the external collaborator
// spec.md §6 describes as "shared-memory primitive". Concrete platforms
// supply create/open/map/unlink; everything above this file is
// platform-neutral.
type mappedRegion struct {
	name string
	path string
	file *os.File
	mem  []byte
}

// Platform-specific function table, set by an init() in the build-tagged
// file that applies to the current platform (shmem_unix.go or
// shmem_stub.go), mirroring the teacher's unmapMemory function variable.
var (
	mapRegion   func(file *os.File, size int) ([]byte, error)
	unmapRegion func([]byte) error
)

// close unmaps the memory and closes the file descriptor, but does not
// remove the name from the namespace — that is unlinkNamed's job.
func (r *mappedRegion) close() error {
	var firstErr error
	if r.mem != nil {
		if err := unmapRegion(r.mem); err != nil && firstErr == nil {
			firstErr = err
		}
		r.mem = nil
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.file = nil
	}
	return firstErr
}
