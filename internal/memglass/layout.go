package memglass

import "fmt"

// Memory layout constants. Offsets and sizes are given in bytes; every
// fixed-layout record here is trivially copyable and naturally aligned, per
// the single-host, native-byte-order assumption of the on-disk format.
const (
	// headerMagic identifies a memglass session header region.
	headerMagic uint64 = 0x4d474c53535e4831 // "memglass H1" folded to 64 bits

	// regionMagic identifies a memglass data region.
	regionMagic uint64 = 0x4d474c535245474e // "memglass REGN"

	// overflowMagic identifies a memglass metadata overflow region.
	overflowMagic uint64 = 0x4d474c534d455441 // "memglass META"

	// protocolVersion is incremented on any layout-breaking change.
	protocolVersion uint32 = 1

	// maxSessionNameLen bounds a session name: printable ASCII, no path
	// separators, at most this many bytes.
	maxSessionNameLen = 63

	// typeNameCap bounds a registered type's null-padded name.
	typeNameCap = 64

	// fieldNameCap bounds a field's null-padded name, including dotted
	// nested-struct paths.
	fieldNameCap = 64

	// objectLabelCap bounds an object's null-padded label.
	objectLabelCap = 32

	// regionNameCap bounds a region or overflow region's null-padded
	// shared-memory name.
	regionNameCap = 64

	// primitiveTypeIDThreshold separates reserved built-in primitive type
	// ids (below) from user-defined type ids (at or above).
	primitiveTypeIDThreshold uint32 = 0x1000

	// defaultInitialRegionSize is the default size of the first data
	// region.
	defaultInitialRegionSize = 1 << 20 // 1 MiB

	// defaultMaxRegionSize caps geometric growth of new data regions.
	defaultMaxRegionSize = 64 << 20 // 64 MiB

	// defaultOverflowRegionSize is the default size of a metadata overflow
	// region.
	defaultOverflowRegionSize = 1 << 20 // 1 MiB

	// defaultHeaderTypeCapacity, defaultHeaderFieldCapacity, and
	// defaultHeaderObjectCapacity size the header's inline directories.
	defaultHeaderTypeCapacity   = 64
	defaultHeaderFieldCapacity  = 512
	defaultHeaderObjectCapacity = 256

	// overflowObjectShare, overflowTypeShare, and overflowFieldShare split
	// an overflow region's data area between its three sections, by
	// approximate byte share.
	overflowObjectShare = 0.50
	overflowTypeShare   = 0.10
	overflowFieldShare  = 0.40
)

// alignUp rounds size up to the next multiple of alignment. alignment must
// be a power of two.
func alignUp(size, alignment uint64) uint64 {
	if alignment == 0 {
		return size
	}
	return (size + alignment - 1) &^ (alignment - 1)
}

// headerName returns the shared-memory name for a session's header region.
func headerName(session string) string {
	return fmt.Sprintf("memglass_%s_header", session)
}

// regionName returns the shared-memory name for a data region.
func regionName(session string, id uint32) string {
	return fmt.Sprintf("memglass_%s_region_%04d", session, id)
}

// metaRegionName returns the shared-memory name for a metadata overflow
// region.
func metaRegionName(session string, id uint32) string {
	return fmt.Sprintf("memglass_%s_meta_%04d", session, id)
}

// validSessionName reports whether name meets the session name grammar:
// printable ASCII, no path separators, at most maxSessionNameLen bytes.
func validSessionName(name string) bool {
	if len(name) == 0 || len(name) > maxSessionNameLen {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '/' || c == '\\' {
			return false
		}
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// putPaddedName copies s into dst, null-padding (and truncating) to len(dst).
func putPaddedName(dst []byte, s string) {
	for i := range dst {
		dst[i] = 0
	}
	n := copy(dst, s)
	_ = n
}

// getPaddedName reads a null-padded name back out of src, stopping at the
// first null byte.
func getPaddedName(src []byte) string {
	for i, b := range src {
		if b == 0 {
			return string(src[:i])
		}
	}
	return string(src)
}
