package memglass

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// DirectoryDescriptor locates a fixed-capacity directory of entries: its
// byte offset inside the owning region, its fixed capacity, and an atomic
// count of entries currently in use. Directory counts only increase while
// a session is live (invariant 5).
type DirectoryDescriptor struct {
	offset   uint32
	capacity uint32
	count    uint32
	_pad     uint32
}

// Offset returns the directory's byte offset inside its owning region.
func (d *DirectoryDescriptor) Offset() uint32 { return d.offset }

// Capacity returns the directory's fixed entry capacity.
func (d *DirectoryDescriptor) Capacity() uint32 { return d.capacity }

// Count returns the directory's current entry count (acquire load).
func (d *DirectoryDescriptor) Count() uint32 { return atomic.LoadUint32(&d.count) }

// tryReserve attempts to reserve the next slot, returning its index and
// true on success, or false if the directory is full. Callers must already
// hold whatever external mutex guards this directory's mutator side (the
// metadata manager's mutex); this does a simple bounds-checked increment,
// not a lock-free CAS loop, matching spec.md §4.C's "CAS/serialize on the
// count" phrasing where the serialization is the manager's mutex.
func (d *DirectoryDescriptor) tryReserve() (uint32, bool) {
	n := atomic.LoadUint32(&d.count)
	if n >= d.capacity {
		return 0, false
	}
	atomic.StoreUint32(&d.count, n+1)
	return n, true
}

// SessionHeader is the fixed-size record at the start of a session's header
// region (spec.md §3). The type/field/object directories it describes are
// laid out in the header region immediately after this struct, in that
// order, each with its own chosen capacity.
type SessionHeader struct {
	magic         uint64
	version       uint32
	headerSize    uint32
	sequence      uint64 // atomic, monotonically increasing
	typeDir       DirectoryDescriptor
	fieldDir      DirectoryDescriptor
	objectDir     DirectoryDescriptor
	firstRegionID uint32
	firstMetaID   uint32 // atomic; 0 until the first overflow region exists
	producerPID   uint32
	startUnixNano int64
	name          [maxSessionNameLen + 1]byte
}

// Magic returns the header magic constant.
func (h *SessionHeader) Magic() uint64 { return atomic.LoadUint64(&h.magic) }

// Version returns the protocol version.
func (h *SessionHeader) Version() uint32 { return atomic.LoadUint32(&h.version) }

// HeaderSize returns the size in bytes of the SessionHeader struct as
// written by the producer that created this session.
func (h *SessionHeader) HeaderSize() uint32 { return atomic.LoadUint32(&h.headerSize) }

// Sequence returns the session's monotonic change sequence (acquire load).
func (h *SessionHeader) Sequence() uint64 { return atomic.LoadUint64(&h.sequence) }

// bumpSequence increments the sequence counter with release ordering and
// returns the new value. Every structural mutation (new type, new object,
// destroy, new region) must call this after its effect is published.
func (h *SessionHeader) bumpSequence() uint64 { return atomic.AddUint64(&h.sequence, 1) }

// FirstRegionID returns the id of the first data region.
func (h *SessionHeader) FirstRegionID() uint32 { return atomic.LoadUint32(&h.firstRegionID) }

// FirstMetaID returns the id of the first metadata overflow region, or 0 if
// none has been created yet.
func (h *SessionHeader) FirstMetaID() uint32 { return atomic.LoadUint32(&h.firstMetaID) }

func (h *SessionHeader) setFirstMetaID(id uint32) {
	atomic.StoreUint32(&h.firstMetaID, id)
}

// ProducerPID returns the producer process id that created this session.
func (h *SessionHeader) ProducerPID() uint32 { return atomic.LoadUint32(&h.producerPID) }

// StartUnixNano returns the session's start timestamp.
func (h *SessionHeader) StartUnixNano() int64 { return atomic.LoadInt64(&h.startUnixNano) }

// Name returns the session's name.
func (h *SessionHeader) Name() string { return getPaddedName(h.name[:]) }

// headerDirectoriesBase returns the byte offset, relative to the start of
// the header region, where the type/field/object directory entry arrays
// begin: immediately after the SessionHeader struct.
const headerDirectoriesBase = uint32(unsafe.Sizeof(SessionHeader{}))

// headerView provides typed, pointer-arithmetic access to a mapped header
// region: the SessionHeader struct at offset 0, followed by the type,
// field, and object directory entry arrays.
type headerView struct {
	base unsafe.Pointer
}

func (h *headerView) header() *SessionHeader {
	return (*SessionHeader)(h.base)
}

func (h *headerView) typeEntry(i uint32) *TypeEntry {
	off := uintptr(h.header().typeDir.offset) + uintptr(i)*unsafe.Sizeof(TypeEntry{})
	return (*TypeEntry)(unsafe.Pointer(uintptr(h.base) + off))
}

func (h *headerView) fieldEntry(i uint32) *FieldEntry {
	off := uintptr(h.header().fieldDir.offset) + uintptr(i)*unsafe.Sizeof(FieldEntry{})
	return (*FieldEntry)(unsafe.Pointer(uintptr(h.base) + off))
}

func (h *headerView) objectEntry(i uint32) *ObjectEntry {
	off := uintptr(h.header().objectDir.offset) + uintptr(i)*unsafe.Sizeof(ObjectEntry{})
	return (*ObjectEntry)(unsafe.Pointer(uintptr(h.base) + off))
}

// validateHeader checks a mapped header's magic and version, returning
// ErrProtocolMismatch on any disagreement. This is the check every observer
// connect and every producer re-attach must perform before trusting the
// mapping (invariant 1).
func validateHeader(h *SessionHeader) error {
	if h.Magic() != headerMagic {
		return fmt.Errorf("%w: bad magic", ErrProtocolMismatch)
	}
	if h.Version() != protocolVersion {
		return fmt.Errorf("%w: version %d, expected %d", ErrProtocolMismatch, h.Version(), protocolVersion)
	}
	return nil
}
