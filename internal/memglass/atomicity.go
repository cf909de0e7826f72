package memglass

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"unsafe"
)

// AtomicityTag identifies which in-memory layout and protocol guards a
// field's payload bytes (spec.md §4.D).
//
//go:generate go tool stringer -type=AtomicityTag -output atomicity_string.go
type AtomicityTag uint8

const (
	// AtomicityNone is a raw field: direct read, direct write, readers
	// accept the possibility of a torn multi-word value.
	AtomicityNone AtomicityTag = iota
	// AtomicityAtomic is a lock-free atomic cell: release stores, acquire
	// loads, limited to widths the platform provides lock-free atomics
	// for.
	AtomicityAtomic
	// AtomicitySeqlock is a guarded cell: an odd/even sequence counter
	// around a memcpy'd payload of any size.
	AtomicitySeqlock
	// AtomicityLocked is a spin-flag-guarded cell supporting exclusive
	// read, write, and update-in-place.
	AtomicityLocked
)

// guardedSeqSize and lockedFlagSize are the control-word sizes of the
// seqlock and spin-mutex wrappers: the payload begins immediately after.
const (
	guardedSeqSize = 4
	lockedFlagSize = 4
)

// payloadBytes returns a byte slice view of n bytes starting at ptr,
// without copying — callers use it to read or write directly into mapped
// shared memory, following the unsafe.Slice idiom used across the example
// pack for zero-copy views over foreign memory.
func payloadBytes(ptr unsafe.Pointer, n uint32) []byte {
	return unsafe.Slice((*byte)(ptr), n)
}

// RawRead copies n bytes from a None-atomicity field at ptr into out.
// Multi-word payloads may be observed torn under concurrent writes; that
// risk is the caller's to accept (spec.md invariant 7's documented
// exception).
func RawRead(ptr unsafe.Pointer, out []byte) {
	copy(out, payloadBytes(ptr, uint32(len(out))))
}

// RawWrite copies payload into a None-atomicity field at ptr.
func RawWrite(ptr unsafe.Pointer, payload []byte) {
	copy(payloadBytes(ptr, uint32(len(payload))), payload)
}

// AtomicLoad performs a lock-free acquire load of an Atomic-tagged field of
// the given width (4 or 8 bytes — the widths sync/atomic exposes lock-free
// primitives for) and returns it as a zero-extended uint64.
func AtomicLoad(ptr unsafe.Pointer, width uint32) (uint64, error) {
	switch width {
	case 4:
		return uint64(atomic.LoadUint32((*uint32)(ptr))), nil
	case 8:
		return atomic.LoadUint64((*uint64)(ptr)), nil
	default:
		return 0, fmt.Errorf("memglass: atomic width %d not supported (need 4 or 8)", width)
	}
}

// AtomicStore performs a lock-free release store of value, truncated to
// width bytes, into an Atomic-tagged field at ptr.
func AtomicStore(ptr unsafe.Pointer, width uint32, value uint64) error {
	switch width {
	case 4:
		atomic.StoreUint32((*uint32)(ptr), uint32(value))
	case 8:
		atomic.StoreUint64((*uint64)(ptr), value)
	default:
		return fmt.Errorf("memglass: atomic width %d not supported (need 4 or 8)", width)
	}
	return nil
}

// guardedSeq returns the 32-bit sequence counter at the start of a
// GuardedCell.
func guardedSeq(base unsafe.Pointer) *uint32 {
	return (*uint32)(base)
}

// guardedPayload returns the payload area of a GuardedCell, immediately
// after its sequence counter.
func guardedPayload(base unsafe.Pointer, payloadSize uint32) []byte {
	return payloadBytes(unsafe.Pointer(uintptr(base)+guardedSeqSize), payloadSize)
}

// GuardedWrite implements the seqlock writer protocol: increment the
// sequence (now odd), copy the payload in, then increment the sequence
// again (now even). Only the producer may call this.
func GuardedWrite(base unsafe.Pointer, payload []byte) {
	seq := guardedSeq(base)
	atomic.AddUint32(seq, 1) // now odd: a write is in progress
	copy(guardedPayload(base, uint32(len(payload))), payload)
	atomic.AddUint32(seq, 1) // now even: write published
}

// GuardedRead implements the seqlock blocking reader protocol: retry until
// a before/after sequence pair agree and is even, copying the payload into
// out on each attempt. It yields between retries rather than busy-spinning
// tightly, mirroring the example pack's seqlock readers.
func GuardedRead(base unsafe.Pointer, out []byte) {
	for {
		if _, absent := GuardedTryRead(base, out); !absent {
			return
		}
		runtime.Gosched()
	}
}

// GuardedTryRead implements the seqlock non-blocking reader protocol: it
// returns ok == false immediately (rather than retrying) when a write is
// in progress or was observed mid-read.
func GuardedTryRead(base unsafe.Pointer, out []byte) (ok bool, absent bool) {
	seq := guardedSeq(base)
	s1 := atomic.LoadUint32(seq)
	if s1&1 != 0 {
		return false, true
	}
	copy(out, guardedPayload(base, uint32(len(out))))
	s2 := atomic.LoadUint32(seq)
	if s1 != s2 {
		return false, true
	}
	return true, false
}

// lockedFlag returns the spin-lock flag at the start of a LockedCell.
func lockedFlag(base unsafe.Pointer) *uint32 {
	return (*uint32)(base)
}

// lockedPayload returns the payload area of a LockedCell, immediately
// after its flag.
func lockedPayload(base unsafe.Pointer, payloadSize uint32) []byte {
	return payloadBytes(unsafe.Pointer(uintptr(base)+lockedFlagSize), payloadSize)
}

// lockedAcquire spins on the test-and-set flag until it is won.
func lockedAcquire(base unsafe.Pointer) {
	flag := lockedFlag(base)
	for !atomic.CompareAndSwapUint32(flag, 0, 1) {
		runtime.Gosched()
	}
}

func lockedRelease(base unsafe.Pointer) {
	atomic.StoreUint32(lockedFlag(base), 0)
}

// LockedRead copies a Locked-tagged field's payload into out under the
// spin flag's exclusive section.
func LockedRead(base unsafe.Pointer, out []byte) {
	lockedAcquire(base)
	copy(out, lockedPayload(base, uint32(len(out))))
	lockedRelease(base)
}

// LockedWrite copies payload into a Locked-tagged field under the spin
// flag's exclusive section.
func LockedWrite(base unsafe.Pointer, payload []byte) {
	lockedAcquire(base)
	copy(lockedPayload(base, uint32(len(payload))), payload)
	lockedRelease(base)
}

// LockedUpdate runs mutate against the field's payload bytes in place,
// under the spin flag's exclusive section — the only atomicity mode that
// supports a read-modify-write without a caller-visible race window.
func LockedUpdate(base unsafe.Pointer, payloadSize uint32, mutate func([]byte)) {
	lockedAcquire(base)
	mutate(lockedPayload(base, payloadSize))
	lockedRelease(base)
}
