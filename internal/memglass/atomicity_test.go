package memglass

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestRawReadWrite(t *testing.T) {
	cell := make([]byte, 8)
	ptr := unsafe.Pointer(&cell[0])

	RawWrite(ptr, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	out := make([]byte, 8)
	RawRead(ptr, out)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, out)
}

func TestAtomicLoadStoreWidths(t *testing.T) {
	cell := make([]byte, 8)
	ptr := unsafe.Pointer(&cell[0])

	require.NoError(t, AtomicStore(ptr, 4, 0xdeadbeef))
	v, err := AtomicLoad(ptr, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(0xdeadbeef), v)

	require.NoError(t, AtomicStore(ptr, 8, 0x0102030405060708))
	v, err = AtomicLoad(ptr, 8)
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), v)

	_, err = AtomicLoad(ptr, 2)
	require.ErrorContains(t, err, "not supported")
}

func TestGuardedReadWriteRoundTrip(t *testing.T) {
	cell := make([]byte, guardedSeqSize+16)
	ptr := unsafe.Pointer(&cell[0])

	payload := []byte("0123456789ABCDEF")
	GuardedWrite(ptr, payload)

	out := make([]byte, len(payload))
	GuardedRead(ptr, out)
	require.Equal(t, payload, out)

	ok, absent := GuardedTryRead(ptr, out)
	require.True(t, ok)
	require.False(t, absent)
}

func TestGuardedTryReadDetectsInProgressWrite(t *testing.T) {
	cell := make([]byte, guardedSeqSize+8)
	ptr := unsafe.Pointer(&cell[0])

	GuardedWrite(ptr, []byte("initial!"))

	// Simulate a write in progress by bumping the sequence to odd by hand.
	seq := guardedSeq(ptr)
	*seq++

	out := make([]byte, 8)
	ok, absent := GuardedTryRead(ptr, out)
	require.False(t, ok)
	require.True(t, absent)
}

func TestLockedReadWriteUpdate(t *testing.T) {
	cell := make([]byte, lockedFlagSize+4)
	ptr := unsafe.Pointer(&cell[0])

	LockedWrite(ptr, []byte{1, 2, 3, 4})
	out := make([]byte, 4)
	LockedRead(ptr, out)
	require.Equal(t, []byte{1, 2, 3, 4}, out)

	LockedUpdate(ptr, 4, func(b []byte) {
		for i := range b {
			b[i]++
		}
	})
	LockedRead(ptr, out)
	require.Equal(t, []byte{2, 3, 4, 5}, out)
}
