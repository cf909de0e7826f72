package memglass

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectoryDescriptorTryReserve(t *testing.T) {
	d := DirectoryDescriptor{capacity: 2}

	i, ok := d.tryReserve()
	require.True(t, ok)
	require.Equal(t, uint32(0), i)

	i, ok = d.tryReserve()
	require.True(t, ok)
	require.Equal(t, uint32(1), i)

	_, ok = d.tryReserve()
	require.False(t, ok, "directory is at capacity")
	require.Equal(t, uint32(2), d.Count())
}

func TestValidateHeaderRejectsBadMagicAndVersion(t *testing.T) {
	h := &SessionHeader{magic: headerMagic, version: protocolVersion}
	require.NoError(t, validateHeader(h))

	bad := &SessionHeader{magic: 0xbad, version: protocolVersion}
	require.ErrorIs(t, validateHeader(bad), ErrProtocolMismatch)

	badVersion := &SessionHeader{magic: headerMagic, version: protocolVersion + 1}
	require.ErrorIs(t, validateHeader(badVersion), ErrProtocolMismatch)
}

func TestPaddedNameRoundTrip(t *testing.T) {
	buf := make([]byte, 16)
	putPaddedName(buf, "AAPL")
	require.Equal(t, "AAPL", getPaddedName(buf))

	putPaddedName(buf, "a-much-longer-name-than-the-buffer")
	require.Len(t, getPaddedName(buf), 16)
}

func TestValidSessionName(t *testing.T) {
	require.True(t, validSessionName("t1"))
	require.False(t, validSessionName(""))
	require.False(t, validSessionName("has/slash"))
	require.False(t, validSessionName(string(make([]byte, maxSessionNameLen+1))))
}

func TestAlignUp(t *testing.T) {
	require.Equal(t, uint64(8), alignUp(1, 8))
	require.Equal(t, uint64(8), alignUp(8, 8))
	require.Equal(t, uint64(16), alignUp(9, 8))
	require.Equal(t, uint64(5), alignUp(5, 0))
}
