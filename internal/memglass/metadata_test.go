package memglass

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T, session string, tweak func(*Config)) *Context {
	t.Helper()
	cfg := DefaultConfig(session)
	cfg.ShutdownGrace = 0
	if tweak != nil {
		tweak(&cfg)
	}
	ctx, err := Init(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Shutdown() })
	return ctx
}

func TestMetadataManagerSpillsToOverflow(t *testing.T) {
	ctx := newTestContext(t, "mtestA", func(c *Config) {
		c.HeaderObjectCapacity = 1
		c.HeaderTypeCapacity = 1
		c.HeaderFieldCapacity = 1
		c.OverflowRegionSize = 4096
	})

	_, storeID0, _, err := ctx.meta.AllocateObjectEntry()
	require.NoError(t, err)
	require.Equal(t, uint32(0), storeID0, "first slot should land in the header directory")

	_, storeID1, _, err := ctx.meta.AllocateObjectEntry()
	require.NoError(t, err)
	require.NotEqual(t, uint32(0), storeID1, "second slot should spill into an overflow region")

	require.Equal(t, uint32(2), ctx.meta.TotalObjectCount())
}

func TestAllocateFieldEntriesNeverStraddles(t *testing.T) {
	ctx := newTestContext(t, "mtestB", func(c *Config) {
		c.HeaderFieldCapacity = 3
		c.OverflowRegionSize = 4096
	})

	ref1, err := ctx.meta.AllocateFieldEntries(3)
	require.NoError(t, err)
	require.Equal(t, uint32(0), ref1.storeID)

	// Header directory is now full; this run must come entirely from one
	// fresh overflow region, never partially from the header.
	ref2, err := ctx.meta.AllocateFieldEntries(2)
	require.NoError(t, err)
	require.NotEqual(t, uint32(0), ref2.storeID)
}

func TestAllocateFieldEntriesRejectsOversizedRun(t *testing.T) {
	ctx := newTestContext(t, "mtestC", func(c *Config) {
		c.HeaderFieldCapacity = 0
		c.OverflowRegionSize = 4096
	})

	_, err := ctx.meta.AllocateFieldEntries(1 << 20)
	require.ErrorIs(t, err, ErrOutOfSpace)
}
