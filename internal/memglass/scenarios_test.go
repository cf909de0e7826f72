package memglass

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func cellPtr(b []byte) unsafe.Pointer { return unsafe.Pointer(&b[0]) }

// TestScenarioS1BasicRoundTrip implements spec.md §8 scenario S1.
func TestScenarioS1BasicRoundTrip(t *testing.T) {
	ctx := newTestContext(t, "scenS1", func(c *Config) {
		c.InitialRegionSize = 64 << 10
	})

	typeID, err := ctx.types.RegisterType("Q", 32, 8, quoteFields())
	require.NoError(t, err)
	_, err = ctx.objects.RegisterObject("AAPL", typeID)
	require.NoError(t, err)

	view, err := ctx.Object("AAPL")
	require.NoError(t, err)
	writeField(t, view, "bid_price", int64ToBytes(101))
	writeField(t, view, "ask_price", int64ToBytes(102))
	writeField(t, view, "bid_size", uint32ToBytes(10))
	writeField(t, view, "ask_size", uint32ToBytes(20))
	writeField(t, view, "ts", uint64ToBytes(42))

	obs, err := Connect("scenS1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.headerMapped.close() })
	require.NoError(t, obs.Refresh())

	oview, err := obs.Object("AAPL")
	require.NoError(t, err)

	require.Equal(t, int64(101), readInt64Field(t, oview, "bid_price"))
	require.Equal(t, int64(102), readInt64Field(t, oview, "ask_price"))
	require.Equal(t, uint32(10), readUint32Field(t, oview, "bid_size"))
	require.Equal(t, uint32(20), readUint32Field(t, oview, "ask_size"))
	require.Equal(t, uint64(42), readUint64Field(t, oview, "ts"))
}

// TestScenarioS2RegionGrowth implements spec.md §8 scenario S2.
func TestScenarioS2RegionGrowth(t *testing.T) {
	ctx := newTestContext(t, "scenS2", func(c *Config) {
		c.InitialRegionSize = 4 << 10
		c.MaxRegionSize = 64 << 10
	})
	seqBefore := ctx.header.header().Sequence()

	var lastRegion uint32
	for i := 0; i < 80; i++ {
		ptr, err := ctx.regions.Allocate(128, 8)
		require.NoError(t, err)
		id, _, ok := ctx.regions.GetLocation(ptr)
		require.True(t, ok)
		lastRegion = id
	}
	require.GreaterOrEqual(t, lastRegion, uint32(2))

	obs, err := Connect("scenS2")
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.headerMapped.close() })
	require.NoError(t, obs.Refresh())
	require.Len(t, obs.regions, int(lastRegion))
	for _, r := range obs.regions {
		require.Equal(t, regionMagic, r.desc.magic)
	}

	require.Greater(t, ctx.header.header().Sequence(), seqBefore)
}

// TestScenarioS3MetadataOverflow implements spec.md §8 scenario S3.
func TestScenarioS3MetadataOverflow(t *testing.T) {
	ctx := newTestContext(t, "scenS3", func(c *Config) {
		c.HeaderTypeCapacity = 2
		c.OverflowRegionSize = 4096
	})

	id1, err := ctx.types.RegisterType("T1", 8, 8, nil)
	require.NoError(t, err)
	id2, err := ctx.types.RegisterType("T2", 8, 8, nil)
	require.NoError(t, err)
	id3, err := ctx.types.RegisterType("T3", 8, 8, nil)
	require.NoError(t, err)

	require.Equal(t, uint32(2), ctx.header.header().typeDir.Count())
	require.Equal(t, uint32(3), ctx.meta.TotalTypeCount())

	obs, err := Connect("scenS3")
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.headerMapped.close() })
	require.NoError(t, obs.Refresh())

	names := make(map[string]bool)
	for _, te := range obs.Types() {
		names[te.Name()] = true
	}
	require.True(t, names["T1"] && names["T2"] && names["T3"])
	_, _, _ = id1, id2, id3
}

// TestScenarioS4SeqlockConsistency implements spec.md §8 scenario S4, at a
// scale suited to a unit test rather than the spec's full 100000 reads.
func TestScenarioS4SeqlockConsistency(t *testing.T) {
	cell := make([]byte, guardedSeqSize+16)
	base := cellPtr(cell)

	// Publish a well-formed (n, n+1) pair before either goroutine starts, so
	// a read that lands before the writer's first write does not see the
	// cell's zeroed (0, 0) initial bytes.
	GuardedWrite(base, pairBytes(-1, 0))

	const iterations = 2000
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for n := int64(0); n < iterations; n++ {
			GuardedWrite(base, pairBytes(n, n+1))
		}
	}()

	tornObserved := false
	go func() {
		defer wg.Done()
		buf := make([]byte, 16)
		for i := 0; i < iterations; i++ {
			GuardedRead(base, buf)
			a := int64FromBytes(buf[0:8])
			b := int64FromBytes(buf[8:16])
			if b != a+1 {
				tornObserved = true
			}
		}
	}()

	wg.Wait()
	require.False(t, tornObserved, "guarded reads must never observe a torn (n, n+1) pair")
}

// TestScenarioS5DestroyVisibility implements spec.md §8 scenario S5.
func TestScenarioS5DestroyVisibility(t *testing.T) {
	ctx := newTestContext(t, "scenS5", nil)

	typeID, err := ctx.types.RegisterType("Q", 32, 8, quoteFields())
	require.NoError(t, err)
	_, err = ctx.objects.RegisterObject("X", typeID)
	require.NoError(t, err)

	obs, err := Connect("scenS5")
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.headerMapped.close() })
	require.NoError(t, obs.Refresh())

	e, ok := obs.FindObject("X")
	require.True(t, ok)
	require.Equal(t, StateLive, e.State())

	require.NoError(t, ctx.objects.DestroyObject("X"))

	// Without a Refresh, the observer's already-resolved entry pointer
	// reflects the live shared memory directly (acquire loads), so the
	// state transition is visible immediately.
	require.Equal(t, StateDestroyed, e.State())

	require.NoError(t, obs.Refresh())
	for _, live := range obs.LiveObjects() {
		require.NotEqual(t, "X", live.Label())
	}
}

// TestScenarioS6ProtocolMismatch implements spec.md §8 scenario S6.
func TestScenarioS6ProtocolMismatch(t *testing.T) {
	cfg := DefaultConfig("scenS6")
	mapped, err := createNamed(headerName(cfg.Session), headerRegionSize(cfg))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = mapped.close()
		_ = unlinkNamed(mapped.name)
	})

	hv := &headerView{base: cellPtr(mapped.mem)}
	hv.header().magic = headerMagic
	hv.header().version = protocolVersion + 1 // wrong version

	_, err = Connect("scenS6")
	require.ErrorIs(t, err, ErrProtocolMismatch)
}

func writeField(t *testing.T, v *ObjectView, name string, payload []byte) {
	t.Helper()
	f, err := v.Field(name)
	require.NoError(t, err)
	require.NoError(t, f.Write(payload))
}

func readInt64Field(t *testing.T, v *ObjectView, name string) int64 {
	t.Helper()
	f, err := v.Field(name)
	require.NoError(t, err)
	buf := make([]byte, 8)
	require.NoError(t, f.Read(buf))
	return int64FromBytes(buf)
}

func readUint32Field(t *testing.T, v *ObjectView, name string) uint32 {
	t.Helper()
	f, err := v.Field(name)
	require.NoError(t, err)
	buf := make([]byte, 4)
	require.NoError(t, f.Read(buf))
	return uint32(uintFromBytes(buf))
}

func readUint64Field(t *testing.T, v *ObjectView, name string) uint64 {
	t.Helper()
	f, err := v.Field(name)
	require.NoError(t, err)
	buf := make([]byte, 8)
	require.NoError(t, f.Read(buf))
	return uintFromBytes(buf)
}

func int64ToBytes(v int64) []byte  { return uint64ToBytes(uint64(v)) }
func uint32ToBytes(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
	return b
}
func int64FromBytes(b []byte) int64 { return int64(uintFromBytes(b)) }

func pairBytes(a, b int64) []byte {
	out := make([]byte, 16)
	copy(out[0:8], uint64ToBytes(uint64(a)))
	copy(out[8:16], uint64ToBytes(uint64(b)))
	return out
}
