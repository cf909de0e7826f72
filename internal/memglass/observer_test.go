package memglass

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObserverConnectAndReadField(t *testing.T) {
	ctx := newTestContext(t, "otesA", nil)

	typeID, err := ctx.types.RegisterType("Quote", 32, 8, quoteFields())
	require.NoError(t, err)
	_, err = ctx.objects.RegisterObject("AAPL", typeID)
	require.NoError(t, err)

	prodView, err := ctx.Object("AAPL")
	require.NoError(t, err)
	bidField, err := prodView.Field("bid_size")
	require.NoError(t, err)
	require.NoError(t, bidField.Write([]byte{10, 0, 0, 0}))

	obs, err := Connect("otesA")
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.headerMapped.close() })

	require.NoError(t, obs.Refresh())

	obsType, ok := obs.FindType("Quote")
	require.True(t, ok)
	require.Equal(t, typeID, obsType.TypeID())

	view, err := obs.Object("AAPL")
	require.NoError(t, err)
	f, err := view.Field("bid_size")
	require.NoError(t, err)

	out := make([]byte, 4)
	require.NoError(t, f.Read(out))
	require.Equal(t, []byte{10, 0, 0, 0}, out)
}

func TestObserverRefreshPicksUpNewRegions(t *testing.T) {
	ctx := newTestContext(t, "otesB", func(c *Config) {
		c.InitialRegionSize = 512
		c.MaxRegionSize = 64 << 10
	})

	typeID, err := ctx.types.RegisterType("Quote", 32, 8, quoteFields())
	require.NoError(t, err)

	obs, err := Connect("otesB")
	require.NoError(t, err)
	t.Cleanup(func() { _ = obs.headerMapped.close() })
	require.NoError(t, obs.Refresh())
	before := len(obs.regions)

	for i := 0; i < 50; i++ {
		_, err := ctx.objects.RegisterObject(objectLabel(i), typeID)
		require.NoError(t, err)
	}

	require.NoError(t, obs.Refresh())
	require.Greater(t, len(obs.regions), before)
}

func objectLabel(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return "obj-" + string(letters[i%len(letters)]) + string(rune('0'+i%10))
}

func TestSplitFieldPath(t *testing.T) {
	p := SplitFieldPath("inner.bid_price")
	require.Equal(t, "inner", p.Group)
	require.Equal(t, "bid_price", p.Field)

	p = SplitFieldPath("bid_price")
	require.Equal(t, "", p.Group)
	require.Equal(t, "bid_price", p.Field)
}
