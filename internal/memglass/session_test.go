package memglass

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitPublishesValidHeader(t *testing.T) {
	ctx := newTestContext(t, "stestA", nil)

	h := ctx.header.header()
	require.Equal(t, headerMagic, h.Magic())
	require.Equal(t, protocolVersion, h.Version())
	require.NotZero(t, h.ProducerPID())
	require.Equal(t, "stestA", h.Name())
	require.NotZero(t, h.FirstRegionID())
}

func TestInitRejectsBadSessionName(t *testing.T) {
	_, err := Init(DefaultConfig("has/slash"))
	require.Error(t, err)
}

func TestContextObjectWriteThenRead(t *testing.T) {
	ctx := newTestContext(t, "stestB", nil)

	typeID, err := ctx.types.RegisterType("Quote", 32, 8, quoteFields())
	require.NoError(t, err)
	_, err = ctx.objects.RegisterObject("AAPL", typeID)
	require.NoError(t, err)

	view, err := ctx.Object("AAPL")
	require.NoError(t, err)

	field, err := view.Field("bid_size")
	require.NoError(t, err)
	require.NoError(t, field.Write([]byte{1, 0, 0, 0}))

	out := make([]byte, 4)
	require.NoError(t, field.Read(out))
	require.Equal(t, []byte{1, 0, 0, 0}, out)
}

func TestShutdownUnlinksSessionNames(t *testing.T) {
	cfg := DefaultConfig("stestC")
	cfg.ShutdownGrace = 0
	ctx, err := Init(cfg)
	require.NoError(t, err)
	require.NoError(t, ctx.Shutdown())

	_, err = openNamed(headerName("stestC"))
	require.Error(t, err)
}
