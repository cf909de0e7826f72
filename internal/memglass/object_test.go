package memglass

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterObjectThenDestroy(t *testing.T) {
	ctx := newTestContext(t, "otestA", nil)

	typeID, err := ctx.types.RegisterType("Quote", 32, 8, quoteFields())
	require.NoError(t, err)

	entry, err := ctx.objects.RegisterObject("AAPL", typeID)
	require.NoError(t, err)
	require.Equal(t, StateLive, entry.State())
	require.Equal(t, "AAPL", entry.Label())

	require.NoError(t, ctx.objects.DestroyObject("AAPL"))
	require.Equal(t, StateDestroyed, entry.State())

	err = ctx.objects.DestroyObject("AAPL")
	require.ErrorIs(t, err, ErrInvalidObject)
}

func TestRegisterObjectDuplicateLabelConflicts(t *testing.T) {
	ctx := newTestContext(t, "otestB", nil)

	typeID, err := ctx.types.RegisterType("Quote", 32, 8, quoteFields())
	require.NoError(t, err)

	_, err = ctx.objects.RegisterObject("AAPL", typeID)
	require.NoError(t, err)

	_, err = ctx.objects.RegisterObject("AAPL", typeID)
	require.ErrorIs(t, err, ErrNameConflict)
}

func TestRegisterObjectUnknownTypeFails(t *testing.T) {
	ctx := newTestContext(t, "otestC", nil)

	_, err := ctx.objects.RegisterObject("AAPL", TypeID(0xffffffff))
	require.ErrorIs(t, err, ErrInvalidObject)
}
