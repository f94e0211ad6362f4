package versiongate

import (
	"testing"

	"github.com/penumbra-zone/cnidarium-core/pkg/apperr"
	"github.com/penumbra-zone/cnidarium-core/pkg/store"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 2, 255, 256, 1 << 40} {
		enc := Encode(v)
		dec, err := Decode(enc)
		require.NoError(t, err)
		require.Equal(t, v, dec)
	}
}

func TestEncodeDropsTrailingZeroes(t *testing.T) {
	require.Equal(t, []byte{}, Encode(0))
	require.Equal(t, []byte{0x01}, Encode(1))
	require.Equal(t, []byte{0x00, 0x01}, Encode(256))
}

func TestDecodeRejectsOversizedInput(t *testing.T) {
	_, err := Decode(make([]byte, 9))
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindDecoding))
}

func TestCheckAcceptsFreshStore(t *testing.T) {
	e, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	d := e.NewDelta()
	require.NoError(t, Check(d, 3))
	snap, err := e.Commit(d)
	require.NoError(t, err)

	raw, err := snap.NonverifiableGet(Key)
	require.NoError(t, err)
	require.Equal(t, Encode(3), raw)
}

func TestCheckAcceptsMatchingVersion(t *testing.T) {
	e, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	d := e.NewDelta()
	require.NoError(t, Check(d, 3))
	_, err = e.Commit(d)
	require.NoError(t, err)

	d2 := e.NewDelta()
	require.NoError(t, Check(d2, 3))
}

func TestCheckRefusesVersionDowngrade(t *testing.T) {
	e, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	d := e.NewDelta()
	require.NoError(t, Check(d, 3))
	_, err = e.Commit(d)
	require.NoError(t, err)

	d2 := e.NewDelta()
	err = Check(d2, 2)
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindProtocolVersion))
}
