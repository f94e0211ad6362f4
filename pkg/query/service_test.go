package query

import (
	"context"
	"testing"

	"github.com/penumbra-zone/cnidarium-core/pkg/store"
	"github.com/stretchr/testify/require"
)

func TestKeyValueReturnsCommittedValue(t *testing.T) {
	e, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	d := e.NewDelta()
	require.NoError(t, d.Put("k", []byte("v")))
	_, err = e.Commit(d)
	require.NoError(t, err)

	s := NewServer(e)
	resp, err := s.KeyValue(context.Background(), &KeyValueRequest{Key: "k"})
	require.NoError(t, err)
	require.Equal(t, []byte("v"), resp.Value)
}

func TestKeyValueWithProof(t *testing.T) {
	e, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	d := e.NewDelta()
	require.NoError(t, d.Put("k", []byte("v")))
	_, err = e.Commit(d)
	require.NoError(t, err)

	s := NewServer(e)
	resp, err := s.KeyValue(context.Background(), &KeyValueRequest{Key: "k", WithProof: true})
	require.NoError(t, err)
	require.NotNil(t, resp.Proof)
	require.NotNil(t, resp.Proof.GetExist())
}

func TestPrefixValueReturnsOnlyMatchingKeys(t *testing.T) {
	e, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	d := e.NewDelta()
	require.NoError(t, d.Put("ns/a", []byte("1")))
	require.NoError(t, d.Put("ns/b", []byte("2")))
	require.NoError(t, d.Put("other", []byte("3")))
	_, err = e.Commit(d)
	require.NoError(t, err)

	s := NewServer(e)
	resp, err := s.PrefixValue(context.Background(), &PrefixValueRequest{Prefix: "ns/"})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 2)
}
