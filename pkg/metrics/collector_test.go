package metrics

import (
	"testing"

	"github.com/penumbra-zone/cnidarium-core/pkg/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectorSetsBlockHeightFromEngine(t *testing.T) {
	e, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	d := e.NewDelta()
	require.NoError(t, d.Put("k", []byte("v")))
	_, err = e.Commit(d)
	require.NoError(t, err)

	c := NewCollector(e, nil)
	c.collect()

	require.Equal(t, float64(e.Latest().Version()), testutil.ToFloat64(BlockHeight))
}

func TestCollectorSetsMempoolLagFromHeightSnapshotter(t *testing.T) {
	e, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	d := e.NewDelta()
	require.NoError(t, d.Put("k", []byte("v")))
	stale, err := e.Commit(d)
	require.NoError(t, err)

	d2 := e.NewDelta()
	require.NoError(t, d2.Put("k2", []byte("v2")))
	_, err = e.Commit(d2)
	require.NoError(t, err)

	c := NewCollector(e, stubSnapshotter{snap: stale})
	c.collect()

	require.Equal(t, float64(1), testutil.ToFloat64(MempoolLagBlocks))
}

type stubSnapshotter struct {
	snap *store.Snapshot
}

func (s stubSnapshotter) Latest() *store.Snapshot { return s.snap }
