package driver

import (
	"context"
	"testing"
	"time"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/penumbra-zone/cnidarium-core/pkg/pipeline"
	"github.com/penumbra-zone/cnidarium-core/pkg/store"
	"github.com/stretchr/testify/require"
)

func trivialDecoder(raw []byte) (*pipeline.Transaction, error) {
	return &pipeline.Transaction{
		ID:               string(raw),
		BindingSignature: []byte{0x01},
	}, nil
}

func newTestApp(t *testing.T) (*App, *store.Engine) {
	t.Helper()
	e, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	r, err := NewRegistry()
	require.NoError(t, err)

	app, err := NewApp(e, r, trivialDecoder, 1)
	require.NoError(t, err)
	return app, e
}

func TestNewAppRejectsVersionMismatchOnReopen(t *testing.T) {
	dir := t.TempDir()
	e, err := store.Open(dir)
	require.NoError(t, err)

	r, err := NewRegistry()
	require.NoError(t, err)

	_, err = NewApp(e, r, trivialDecoder, 1)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	e2, err := store.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e2.Close() })

	_, err = NewApp(e2, r, trivialDecoder, 2)
	require.Error(t, err)
}

func TestInitChainCommitsGenesis(t *testing.T) {
	app, e := newTestApp(t)
	resp, err := app.InitChain(context.Background(), &abcitypes.RequestInitChain{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AppHash)
	require.EqualValues(t, 2, e.Latest().Version()) // 1 from the version gate, 1 from genesis
}

func TestFinalizeBlockThenCommitAdvancesVersion(t *testing.T) {
	app, e := newTestApp(t)
	_, err := app.InitChain(context.Background(), &abcitypes.RequestInitChain{})
	require.NoError(t, err)
	before := e.Latest().Version()

	resp, err := app.FinalizeBlock(context.Background(), &abcitypes.RequestFinalizeBlock{
		Height: 1,
		Time:   time.Unix(0, 0),
		Txs:    [][]byte{[]byte("tx-a")},
	})
	require.NoError(t, err)
	require.Len(t, resp.TxResults, 1)
	require.EqualValues(t, 0, resp.TxResults[0].Code)

	_, err = app.Commit(context.Background(), &abcitypes.RequestCommit{})
	require.NoError(t, err)
	require.Equal(t, before+1, e.Latest().Version())
}

func TestCheckTxDirectPath(t *testing.T) {
	app, _ := newTestApp(t)
	resp, err := app.CheckTx(context.Background(), &abcitypes.RequestCheckTx{Tx: []byte("tx-check")})
	require.NoError(t, err)
	require.EqualValues(t, 0, resp.Code)
}
