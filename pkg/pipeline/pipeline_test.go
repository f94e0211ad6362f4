package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/penumbra-zone/cnidarium-core/pkg/apperr"
	"github.com/penumbra-zone/cnidarium-core/pkg/store"
	"github.com/stretchr/testify/require"
)

func openTestEngine(t *testing.T) *store.Engine {
	t.Helper()
	e, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func withKnownAnchor(t *testing.T, e *store.Engine, anchor []byte) *store.Snapshot {
	t.Helper()
	d := e.NewDelta()
	require.NoError(t, d.Put(anchorKey(anchor), []byte{0x01}))
	snap, err := e.Commit(d)
	require.NoError(t, err)
	return snap
}

func anchorKey(anchor []byte) string {
	return fmt.Sprintf("anchor/%x", anchor)
}

func newTx(actions ...Action) *Transaction {
	return &Transaction{
		ID:               "tx-1",
		BindingSignature: []byte{0x01},
		Actions:          actions,
	}
}

func TestStatelessRejectsDuplicateNullifierWithinTransaction(t *testing.T) {
	p := New()
	nf := []byte{0xAA}
	tx := newTx(NewSpend(nf, []byte{0x01}), NewSpend(nf, []byte{0x01}))

	err := p.CheckStateless(tx)
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindStatelessInvalid))
}

func TestStatelessRejectsMissingBindingSignature(t *testing.T) {
	p := New()
	tx := &Transaction{ID: "tx-1"}
	err := p.CheckStateless(tx)
	require.Error(t, err)
}

func TestStatelessRejectsClueCountNotMatchingOutputActions(t *testing.T) {
	p := New()
	tx := newTx(NewStub(KindOutput))
	tx.BindingSignature = []byte{0x01}
	tx.ClueCount = 2 // one Output action, but two clues
	tx.HasMemo = true
	err := p.CheckStateless(tx)
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindStatelessInvalid))
}

func TestStatelessRejectsMemoPresentWithoutOutputActions(t *testing.T) {
	p := New()
	tx := newTx(NewStub(KindIbcAction)) // no Output action
	tx.BindingSignature = []byte{0x01}
	tx.HasMemo = true // memo present but nothing to attach it to
	err := p.CheckStateless(tx)
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindStatelessInvalid))
}

func TestStatelessAcceptsMatchingClueAndMemoForOutputs(t *testing.T) {
	p := New()
	tx := newTx(NewStub(KindOutput), NewStub(KindOutput))
	tx.BindingSignature = []byte{0x01}
	tx.ClueCount = 2
	tx.HasMemo = true
	require.NoError(t, p.CheckStateless(tx))
}

func TestHistoricalRejectsUnknownAnchor(t *testing.T) {
	e := openTestEngine(t)
	p := New()
	tx := newTx(NewSpend([]byte{0x01}, []byte{0xff}))
	err := p.CheckHistorical(context.Background(), e.Latest(), tx)
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindHistoricallyInvalid))
}

func TestDoubleSpendWithinTransactionRejectedAtStatelessStage(t *testing.T) {
	p := New()
	nf := []byte{0x01}
	tx := newTx(NewSpend(nf, []byte{0x02}), NewSpend(nf, []byte{0x02}))
	require.Error(t, p.CheckStateless(tx))
}

func TestDoubleSpendAcrossTransactionsRejectedAtExecute(t *testing.T) {
	e := openTestEngine(t)
	anchor := []byte{0x02}
	withKnownAnchor(t, e, anchor)
	p := New()

	nf := []byte{0x01}
	d1 := e.NewDelta()
	tx1 := newTx(NewSpend(nf, anchor))
	require.NoError(t, p.Run(context.Background(), e.Latest(), d1, tx1))
	snap, err := e.Commit(d1)
	require.NoError(t, err)

	d2 := e.NewDelta()
	tx2 := newTx(NewSpend(nf, anchor))
	err = p.Run(context.Background(), snap, d2, tx2)
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindStateConflict))
}

func TestDuplicateDelegatorVoteRejected(t *testing.T) {
	e := openTestEngine(t)
	d := e.NewDelta()
	require.NoError(t, d.Put("proposal/1", []byte{0x01}))
	snap, err := e.Commit(d)
	require.NoError(t, err)

	p := New()
	voteNullifier := []byte{0x09}

	d2 := e.NewDelta()
	tx1 := newTx(NewDelegatorVote(1, voteNullifier))
	require.NoError(t, p.Run(context.Background(), snap, d2, tx1))
	snap2, err := e.Commit(d2)
	require.NoError(t, err)

	d3 := e.NewDelta()
	tx2 := newTx(NewDelegatorVote(1, voteNullifier))
	err = p.Run(context.Background(), snap2, d3, tx2)
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindStateConflict))
}

func TestExecuteIsAtomicAcrossActions(t *testing.T) {
	e := openTestEngine(t)
	anchor := []byte{0x03}
	withKnownAnchor(t, e, anchor)
	p := New()

	nf := []byte{0x07}
	d := e.NewDelta()
	// first action succeeds, second reuses the same nullifier and fails:
	// the whole transaction must leave no trace.
	tx := newTx(NewSpend(nf, anchor), NewSpend(nf, anchor))
	err := p.Execute(context.Background(), d, tx)
	require.Error(t, err)

	v, err := d.Get(nullifierKey(nf))
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestStubActionsPassThroughEveryStage(t *testing.T) {
	e := openTestEngine(t)
	p := New()
	d := e.NewDelta()
	tx := newTx(NewStub(KindOutput), NewStub(KindIbcAction))
	tx.ClueCount = 1
	tx.HasMemo = true
	require.NoError(t, p.Run(context.Background(), e.Latest(), d, tx))
}
