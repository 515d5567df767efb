package observer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serum-swap/internal/bus"
	"serum-swap/internal/domain"
	"serum-swap/internal/event"
	"serum-swap/internal/solana"
	rpcstub "serum-swap/internal/solana/stub"
	"serum-swap/internal/storage"
	"serum-swap/internal/storage/memory"
)

var program = solana.Pubkey{0xAA}

func didSwap(from, to uint64) domain.DidSwap {
	return domain.DidSwap{
		GivenAmount:     from,
		MinExchangeRate: domain.ExchangeRate{Rate: 1, FromDecimals: 1},
		FromAmount:      from,
		ToAmount:        to,
		FromMint:        solana.Pubkey{1},
		ToMint:          solana.Pubkey{2},
		QuoteMint:       solana.Pubkey{2},
		Authority:       solana.Pubkey{7},
	}
}

func programLogs(events ...domain.DidSwap) []string {
	logs := []string{"Program " + program.String() + " invoke [1]"}
	for _, e := range events {
		logs = append(logs, event.LogLine(e))
	}
	return append(logs, "Program "+program.String()+" success")
}

func addTx(rpc *rpcstub.RPCClient, sig string, slot int64, failed bool, logs []string) {
	meta := &solana.TransactionMeta{LogMessages: logs}
	if failed {
		meta.Err = map[string]interface{}{"InstructionError": []interface{}{0, map[string]interface{}{"Custom": 301}}}
	}
	rpc.AddTransaction(&solana.Transaction{
		Slot:      slot,
		Signature: sig,
		BlockTime: slot * 10,
		Meta:      meta,
		Message:   &solana.TransactionMessage{AccountKeys: []string{program.String()}},
	})
}

type harness struct {
	rpc      *rpcstub.RPCClient
	store    *memory.SwapOutcomeStore
	progress *memory.ObserverProgressStore
	pub      *bus.Memory
	obs      *Observer
}

func newHarness(t *testing.T, pageSize int) *harness {
	t.Helper()
	h := &harness{
		rpc:      rpcstub.NewRPCClient(),
		store:    memory.NewSwapOutcomeStore(),
		progress: memory.NewObserverProgressStore(),
		pub:      bus.NewMemory(),
	}
	h.obs = New(Options{
		RPC:        h.rpc,
		Program:    program,
		Store:      h.store,
		Progress:   h.progress,
		Publisher:  h.pub,
		PageSize:   pageSize,
		RetryDelay: time.Millisecond,
		Now:        func() time.Time { return time.UnixMilli(42) },
	})
	return h
}

func TestHandleNotification_StoresAndPublishes(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	h.rpc.BlockTimes[100] = 1_700_000_000

	res, err := h.obs.HandleNotification(ctx, solana.LogNotification{
		Signature: "sig1",
		Slot:      100,
		Logs:      programLogs(didSwap(150, 30), didSwap(10, 1)),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stored)

	stored, err := h.store.GetBySignature(ctx, "sig1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, 0, stored[0].EventIndex)
	assert.Equal(t, int64(1_700_000_000_000), stored[0].Timestamp)
	assert.Equal(t, uint64(30), stored[0].Outcome.ToAmount)
	assert.Equal(t, "2", stored[0].RealizedRate)
	assert.Equal(t, 1, stored[1].EventIndex)

	published, err := h.pub.Records()
	require.NoError(t, err)
	require.Len(t, published, 2)
	assert.Equal(t, stored[0].ID, published[0].ID)
}

func TestHandleNotification_ClockFallback(t *testing.T) {
	h := newHarness(t, 0)

	_, err := h.obs.HandleNotification(context.Background(), solana.LogNotification{
		Signature: "sig1", Slot: 5, Logs: programLogs(didSwap(10, 10)),
	})
	require.NoError(t, err)

	stored, _ := h.store.GetBySignature(context.Background(), "sig1")
	require.Len(t, stored, 1)
	assert.Equal(t, int64(42), stored[0].Timestamp)
}

func TestHandleNotification_FailedAndDuplicate(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	res, err := h.obs.HandleNotification(ctx, solana.LogNotification{
		Signature: "failed", Slot: 1, Err: "SlippageExceeded", Logs: programLogs(didSwap(1, 1)),
	})
	require.NoError(t, err)
	assert.Equal(t, Result{Transactions: 1, Failed: 1}, res)
	assert.Equal(t, 0, h.store.Len())

	notif := solana.LogNotification{Signature: "sig1", Slot: 2, Logs: programLogs(didSwap(5, 5))}
	_, err = h.obs.HandleNotification(ctx, notif)
	require.NoError(t, err)
	res, err = h.obs.HandleNotification(ctx, notif)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 0, res.Stored)

	published, _ := h.pub.Records()
	assert.Len(t, published, 1, "duplicates are not republished")
}

func TestHandleNotification_MalformedAndPublishFailure(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	res, err := h.obs.HandleNotification(ctx, solana.LogNotification{
		Signature: "bad", Slot: 1, Logs: []string{event.ProgramDataPrefix + "%%%"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Errors)

	h.pub.FailWith(errors.New("redis down"))
	res, err = h.obs.HandleNotification(ctx, solana.LogNotification{
		Signature: "sig1", Slot: 2, Logs: programLogs(didSwap(5, 5)),
	})
	require.NoError(t, err, "publish failures do not fail processing")
	assert.Equal(t, 1, res.Stored)
	assert.Equal(t, 1, res.Errors)
}

func TestBackfill_PagesOldestFirstAndResumes(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()

	addTx(h.rpc, "tx1", 10, false, programLogs(didSwap(150, 30)))
	addTx(h.rpc, "tx2", 11, true, programLogs(didSwap(1, 1)))
	addTx(h.rpc, "tx3", 12, false, []string{"Program log: unrelated"})
	addTx(h.rpc, "tx4", 13, false, programLogs(didSwap(20, 8), didSwap(30, 9)))

	res, err := h.obs.Backfill(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Transactions)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 3, res.Stored)
	assert.Equal(t, "tx4", res.Cursor)

	progress, err := h.progress.GetLastProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tx4", progress.Signature)
	assert.Equal(t, int64(13), progress.Slot)

	all, err := h.store.GetByTimeRange(ctx, 0, 1<<62)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "tx1", all[0].TxSignature)
	assert.Equal(t, int64(100_000), all[0].Timestamp)

	// Second pass only sees what arrived after the cursor.
	addTx(h.rpc, "tx5", 14, false, programLogs(didSwap(7, 7)))
	res, err = h.obs.Backfill(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Transactions)
	assert.Equal(t, 1, res.Stored)
	assert.Equal(t, 0, res.Duplicates)
}

func TestBackfill_Limit(t *testing.T) {
	h := newHarness(t, 2)
	for i, sig := range []string{"tx1", "tx2", "tx3", "tx4", "tx5"} {
		addTx(h.rpc, sig, int64(i+1), false, programLogs(didSwap(uint64(i+1), 1)))
	}

	res, err := h.obs.Backfill(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Transactions)
	assert.Equal(t, "tx5", res.Cursor)

	older, err := h.store.GetBySignature(context.Background(), "tx2")
	require.NoError(t, err)
	assert.Empty(t, older, "first pass reads only the newest signatures")
	assert.Equal(t, 3, h.store.Len())
}

func TestBackfill_LimitAfterCursorKeepsOrder(t *testing.T) {
	h := newHarness(t, 2)
	ctx := context.Background()

	addTx(h.rpc, "tx1", 1, false, programLogs(didSwap(1, 1)))
	_, err := h.obs.Backfill(ctx, 0)
	require.NoError(t, err)

	for i, sig := range []string{"tx2", "tx3", "tx4", "tx5"} {
		addTx(h.rpc, sig, int64(i+2), false, programLogs(didSwap(uint64(i+2), 1)))
	}

	res, err := h.obs.Backfill(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stored)
	assert.Equal(t, "tx3", res.Cursor)

	progress, err := h.progress.GetLastProcessed(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tx3", progress.Signature)

	res, err = h.obs.Backfill(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stored)
	assert.Equal(t, "tx5", res.Cursor)

	for _, sig := range []string{"tx1", "tx2", "tx3", "tx4", "tx5"} {
		got, err := h.store.GetBySignature(ctx, sig)
		require.NoError(t, err)
		assert.Len(t, got, 1, sig)
	}
}

type failingStore struct {
	*memory.SwapOutcomeStore
	failOn string
}

func (f *failingStore) Insert(ctx context.Context, r *storage.SwapOutcomeRecord) error {
	if r.TxSignature == f.failOn {
		return errors.New("connection reset")
	}
	return f.SwapOutcomeStore.Insert(ctx, r)
}

func TestBackfill_StoreFailureKeepsCursor(t *testing.T) {
	h := newHarness(t, 0)
	store := &failingStore{SwapOutcomeStore: h.store, failOn: "tx2"}
	obs := New(Options{RPC: h.rpc, Program: program, Store: store, Progress: h.progress, RetryDelay: time.Millisecond})

	addTx(h.rpc, "tx1", 1, false, programLogs(didSwap(1, 1)))
	addTx(h.rpc, "tx2", 2, false, programLogs(didSwap(2, 2)))
	addTx(h.rpc, "tx3", 3, false, programLogs(didSwap(3, 3)))

	res, err := obs.Backfill(context.Background(), 0)
	require.Error(t, err)
	assert.Equal(t, "tx1", res.Cursor)

	progress, err := h.progress.GetLastProcessed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tx1", progress.Signature)

	// Once the store recovers the next pass picks up tx2 and tx3.
	store.failOn = ""
	res, err = obs.Backfill(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stored)
}

func TestBackfill_MissingTransactionFails(t *testing.T) {
	h := newHarness(t, 0)
	h.rpc.Signatures[program.String()] = []solana.SignatureInfo{{Signature: "ghost", Slot: 1}}

	_, err := h.obs.Backfill(context.Background(), 0)
	assert.ErrorIs(t, err, rpcstub.ErrNotFound)
}

type fakeWS struct {
	mu      sync.Mutex
	filters []solana.LogsFilter
	ch      chan solana.LogNotification
}

func (f *fakeWS) SubscribeLogs(_ context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	return f.ch, nil
}

func (f *fakeWS) Close() error { return nil }

func TestRun(t *testing.T) {
	h := newHarness(t, 0)
	ws := &fakeWS{ch: make(chan solana.LogNotification, 1)}
	obs := New(Options{RPC: h.rpc, WS: ws, Program: program, Store: h.store, Commitment: "finalized"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- obs.Run(ctx) }()

	ws.ch <- solana.LogNotification{Signature: "live1", Slot: 9, Logs: programLogs(didSwap(4, 4))}
	require.Eventually(t, func() bool { return h.store.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	ws.mu.Lock()
	defer ws.mu.Unlock()
	require.Len(t, ws.filters, 1)
	assert.Equal(t, []string{program.String()}, ws.filters[0].Mentions)
	assert.Equal(t, "finalized", ws.filters[0].Commitment)
}

func TestRun_SubscriptionClosed(t *testing.T) {
	ws := &fakeWS{ch: make(chan solana.LogNotification)}
	close(ws.ch)
	obs := New(Options{WS: ws, Program: program, Store: memory.NewSwapOutcomeStore()})
	assert.Error(t, obs.Run(context.Background()))

	assert.Error(t, New(Options{}).Run(context.Background()))
}
