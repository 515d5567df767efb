// Package observer indexes DidSwap events emitted by the swap program.
package observer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"serum-swap/internal/bus"
	"serum-swap/internal/domain"
	"serum-swap/internal/event"
	"serum-swap/internal/observability"
	"serum-swap/internal/solana"
	"serum-swap/internal/storage"
)

const (
	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond

	// DefaultPageSize is the getSignaturesForAddress page size used by Backfill.
	DefaultPageSize = 1000
)

// Options configures an Observer.
type Options struct {
	RPC       solana.RPCClient
	WS        solana.WSClient // only required by Run
	Program   solana.Pubkey
	Store     storage.SwapOutcomeStore
	Progress  storage.ObserverProgressStore // optional backfill cursor
	Publisher bus.Publisher                 // optional
	PageSize  int
	// Commitment is sent with the logs subscription; empty uses the
	// client default.
	Commitment string
	Logger     *log.Logger
	Verbose    bool

	// RetryDelay is the first getTransaction backoff step; it doubles per
	// attempt. Defaults to 500ms.
	RetryDelay time.Duration

	// Now is used when neither the transaction nor the slot carries a block
	// time. Defaults to time.Now.
	Now func() time.Time
}

// Observer turns program logs into stored and published outcome records.
type Observer struct {
	rpc       solana.RPCClient
	ws        solana.WSClient
	program   solana.Pubkey
	store     storage.SwapOutcomeStore
	progress  storage.ObserverProgressStore
	publisher bus.Publisher
	pageSize  int
	commit    string
	logger    *log.Logger
	verbose   bool
	now       func() time.Time
	retry     time.Duration
}

// New creates an Observer.
func New(opts Options) *Observer {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = bus.Nop{}
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	retry := opts.RetryDelay
	if retry <= 0 {
		retry = baseRetryDelay
	}

	return &Observer{
		rpc:       opts.RPC,
		ws:        opts.WS,
		program:   opts.Program,
		store:     opts.Store,
		progress:  opts.Progress,
		publisher: publisher,
		pageSize:  pageSize,
		commit:    opts.Commitment,
		logger:    logger,
		verbose:   opts.Verbose,
		now:       now,
		retry:     retry,
	}
}

// Result counts what a processing pass did.
type Result struct {
	Transactions int
	Failed       int
	Stored       int
	Duplicates   int
	Errors       int
}

func (r *Result) add(o Result) {
	r.Transactions += o.Transactions
	r.Failed += o.Failed
	r.Stored += o.Stored
	r.Duplicates += o.Duplicates
	r.Errors += o.Errors
}

// Run subscribes to logs mentioning the program and processes each
// notification until ctx is cancelled or the subscription closes.
func (o *Observer) Run(ctx context.Context) error {
	if o.ws == nil {
		return errors.New("observer: websocket client required")
	}

	logsCh, err := o.ws.SubscribeLogs(ctx, solana.LogsFilter{
		Mentions:   []string{o.program.String()},
		Commitment: o.commit,
	})
	if err != nil {
		return fmt.Errorf("observer: subscribe logs: %w", err)
	}
	o.logger.Printf("Subscribed to program %s", o.program)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notif, ok := <-logsCh:
			if !ok {
				return errors.New("observer: log subscription closed")
			}
			// A store failure here is recovered by the next Backfill.
			if _, err := o.HandleNotification(ctx, notif); err != nil {
				o.logger.Printf("Notification %s: %v", notif.Signature, err)
			}
		}
	}
}

// HandleNotification processes one logsSubscribe notification.
func (o *Observer) HandleNotification(ctx context.Context, notif solana.LogNotification) (Result, error) {
	if notif.Failed() {
		observability.DefaultMetrics.FailedTransactions.Inc()
		o.log("Skipping failed tx %s: %v", notif.Signature, notif.Err)
		return Result{Transactions: 1, Failed: 1}, nil
	}

	timestamp := o.resolveTimestamp(ctx, notif.Slot, 0)
	return o.process(ctx, notif.Signature, notif.Slot, timestamp, notif.Logs)
}

// process decodes, stores and publishes every DidSwap in logs. Undecodable
// logs and publish failures are counted and skipped; the returned error
// reports store failures, which are worth retrying.
func (o *Observer) process(ctx context.Context, signature string, slot, timestamp int64, logs []string) (Result, error) {
	res := Result{Transactions: 1}

	events, err := event.ParseLogs(logs)
	if err != nil {
		observability.RecordEventError("decode")
		o.logger.Printf("Decode %s: %v", signature, err)
		res.Errors++
		return res, nil
	}

	var storeErr error
	for i, e := range events {
		observability.DefaultMetrics.EventsObserved.Inc()
		record := newRecord(signature, i, slot, timestamp, e)

		if err := o.store.Insert(ctx, record); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				observability.DefaultMetrics.EventsDuplicate.Inc()
				res.Duplicates++
				continue
			}
			observability.RecordEventError("store")
			res.Errors++
			storeErr = errors.Join(storeErr, fmt.Errorf("store %s: %w", record.Key(), err))
			continue
		}
		observability.DefaultMetrics.EventsStored.Inc()
		res.Stored++

		if err := o.publisher.Publish(ctx, record); err != nil {
			observability.RecordEventError("publish")
			o.logger.Printf("Publish %s: %v", record.Key(), err)
			res.Errors++
		}
		o.log("Stored %s %s->%s from=%d to=%d", record.Key(), e.FromMint, e.ToMint, e.FromAmount, e.ToAmount)
	}

	observability.UpdateHighestSlot(slot)
	if res.Stored > 0 {
		observability.DefaultMetrics.LastSuccessfulIngestion.SetToCurrentTime()
	}
	return res, storeErr
}

func newRecord(signature string, index int, slot, timestamp int64, e domain.DidSwap) *storage.SwapOutcomeRecord {
	return &storage.SwapOutcomeRecord{
		ID:           uuid.New(),
		TxSignature:  signature,
		EventIndex:   index,
		Slot:         slot,
		Timestamp:    timestamp,
		Outcome:      e,
		RealizedRate: e.AchievedRate().String(),
	}
}

// resolveTimestamp returns the block time in ms, falling back to the clock
// when the node has none for the slot.
func (o *Observer) resolveTimestamp(ctx context.Context, slot, blockTime int64) int64 {
	if blockTime > 0 {
		return blockTime * 1000
	}
	if o.rpc != nil && slot > 0 {
		start := time.Now()
		bt, err := o.rpc.GetBlockTime(ctx, slot)
		observability.RecordRPCLatency("getBlockTime", time.Since(start).Seconds())
		if err == nil && bt != nil {
			return *bt * 1000
		}
		o.log("No block time for slot %d: %v", slot, err)
	}
	return o.now().UnixMilli()
}

// getTransaction fetches a transaction with exponential backoff retry.
func (o *Observer) getTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		start := time.Now()
		tx, err := o.rpc.GetTransaction(ctx, signature)
		observability.RecordRPCLatency("getTransaction", time.Since(start).Seconds())
		if err == nil {
			return tx, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Exponential backoff: 500ms, 1s, 2s by default
		delay := o.retry * time.Duration(1<<attempt)
		o.log("Retry %d/%d for getTransaction %s after %v: %v", attempt+1, maxRetries, signature, delay, err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (o *Observer) log(format string, args ...interface{}) {
	if o.verbose {
		o.logger.Printf(format, args...)
	}
}
