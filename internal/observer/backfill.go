package observer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"serum-swap/internal/observability"
	"serum-swap/internal/solana"
	"serum-swap/internal/storage"
)

// BackfillResult contains statistics from a backfill pass.
type BackfillResult struct {
	Result
	Cursor   string // newest signature processed, empty if none
	Duration time.Duration
}

// Backfill recovers events missed while Run was not connected. It pages
// getSignaturesForAddress from the newest signature back to the saved
// cursor, then processes the transactions oldest first and advances the
// cursor. With limit > 0 and no cursor only the newest limit signatures are
// read; with a cursor only the oldest limit after it are processed, so the
// cursor never moves past a signature that was not read.
func (o *Observer) Backfill(ctx context.Context, limit int) (*BackfillResult, error) {
	start := time.Now()
	result := &BackfillResult{}

	until, err := o.cursor(ctx)
	if err != nil {
		return result, err
	}

	depth := limit
	if until != "" {
		depth = 0
	}
	sigs, err := o.collectSignatures(ctx, until, depth)
	if err != nil {
		return result, err
	}
	if until != "" && limit > 0 && len(sigs) > limit {
		sigs = sigs[len(sigs)-limit:]
	}
	o.logger.Printf("Backfill: %d signatures since %q", len(sigs), until)

	// Oldest first so the cursor only ever moves forward.
	for i := len(sigs) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		info := sigs[i]

		res, err := o.processSignature(ctx, info)
		result.add(res)
		if err != nil {
			// Leave the cursor on the last good signature so the next
			// pass retries from here.
			return result, err
		}

		result.Cursor = info.Signature
		if o.progress != nil {
			progress := &storage.ObserverProgress{Slot: info.Slot, Signature: info.Signature}
			if err := o.progress.SetLastProcessed(ctx, progress); err != nil {
				return result, fmt.Errorf("observer: save progress: %w", err)
			}
		}
	}

	result.Duration = time.Since(start)
	o.logger.Printf("Backfill complete: %d txs, %d stored, %d dupes, %d failed, %d errors in %v",
		result.Transactions, result.Stored, result.Duplicates, result.Failed, result.Errors, result.Duration)

	return result, nil
}

func (o *Observer) cursor(ctx context.Context) (string, error) {
	if o.progress == nil {
		return "", nil
	}
	progress, err := o.progress.GetLastProcessed(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("observer: load progress: %w", err)
	}
	return progress.Signature, nil
}

// collectSignatures pages newest-first until the cursor, an empty page or limit.
func (o *Observer) collectSignatures(ctx context.Context, until string, limit int) ([]solana.SignatureInfo, error) {
	var (
		all    []solana.SignatureInfo
		before string
	)

	for {
		pageSize := o.pageSize
		if limit > 0 && limit-len(all) < pageSize {
			pageSize = limit - len(all)
		}
		if pageSize <= 0 {
			return all, nil
		}

		reqStart := time.Now()
		page, err := o.rpc.GetSignaturesForAddress(ctx, o.program.String(), &solana.SignaturesOpts{
			Before: before,
			Until:  until,
			Limit:  pageSize,
		})
		observability.RecordRPCLatency("getSignaturesForAddress", time.Since(reqStart).Seconds())
		if err != nil {
			return nil, fmt.Errorf("observer: get signatures: %w", err)
		}

		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
		before = page[len(page)-1].Signature
	}
}

func (o *Observer) processSignature(ctx context.Context, info solana.SignatureInfo) (Result, error) {
	if info.Err != nil {
		observability.DefaultMetrics.FailedTransactions.Inc()
		return Result{Transactions: 1, Failed: 1}, nil
	}

	tx, err := o.getTransaction(ctx, info.Signature)
	if err != nil {
		observability.RecordEventError("fetch")
		return Result{Transactions: 1, Errors: 1}, fmt.Errorf("observer: get transaction %s: %w", info.Signature, err)
	}
	if tx == nil || tx.Meta == nil {
		o.log("Transaction %s has no metadata", info.Signature)
		return Result{Transactions: 1}, nil
	}
	if tx.Meta.Err != nil {
		observability.DefaultMetrics.FailedTransactions.Inc()
		return Result{Transactions: 1, Failed: 1}, nil
	}

	blockTime := tx.BlockTime
	if blockTime == 0 && info.BlockTime != nil {
		blockTime = *info.BlockTime
	}
	timestamp := o.resolveTimestamp(ctx, tx.Slot, blockTime)

	res, err := o.process(ctx, info.Signature, tx.Slot, timestamp, tx.Meta.LogMessages)
	if err != nil {
		return res, fmt.Errorf("observer: process %s: %w", info.Signature, err)
	}
	return res, nil
}
