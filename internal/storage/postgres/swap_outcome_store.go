package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"serum-swap/internal/solana"
	"serum-swap/internal/storage"
)

// SwapOutcomeStore implements storage.SwapOutcomeStore using PostgreSQL.
type SwapOutcomeStore struct {
	pool *Pool
}

// NewSwapOutcomeStore creates a new SwapOutcomeStore.
func NewSwapOutcomeStore(pool *Pool) *SwapOutcomeStore {
	return &SwapOutcomeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SwapOutcomeStore = (*SwapOutcomeStore)(nil)

const insertSwapOutcome = `
	INSERT INTO swap_outcomes (
		id, tx_signature, event_index, slot, timestamp,
		given_amount, min_rate, from_decimals, quote_decimals, strict,
		from_amount, to_amount, quote_amount, spill_amount,
		from_mint, to_mint, quote_mint, authority, realized_rate
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9, $10,
		$11, $12, $13, $14,
		$15, $16, $17, $18, $19
	)
`

const selectSwapOutcome = `
	SELECT
		id, tx_signature, event_index, slot, timestamp,
		given_amount, min_rate, from_decimals, quote_decimals, strict,
		from_amount, to_amount, quote_amount, spill_amount,
		from_mint, to_mint, quote_mint, authority, realized_rate
	FROM swap_outcomes
`

func insertArgs(r *storage.SwapOutcomeRecord) []any {
	o := r.Outcome
	return []any{
		r.ID, r.TxSignature, r.EventIndex, r.Slot, r.Timestamp,
		numeric(o.GivenAmount), numeric(o.MinExchangeRate.Rate),
		int16(o.MinExchangeRate.FromDecimals), int16(o.MinExchangeRate.QuoteDecimals),
		o.MinExchangeRate.Strict,
		numeric(o.FromAmount), numeric(o.ToAmount), numeric(o.QuoteAmount), numeric(o.SpillAmount),
		o.FromMint.String(), o.ToMint.String(), o.QuoteMint.String(), o.Authority.String(),
		r.RealizedRate,
	}
}

// Insert adds a new outcome. Returns ErrDuplicateKey if (tx_signature, event_index) exists.
func (s *SwapOutcomeStore) Insert(ctx context.Context, r *storage.SwapOutcomeRecord) (err error) {
	if err := storage.ValidateRecord(r); err != nil {
		return err
	}
	defer func(start time.Time) { observe("insert_swap_outcome", start, err) }(time.Now())

	_, err = s.pool.Exec(ctx, insertSwapOutcome, insertArgs(r)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert swap outcome: %w", err)
	}
	return nil
}

// InsertBulk adds multiple outcomes atomically. Fails entire batch on any duplicate.
func (s *SwapOutcomeStore) InsertBulk(ctx context.Context, records []*storage.SwapOutcomeRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if err := storage.ValidateRecord(r); err != nil {
			return err
		}
	}
	defer func(start time.Time) { observe("insert_bulk_swap_outcome", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		if _, err := tx.Exec(ctx, insertSwapOutcome, insertArgs(r)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert swap outcome in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetBySignature retrieves all outcomes of a transaction, ordered by event_index ASC.
func (s *SwapOutcomeStore) GetBySignature(ctx context.Context, txSignature string) ([]*storage.SwapOutcomeRecord, error) {
	query := selectSwapOutcome + `
		WHERE tx_signature = $1
		ORDER BY event_index ASC
	`
	return s.query(ctx, "get_swap_outcomes_by_signature", query, txSignature)
}

// GetByTimeRange retrieves outcomes within [start, end) (inclusive start, exclusive end).
func (s *SwapOutcomeStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*storage.SwapOutcomeRecord, error) {
	query := selectSwapOutcome + `
		WHERE timestamp >= $1 AND timestamp < $2
		ORDER BY timestamp ASC, tx_signature ASC, event_index ASC
	`
	return s.query(ctx, "get_swap_outcomes_by_time_range", query, start, end)
}

// GetByPair retrieves outcomes for a (from_mint, to_mint) pair within [start, end).
func (s *SwapOutcomeStore) GetByPair(ctx context.Context, fromMint, toMint string, start, end int64) ([]*storage.SwapOutcomeRecord, error) {
	query := selectSwapOutcome + `
		WHERE from_mint = $1 AND to_mint = $2 AND timestamp >= $3 AND timestamp < $4
		ORDER BY timestamp ASC, tx_signature ASC, event_index ASC
	`
	return s.query(ctx, "get_swap_outcomes_by_pair", query, fromMint, toMint, start, end)
}

func (s *SwapOutcomeStore) query(ctx context.Context, operation, query string, args ...any) (records []*storage.SwapOutcomeRecord, err error) {
	defer func(start time.Time) { observe(operation, start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	defer rows.Close()

	return scanSwapOutcomes(rows)
}

// scanSwapOutcomes scans multiple rows into a slice of SwapOutcomeRecord.
func scanSwapOutcomes(rows pgx.Rows) ([]*storage.SwapOutcomeRecord, error) {
	var records []*storage.SwapOutcomeRecord

	for rows.Next() {
		var (
			r                                 storage.SwapOutcomeRecord
			given, rate, from, to, quote, spl pgtype.Numeric
			fromDecimals, quoteDecimals       int16
			fromMint, toMint, quoteMint, auth string
		)

		err := rows.Scan(
			&r.ID, &r.TxSignature, &r.EventIndex, &r.Slot, &r.Timestamp,
			&given, &rate, &fromDecimals, &quoteDecimals, &r.Outcome.MinExchangeRate.Strict,
			&from, &to, &quote, &spl,
			&fromMint, &toMint, &quoteMint, &auth, &r.RealizedRate,
		)
		if err != nil {
			return nil, fmt.Errorf("scan swap outcome row: %w", err)
		}

		o := &r.Outcome
		o.MinExchangeRate.FromDecimals = uint8(fromDecimals)
		o.MinExchangeRate.QuoteDecimals = uint8(quoteDecimals)

		for _, f := range []struct {
			dst *uint64
			src pgtype.Numeric
		}{
			{&o.GivenAmount, given},
			{&o.MinExchangeRate.Rate, rate},
			{&o.FromAmount, from},
			{&o.ToAmount, to},
			{&o.QuoteAmount, quote},
			{&o.SpillAmount, spl},
		} {
			if *f.dst, err = uint64FromNumeric(f.src); err != nil {
				return nil, fmt.Errorf("decode swap outcome amount: %w", err)
			}
		}

		for _, f := range []struct {
			dst *solana.Pubkey
			src string
		}{
			{&o.FromMint, fromMint},
			{&o.ToMint, toMint},
			{&o.QuoteMint, quoteMint},
			{&o.Authority, auth},
		} {
			if *f.dst, err = solana.ParsePubkey(f.src); err != nil {
				return nil, fmt.Errorf("decode swap outcome pubkey: %w", err)
			}
		}

		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swap outcome rows: %w", err)
	}

	return records, nil
}
