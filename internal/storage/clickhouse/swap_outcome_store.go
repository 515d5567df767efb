package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"serum-swap/internal/solana"
	"serum-swap/internal/storage"
)

// SwapOutcomeStore implements storage.SwapOutcomeStore using ClickHouse.
type SwapOutcomeStore struct {
	conn *Conn
}

// NewSwapOutcomeStore creates a new SwapOutcomeStore.
func NewSwapOutcomeStore(conn *Conn) *SwapOutcomeStore {
	return &SwapOutcomeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SwapOutcomeStore = (*SwapOutcomeStore)(nil)

const swapOutcomeColumns = `
	id, tx_signature, event_index, slot, timestamp_ms,
	given_amount, min_rate, from_decimals, quote_decimals, strict,
	from_amount, to_amount, quote_amount, spill_amount,
	from_mint, to_mint, quote_mint, authority, realized_rate
`

func rowValues(r *storage.SwapOutcomeRecord) []any {
	o := r.Outcome
	return []any{
		r.ID, r.TxSignature, uint32(r.EventIndex), r.Slot, r.Timestamp,
		o.GivenAmount, o.MinExchangeRate.Rate, o.MinExchangeRate.FromDecimals, o.MinExchangeRate.QuoteDecimals,
		o.MinExchangeRate.Strict,
		o.FromAmount, o.ToAmount, o.QuoteAmount, o.SpillAmount,
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

	// MergeTree does not enforce uniqueness, so check explicitly
	exists, err := s.exists(ctx, r.TxSignature, r.EventIndex)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `INSERT INTO swap_outcomes (` + swapOutcomeColumns + `) VALUES (
		?, ?, ?, ?, ?,
		?, ?, ?, ?, ?,
		?, ?, ?, ?,
		?, ?, ?, ?, ?
	)`

	if err := s.conn.Exec(ctx, query, rowValues(r)...); err != nil {
		return fmt.Errorf("insert swap outcome: %w", err)
	}
	return nil
}

// InsertBulk adds multiple outcomes atomically. Fails entire batch on any duplicate.
func (s *SwapOutcomeStore) InsertBulk(ctx context.Context, records []*storage.SwapOutcomeRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	defer func(start time.Time) { observe("insert_bulk_swap_outcome", start, err) }(time.Now())

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if err := storage.ValidateRecord(r); err != nil {
			return err
		}
		if _, dup := seen[r.Key()]; dup {
			return storage.ErrDuplicateKey
		}
		seen[r.Key()] = struct{}{}
	}

	// Check for duplicates against existing rows
	for _, r := range records {
		exists, err := s.exists(ctx, r.TxSignature, r.EventIndex)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO swap_outcomes (`+swapOutcomeColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		if err := batch.Append(rowValues(r)...); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetBySignature retrieves all outcomes of a transaction, ordered by event_index ASC.
func (s *SwapOutcomeStore) GetBySignature(ctx context.Context, txSignature string) ([]*storage.SwapOutcomeRecord, error) {
	query := `SELECT ` + swapOutcomeColumns + `
		FROM swap_outcomes
		WHERE tx_signature = ?
		ORDER BY event_index ASC
	`
	return s.query(ctx, "get_swap_outcomes_by_signature", query, txSignature)
}

// GetByTimeRange retrieves outcomes within [start, end) (inclusive start, exclusive end).
func (s *SwapOutcomeStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*storage.SwapOutcomeRecord, error) {
	query := `SELECT ` + swapOutcomeColumns + `
		FROM swap_outcomes
		WHERE timestamp_ms >= ? AND timestamp_ms < ?
		ORDER BY timestamp_ms ASC, tx_signature ASC, event_index ASC
	`
	return s.query(ctx, "get_swap_outcomes_by_time_range", query, start, end)
}

// GetByPair retrieves outcomes for a (from_mint, to_mint) pair within [start, end).
func (s *SwapOutcomeStore) GetByPair(ctx context.Context, fromMint, toMint string, start, end int64) ([]*storage.SwapOutcomeRecord, error) {
	query := `SELECT ` + swapOutcomeColumns + `
		FROM swap_outcomes
		WHERE from_mint = ? AND to_mint = ? AND timestamp_ms >= ? AND timestamp_ms < ?
		ORDER BY timestamp_ms ASC, tx_signature ASC, event_index ASC
	`
	return s.query(ctx, "get_swap_outcomes_by_pair", query, fromMint, toMint, start, end)
}

// exists checks if an outcome with the given key exists.
func (s *SwapOutcomeStore) exists(ctx context.Context, txSignature string, eventIndex int) (bool, error) {
	query := `
		SELECT count() FROM swap_outcomes
		WHERE tx_signature = ? AND event_index = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, txSignature, uint32(eventIndex)).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *SwapOutcomeStore) query(ctx context.Context, operation, query string, args ...any) (records []*storage.SwapOutcomeRecord, err error) {
	defer func(start time.Time) { observe(operation, start, err) }(time.Now())

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	defer rows.Close()

	return scanSwapOutcomes(rows)
}

// scanSwapOutcomes scans rows into SwapOutcomeRecords.
func scanSwapOutcomes(rows driver.Rows) ([]*storage.SwapOutcomeRecord, error) {
	var records []*storage.SwapOutcomeRecord

	for rows.Next() {
		var (
			r                                 storage.SwapOutcomeRecord
			eventIndex                        uint32
			fromMint, toMint, quoteMint, auth string
		)
		o := &r.Outcome

		err := rows.Scan(
			&r.ID, &r.TxSignature, &eventIndex, &r.Slot, &r.Timestamp,
			&o.GivenAmount, &o.MinExchangeRate.Rate,
			&o.MinExchangeRate.FromDecimals, &o.MinExchangeRate.QuoteDecimals,
			&o.MinExchangeRate.Strict,
			&o.FromAmount, &o.ToAmount, &o.QuoteAmount, &o.SpillAmount,
			&fromMint, &toMint, &quoteMint, &auth, &r.RealizedRate,
		)
		if err != nil {
			return nil, fmt.Errorf("scan swap outcome row: %w", err)
		}
		r.EventIndex = int(eventIndex)

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
