package solana

import "context"

// WSClient streams program log notifications over logsSubscribe.
type WSClient interface {
	// SubscribeLogs returns a channel of notifications matching filter. The
	// channel closes when the client closes or the socket drops.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)

	Close() error
}

// LogsFilter selects which transactions a subscription reports.
type LogsFilter struct {
	// Mentions limits notifications to transactions naming one of these
	// accounts. Empty subscribes to all transactions.
	Mentions []string
	// Commitment defaults to DefaultCommitment.
	Commitment string
}

func (f LogsFilter) params() []interface{} {
	var sel interface{} = "all"
	if len(f.Mentions) > 0 {
		sel = map[string]interface{}{"mentions": f.Mentions}
	}
	commitment := f.Commitment
	if commitment == "" {
		commitment = DefaultCommitment
	}
	return []interface{}{sel, map[string]string{"commitment": commitment}}
}

// LogNotification is one logsSubscribe result.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	// Err is the raw transaction error, nil on success.
	Err interface{}
}

// Failed reports whether the transaction aborted. An aborted swap leaves
// no DidSwap in its logs.
func (n LogNotification) Failed() bool {
	return n.Err != nil
}
