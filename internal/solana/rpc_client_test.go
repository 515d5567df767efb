package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcServer answers every request with the value returned by handle.
func rpcServer(t *testing.T, handle func(req rpcRequest) interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  handle(req),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHTTPClient_GetTransaction(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		assert.Equal(t, "getTransaction", req.Method)
		return map[string]interface{}{
			"slot":      int64(123456),
			"blockTime": int64(1700000000),
			"meta": map[string]interface{}{
				"err":         nil,
				"logMessages": []string{"Program log: Hello", "Program data: AAAA"},
			},
			"transaction": map[string]interface{}{
				"message": map[string]interface{}{
					"accountKeys": []string{"addr1", "addr2"},
				},
			},
		}
	})

	tx, err := NewHTTPClient(server.URL).GetTransaction(context.Background(), "sig1")
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, int64(123456), tx.Slot)
	assert.Equal(t, int64(1700000000), tx.BlockTime)
	assert.Equal(t, "sig1", tx.Signature)
	require.NotNil(t, tx.Meta)
	assert.Len(t, tx.Meta.LogMessages, 2)
	require.NotNil(t, tx.Message)
	assert.Equal(t, []string{"addr1", "addr2"}, tx.Message.AccountKeys)
}

func TestHTTPClient_GetTransaction_NotFound(t *testing.T) {
	server := rpcServer(t, func(rpcRequest) interface{} { return nil })

	tx, err := NewHTTPClient(server.URL).GetTransaction(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, tx)
}

func TestHTTPClient_GetSignaturesForAddress(t *testing.T) {
	server := rpcServer(t, func(req rpcRequest) interface{} {
		require.Len(t, req.Params, 2)
		cfg := req.Params[1].(map[string]interface{})
		assert.Equal(t, "before-sig", cfg["before"])
		assert.Equal(t, float64(2), cfg["limit"])
		return []map[string]interface{}{
			{"signature": "s2", "slot": 20, "blockTime": 1700000020, "err": nil},
			{"signature": "s1", "slot": 10, "blockTime": nil, "err": map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}},
		}
	})

	sigs, err := NewHTTPClient(server.URL).GetSignaturesForAddress(context.Background(), "prog",
		&SignaturesOpts{Before: "before-sig", Limit: 2})
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	assert.Equal(t, "s2", sigs[0].Signature)
	require.NotNil(t, sigs[0].BlockTime)
	assert.Nil(t, sigs[1].BlockTime)
	assert.NotNil(t, sigs[1].Err)
}

func TestHTTPClient_GetAccountInfo(t *testing.T) {
	mint := MustParsePubkey("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	data := EncodeTokenAccount(&TokenAccount{Mint: mint, Amount: 42})

	server := rpcServer(t, func(req rpcRequest) interface{} {
		assert.Equal(t, "getAccountInfo", req.Method)
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 1},
			"value": map[string]interface{}{
				"lamports":   2039280,
				"owner":      TokenProgramID.String(),
				"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
				"executable": false,
				"rentEpoch":  0,
			},
		}
	})
	client := NewHTTPClient(server.URL)

	info, err := client.GetAccountInfo(context.Background(), "wallet")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, TokenProgramID.String(), info.Owner)

	acc, err := FetchTokenAccount(context.Background(), client, Pubkey{1})
	require.NoError(t, err)
	assert.Equal(t, mint, acc.Mint)
	assert.Equal(t, uint64(42), acc.Amount)
}

func TestHTTPClient_GetAccountInfo_NotFound(t *testing.T) {
	server := rpcServer(t, func(rpcRequest) interface{} {
		return map[string]interface{}{"context": map[string]interface{}{"slot": 1}, "value": nil}
	})
	client := NewHTTPClient(server.URL)

	info, err := client.GetAccountInfo(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Nil(t, info)

	_, err = FetchMarketState(context.Background(), client, Pubkey{9})
	assert.True(t, errors.Is(err, ErrAccountNotFound))
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var req rpcRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": 1700000000})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond, 20*time.Millisecond),
	)

	bt, err := client.GetBlockTime(context.Background(), 5)
	require.NoError(t, err)
	require.NotNil(t, bt)
	assert.Equal(t, int64(1700000000), *bt)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestHTTPClient_RPCErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		var req rpcRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32602, "message": "Invalid param"},
		})
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond, time.Millisecond)).
		GetBlockTime(context.Background(), 1)
	require.Error(t, err)

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32602, rpcErr.Code)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTTPClient(server.URL, WithRetryDelay(time.Second, time.Second)).GetBlockTime(ctx, 1)
	require.Error(t, err)
}
