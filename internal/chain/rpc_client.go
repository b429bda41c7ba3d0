package chain

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mr-tron/base58"
)

// RPCClient talks to a Solana JSON-RPC node.
type RPCClient struct {
	http *resty.Client
	url  string
}

func NewRPCClient(url string, timeout time.Duration) *RPCClient {
	return &RPCClient{
		http: resty.New().SetTimeout(timeout),
		url:  url,
	}
}

var _ Client = (*RPCClient)(nil)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *RPCClient) call(ctx context.Context, method string, params []any, out any) error {
	var envelope rpcResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}).
		SetResult(&envelope).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLedger, method, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: %s: http %d", ErrLedger, method, resp.StatusCode())
	}
	if envelope.Error != nil {
		return fmt.Errorf("%w: %s: rpc %d %s", ErrLedger, method, envelope.Error.Code, envelope.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("%w: %s: decode result: %v", ErrLedger, method, err)
		}
	}
	return nil
}

func (c *RPCClient) Balance(ctx context.Context, address string) (int64, error) {
	var result struct {
		Value int64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []any{address}, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

func (c *RPCClient) SubmitTransfer(ctx context.Context, signer ed25519.PrivateKey, outs []TransferOut) (string, error) {
	if len(outs) == 0 {
		return "", fmt.Errorf("%w: no transfer outputs", ErrLedger)
	}
	var bh struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", []any{map[string]any{"commitment": "finalized"}}, &bh); err != nil {
		return "", err
	}

	tx, err := buildTransferTx(signer, outs, bh.Value.Blockhash)
	if err != nil {
		return "", fmt.Errorf("%w: build transaction: %v", ErrLedger, err)
	}

	var signature string
	err = c.call(ctx, "sendTransaction", []any{
		base64.StdEncoding.EncodeToString(tx),
		map[string]any{"encoding": "base64", "preflightCommitment": "confirmed"},
	}, &signature)
	if err != nil {
		return "", err
	}
	return signature, nil
}

func (c *RPCClient) ConfirmSignature(ctx context.Context, signature string) (bool, error) {
	var result struct {
		Value []*struct {
			ConfirmationStatus string          `json:"confirmationStatus"`
			Err                json.RawMessage `json:"err"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getSignatureStatuses", []any{[]string{signature}, map[string]any{"searchTransactionHistory": true}}, &result); err != nil {
		return false, err
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return false, nil
	}
	st := result.Value[0]
	if len(st.Err) > 0 && string(st.Err) != "null" {
		return false, fmt.Errorf("%w: %s", ErrTxFailed, st.Err)
	}
	switch st.ConfirmationStatus {
	case "confirmed", "finalized":
		return true, nil
	}
	return false, nil
}

// --- transaction serialization -------------------------------------------
//
// Legacy Solana wire format: a compact array of 64-byte signatures followed
// by the message. The message is header (3 bytes), compact array of account
// keys, recent blockhash, compact array of instructions. System-program
// transfers use instruction index 2 with a u64 lamport amount.

var systemProgramID = make([]byte, 32)

const systemTransferIndex = 2

func buildTransferTx(signer ed25519.PrivateKey, outs []TransferOut, recentBlockhash string) ([]byte, error) {
	msg, err := buildTransferMessage(signer.Public().(ed25519.PublicKey), outs, recentBlockhash)
	if err != nil {
		return nil, err
	}
	sig := ed25519.Sign(signer, msg)

	tx := appendShortvecLen(nil, 1)
	tx = append(tx, sig...)
	tx = append(tx, msg...)
	return tx, nil
}

func buildTransferMessage(funder ed25519.PublicKey, outs []TransferOut, recentBlockhash string) ([]byte, error) {
	blockhash, err := base58.Decode(recentBlockhash)
	if err != nil || len(blockhash) != 32 {
		return nil, fmt.Errorf("bad recent blockhash %q", recentBlockhash)
	}

	// Account table: funder (writable signer), distinct recipients
	// (writable), system program (readonly).
	keys := [][]byte{funder}
	index := map[string]byte{base58.Encode(funder): 0}
	for _, out := range outs {
		if out.Lamports <= 0 {
			return nil, fmt.Errorf("non-positive lamports for %s", out.To)
		}
		if _, ok := index[out.To]; ok {
			continue
		}
		raw, err := base58.Decode(out.To)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("bad recipient address %q", out.To)
		}
		index[out.To] = byte(len(keys))
		keys = append(keys, raw)
	}
	programIndex := byte(len(keys))
	keys = append(keys, systemProgramID)

	// Header: 1 required signature, 0 readonly signed, 1 readonly unsigned.
	msg := []byte{1, 0, 1}
	msg = appendShortvecLen(msg, len(keys))
	for _, k := range keys {
		msg = append(msg, k...)
	}
	msg = append(msg, blockhash...)

	msg = appendShortvecLen(msg, len(outs))
	for _, out := range outs {
		msg = append(msg, programIndex)
		msg = appendShortvecLen(msg, 2)
		msg = append(msg, 0, index[out.To])
		data := transferData(out.Lamports)
		msg = appendShortvecLen(msg, len(data))
		msg = append(msg, data...)
	}
	return msg, nil
}

func transferData(lamports int64) []byte {
	data := make([]byte, 12)
	data[0] = systemTransferIndex
	for i := 0; i < 8; i++ {
		data[4+i] = byte(uint64(lamports) >> (8 * i))
	}
	return data
}

// appendShortvecLen appends n in Solana's compact-u16 encoding: 7 bits per
// byte, high bit set on continuation.
func appendShortvecLen(b []byte, n int) []byte {
	for {
		if n < 0x80 {
			return append(b, byte(n))
		}
		b = append(b, byte(n&0x7f)|0x80)
		n >>= 7
	}
}
