package xrpl

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RPCError is an error reported by the ledger RPC itself, as opposed to a
// transport failure.
type RPCError struct {
	Code    string
	Message string
}

func (e *RPCError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rpc error: %s", e.Code)
	}
	return fmt.Sprintf("rpc error: %s (%s)", e.Code, e.Message)
}

// IsNotFound reports whether err is the ledger's account-not-found error.
func IsNotFound(err error) bool {
	var r *RPCError
	return errors.As(err, &r) && r.Code == "actNotFound"
}

// Opts configures a websocket client.
type Opts struct {
	URL     string
	Timeout time.Duration

	// The testnet endpoint serves a self-signed certificate.
	InsecureTLS bool
}

// WSClient is a Client over a single websocket connection. Requests are
// correlated by id and serialized on the connection; concurrent callers queue
// on the internal mutex.
type WSClient struct {
	conn    *websocket.Conn
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.Mutex
	nextID uint64
}

// Dial connects to the ledger RPC endpoint.
func Dial(ctx context.Context, o Opts, logger *zap.Logger) (*WSClient, error) {
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: o.Timeout,
	}
	if o.InsecureTLS {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	conn, _, err := dialer.DialContext(ctx, o.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", o.URL, err)
	}
	logger.Info("connected to ledger RPC", zap.String("url", o.URL))
	return &WSClient{conn: conn, logger: logger, timeout: o.Timeout}, nil
}

func (c *WSClient) Close() error {
	return c.conn.Close()
}

type rpcEnvelope struct {
	ID           uint64          `json:"id"`
	Status       string          `json:"status"`
	Type         string          `json:"type"`
	Error        string          `json:"error"`
	ErrorMessage string          `json:"error_message"`
	Result       json.RawMessage `json:"result"`
}

// call issues one request and waits for its response. Stray frames with a
// different id (late responses after a timeout) are discarded.
func (c *WSClient) call(ctx context.Context, command string, params map[string]any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.nextID++
	id := c.nextID

	req := map[string]any{"id": id, "command": command}
	for k, v := range params {
		req[k] = v
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("%s request: %w", command, err)
	}

	_ = c.conn.SetReadDeadline(deadline)
	for {
		var env rpcEnvelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return nil, fmt.Errorf("%s response: %w", command, err)
		}
		if env.ID != id {
			continue
		}
		if env.Status == "error" {
			return nil, &RPCError{Code: env.Error, Message: env.ErrorMessage}
		}
		// Older servers report errors inside the result object.
		var embedded struct {
			Error        string `json:"error"`
			ErrorMessage string `json:"error_message"`
		}
		if json.Unmarshal(env.Result, &embedded) == nil && embedded.Error != "" {
			return nil, &RPCError{Code: embedded.Error, Message: embedded.ErrorMessage}
		}
		return env.Result, nil
	}
}

// AccountTx implements Client.
func (c *WSClient) AccountTx(ctx context.Context, account string, limit int, marker json.RawMessage) (*AccountTxPage, error) {
	params := map[string]any{
		"account": account,
		"limit":   limit,
		"forward": false, // newest first
	}
	if len(marker) > 0 {
		params["marker"] = marker
	}
	raw, err := c.call(ctx, "account_tx", params)
	if err != nil {
		return nil, err
	}
	var page AccountTxPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("decode account_tx result: %w", err)
	}
	// A JSON null marker means no continuation.
	if string(page.Marker) == "null" {
		page.Marker = nil
	}
	return &page, nil
}

// AccountState implements Client.
func (c *WSClient) AccountState(ctx context.Context, address string) (*AccountState, error) {
	raw, err := c.call(ctx, "account_info", map[string]any{
		"account":      address,
		"ledger_index": "validated",
	})
	if err != nil {
		if IsNotFound(err) {
			return &AccountState{Address: address, Reason: "actNotFound"}, nil
		}
		return nil, err
	}
	var result struct {
		AccountData struct {
			Balance  string `json:"Balance"`
			Sequence uint32 `json:"Sequence"`
		} `json:"account_data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode account_info result: %w", err)
	}
	drops, err := strconv.ParseInt(result.AccountData.Balance, 10, 64)
	if err != nil {
		drops = 0
	}
	return &AccountState{
		Address:  address,
		Drops:    drops,
		Balance:  float64(drops) / DropsPerUnit,
		Sequence: result.AccountData.Sequence,
		Exists:   true,
	}, nil
}

// LedgerCurrent implements Client.
func (c *WSClient) LedgerCurrent(ctx context.Context) (int64, error) {
	raw, err := c.call(ctx, "ledger_current", nil)
	if err != nil {
		return 0, err
	}
	var result struct {
		LedgerCurrentIndex int64 `json:"ledger_current_index"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, fmt.Errorf("decode ledger_current result: %w", err)
	}
	return result.LedgerCurrentIndex, nil
}
