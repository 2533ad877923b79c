package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// DefaultTimeout bounds a single RPC round trip. Failures are not
// retried here: a failed call is a per-pool failure for the current
// tick and the next tick retries naturally.
const DefaultTimeout = 30 * time.Second

// HTTPClient implements Reader over HTTP JSON-RPC 2.0.
type HTTPClient struct {
	endpoint  string
	client    *http.Client
	requestID atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new JSON-RPC chain reader.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Reader = (*HTTPClient)(nil)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs a single JSON-RPC call.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}

	if rpcResp.Error != nil {
		return fmt.Errorf("%s: %w", method, rpcResp.Error)
	}

	if rpcResp.Result == nil {
		return fmt.Errorf("%s: empty result", method)
	}

	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("%s: unmarshal result: %w", method, err)
	}

	return nil
}

// ListPools returns all pool addresses known to the factory contract.
func (c *HTTPClient) ListPools(ctx context.Context) ([]string, error) {
	var result struct {
		Pools []string `json:"pools"`
	}
	if err := c.call(ctx, "listPools", nil, &result); err != nil {
		return nil, err
	}
	return result.Pools, nil
}

// GetPoolConfig retrieves the constituent token addresses of a pool.
func (c *HTTPClient) GetPoolConfig(ctx context.Context, pool string) (*PoolConfig, error) {
	var result struct {
		AssetA     string `json:"assetA"`
		AssetB     string `json:"assetB"`
		AssetShare string `json:"assetShare"`
	}
	if err := c.call(ctx, "getPoolConfig", []interface{}{pool}, &result); err != nil {
		return nil, err
	}
	if result.AssetA == "" || result.AssetB == "" || result.AssetShare == "" {
		return nil, fmt.Errorf("getPoolConfig: malformed config for pool %s", pool)
	}
	return &PoolConfig{
		AssetA:     result.AssetA,
		AssetB:     result.AssetB,
		AssetShare: result.AssetShare,
	}, nil
}

// GetPoolReserves retrieves the current reserve balances of a pool.
func (c *HTTPClient) GetPoolReserves(ctx context.Context, pool string) (*PoolReserves, error) {
	var result struct {
		AssetAAmount     string `json:"assetAAmount"`
		AssetBAmount     string `json:"assetBAmount"`
		AssetShareAmount string `json:"assetShareAmount"`
	}
	if err := c.call(ctx, "getPoolReserves", []interface{}{pool}, &result); err != nil {
		return nil, err
	}
	return &PoolReserves{
		AssetAAmount:     result.AssetAAmount,
		AssetBAmount:     result.AssetBAmount,
		AssetShareAmount: result.AssetShareAmount,
	}, nil
}

// GetTokenMetadata retrieves name, symbol and decimals for a token.
func (c *HTTPClient) GetTokenMetadata(ctx context.Context, token string) (*TokenMetadata, error) {
	var result struct {
		Name     string `json:"name"`
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
	}
	if err := c.call(ctx, "getTokenMetadata", []interface{}{token}, &result); err != nil {
		return nil, err
	}
	return &TokenMetadata{
		Name:     result.Name,
		Symbol:   result.Symbol,
		Decimals: result.Decimals,
	}, nil
}
