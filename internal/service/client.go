package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/quantdeck/tradesched/internal/model"
)

// ServiceError normalizes every way a call to the trading engine can go
// wrong: network failure, timeout, or a non-2xx status. Task handlers
// receive a tagged failure instead of an exception crossing the task
// boundary.
type ServiceError struct {
	Endpoint string
	Message  string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service call %s failed: %s", e.Endpoint, e.Message)
}

// Client is a thin, timeout-bounded HTTP client for the dependent trading
// engine. It performs no retries; retry policy belongs to the caller.
type Client struct {
	logger     *zap.Logger
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the trading engine at baseURL. Every
// call is bounded by timeout.
func NewClient(logger *zap.Logger, baseURL string, timeout time.Duration) *Client {
	return &Client{
		logger:  logger.Named("service"),
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Call issues one HTTP request against the trading engine and returns the
// raw response body. Any failure comes back as *ServiceError.
func (c *Client) Call(ctx context.Context, method, endpoint string, body interface{}) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &ServiceError{Endpoint: endpoint, Message: fmt.Sprintf("failed to encode request body: %v", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, &ServiceError{Endpoint: endpoint, Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Service call failed",
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return nil, &ServiceError{Endpoint: endpoint, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServiceError{Endpoint: endpoint, Message: fmt.Sprintf("failed to read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Service call returned error status",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode))
		return nil, &ServiceError{Endpoint: endpoint, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	return data, nil
}

// TrackedSymbols fetches the symbol list the engine is configured to trade.
func (c *Client) TrackedSymbols(ctx context.Context) ([]string, error) {
	data, err := c.Call(ctx, http.MethodGet, "/api/symbols", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &ServiceError{Endpoint: "/api/symbols", Message: fmt.Sprintf("malformed response: %v", err)}
	}
	return out.Symbols, nil
}

// RefreshMarketData asks the engine to refresh quotes for all given
// symbols in one batched call.
func (c *Client) RefreshMarketData(ctx context.Context, symbols []string) error {
	_, err := c.Call(ctx, http.MethodPost, "/api/market-data/refresh", map[string][]string{"symbols": symbols})
	return err
}

// BotStatus queries the engine's current and desired state.
func (c *Client) BotStatus(ctx context.Context) (model.BotStatus, error) {
	data, err := c.Call(ctx, http.MethodGet, "/api/bot/status", nil)
	if err != nil {
		return model.BotStatus{}, err
	}
	var status model.BotStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return model.BotStatus{}, &ServiceError{Endpoint: "/api/bot/status", Message: fmt.Sprintf("malformed response: %v", err)}
	}
	return status, nil
}

// RunCycle triggers one trading cycle on the engine.
func (c *Client) RunCycle(ctx context.Context) error {
	_, err := c.Call(ctx, http.MethodPost, "/api/bot/cycle", nil)
	return err
}

// Performance fetches the engine's aggregate P&L summary.
func (c *Client) Performance(ctx context.Context) (model.PerformanceSummary, error) {
	data, err := c.Call(ctx, http.MethodGet, "/api/performance", nil)
	if err != nil {
		return model.PerformanceSummary{}, err
	}
	var perf model.PerformanceSummary
	if err := json.Unmarshal(data, &perf); err != nil {
		return model.PerformanceSummary{}, &ServiceError{Endpoint: "/api/performance", Message: fmt.Sprintf("malformed response: %v", err)}
	}
	return perf, nil
}

// ActivePositions fetches the engine's open positions.
func (c *Client) ActivePositions(ctx context.Context) ([]model.Position, error) {
	data, err := c.Call(ctx, http.MethodGet, "/api/trades/active", nil)
	if err != nil {
		return nil, err
	}
	var positions []model.Position
	if err := json.Unmarshal(data, &positions); err != nil {
		return nil, &ServiceError{Endpoint: "/api/trades/active", Message: fmt.Sprintf("malformed response: %v", err)}
	}
	return positions, nil
}

// TradeHistory fetches closed trades from the last given number of days.
func (c *Client) TradeHistory(ctx context.Context, days int) ([]model.Trade, error) {
	endpoint := fmt.Sprintf("/api/trades/history?days=%d", days)
	data, err := c.Call(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var trades []model.Trade
	if err := json.Unmarshal(data, &trades); err != nil {
		return nil, &ServiceError{Endpoint: endpoint, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	return trades, nil
}

// Ping probes the engine's liveness endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Call(ctx, http.MethodGet, "/api/ping", nil)
	return err
}

// Start asks the engine to start trading. The health check issues this
// exactly once per invocation when the engine should be active but is not.
func (c *Client) Start(ctx context.Context) error {
	_, err := c.Call(ctx, http.MethodPost, "/api/bot/start", nil)
	return err
}
