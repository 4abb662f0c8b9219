package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stakehouse/rgs/internal/domain"
)

// HTTPClient talks to the operator's wallet ledger over HTTP. It
// performs no retries of its own; the orchestrator reuses transaction
// ids when it decides a retry is safe.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a wallet client with the given base URL and
// per-call timeout.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type walletRequest struct {
	PlayerID      string          `json:"player_id"`
	Amount        decimal.Decimal `json:"amount,omitempty"`
	Currency      string          `json:"currency,omitempty"`
	TransactionID string          `json:"transaction_id"`
	RoundID       string          `json:"round_id,omitempty"`
}

// Debit implements Client.
func (c *HTTPClient) Debit(ctx context.Context, params DebitParams) (*domain.WalletResponse, error) {
	return c.post(ctx, "/debit", walletRequest{
		PlayerID:      params.PlayerID,
		Amount:        params.Amount,
		Currency:      params.Currency,
		TransactionID: params.TransactionID,
		RoundID:       params.RoundID,
	})
}

// Credit implements Client.
func (c *HTTPClient) Credit(ctx context.Context, params CreditParams) (*domain.WalletResponse, error) {
	return c.post(ctx, "/credit", walletRequest{
		PlayerID:      params.PlayerID,
		Amount:        params.Amount,
		Currency:      params.Currency,
		TransactionID: params.TransactionID,
		RoundID:       params.RoundID,
	})
}

// Rollback implements Client.
func (c *HTTPClient) Rollback(ctx context.Context, playerID, transactionID string) (*domain.WalletResponse, error) {
	return c.post(ctx, "/rollback", walletRequest{
		PlayerID:      playerID,
		TransactionID: transactionID,
	})
}

// Balance implements Client.
func (c *HTTPClient) Balance(ctx context.Context, playerID, currency string) (*domain.WalletResponse, error) {
	endpoint := fmt.Sprintf("%s/balance?player_id=%s&currency=%s",
		c.baseURL, url.QueryEscape(playerID), url.QueryEscape(currency))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.ErrInternal("create wallet request", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer resp.Body.Close()

	return c.decode(resp)
}

func (c *HTTPClient) post(ctx context.Context, path string, body walletRequest) (*domain.WalletResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, domain.ErrInternal("marshal wallet request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, domain.ErrInternal("create wallet request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer resp.Body.Close()

	return c.decode(resp)
}

func (c *HTTPClient) decode(resp *http.Response) (*domain.WalletResponse, error) {
	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		return nil, domain.ErrInsufficientFunds()
	case resp.StatusCode != http.StatusOK:
		return nil, domain.ErrWalletUnreachable(fmt.Errorf("wallet returned %d", resp.StatusCode))
	}

	var out domain.WalletResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.ErrWalletUnreachable(fmt.Errorf("decode wallet response: %w", err))
	}
	return &out, nil
}

// transportError classifies a failed round trip. Timeouts get their own
// code so reconciliation tooling can separate slow wallets from dead
// ones; the orchestrator treats both as failure.
func (c *HTTPClient) transportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ErrWalletTimeout(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrWalletTimeout(err)
	}
	return domain.ErrWalletUnreachable(err)
}
