package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/stakehouse/rgs/internal/domain"
)

// RemoteEngine forwards commands to an external engine process over
// HTTP. The connection is pooled and kept alive by the transport. The
// client never retries: a duplicate invocation could mint a second
// outcome for the same wager.
type RemoteEngine struct {
	gameCode string
	baseURL  string
	info     domain.EngineInfo
	client   *http.Client
	logger   *slog.Logger
}

// remoteProcessRequest is the wire request for POST /process.
type remoteProcessRequest struct {
	GameCode     string                   `json:"game_code"`
	PublicState  json.RawMessage          `json:"public_state,omitempty"`
	PrivateState json.RawMessage          `json:"private_state,omitempty"`
	Command      domain.GameActionCommand `json:"command"`
}

// NewRemoteEngine creates a client for a remote engine service and
// fetches its descriptor. The descriptor fetch is the reachability
// check: a service that cannot identify itself is not registered.
func NewRemoteEngine(ctx context.Context, gameCode, baseURL string, timeout time.Duration, logger *slog.Logger) (*RemoteEngine, error) {
	e := &RemoteEngine{
		gameCode: gameCode,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}

	info, err := e.fetchInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("describe engine %s at %s: %w", gameCode, baseURL, err)
	}
	e.info = *info

	logger.Info("remote engine registered",
		"game_code", gameCode,
		"engine", info.Name,
		"version", info.Version)

	return e, nil
}

// Info implements Adapter.
func (e *RemoteEngine) Info() domain.EngineInfo { return e.info }

// ProcessCommand implements Adapter.
func (e *RemoteEngine) ProcessCommand(ctx context.Context, publicState, privateState json.RawMessage, cmd domain.GameActionCommand) (*domain.CommandProcessingResult, error) {
	body, err := json.Marshal(remoteProcessRequest{
		GameCode:     e.gameCode,
		PublicState:  publicState,
		PrivateState: privateState,
		Command:      cmd,
	})
	if err != nil {
		return nil, domain.ErrInternal("marshal engine request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/process", bytes.NewReader(body))
	if err != nil {
		return nil, domain.ErrInternal("create engine request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, domain.ErrEngineUnreachable(e.gameCode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, domain.ErrEngineInvalidResponse(e.gameCode, fmt.Errorf("engine returned %d", resp.StatusCode))
	}

	var result domain.CommandProcessingResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, domain.ErrEngineInvalidResponse(e.gameCode, fmt.Errorf("decode result: %w", err))
	}
	if result.Win.IsNegative() {
		return nil, domain.ErrEngineInvalidResponse(e.gameCode, fmt.Errorf("engine returned negative win %s", result.Win))
	}
	return &result, nil
}

// fetchInfo calls GET /info on the engine service.
func (e *RemoteEngine) fetchInfo(ctx context.Context) (*domain.EngineInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/info", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("info request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("engine info returned %d", resp.StatusCode)
	}

	var info domain.EngineInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode info: %w", err)
	}
	return &info, nil
}

// IsTimeout reports whether an engine error was caused by a network
// timeout. The orchestrator treats timeouts like any other engine
// failure; this exists for log detail only.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
