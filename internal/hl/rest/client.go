package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hl-action-kit/internal/hl/chain"
	"hl-action-kit/internal/metrics"

	"go.uber.org/zap"
)

var ErrTransport = errors.New("info request failed")

type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: timeout,
		},
		log:     log,
		metrics: metrics.NewNoop(),
	}
}

func (c *Client) SetMetrics(m *metrics.Metrics) {
	if m == nil {
		return
	}
	c.metrics = m
}

type InfoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

// NewInfoRequest validates user when one is given. Both the REST and the
// websocket post paths send this body.
func NewInfoRequest(kind, user string) (InfoRequest, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return InfoRequest{}, errors.New("info request type is required")
	}
	user = strings.TrimSpace(user)
	if user != "" {
		if err := chain.ValidateAddress(user); err != nil {
			return InfoRequest{}, err
		}
	}
	return InfoRequest{Type: kind, User: user}, nil
}

// Info posts an arbitrary info request and returns the undecoded reply.
func (c *Client) Info(ctx context.Context, req InfoRequest) (json.RawMessage, error) {
	var data json.RawMessage
	if err := c.post(ctx, "/info", req, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) SpotMeta(ctx context.Context) (SpotMeta, error) {
	var meta SpotMeta
	err := c.post(ctx, "/info", InfoRequest{Type: "spotMeta"}, &meta)
	return meta, err
}

func (c *Client) SpotClearinghouseState(ctx context.Context, user string) (SpotClearinghouseState, error) {
	var state SpotClearinghouseState
	err := c.userInfo(ctx, "spotClearinghouseState", user, &state)
	return state, err
}

func (c *Client) Referral(ctx context.Context, user string) (Referral, error) {
	var referral Referral
	err := c.userInfo(ctx, "referral", user, &referral)
	return referral, err
}

func (c *Client) UserRateLimit(ctx context.Context, user string) (UserRateLimit, error) {
	var limit UserRateLimit
	err := c.userInfo(ctx, "userRateLimit", user, &limit)
	return limit, err
}

func (c *Client) SpotDeployState(ctx context.Context, user string) (SpotDeployState, error) {
	var state SpotDeployState
	err := c.userInfo(ctx, "spotDeployState", user, &state)
	return state, err
}

func (c *Client) HistoricalOrders(ctx context.Context, user string) ([]HistoricalOrder, error) {
	var orders []HistoricalOrder
	if err := c.userInfo(ctx, "historicalOrders", user, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// userInfo validates user before any request is made.
func (c *Client) userInfo(ctx context.Context, kind, user string, out any) error {
	if err := chain.ValidateAddress(user); err != nil {
		return err
	}
	return c.post(ctx, "/info", InfoRequest{Type: kind, User: user}, out)
}

func (c *Client) post(ctx context.Context, path string, req interface{}, out any) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	c.metrics.InfoRequests.Inc()
	url := c.baseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.InfoFailed.Inc()
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.InfoFailed.Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%w: http %d: %s", ErrTransport, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.InfoFailed.Inc()
		c.log.Debug("info decode failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: decode: %v", ErrTransport, err)
	}
	return nil
}
