package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"hl-action-kit/internal/hl/chain"
	"hl-action-kit/internal/journal"
	"hl-action-kit/internal/metrics"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var ErrTransport = errors.New("exchange request failed")

type Client struct {
	baseURL       string
	http          *http.Client
	builder       *Builder
	signer        TypedDataSigner
	agentMu       sync.RWMutex
	agent         TypedDataSigner
	vaultAddress  *common.Address
	lastNonce     atomic.Uint64
	lastPersisted atomic.Uint64
	nonceStore    NonceStore
	nonceKey      string
	log           *zap.Logger
	metrics       *metrics.Metrics
	journal       Journal
	persistMu     sync.Mutex
	persistWarned atomic.Bool
}

type NonceStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type Journal interface {
	Enqueue(entry journal.Entry)
}

type NonceState struct {
	Key       string
	Last      uint64
	Persisted uint64
}

// NewClient signs with signer, the user's primary wallet. L1 actions switch to
// an agent once one is approved or set.
func NewClient(network chain.Network, timeout time.Duration, signer TypedDataSigner, vaultAddress string) (*Client, error) {
	if signer == nil {
		return nil, errors.New("signer is required")
	}
	baseURL := strings.TrimRight(network.APIURL, "/")
	if baseURL == "" {
		baseURL = chain.ForFlag(network.Mainnet).APIURL
	}
	var vault *common.Address
	if v := strings.TrimSpace(vaultAddress); v != "" {
		if err := chain.ValidateAddress(v); err != nil {
			return nil, fmt.Errorf("vault address: %w", err)
		}
		addr := common.HexToAddress(v)
		vault = &addr
	}
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: timeout,
		},
		builder:      NewBuilder(network),
		signer:       signer,
		vaultAddress: vault,
		log:          zap.NewNop(),
		metrics:      metrics.NewNoop(),
	}, nil
}

func (c *Client) SetLogger(log *zap.Logger) {
	if log != nil {
		c.log = log
	}
}

func (c *Client) SetMetrics(m *metrics.Metrics) {
	if m != nil {
		c.metrics = m
	}
}

func (c *Client) SetJournal(j Journal) {
	c.journal = j
}

// SetAgent routes subsequent L1 actions through agent. A nil agent falls back
// to the primary signer.
func (c *Client) SetAgent(agent TypedDataSigner) {
	c.agentMu.Lock()
	c.agent = agent
	c.agentMu.Unlock()
}

func (c *Client) Agent() TypedDataSigner {
	c.agentMu.RLock()
	defer c.agentMu.RUnlock()
	return c.agent
}

func (c *Client) l1Signer() TypedDataSigner {
	if agent := c.Agent(); agent != nil {
		return agent
	}
	return c.signer
}

func (c *Client) PlaceOrder(ctx context.Context, order OrderWire) (map[string]any, error) {
	return c.PlaceOrders(ctx, GroupingNA, order)
}

func (c *Client) PlaceOrders(ctx context.Context, grouping Grouping, orders ...OrderWire) (map[string]any, error) {
	return c.SubmitL1(ctx, NewOrderAction(grouping, orders...))
}

func (c *Client) CancelOrder(ctx context.Context, asset int, orderID int64) (map[string]any, error) {
	return c.SubmitL1(ctx, CancelAction{Type: ActionCancel, Cancels: []CancelWire{{Asset: asset, OrderID: orderID}}})
}

func (c *Client) CancelByCloid(ctx context.Context, cancels ...CancelByCloidWire) (map[string]any, error) {
	return c.SubmitL1(ctx, CancelByCloidAction{Type: ActionCancelByCloid, Cancels: cancels})
}

func (c *Client) SetReferrer(ctx context.Context, code string) (map[string]any, error) {
	return c.SubmitL1(ctx, SetReferrerAction{Type: ActionSetReferrer, Code: code})
}

func (c *Client) SpotDeploy(ctx context.Context, action SpotDeployAction) (map[string]any, error) {
	return c.SubmitL1(ctx, action)
}

// ApproveAgent creates an ephemeral agent key, has the primary wallet approve
// it and, once the exchange accepts, uses it for L1 actions.
func (c *Client) ApproveAgent(ctx context.Context, agentName string) (*KeySigner, map[string]any, error) {
	agent, err := NewAgentKeySigner()
	if err != nil {
		return nil, nil, err
	}
	nonce := c.nextNonce()
	action := NewApproveAgentAction(c.builder.Network(), agent.Address(), agentName, nonce)
	resp, err := c.SubmitWallet(ctx, action, nonce)
	if err != nil {
		return nil, resp, err
	}
	c.SetAgent(agent)
	c.log.Info("agent approved", zap.String("agent", agent.Address().Hex()), zap.String("agent_name", agentName))
	return agent, resp, nil
}

func (c *Client) SpotSend(ctx context.Context, destination, token, amount string) (map[string]any, error) {
	if err := chain.ValidateAddress(destination); err != nil {
		return nil, err
	}
	if strings.TrimSpace(amount) == "" {
		return nil, errors.New("amount is required")
	}
	nonce := c.nextNonce()
	action := NewSpotSendAction(c.builder.Network(), destination, token, amount, nonce)
	return c.SubmitWallet(ctx, action, nonce)
}

func (c *Client) USDClassTransfer(ctx context.Context, amount float64, toPerp bool) (map[string]any, error) {
	if amount <= 0 {
		return nil, errors.New("amount must be > 0")
	}
	amountStr := strconv.FormatFloat(amount, 'f', -1, 64)
	if c.vaultAddress != nil {
		amountStr += " subaccount:" + c.vaultAddress.Hex()
	}
	nonce := c.nextNonce()
	action := NewUSDClassTransferAction(c.builder.Network(), amountStr, toPerp, nonce)
	return c.SubmitWallet(ctx, action, nonce)
}

// SubmitL1 signs action with the agent (or primary) signer against the next
// nonce and the configured vault, then posts it.
func (c *Client) SubmitL1(ctx context.Context, action L1Action) (map[string]any, error) {
	signer := c.l1Signer()
	nonce := c.nextNonce()
	payload, err := c.builder.L1Payload(ctx, signer, action, nonce, c.vaultAddress)
	if err != nil {
		c.signFailed(action, nonce, signer, err)
		return nil, err
	}
	c.metrics.ActionsSigned.Inc()
	return c.submit(ctx, payload, signer)
}

// SubmitWallet signs action with the primary wallet. nonce must match the
// nonce or time embedded in the action.
func (c *Client) SubmitWallet(ctx context.Context, action UserSignedAction, nonce uint64) (map[string]any, error) {
	payload, err := c.builder.WalletPayload(ctx, c.signer, action, nonce)
	if err != nil {
		c.signFailed(action, nonce, c.signer, err)
		return nil, err
	}
	c.metrics.ActionsSigned.Inc()
	return c.submit(ctx, payload, c.signer)
}

func (c *Client) signFailed(action Action, nonce uint64, signer TypedDataSigner, err error) {
	if errors.Is(err, ErrSigning) {
		c.metrics.SigningFailed.Inc()
	}
	c.log.Warn("action signing failed", zap.String("action", actionType(action)), zap.Uint64("nonce", nonce), zap.Error(err))
	c.record(action, nonce, signer, journal.StatusSignFailed, err)
}

func (c *Client) submit(ctx context.Context, payload SignedAction, signer TypedDataSigner) (map[string]any, error) {
	resp, err := c.post(ctx, "/exchange", payload)
	if err == nil {
		err = responseError(resp)
	}
	if err != nil {
		c.metrics.SubmitFailed.Inc()
		c.log.Warn("action rejected", zap.String("action", actionType(payload.Action)), zap.Uint64("nonce", payload.Nonce), zap.Error(err))
		c.record(payload.Action, payload.Nonce, signer, journal.StatusRejected, err)
		return resp, err
	}
	c.metrics.ActionsSubmitted.Inc()
	c.log.Debug("action accepted", zap.String("action", actionType(payload.Action)), zap.Uint64("nonce", payload.Nonce))
	c.record(payload.Action, payload.Nonce, signer, journal.StatusAccepted, nil)
	return resp, nil
}

func (c *Client) record(action Action, nonce uint64, signer TypedDataSigner, status journal.Status, err error) {
	if c.journal == nil {
		return
	}
	entry := journal.Entry{
		Time:       time.Now().UTC(),
		Network:    c.builder.Network().String(),
		ActionType: actionType(action),
		Nonce:      nonce,
		Status:     status,
	}
	if signer != nil {
		entry.Signer = strings.ToLower(signer.Address().Hex())
	}
	if _, ok := action.(L1Action); ok && c.vaultAddress != nil {
		entry.Vault = strings.ToLower(c.vaultAddress.Hex())
	}
	if err != nil {
		entry.Error = err.Error()
	}
	c.journal.Enqueue(entry)
}

func actionType(action Action) string {
	if action == nil {
		return ""
	}
	return action.ActionType()
}

func (c *Client) InitNonceStore(ctx context.Context, store NonceStore) error {
	if store == nil {
		return nil
	}
	if c.signer == nil {
		return errors.New("signer is required for nonce store")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	key := nonceStoreKey(c.baseURL, c.signer, c.vaultAddress)
	now := uint64(time.Now().UnixMilli())
	seed := now
	if raw, ok, err := store.Get(ctx, key); err != nil {
		return err
	} else if ok {
		parsed, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid stored nonce %q: %w", raw, err)
		}
		if parsed > seed {
			seed = parsed
		}
	}
	if current := c.lastNonce.Load(); current > seed {
		seed = current
	}
	c.nonceStore = store
	c.nonceKey = key
	c.lastNonce.Store(seed)
	c.lastPersisted.Store(seed)
	return nil
}

func (c *Client) NonceState() (NonceState, bool) {
	if c.nonceStore == nil || c.nonceKey == "" {
		return NonceState{}, false
	}
	return NonceState{
		Key:       c.nonceKey,
		Last:      c.lastNonce.Load(),
		Persisted: c.lastPersisted.Load(),
	}, true
}

func (c *Client) nextNonce() uint64 {
	now := uint64(time.Now().UnixMilli())
	for {
		prev := c.lastNonce.Load()
		next := now
		if prev >= next {
			next = prev + 1
		}
		if c.lastNonce.CompareAndSwap(prev, next) {
			c.persistNonce(next)
			return next
		}
	}
}

func (c *Client) persistNonce(nonce uint64) {
	if c.nonceStore == nil || c.nonceKey == "" {
		return
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if nonce <= c.lastPersisted.Load() {
		return
	}
	if err := c.nonceStore.Set(context.Background(), c.nonceKey, strconv.FormatUint(nonce, 10)); err != nil {
		c.logPersistError(err)
		return
	}
	c.lastPersisted.Store(nonce)
	c.persistWarned.Store(false)
}

func (c *Client) logPersistError(err error) {
	if c.log == nil {
		return
	}
	if c.persistWarned.CompareAndSwap(false, true) {
		c.log.Warn("nonce persistence failed", zap.String("nonce_key", c.nonceKey), zap.Error(err))
	}
}

func nonceStoreKey(baseURL string, signer TypedDataSigner, vaultAddress *common.Address) string {
	addr := "unknown"
	if signer != nil {
		addr = strings.ToLower(signer.Address().Hex())
	}
	vault := "none"
	if vaultAddress != nil {
		vault = strings.ToLower(vaultAddress.Hex())
	}
	return fmt.Sprintf("exchange:nonce:%s:%s:%s", strings.ToLower(strings.TrimSpace(baseURL)), addr, vault)
}

func (c *Client) post(ctx context.Context, path string, req any) (map[string]any, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	url := c.baseURL + path
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("%w: http %d: %s", ErrTransport, resp.StatusCode, string(payload))
	}
	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}
	return data, nil
}
