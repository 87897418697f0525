package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"hl-action-kit/internal/config"
	"hl-action-kit/internal/hl/chain"
	"hl-action-kit/internal/hl/exchange"
	"hl-action-kit/internal/hl/rest"
	"hl-action-kit/internal/hl/ws"
	"hl-action-kit/internal/journal"
	"hl-action-kit/internal/metrics"
	"hl-action-kit/internal/state"
	"hl-action-kit/internal/state/sqlite"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// AgentValidity is how long an approved agent's name advertises it as valid.
const AgentValidity = 24 * time.Hour

// App owns the clients for one network. Signing clients are built lazily so
// read-only commands run without a key.
type App struct {
	cfg     *config.Config
	log     *zap.Logger
	network chain.Network
	rest    *rest.Client
	ws      *ws.Client
	metrics *metrics.Metrics
	prom    *metrics.Prometheus
	journal *journal.Writer

	store      *sqlite.Store
	signer     exchange.TypedDataSigner
	exchange   *exchange.Client
	metricsSrv *http.Server
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	network := cfg.ChainNetwork()
	a := &App{
		cfg:     cfg,
		log:     log,
		network: network,
		rest:    rest.New(network.APIURL, cfg.REST.Timeout, log),
		ws:      ws.New(network.WSURL, cfg.WS.ReconnectDelay, cfg.WS.PingInterval, log),
		metrics: metrics.NewNoop(),
	}
	if cfg.Metrics.EnabledValue() {
		a.prom = metrics.NewPrometheus()
		a.metrics = a.prom.Metrics
	}
	a.rest.SetMetrics(a.metrics)
	writer, err := journal.New(cfg.Journal, log)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	a.journal = writer
	return a, nil
}

func (a *App) Network() chain.Network { return a.network }
func (a *App) Info() *rest.Client     { return a.rest }
func (a *App) WS() *ws.Client         { return a.ws }

// Start launches the metrics endpoint and the journal writer.
func (a *App) Start(ctx context.Context) {
	a.journal.Start(ctx)
	if a.prom == nil {
		return
	}
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, a.prom.Handler())
	a.metricsSrv = &http.Server{Addr: a.cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	a.log.Info("metrics enabled", zap.String("address", a.cfg.Metrics.Address), zap.String("path", a.cfg.Metrics.Path))
}

// Signer resolves the primary wallet: an external wallet when HL_WALLET_RPC is
// set, otherwise HL_PRIVATE_KEY.
func (a *App) Signer(ctx context.Context) (exchange.TypedDataSigner, error) {
	if a.signer != nil {
		return a.signer, nil
	}
	signer, err := signerFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	a.signer = signer
	return signer, nil
}

func signerFromEnv(ctx context.Context) (exchange.TypedDataSigner, error) {
	walletAddress := strings.TrimSpace(os.Getenv("HL_WALLET_ADDRESS"))
	if rpcURL := strings.TrimSpace(os.Getenv("HL_WALLET_RPC")); rpcURL != "" {
		if err := chain.ValidateAddress(walletAddress); err != nil {
			return nil, fmt.Errorf("HL_WALLET_ADDRESS: %w", err)
		}
		return exchange.DialRPCSigner(ctx, rpcURL, common.HexToAddress(walletAddress))
	}
	privateKey := strings.TrimSpace(os.Getenv("HL_PRIVATE_KEY"))
	if privateKey == "" {
		return nil, errors.New("HL_PRIVATE_KEY or HL_WALLET_RPC is required")
	}
	signer, err := exchange.NewKeySigner(privateKey)
	if err != nil {
		return nil, err
	}
	if walletAddress != "" && !strings.EqualFold(walletAddress, signer.Address().Hex()) {
		return nil, fmt.Errorf("wallet address does not match private key: got %s expected %s", walletAddress, signer.Address().Hex())
	}
	return signer, nil
}

// Exchange returns the signing client, creating it and its nonce store on
// first use.
func (a *App) Exchange(ctx context.Context) (*exchange.Client, error) {
	if a.exchange != nil {
		return a.exchange, nil
	}
	signer, err := a.Signer(ctx)
	if err != nil {
		return nil, err
	}
	vaultAddress := strings.TrimSpace(os.Getenv("HL_VAULT_ADDRESS"))
	client, err := exchange.NewClient(a.network, a.cfg.REST.Timeout, signer, vaultAddress)
	if err != nil {
		return nil, err
	}
	client.SetLogger(a.log)
	client.SetMetrics(a.metrics)
	if a.journal != nil {
		client.SetJournal(a.journal)
	}
	a.initNonceStore(ctx, client)
	a.exchange = client
	return client, nil
}

// State opens the local sqlite store on first use. It returns nil when no
// path is configured.
func (a *App) State() (*sqlite.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	path := a.cfg.State.SQLitePath
	if path == "" {
		return nil, nil
	}
	store, err := sqlite.New(path)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

func (a *App) initNonceStore(ctx context.Context, client *exchange.Client) {
	store, err := a.State()
	if err != nil {
		a.log.Warn("nonce store init failed", zap.Error(err))
		return
	}
	if store == nil {
		return
	}
	if err := client.InitNonceStore(ctx, store); err != nil {
		a.log.Warn("nonce store init failed", zap.Error(err))
		return
	}
	if nonceState, ok := client.NonceState(); ok {
		a.log.Info("nonce persistence enabled", zap.String("nonce_key", nonceState.Key), zap.Uint64("nonce_seed", nonceState.Last))
	}
}

// RememberAgent records an approved agent against the primary wallet in the
// nonce store's database.
func (a *App) RememberAgent(ctx context.Context, agent common.Address, name string, approvedAt time.Time) error {
	if a.store == nil || a.signer == nil {
		return nil
	}
	return state.SaveAgentRecord(ctx, a.store, state.AgentRecord{
		Owner:        a.signer.Address().Hex(),
		Agent:        agent.Hex(),
		Name:         name,
		Network:      a.network.String(),
		ApprovedAtMS: approvedAt.UnixMilli(),
	})
}

// LastAgent returns the agent most recently recorded for the primary wallet.
func (a *App) LastAgent(ctx context.Context) (state.AgentRecord, bool, error) {
	if a.store == nil || a.signer == nil {
		return state.AgentRecord{}, false, nil
	}
	return state.LoadAgentRecord(ctx, a.store, a.network.String(), a.signer.Address().Hex())
}

// Agents lists every recorded agent in this state file, newest first.
func (a *App) Agents(ctx context.Context) ([]state.AgentRecord, error) {
	store, err := a.State()
	if err != nil || store == nil {
		return nil, err
	}
	return state.ListAgentRecords(ctx, store)
}

// AgentName labels an agent with the time its approval should be treated as
// expired, in milliseconds.
func AgentName(label string, now time.Time) string {
	return fmt.Sprintf("%s valid_until %d", label, now.Add(AgentValidity).UnixMilli())
}

func (a *App) Close() {
	a.ws.Close()
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = a.metricsSrv.Shutdown(ctx)
		cancel()
	}
	if closer, ok := a.signer.(*exchange.RPCSigner); ok {
		closer.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if err := a.journal.Close(); err != nil {
		a.log.Warn("journal close failed", zap.Error(err))
	}
}
