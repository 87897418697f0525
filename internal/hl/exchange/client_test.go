package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"hl-action-kit/internal/hl/chain"
	"hl-action-kit/internal/journal"
	"hl-action-kit/internal/state/sqlite"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

const testKey = "4f3edf983ac636a65a842ce7c78d9aa706d3b113bce036f81af8f9b72d3d80b2"

func testSigner(t *testing.T) *KeySigner {
	t.Helper()
	signer, err := NewKeySigner(testKey)
	if err != nil {
		t.Fatalf("signer error: %v", err)
	}
	return signer
}

func TestNextNonceAtLeastNow(t *testing.T) {
	c := &Client{}
	start := uint64(time.Now().UnixMilli())
	nonce := c.nextNonce()
	if nonce < start {
		t.Fatalf("expected nonce >= %d, got %d", start, nonce)
	}
}

func TestNextNonceMonotonicWhenTimeDoesNotAdvance(t *testing.T) {
	c := &Client{}
	base := uint64(time.Now().UnixMilli()) + 86_400_000
	c.lastNonce.Store(base)
	if got := c.nextNonce(); got != base+1 {
		t.Fatalf("expected %d, got %d", base+1, got)
	}
	if got := c.nextNonce(); got != base+2 {
		t.Fatalf("expected %d, got %d", base+2, got)
	}
}

func TestNextNonceConcurrentUnique(t *testing.T) {
	c := &Client{}
	base := uint64(time.Now().UnixMilli()) + 86_400_000
	c.lastNonce.Store(base)

	const n = 128
	results := make([]uint64, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(idx int) {
			defer wg.Done()
			results[idx] = c.nextNonce()
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]struct{}, n)
	min := uint64(0)
	max := uint64(0)
	for i, nonce := range results {
		if _, ok := seen[nonce]; ok {
			t.Fatalf("duplicate nonce %d at index %d", nonce, i)
		}
		seen[nonce] = struct{}{}
		if min == 0 || nonce < min {
			min = nonce
		}
		if nonce > max {
			max = nonce
		}
	}
	if min != base+1 || max != base+n {
		t.Fatalf("expected nonces in range [%d, %d], got [%d, %d]", base+1, base+n, min, max)
	}
}

func TestInitNonceStoreSeedsAndPersists(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("store init: %v", err)
	}
	defer store.Close()
	ctx := context.Background()
	client, err := NewClient(chain.Mainnet(), 2*time.Second, testSigner(t), "")
	if err != nil {
		t.Fatalf("client init: %v", err)
	}
	client.SetLogger(zap.NewNop())
	seed := uint64(time.Now().UnixMilli()) + 10_000
	key := nonceStoreKey(client.baseURL, client.signer, client.vaultAddress)
	if err := store.Set(ctx, key, strconv.FormatUint(seed, 10)); err != nil {
		t.Fatalf("store seed: %v", err)
	}
	if err := client.InitNonceStore(ctx, store); err != nil {
		t.Fatalf("init nonce store: %v", err)
	}
	if state, ok := client.NonceState(); !ok {
		t.Fatalf("expected nonce state")
	} else if state.Key == "" || state.Last != seed || state.Persisted != seed {
		t.Fatalf("unexpected nonce state: %+v", state)
	}
	nonce := client.nextNonce()
	if nonce != seed+1 {
		t.Fatalf("expected nonce %d, got %d", seed+1, nonce)
	}
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("store get: %v", err)
	}
	if !ok {
		t.Fatalf("expected stored nonce")
	}
	persisted, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		t.Fatalf("parse stored nonce: %v", err)
	}
	if persisted != nonce {
		t.Fatalf("expected stored nonce %d, got %d", nonce, persisted)
	}
}

func TestNewClientRejectsInvalidVault(t *testing.T) {
	_, err := NewClient(chain.Testnet(), time.Second, testSigner(t), "0xnothex")
	if !errors.Is(err, chain.ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
}

type capturedRequest struct {
	Action       json.RawMessage `json:"action"`
	Nonce        uint64          `json:"nonce"`
	Signature    Signature       `json:"signature"`
	VaultAddress *string         `json:"vaultAddress"`
}

type fakeExchange struct {
	mu       sync.Mutex
	requests []capturedRequest
	raw      []map[string]any
	status   int
	body     string
}

func newFakeExchange(t *testing.T) (*fakeExchange, *httptest.Server) {
	t.Helper()
	fake := &fakeExchange{status: http.StatusOK, body: `{"status":"ok","response":{"type":"default"}}`}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/exchange" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var raw map[string]any
		var req capturedRequest
		body := json.NewDecoder(r.Body)
		var msg json.RawMessage
		if err := body.Decode(&msg); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_ = json.Unmarshal(msg, &raw)
		_ = json.Unmarshal(msg, &req)
		fake.mu.Lock()
		fake.requests = append(fake.requests, req)
		fake.raw = append(fake.raw, raw)
		status, resp := fake.status, fake.body
		fake.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(server.Close)
	return fake, server
}

func (f *fakeExchange) last(t *testing.T) (capturedRequest, map[string]any) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatalf("no request captured")
	}
	return f.requests[len(f.requests)-1], f.raw[len(f.raw)-1]
}

func testNetwork(url string) chain.Network {
	network := chain.Testnet()
	network.APIURL = url
	return network
}

type recordingJournal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

func (r *recordingJournal) Enqueue(entry journal.Entry) {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
}

func TestSubmitL1WithoutVaultOmitsField(t *testing.T) {
	fake, server := newFakeExchange(t)
	signer := testSigner(t)
	network := testNetwork(server.URL)
	client, err := NewClient(network, time.Second, signer, "")
	if err != nil {
		t.Fatalf("client init: %v", err)
	}
	rec := &recordingJournal{}
	client.SetJournal(rec)

	action := SetReferrerAction{Type: ActionSetReferrer, Code: "ALPHA"}
	if _, err := client.SetReferrer(context.Background(), "ALPHA"); err != nil {
		t.Fatalf("set referrer: %v", err)
	}
	req, raw := fake.last(t)
	if _, ok := raw["vaultAddress"]; ok {
		t.Fatalf("expected vaultAddress to be omitted, got %v", raw["vaultAddress"])
	}
	hash, err := ActionHash(action, req.Nonce, nil)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	recovered, err := RecoverSigner(AgentTypedData(hash, network), req.Signature)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != signer.Address() {
		t.Fatalf("expected signer %s, got %s", signer.Address().Hex(), recovered.Hex())
	}
	if len(rec.entries) != 1 || rec.entries[0].Status != journal.StatusAccepted || rec.entries[0].ActionType != ActionSetReferrer {
		t.Fatalf("unexpected journal entries: %+v", rec.entries)
	}
	if rec.entries[0].Network != "testnet" || rec.entries[0].Vault != "" {
		t.Fatalf("unexpected journal entry: %+v", rec.entries[0])
	}
}

func TestSubmitL1WithVaultBindsPool(t *testing.T) {
	fake, server := newFakeExchange(t)
	signer := testSigner(t)
	network := testNetwork(server.URL)
	vault := "0x1234567890ABCDEF1234567890abcdef12345678"
	client, err := NewClient(network, time.Second, signer, vault)
	if err != nil {
		t.Fatalf("client init: %v", err)
	}
	wire, err := LimitOrderWire(3, true, 0.5, 1234.5678, 2, false, TifGtc, "")
	if err != nil {
		t.Fatalf("order wire: %v", err)
	}
	if _, err := client.PlaceOrder(context.Background(), wire); err != nil {
		t.Fatalf("place order: %v", err)
	}
	req, _ := fake.last(t)
	if req.VaultAddress == nil || common.HexToAddress(*req.VaultAddress) != common.HexToAddress(vault) {
		t.Fatalf("expected vault address %s, got %v", vault, req.VaultAddress)
	}
	pool := common.HexToAddress(vault)
	hash, err := ActionHash(NewOrderAction(GroupingNA, wire), req.Nonce, &pool)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	recovered, err := RecoverSigner(AgentTypedData(hash, network), req.Signature)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != signer.Address() {
		t.Fatalf("signature does not bind the vault")
	}
	var action struct {
		Orders []OrderWire `json:"orders"`
	}
	if err := json.Unmarshal(req.Action, &action); err != nil {
		t.Fatalf("decode action: %v", err)
	}
	if len(action.Orders) != 1 || action.Orders[0].Price != "1234.5" || action.Orders[0].Size != "0.5" {
		t.Fatalf("unexpected orders: %+v", action.Orders)
	}
}

func TestSubmitNon2xxIsTransportError(t *testing.T) {
	fake, server := newFakeExchange(t)
	fake.status = http.StatusBadGateway
	fake.body = "upstream down"
	client, err := NewClient(testNetwork(server.URL), time.Second, testSigner(t), "")
	if err != nil {
		t.Fatalf("client init: %v", err)
	}
	rec := &recordingJournal{}
	client.SetJournal(rec)
	_, err = client.CancelByCloid(context.Background(), CancelByCloidWire{Asset: 1, Cloid: "0x00000000000000000000000000000001"})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if len(rec.entries) != 1 || rec.entries[0].Status != journal.StatusRejected {
		t.Fatalf("expected rejected journal entry, got %+v", rec.entries)
	}
}

type failingSigner struct {
	addr common.Address
}

func (f failingSigner) Address() common.Address { return f.addr }

func (f failingSigner) SignTypedData(context.Context, apitypes.TypedData) (Signature, error) {
	return Signature{}, errors.New("user rejected request")
}

func TestSubmitSigningFailureIsSigningError(t *testing.T) {
	_, server := newFakeExchange(t)
	client, err := NewClient(testNetwork(server.URL), time.Second, failingSigner{}, "")
	if err != nil {
		t.Fatalf("client init: %v", err)
	}
	rec := &recordingJournal{}
	client.SetJournal(rec)
	_, err = client.SpotSend(context.Background(), "0x1234567890abcdef1234567890abcdef12345678", "PURR:0xc4bf3f870c0e9465323c0b6ed28096c2", "1")
	if !errors.Is(err, ErrSigning) {
		t.Fatalf("expected ErrSigning, got %v", err)
	}
	if len(rec.entries) != 1 || rec.entries[0].Status != journal.StatusSignFailed {
		t.Fatalf("expected sign_failed journal entry, got %+v", rec.entries)
	}
}

func TestApproveAgentSwitchesL1Signer(t *testing.T) {
	fake, server := newFakeExchange(t)
	signer := testSigner(t)
	network := testNetwork(server.URL)
	client, err := NewClient(network, time.Second, signer, "0x1234567890abcdef1234567890abcdef12345678")
	if err != nil {
		t.Fatalf("client init: %v", err)
	}
	agent, _, err := client.ApproveAgent(context.Background(), "tools valid_until 1700000000000")
	if err != nil {
		t.Fatalf("approve agent: %v", err)
	}
	req, raw := fake.last(t)
	if _, ok := raw["vaultAddress"]; ok {
		t.Fatalf("wallet actions must not carry a vault address")
	}
	var approve ApproveAgentAction
	if err := json.Unmarshal(req.Action, &approve); err != nil {
		t.Fatalf("decode approve: %v", err)
	}
	if approve.Nonce != req.Nonce {
		t.Fatalf("expected envelope nonce %d to match action nonce %d", req.Nonce, approve.Nonce)
	}
	if approve.SignatureChainId != "0x66eee" || approve.HyperliquidChain != "Testnet" {
		t.Fatalf("unexpected approve action: %+v", approve)
	}
	if common.HexToAddress(approve.AgentAddress) != agent.Address() {
		t.Fatalf("approved %s, expected %s", approve.AgentAddress, agent.Address().Hex())
	}
	typedData, err := UserTypedData(approve)
	if err != nil {
		t.Fatalf("typed data: %v", err)
	}
	recovered, err := RecoverSigner(typedData, req.Signature)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != signer.Address() {
		t.Fatalf("approveAgent must be signed by the primary wallet")
	}

	if _, err := client.SetReferrer(context.Background(), "BETA"); err != nil {
		t.Fatalf("set referrer: %v", err)
	}
	req, _ = fake.last(t)
	pool := common.HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
	hash, err := ActionHash(SetReferrerAction{Type: ActionSetReferrer, Code: "BETA"}, req.Nonce, &pool)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	recovered, err = RecoverSigner(AgentTypedData(hash, network), req.Signature)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != agent.Address() {
		t.Fatalf("expected L1 action signed by agent %s, got %s", agent.Address().Hex(), recovered.Hex())
	}
}

func TestSpotSendRejectsInvalidDestination(t *testing.T) {
	fake, server := newFakeExchange(t)
	client, err := NewClient(testNetwork(server.URL), time.Second, testSigner(t), "")
	if err != nil {
		t.Fatalf("client init: %v", err)
	}
	_, err = client.SpotSend(context.Background(), "0x1234", "PURR:0xc4bf3f870c0e9465323c0b6ed28096c2", "1")
	if !errors.Is(err, chain.ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress, got %v", err)
	}
	if len(fake.requests) != 0 {
		t.Fatalf("expected no requests")
	}
}

func TestUSDClassTransferAmount(t *testing.T) {
	vault := "0x1234567890abcdef1234567890abcdef12345678"
	cases := []struct {
		name  string
		vault string
		want  string
	}{
		{name: "primary", vault: "", want: "12.5"},
		{name: "subaccount", vault: vault, want: "12.5 subaccount:" + common.HexToAddress(vault).Hex()},
	}
	for _, tc := range cases {
		fake, server := newFakeExchange(t)
		signer := testSigner(t)
		client, err := NewClient(testNetwork(server.URL), time.Second, signer, tc.vault)
		if err != nil {
			t.Fatalf("%s: client init: %v", tc.name, err)
		}
		if _, err := client.USDClassTransfer(context.Background(), 0, true); err == nil {
			t.Fatalf("%s: expected error for zero amount", tc.name)
		}
		if _, err := client.USDClassTransfer(context.Background(), 12.5, true); err != nil {
			t.Fatalf("%s: transfer: %v", tc.name, err)
		}
		req, raw := fake.last(t)
		if _, ok := raw["vaultAddress"]; ok {
			t.Fatalf("%s: wallet actions must not carry a vault address", tc.name)
		}
		var transfer USDClassTransferAction
		if err := json.Unmarshal(req.Action, &transfer); err != nil {
			t.Fatalf("%s: decode transfer: %v", tc.name, err)
		}
		if transfer.Amount != tc.want || !transfer.ToPerp || transfer.Nonce != req.Nonce {
			t.Fatalf("%s: unexpected transfer %+v", tc.name, transfer)
		}
		typedData, err := UserTypedData(transfer)
		if err != nil {
			t.Fatalf("%s: typed data: %v", tc.name, err)
		}
		recovered, err := RecoverSigner(typedData, req.Signature)
		if err != nil || recovered != signer.Address() {
			t.Fatalf("%s: expected primary wallet signature, got %s err=%v", tc.name, recovered.Hex(), err)
		}
	}
}
