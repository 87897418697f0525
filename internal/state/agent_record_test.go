package state

import (
	"context"
	"strings"
	"sync"
	"testing"
)

type memoryStore struct {
	mu    sync.Mutex
	items map[string]string
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.items[key]
	return val, ok, nil
}

func (m *memoryStore) Set(ctx context.Context, key, value string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string]string)
	}
	m.items[key] = value
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *memoryStore) List(ctx context.Context, prefix string) (map[string]string, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	for key, val := range m.items {
		if strings.HasPrefix(key, prefix) {
			out[key] = val
		}
	}
	return out, nil
}

func (m *memoryStore) Close() error {
	return nil
}

func TestAgentRecordRoundTrip(t *testing.T) {
	store := &memoryStore{}
	ctx := context.Background()
	record := AgentRecord{
		Owner:        "0xABCDEF0123456789abcdef0123456789ABCDEF01",
		Agent:        "0x1234567890abcdef1234567890abcdef12345678",
		Name:         "hltools valid_until 1700086400000",
		Network:      "testnet",
		ApprovedAtMS: 1700000000000,
	}
	if err := SaveAgentRecord(ctx, store, record); err != nil {
		t.Fatalf("save agent record: %v", err)
	}
	loaded, ok, err := LoadAgentRecord(ctx, store, "testnet", "0xabcdef0123456789abcdef0123456789abcdef01")
	if err != nil {
		t.Fatalf("load agent record: %v", err)
	}
	if !ok {
		t.Fatalf("expected agent record")
	}
	if loaded != record {
		t.Fatalf("unexpected record: %+v", loaded)
	}
	if _, ok, err := LoadAgentRecord(ctx, store, "mainnet", record.Owner); err != nil || ok {
		t.Fatalf("expected no mainnet record, ok=%v err=%v", ok, err)
	}
}

func TestAgentRecordNilStore(t *testing.T) {
	if err := SaveAgentRecord(context.Background(), nil, AgentRecord{}); err != nil {
		t.Fatalf("save to nil store: %v", err)
	}
	if _, ok, err := LoadAgentRecord(context.Background(), nil, "testnet", "0x0"); err != nil || ok {
		t.Fatalf("expected empty load from nil store")
	}
}

func TestListAgentRecordsNewestFirst(t *testing.T) {
	store := &memoryStore{}
	ctx := context.Background()
	older := AgentRecord{Owner: "0x1111111111111111111111111111111111111111", Agent: "0xa", Network: "testnet", ApprovedAtMS: 1}
	newer := AgentRecord{Owner: "0x2222222222222222222222222222222222222222", Agent: "0xb", Network: "mainnet", ApprovedAtMS: 2}
	for _, r := range []AgentRecord{older, newer} {
		if err := SaveAgentRecord(ctx, store, r); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := store.Set(ctx, "exchange:nonce:x:y:none", "5"); err != nil {
		t.Fatalf("set nonce: %v", err)
	}
	records, err := ListAgentRecords(ctx, store)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 || records[0] != newer || records[1] != older {
		t.Fatalf("unexpected records: %+v", records)
	}

	if err := store.Set(ctx, agentRecordKey("testnet", "0x3"), "{"); err != nil {
		t.Fatalf("set bad record: %v", err)
	}
	if _, err := ListAgentRecords(ctx, store); err == nil {
		t.Fatalf("expected error for malformed record")
	}
}
