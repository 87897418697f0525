package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const agentRecordPrefix = "agent:last:"

// AgentRecord remembers the most recent agent a wallet approved. The agent key
// itself is never stored.
type AgentRecord struct {
	Owner        string `json:"owner"`
	Agent        string `json:"agent"`
	Name         string `json:"name"`
	Network      string `json:"network"`
	ApprovedAtMS int64  `json:"approved_at_ms"`
}

func agentRecordKey(network, owner string) string {
	return agentRecordPrefix + strings.ToLower(network) + ":" + strings.ToLower(owner)
}

func LoadAgentRecord(ctx context.Context, store Store, network, owner string) (AgentRecord, bool, error) {
	if store == nil {
		return AgentRecord{}, false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	raw, ok, err := store.Get(ctx, agentRecordKey(network, owner))
	if err != nil {
		return AgentRecord{}, false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return AgentRecord{}, false, nil
	}
	var record AgentRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return AgentRecord{}, false, err
	}
	return record, true, nil
}

func SaveAgentRecord(ctx context.Context, store Store, record AgentRecord) error {
	if store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return store.Set(ctx, agentRecordKey(record.Network, record.Owner), string(payload))
}

// ListAgentRecords returns all agent records across networks and owners,
// newest approval first.
func ListAgentRecords(ctx context.Context, store Store) ([]AgentRecord, error) {
	if store == nil {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	entries, err := store.List(ctx, agentRecordPrefix)
	if err != nil {
		return nil, err
	}
	records := make([]AgentRecord, 0, len(entries))
	for key, raw := range entries {
		var record AgentRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("agent record %s: %w", key, err)
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].ApprovedAtMS != records[j].ApprovedAtMS {
			return records[i].ApprovedAtMS > records[j].ApprovedAtMS
		}
		return records[i].Owner < records[j].Owner
	})
	return records, nil
}
