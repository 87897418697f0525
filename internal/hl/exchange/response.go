package exchange

import (
	"fmt"
	"strconv"
)

func OrderIDFromResponse(resp map[string]any) string {
	if resp == nil {
		return ""
	}
	return orderIDFromAny(resp)
}

func stringFromAny(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatInt(int64(val), 10)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return ""
	}
}

func orderIDFromAny(v any) string {
	switch val := v.(type) {
	case map[string]any:
		for _, key := range []string{"orderId", "orderID", "oid", "id"} {
			if id := stringFromAny(val[key]); id != "" {
				return id
			}
		}
		for _, nested := range val {
			if id := orderIDFromAny(nested); id != "" {
				return id
			}
		}
	case []any:
		for _, nested := range val {
			if id := orderIDFromAny(nested); id != "" {
				return id
			}
		}
	}
	return ""
}

// responseError reports an exchange-level rejection carried in a 200 reply,
// either a top-level {"status":"err"} or an {"error": ...} entry in the
// per-order statuses.
func responseError(resp map[string]any) error {
	if resp == nil {
		return nil
	}
	if status, _ := resp["status"].(string); status == "err" {
		return fmt.Errorf("%w: %v", ErrTransport, resp["response"])
	}
	inner, ok := resp["response"].(map[string]any)
	if !ok {
		return nil
	}
	data, ok := inner["data"].(map[string]any)
	if !ok {
		return nil
	}
	statuses, ok := data["statuses"].([]any)
	if !ok {
		return nil
	}
	for _, s := range statuses {
		entry, ok := s.(map[string]any)
		if !ok {
			continue
		}
		if msg, ok := entry["error"].(string); ok && msg != "" {
			return fmt.Errorf("%w: %s", ErrTransport, msg)
		}
	}
	return nil
}
