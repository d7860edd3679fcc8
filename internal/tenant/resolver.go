package tenant

import (
	"encoding/json"
	"net/http"
	"strings"
)

const (
	HeaderAppID = "X-App-Id"
	QueryAppID  = "appId"
)

// ResolveTenantID picks the tenant id for a request: the X-App-Id header,
// then the appId query parameter, then body metadata.appId, then body appId.
// It returns "" when none is present.
func ResolveTenantID(r *http.Request, body []byte) string {
	if r != nil {
		if id := strings.TrimSpace(r.Header.Get(HeaderAppID)); id != "" {
			return id
		}
		if r.URL != nil {
			if id := strings.TrimSpace(r.URL.Query().Get(QueryAppID)); id != "" {
				return id
			}
		}
	}

	if len(body) == 0 {
		return ""
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if raw, ok := payload["metadata"]; ok {
		var metadata map[string]json.RawMessage
		if err := json.Unmarshal(raw, &metadata); err == nil {
			if id := rawString(metadata["appId"]); id != "" {
				return id
			}
		}
	}
	return rawString(payload["appId"])
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}
