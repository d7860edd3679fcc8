package service

import (
	"strconv"
	"strings"

	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
	tenantdomain "github.com/smallbiznis/payrelay/internal/tenant/domain"
)

// isTestMode applies a fixed precedence: an explicit request override wins,
// then auto-detection when the tenant enables it, otherwise live mode.
func (s *Service) isTestMode(cfg tenantdomain.TenantConfig, req paymentdomain.VerifyRequest) bool {
	if req.TestModeOverride != nil {
		return *req.TestModeOverride
	}
	if v, ok := metadataBool(req.Metadata, "isTestMode"); ok {
		return v
	}
	if !cfg.TestMode.AutoDetect {
		return false
	}
	if strings.Contains(strings.ToLower(req.PaymentID), "test") {
		return true
	}
	return s.gateway != nil && s.gateway.IsTestCredential()
}

func metadataBool(m map[string]any, key string) (bool, bool) {
	switch v := m[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	default:
		return false, false
	}
}

func metadataString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
