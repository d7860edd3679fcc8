package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	gatewaydomain "github.com/smallbiznis/payrelay/internal/gateway/domain"
	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
	tenantdomain "github.com/smallbiznis/payrelay/internal/tenant/domain"
)

type stubGateway struct {
	gatewaydomain.Client
	test bool
}

func (s stubGateway) IsTestCredential() bool { return s.test }

func TestIsTestModePrecedence(t *testing.T) {
	yes, no := true, false
	tests := []struct {
		name       string
		autoDetect bool
		testKey    bool
		req        paymentdomain.VerifyRequest
		want       bool
	}{
		{name: "override true beats live id", req: paymentdomain.VerifyRequest{PaymentID: "pay_live", TestModeOverride: &yes}, want: true},
		{name: "override false beats test id", autoDetect: true, req: paymentdomain.VerifyRequest{PaymentID: "pay_test_1", TestModeOverride: &no}, want: false},
		{name: "metadata flag", req: paymentdomain.VerifyRequest{PaymentID: "pay_live", Metadata: map[string]any{"isTestMode": true}}, want: true},
		{name: "metadata string flag false", autoDetect: true, testKey: true, req: paymentdomain.VerifyRequest{PaymentID: "pay_live", Metadata: map[string]any{"isTestMode": "false"}}, want: false},
		{name: "test payment id", autoDetect: true, req: paymentdomain.VerifyRequest{PaymentID: "pay_TEST_1"}, want: true},
		{name: "test credential", autoDetect: true, testKey: true, req: paymentdomain.VerifyRequest{PaymentID: "pay_live"}, want: true},
		{name: "auto detect off", testKey: true, req: paymentdomain.VerifyRequest{PaymentID: "pay_test_1"}, want: false},
		{name: "live", autoDetect: true, req: paymentdomain.VerifyRequest{PaymentID: "pay_live"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewService(Params{Log: zap.NewNop(), Gateway: stubGateway{test: tt.testKey}})
			cfg := tenantdomain.TenantConfig{TestMode: tenantdomain.TestModeConfig{AutoDetect: tt.autoDetect}}
			assert.Equal(t, tt.want, s.isTestMode(cfg, tt.req))
		})
	}
}
