package tenant

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTenantIDPriority(t *testing.T) {
	body := []byte(`{"appId":"body-app","metadata":{"appId":"meta-app"}}`)

	cases := []struct {
		name   string
		target string
		header string
		body   []byte
		want   string
	}{
		{name: "header wins", target: "/payments/verify?appId=query-app", header: "header-app", body: body, want: "header-app"},
		{name: "query before body", target: "/payments/verify?appId=query-app", body: body, want: "query-app"},
		{name: "metadata before body appId", target: "/payments/verify", body: body, want: "meta-app"},
		{name: "body appId", target: "/payments/verify", body: []byte(`{"appId":"body-app"}`), want: "body-app"},
		{name: "metadata not an object", target: "/payments/verify", body: []byte(`{"appId":"body-app","metadata":"x"}`), want: "body-app"},
		{name: "nothing", target: "/payments/verify", body: []byte(`{"orderId":"order_1"}`), want: ""},
		{name: "malformed body", target: "/payments/verify", body: []byte(`{`), want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", tc.target, nil)
			if tc.header != "" {
				req.Header.Set(HeaderAppID, tc.header)
			}
			assert.Equal(t, tc.want, ResolveTenantID(req, tc.body))
		})
	}
}
