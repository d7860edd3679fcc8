package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/smallbiznis/payrelay/internal/notification/domain"
	"github.com/smallbiznis/payrelay/internal/recordstore"
	storedomain "github.com/smallbiznis/payrelay/internal/recordstore/domain"
	"github.com/smallbiznis/payrelay/internal/recordstore/storetest"
	tenantdomain "github.com/smallbiznis/payrelay/internal/tenant/domain"
)

func tenantWith(provider tenantdomain.NotificationProvider) tenantdomain.TenantConfig {
	return tenantdomain.TenantConfig{
		ID:   "clinic-a",
		Name: "Clinic A",
		Notifications: tenantdomain.NotificationsConfig{
			Provider: provider,
		},
		RecordStore: tenantdomain.RecordStoreConfig{
			Backend: tenantdomain.BackendTree,
			Recipients: tenantdomain.RecipientFields{
				UserField:     "patientId",
				ProviderField: "doctorId",
				AdminField:    "role",
				AdminValue:    "admin",
			},
		},
	}
}

func TestCustomEndpointBodyShape(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret-token", r.Header.Get("X-Api-Token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	cfg := tenantWith(tenantdomain.NotificationCustom)
	cfg.Notifications.Custom = tenantdomain.CustomEndpointConfig{
		URL:     srv.URL,
		Headers: map[string]string{"X-Api-Token": "secret-token"},
	}

	d := NewDispatcher(zaptest.NewLogger(t), nil, WithHTTPClient(srv.Client()))
	err := d.Send(context.Background(), cfg, []string{"u1", "d1"}, domain.Message{
		Title: "Payment received",
		Body:  "Your consultation is confirmed",
		Data:  map[string]any{"paymentId": "pay_1"},
	})
	require.NoError(t, err)

	assert.Equal(t, []any{"u1", "d1"}, got["recipientIds"])
	assert.Equal(t, "Payment received", got["title"])
	assert.Equal(t, "Your consultation is confirmed", got["body"])
	assert.Equal(t, map[string]any{"paymentId": "pay_1"}, got["data"])
}

func TestCustomEndpointFailureIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := tenantWith(tenantdomain.NotificationCustom)
	cfg.Notifications.Custom.URL = srv.URL

	d := NewDispatcher(zaptest.NewLogger(t), nil, WithHTTPClient(srv.Client()))
	err := d.Send(context.Background(), cfg, []string{"u1"}, domain.Message{Title: "t"})

	var notifErr *domain.NotificationError
	require.True(t, errors.As(err, &notifErr))
	assert.Equal(t, tenantdomain.NotificationCustom, notifErr.Provider)
	assert.ErrorIs(t, err, domain.ErrProviderRejected)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestOneSignalUsesTenantCredentials(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Basic key-a", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"notif_1","recipients":2}`))
	}))
	defer srv.Close()

	cfg := tenantWith(tenantdomain.NotificationOneSignal)
	cfg.Notifications.OneSignal = tenantdomain.OneSignalConfig{AppID: "app-a", APIKey: "key-a"}

	d := NewDispatcher(zaptest.NewLogger(t), nil,
		WithHTTPClient(srv.Client()),
		WithOneSignalEndpoint(srv.URL),
	)
	require.NoError(t, d.Send(context.Background(), cfg, []string{"u1", "d1"}, domain.Message{Title: "Paid", Body: "ok"}))

	assert.Equal(t, "app-a", got["app_id"])
	assert.Equal(t, []any{"u1", "d1"}, got["include_external_user_ids"])
	assert.Equal(t, map[string]any{"en": "Paid"}, got["headings"])
}

func TestOneSignalRejectedRecipients(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"","errors":["All included players are not subscribed"]}`))
	}))
	defer srv.Close()

	cfg := tenantWith(tenantdomain.NotificationOneSignal)
	cfg.Notifications.OneSignal = tenantdomain.OneSignalConfig{AppID: "app-a", APIKey: "key-a"}

	d := NewDispatcher(zaptest.NewLogger(t), nil, WithHTTPClient(srv.Client()), WithOneSignalEndpoint(srv.URL))
	err := d.Send(context.Background(), cfg, []string{"u1"}, domain.Message{Title: "Paid"})
	assert.ErrorIs(t, err, domain.ErrProviderRejected)
}

func TestSendSkipsWithoutRecipientsOrProvider(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	d := NewDispatcher(zaptest.NewLogger(t), nil, WithHTTPClient(srv.Client()), WithOneSignalEndpoint(srv.URL))

	custom := tenantWith(tenantdomain.NotificationCustom)
	custom.Notifications.Custom.URL = srv.URL
	assert.NoError(t, d.Send(context.Background(), custom, nil, domain.Message{Title: "t"}))

	for _, provider := range []tenantdomain.NotificationProvider{
		tenantdomain.NotificationDisabled,
		tenantdomain.NotificationFCM,
		tenantdomain.NotificationOneSignal,
	} {
		assert.NoError(t, d.Send(context.Background(), tenantWith(provider), []string{"u1"}, domain.Message{Title: "t"}))
	}

	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestResolveRecipientsOrderAndDedupe(t *testing.T) {
	mem := storetest.NewMemory(tenantdomain.BackendTree)
	mem.Seed("users", "admin_1", map[string]any{"role": "admin"})
	mem.Seed("users", "doc_9", map[string]any{"role": "admin"})
	mem.Seed("users", "user_7", map[string]any{"role": "patient"})

	cfg := tenantWith(tenantdomain.NotificationDisabled)
	store := recordstore.NewRouter(zaptest.NewLogger(t), nil, mem).For(cfg)

	linked := &storedomain.Record{ID: "consult_1", Fields: map[string]any{
		"patientId": "user_7",
		"doctorId":  "doc_9",
	}}

	d := NewDispatcher(zaptest.NewLogger(t), nil)
	got := d.ResolveRecipients(context.Background(), store, cfg, linked)

	assert.Equal(t, []string{"user_7", "doc_9", "admin_1"}, got)
}

func TestResolveRecipientsKeepsPartialListOnQueryFailure(t *testing.T) {
	mem := storetest.NewMemory(tenantdomain.BackendTree)
	mem.FailOn("query", errors.New("boom"))

	cfg := tenantWith(tenantdomain.NotificationDisabled)
	store := recordstore.NewRouter(zaptest.NewLogger(t), nil, mem).For(cfg)
	linked := &storedomain.Record{ID: "c1", Fields: map[string]any{"patientId": "p1"}}

	d := NewDispatcher(zaptest.NewLogger(t), nil)
	assert.Equal(t, []string{"p1"}, d.ResolveRecipients(context.Background(), store, cfg, linked))
}

func TestResolveRecipientsSkipsOtherTenantsAdmins(t *testing.T) {
	mem := storetest.NewMemory(tenantdomain.BackendTree)
	mem.Seed("users", "admin_a", map[string]any{"role": "admin", "tenantId": "clinic-a"})
	mem.Seed("users", "admin_b", map[string]any{"role": "admin", "tenantId": "clinic-b"})
	mem.Seed("users", "admin_shared", map[string]any{"role": "admin"})

	cfg := tenantWith(tenantdomain.NotificationDisabled)
	store := recordstore.NewRouter(zaptest.NewLogger(t), nil, mem).For(cfg)

	d := NewDispatcher(zaptest.NewLogger(t), nil)
	got := d.ResolveRecipients(context.Background(), store, cfg, nil)

	assert.Equal(t, []string{"admin_a", "admin_shared"}, got)
}
