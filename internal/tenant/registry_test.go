package tenant

import (
	"testing"

	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/tenant/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func testBase() domain.TenantConfig {
	return BuiltinDefault(config.Config{
		AppName:          "payrelay",
		DefaultOneSignal: config.OneSignalDefaults{AppID: "os-app", APIKey: "os-key"},
	})
}

func TestGetUnknownTenantReturnsDefault(t *testing.T) {
	registry := NewRegistry(testBase(), map[string]domain.Overrides{
		"default":  {Notifications: &domain.NotificationOverrides{Provider: strPtr("custom"), Custom: &domain.CustomEndpointConfig{URL: "https://notify.example"}}},
		"clinic-a": {TestMode: &domain.TestModeOverrides{BookOnFailure: boolPtr(false)}},
	})

	def, res := registry.Get("default")
	require.Equal(t, domain.ResolvedExact, res)

	got, res := registry.Get("no-such-app")
	assert.Equal(t, domain.ResolvedDefault, res)
	assert.Equal(t, def, got)

	got, res = registry.Get("")
	assert.Equal(t, domain.ResolvedDefault, res)
	assert.Equal(t, def, got)
}

func TestGetWithoutDefaultFallsBackToFirstSortedEntry(t *testing.T) {
	registry := NewRegistry(testBase(), map[string]domain.Overrides{
		"zeta":  {Name: strPtr("Zeta")},
		"alpha": {Name: strPtr("Alpha")},
		"mid":   {Name: strPtr("Mid")},
	})

	for i := 0; i < 20; i++ {
		got, res := registry.Get("unknown")
		require.Equal(t, domain.ResolvedFirst, res)
		require.Equal(t, "alpha", got.ID)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, registry.IDs())
}

func TestMergeWithDefaultPartialNotificationOverride(t *testing.T) {
	def := testBase()
	merged := MergeWithDefault(def, domain.Overrides{
		Notifications: &domain.NotificationOverrides{Provider: strPtr("custom")},
	})

	assert.Equal(t, domain.NotificationCustom, merged.Notifications.Provider)
	assert.Equal(t, def.Notifications.OneSignal, merged.Notifications.OneSignal)
	assert.Equal(t, def.RecordStore, merged.RecordStore)
	assert.Equal(t, def.TestMode, merged.TestMode)
}

func TestMergeWithDefaultPerKeyCollections(t *testing.T) {
	def := testBase()
	merged := MergeWithDefault(def, domain.Overrides{
		RecordStore: &domain.RecordStoreOverrides{
			Collections: &domain.CollectionOverrides{Consultations: strPtr("appointments")},
		},
		TestMode: &domain.TestModeOverrides{AutoDetect: boolPtr(false)},
		Notifications: &domain.NotificationOverrides{
			OneSignal: &domain.OneSignalOverrides{APIKey: strPtr("tenant-key")},
		},
	})

	assert.Equal(t, "appointments", merged.RecordStore.Collections.Consultations)
	assert.Equal(t, "orders", merged.RecordStore.Collections.Orders)
	assert.Equal(t, domain.BackendTree, merged.RecordStore.Backend)
	assert.False(t, merged.TestMode.AutoDetect)
	assert.True(t, merged.TestMode.BookOnFailure)
	assert.Equal(t, "os-app", merged.Notifications.OneSignal.AppID)
	assert.Equal(t, "tenant-key", merged.Notifications.OneSignal.APIKey)
}

func TestMergeDoesNotShareHeaderMaps(t *testing.T) {
	def := testBase()
	def.Notifications.Custom.Headers = map[string]string{"X-Token": "a"}

	merged := MergeWithDefault(def, domain.Overrides{})
	merged.Notifications.Custom.Headers["X-Token"] = "b"

	assert.Equal(t, "a", def.Notifications.Custom.Headers["X-Token"])
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "clinic-a", NormalizeID(" Clinic A "))
	assert.Equal(t, "", NormalizeID("  "))

	registry := NewRegistry(testBase(), map[string]domain.Overrides{
		"Clinic A": {},
	})
	got, res := registry.Get("clinic-a")
	assert.Equal(t, domain.ResolvedExact, res)
	assert.Equal(t, "Clinic A", got.Name)
}
