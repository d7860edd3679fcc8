package tenant

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/tenant/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeTenantFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAMLMergesTenants(t *testing.T) {
	path := writeTenantFile(t, "apps.yaml", `
apps:
  default:
    notifications:
      provider: onesignal
      onesignal:
        appId: default-app
        apiKey: default-key
    recordStore:
      backend: structured
  com.clinic.app:
    notifications:
      provider: custom
      custom:
        url: https://notify.clinic.example/push
    testMode:
      bookOnFailure: false
`)

	registry := Load(config.Config{TenantConfigPath: path}, zaptest.NewLogger(t))

	clinic, res := registry.Get("com.clinic.app")
	require.Equal(t, domain.ResolvedExact, res)
	assert.Equal(t, domain.NotificationCustom, clinic.Notifications.Provider)
	assert.Equal(t, "https://notify.clinic.example/push", clinic.Notifications.Custom.URL)
	assert.Equal(t, "default-app", clinic.Notifications.OneSignal.AppID)
	assert.Equal(t, domain.BackendStructured, clinic.RecordStore.Backend)
	assert.False(t, clinic.TestMode.BookOnFailure)
	assert.True(t, clinic.TestMode.AutoDetect)
	assert.Equal(t, "payments", clinic.RecordStore.Collections.Payments)
}

func TestLoadJSON(t *testing.T) {
	path := writeTenantFile(t, "apps.json", `{"apps":{"default":{"recordStore":{"backend":"custom","custom":{"baseUrl":"https://records.example"}}}}}`)

	registry := Load(config.Config{TenantConfigPath: path}, zaptest.NewLogger(t))

	def, _ := registry.Get("anything")
	assert.Equal(t, domain.BackendCustom, def.RecordStore.Backend)
	assert.Equal(t, "https://records.example", def.RecordStore.Custom.BaseURL)
}

func TestLoadFallsBackOnInvalidConfig(t *testing.T) {
	path := writeTenantFile(t, "apps.yaml", `
apps:
  default:
    notifications:
      provider: carrier-pigeon
`)

	_, err := LoadFile(path)
	require.ErrorIs(t, err, ErrInvalidTenantConfig)

	cfg := config.Config{TenantConfigPath: path, AppName: "payrelay"}
	registry := Load(cfg, zaptest.NewLogger(t))
	def, res := registry.Get("default")
	assert.Equal(t, domain.ResolvedExact, res)
	assert.Equal(t, BuiltinDefault(cfg), def)
}

func TestLoadFallsBackOnMissingFile(t *testing.T) {
	cfg := config.Config{TenantConfigPath: filepath.Join(t.TempDir(), "missing.yaml")}
	registry := Load(cfg, zaptest.NewLogger(t))

	def, _ := registry.Get("x")
	assert.Equal(t, domain.NotificationDisabled, def.Notifications.Provider)
	assert.Equal(t, []string{domain.DefaultTenantID}, registry.IDs())
}
