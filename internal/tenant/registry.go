package tenant

import (
	"sort"
	"strings"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/tenant/domain"
)

// Registry holds the merged tenant configurations loaded at startup. It is
// read-only after construction and safe for concurrent use.
type Registry struct {
	tenants map[string]domain.TenantConfig
	order   []string
}

// BuiltinDefault is the minimal configuration used when no tenant file can be loaded.
func BuiltinDefault(cfg config.Config) domain.TenantConfig {
	provider := domain.NotificationDisabled
	if cfg.DefaultOneSignal.AppID != "" && cfg.DefaultOneSignal.APIKey != "" {
		provider = domain.NotificationOneSignal
	}
	return domain.TenantConfig{
		ID:   domain.DefaultTenantID,
		Name: cfg.AppName,
		Notifications: domain.NotificationsConfig{
			Provider: provider,
			OneSignal: domain.OneSignalConfig{
				AppID:  cfg.DefaultOneSignal.AppID,
				APIKey: cfg.DefaultOneSignal.APIKey,
			},
		},
		RecordStore: domain.RecordStoreConfig{
			Backend: domain.BackendTree,
			Collections: domain.Collections{
				Orders:        "orders",
				Consultations: "consultations",
				Payments:      "payments",
				Users:         "users",
			},
			Recipients: domain.RecipientFields{
				UserField:     "patientId",
				ProviderField: "doctorId",
				AdminField:    "role",
				AdminValue:    "admin",
			},
		},
		TestMode: domain.TestModeConfig{
			AutoDetect:    true,
			BookOnFailure: true,
		},
	}
}

// NewRegistry merges every entry over the default entry. When entries has a
// "default" key it is first merged over base and becomes the fallback; tenants
// are merged over that result.
func NewRegistry(base domain.TenantConfig, entries map[string]domain.Overrides) *Registry {
	r := &Registry{tenants: make(map[string]domain.TenantConfig, len(entries))}

	def := base
	hasDefault := len(entries) == 0
	if partial, ok := entries[domain.DefaultTenantID]; ok {
		def = MergeWithDefault(base, partial)
		hasDefault = true
	}
	def.ID = domain.DefaultTenantID
	if hasDefault {
		r.tenants[domain.DefaultTenantID] = def
	}

	for rawID, partial := range entries {
		id := NormalizeID(rawID)
		if id == "" || id == domain.DefaultTenantID {
			continue
		}
		merged := MergeWithDefault(def, partial)
		merged.ID = id
		if partial.Name == nil {
			merged.Name = rawID
		}
		r.tenants[id] = merged
	}

	if len(r.tenants) == 0 {
		r.tenants[domain.DefaultTenantID] = def
	}
	for id := range r.tenants {
		r.order = append(r.order, id)
	}
	sort.Strings(r.order)
	return r
}

// Get returns the configuration for id. Unknown ids resolve to the default
// entry, or to the first entry in sorted id order when no default exists.
func (r *Registry) Get(id string) (domain.TenantConfig, domain.Resolution) {
	if cfg, ok := r.tenants[NormalizeID(id)]; ok {
		return cfg, domain.ResolvedExact
	}
	if cfg, ok := r.tenants[domain.DefaultTenantID]; ok {
		return cfg, domain.ResolvedDefault
	}
	return r.tenants[r.order[0]], domain.ResolvedFirst
}

// IDs lists the configured tenant ids in fallback order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// NormalizeID canonicalises tenant ids so "Clinic A" and "clinic-a" match.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	return slug.Make(id)
}
