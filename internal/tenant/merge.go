package tenant

import (
	"github.com/smallbiznis/payrelay/internal/tenant/domain"
)

// MergeWithDefault overlays a partial tenant entry on the default entry.
// Each nested object is merged per key, so a tenant that only sets
// notifications.provider keeps the default OneSignal credentials.
func MergeWithDefault(def domain.TenantConfig, partial domain.Overrides) domain.TenantConfig {
	out := def
	out.Notifications.Custom.Headers = cloneHeaders(def.Notifications.Custom.Headers)
	out.RecordStore.Custom.Headers = cloneHeaders(def.RecordStore.Custom.Headers)

	setString(&out.Name, partial.Name)

	if n := partial.Notifications; n != nil {
		if n.Provider != nil {
			// Unknown values are rejected at load time; anything left here maps to disabled.
			out.Notifications.Provider, _ = domain.ParseNotificationProvider(*n.Provider)
		}
		if o := n.OneSignal; o != nil {
			setString(&out.Notifications.OneSignal.AppID, o.AppID)
			setString(&out.Notifications.OneSignal.APIKey, o.APIKey)
		}
		if n.Custom != nil {
			out.Notifications.Custom = domain.CustomEndpointConfig{
				URL:     n.Custom.URL,
				Headers: cloneHeaders(n.Custom.Headers),
			}
		}
	}

	if rs := partial.RecordStore; rs != nil {
		if rs.Backend != nil {
			if backend, ok := domain.ParseRecordBackend(*rs.Backend); ok {
				out.RecordStore.Backend = backend
			}
		}
		if c := rs.Collections; c != nil {
			setString(&out.RecordStore.Collections.Orders, c.Orders)
			setString(&out.RecordStore.Collections.Consultations, c.Consultations)
			setString(&out.RecordStore.Collections.Payments, c.Payments)
			setString(&out.RecordStore.Collections.Users, c.Users)
		}
		if rs.Custom != nil {
			out.RecordStore.Custom = domain.CustomStoreConfig{
				BaseURL: rs.Custom.BaseURL,
				Headers: cloneHeaders(rs.Custom.Headers),
			}
		}
		if r := rs.Recipients; r != nil {
			setString(&out.RecordStore.Recipients.UserField, r.UserField)
			setString(&out.RecordStore.Recipients.ProviderField, r.ProviderField)
			setString(&out.RecordStore.Recipients.AdminField, r.AdminField)
			setString(&out.RecordStore.Recipients.AdminValue, r.AdminValue)
		}
	}

	if tm := partial.TestMode; tm != nil {
		if tm.AutoDetect != nil {
			out.TestMode.AutoDetect = *tm.AutoDetect
		}
		if tm.BookOnFailure != nil {
			out.TestMode.BookOnFailure = *tm.BookOnFailure
		}
	}

	return out
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func cloneHeaders(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
