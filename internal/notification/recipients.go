package notification

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/smallbiznis/payrelay/internal/recordstore"
	storedomain "github.com/smallbiznis/payrelay/internal/recordstore/domain"
	tenantdomain "github.com/smallbiznis/payrelay/internal/tenant/domain"
)

// ResolveRecipients collects recipient ids in a fixed order: the linked record's
// user field, its provider field, then every admin in the users collection.
// Admins tagged with another tenant's id are skipped; untagged admins belong to
// whichever tenants share the collection. Duplicates and blanks are dropped. A failed admin lookup is logged and the
// partial list is returned.
func (d *Dispatcher) ResolveRecipients(ctx context.Context, store *recordstore.Store, cfg tenantdomain.TenantConfig, linked *storedomain.Record) []string {
	fields := cfg.RecordStore.Recipients
	seen := make(map[string]struct{})
	out := make([]string, 0, 4)
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	if linked != nil {
		if fields.UserField != "" {
			add(linked.String(fields.UserField))
		}
		if fields.ProviderField != "" {
			add(linked.String(fields.ProviderField))
		}
	}

	if store == nil || fields.AdminField == "" || fields.AdminValue == "" {
		return out
	}
	admins, err := store.Query(ctx, storedomain.CollectionUsers, fields.AdminField, fields.AdminValue)
	if err != nil {
		d.log.Warn("admin recipient lookup failed",
			zap.String("tenant_id", cfg.ID),
			zap.Error(err),
		)
		return out
	}
	for _, admin := range admins {
		if owner := admin.String(storedomain.FieldTenantID); owner != "" && owner != cfg.ID {
			continue
		}
		add(admin.ID)
	}
	return out
}
