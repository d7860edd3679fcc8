package recordstore

import (
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/payrelay/internal/recordstore/customhttp"
	"github.com/smallbiznis/payrelay/internal/recordstore/domain"
	"github.com/smallbiznis/payrelay/internal/recordstore/structured"
	"github.com/smallbiznis/payrelay/internal/recordstore/tree"
	tenantdomain "github.com/smallbiznis/payrelay/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Redis *redis.Client `optional:"true"`
	DB    *gorm.DB      `optional:"true"`
	GenID *snowflake.Node
}

// CustomFactory builds the per-tenant custom backend, returning nil when the tenant has none.
type CustomFactory func(cfg tenantdomain.CustomStoreConfig) domain.Backend

// Router picks one backend per tenant. The choice is made on first use and
// cached; it is not re-evaluated when a configured backend starts failing.
type Router struct {
	log    *zap.Logger
	shared map[tenantdomain.RecordBackend]domain.Backend
	custom CustomFactory

	mu     sync.Mutex
	stores map[string]*Store
}

func New(p Params) *Router {
	var backends []domain.Backend
	if b := tree.New(p.Redis, p.GenID); b != nil {
		backends = append(backends, b)
	}
	if b := structured.New(p.DB, p.GenID); b != nil {
		backends = append(backends, b)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	return NewRouter(p.Log, func(cfg tenantdomain.CustomStoreConfig) domain.Backend {
		if b := customhttp.New(cfg, client); b != nil {
			return b
		}
		return nil
	}, backends...)
}

// NewRouter wires process-wide backends (tree, structured) and the factory for
// tenant-scoped custom backends.
func NewRouter(log *zap.Logger, custom CustomFactory, backends ...domain.Backend) *Router {
	shared := make(map[tenantdomain.RecordBackend]domain.Backend, len(backends))
	for _, b := range backends {
		shared[b.Kind()] = b
	}
	return &Router{
		log:    log.Named("recordstore"),
		shared: shared,
		custom: custom,
		stores: make(map[string]*Store),
	}
}

// For returns the store bound to the tenant's selected backend.
func (r *Router) For(cfg tenantdomain.TenantConfig) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	if store, ok := r.stores[cfg.ID]; ok {
		return store
	}

	store := &Store{
		tenantID:    cfg.ID,
		collections: cfg.RecordStore.Collections,
		log:         r.log.With(zap.String("tenant_id", cfg.ID)),
	}
	store.backend = r.configured(cfg, cfg.RecordStore.Backend)
	if store.backend == nil {
		for _, kind := range tenantdomain.BackendOrder {
			if b := r.configured(cfg, kind); b != nil {
				store.backend = b
				break
			}
		}
		if store.backend != nil {
			store.log.Warn("configured record backend unavailable, using fallback",
				zap.String("configured", string(cfg.RecordStore.Backend)),
				zap.String("selected", string(store.backend.Kind())),
			)
		} else {
			store.log.Warn("no record backend configured, persistence disabled",
				zap.String("configured", string(cfg.RecordStore.Backend)),
			)
		}
	}

	r.stores[cfg.ID] = store
	return store
}

func (r *Router) configured(cfg tenantdomain.TenantConfig, kind tenantdomain.RecordBackend) domain.Backend {
	if kind == tenantdomain.BackendCustom {
		if r.custom == nil {
			return nil
		}
		return r.custom(cfg.RecordStore.Custom)
	}
	return r.shared[kind]
}
