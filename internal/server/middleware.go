package server

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	obscontext "github.com/smallbiznis/payrelay/internal/observability/context"
	"github.com/smallbiznis/payrelay/internal/observability/logger"
	"github.com/smallbiznis/payrelay/internal/tenant"
	tenantdomain "github.com/smallbiznis/payrelay/internal/tenant/domain"
)

const (
	maxBodyBytes     = 1 << 20
	contextTenantKey = "tenant_config"
)

// TenantContext resolves the calling application and stores its merged
// configuration on the request. The body is buffered and restored so handlers
// can bind it again.
func (s *Server) TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := readBody(c)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}

		requested := tenant.ResolveTenantID(c.Request, body)
		cfg, resolution := s.tenants.Get(requested)
		ctx := obscontext.WithTenantID(c.Request.Context(), cfg.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextTenantKey, cfg)
		c.Set(obscontext.GinKeyTenantResolution, string(resolution))

		if resolution != tenantdomain.ResolvedExact {
			s.obsMetrics.RecordTenantFallback(ctx, string(resolution))
			logger.WithContext(ctx, s.log).Debug("tenant resolved by fallback",
				zap.String("requested_tenant", requested),
				zap.String("resolution", string(resolution)),
			)
		}
		c.Next()
	}
}

func tenantFromContext(c *gin.Context) tenantdomain.TenantConfig {
	if v, ok := c.Get(contextTenantKey); ok {
		if cfg, ok := v.(tenantdomain.TenantConfig); ok {
			return cfg
		}
	}
	return tenantdomain.TenantConfig{}
}

func readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}
