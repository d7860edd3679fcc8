package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/observability"
	obslogger "github.com/smallbiznis/payrelay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/payrelay/internal/observability/metrics"
	obstracing "github.com/smallbiznis/payrelay/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
	paymentservice "github.com/smallbiznis/payrelay/internal/payment/service"
	"github.com/smallbiznis/payrelay/internal/tenant"
	tenantdomain "github.com/smallbiznis/payrelay/internal/tenant/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(func(svc *paymentservice.Service) PaymentService { return svc }),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// PaymentService is what the HTTP layer needs from the orchestrator.
type PaymentService interface {
	CreateOrder(ctx context.Context, cfg tenantdomain.TenantConfig, req paymentdomain.CreateOrderRequest) (*paymentdomain.Order, error)
	Verify(ctx context.Context, cfg tenantdomain.TenantConfig, req paymentdomain.VerifyRequest) (*paymentdomain.VerifyResult, error)
	HandleGatewayWebhook(ctx context.Context, body []byte, sig, eventID string) (*paymentdomain.WebhookResult, error)
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	tenants       *tenant.Registry
	paymentSvc    PaymentService
	obsMetrics    *obsmetrics.Metrics
	ordersLimiter *rateLimiter
	verifyLimiter *rateLimiter
	hookLimiter   *rateLimiter
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	Tenants    *tenant.Registry
	PaymentSvc PaymentService
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           log.Named("http"),
		tenants:       p.Tenants,
		paymentSvc:    p.PaymentSvc,
		obsMetrics:    p.ObsMetrics,
		ordersLimiter: newRateLimiter(30, time.Minute),
		verifyLimiter: newRateLimiter(60, time.Minute),
		hookLimiter:   newRateLimiter(600, time.Minute),
	}

	svc.registerPaymentRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPaymentRoutes() {
	s.engine.POST("/orders", s.RateLimit(s.ordersLimiter, "orders"), s.TenantContext(), s.CreateOrder)

	payments := s.engine.Group("/payments")
	payments.POST("/verify", s.RateLimit(s.verifyLimiter, "verify"), s.TenantContext(), s.VerifyPayment)
	payments.POST("/gateway-webhook", s.RateLimit(s.hookLimiter, "gateway_webhook"), s.GatewayWebhook)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
