package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/promoreel/promoreel/internal/config"
	ledgerdomain "github.com/promoreel/promoreel/internal/ledger/domain"
	"github.com/promoreel/promoreel/internal/observability"
	obsmiddleware "github.com/promoreel/promoreel/internal/observability/logger"
	obsmetrics "github.com/promoreel/promoreel/internal/observability/metrics"
	obstracing "github.com/promoreel/promoreel/internal/observability/tracing"
	paymentdomain "github.com/promoreel/promoreel/internal/payment/domain"
	productdomain "github.com/promoreel/promoreel/internal/product/domain"
	userdomain "github.com/promoreel/promoreel/internal/user/domain"
	"github.com/promoreel/promoreel/internal/video/adapters"
	videodomain "github.com/promoreel/promoreel/internal/video/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
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
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
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
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	userSvc     userdomain.Service
	videoSvc    videodomain.Service
	paymentSvc  paymentdomain.Service
	productSvc  productdomain.Service
	ledgerSvc   ledgerdomain.Service
	pricingConf *config.PricingConfigHolder
	registry    *adapters.Registry
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	UserSvc    userdomain.Service
	VideoSvc   videodomain.Service
	PaymentSvc paymentdomain.Service
	ProductSvc productdomain.Service
	LedgerSvc  ledgerdomain.Service
	Pricing    *config.PricingConfigHolder
	Registry   *adapters.Registry
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		userSvc:     p.UserSvc,
		videoSvc:    p.VideoSvc,
		paymentSvc:  p.PaymentSvc,
		productSvc:  p.ProductSvc,
		ledgerSvc:   p.LedgerSvc,
		pricingConf: p.Pricing,
		registry:    p.Registry,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/auth/signin", s.SignIn)

	// Webhooks carry no session; the job is matched by external id.
	api.POST("/webhooks/videos/:provider", s.HandleVideoWebhook)

	api.GET("/plans", s.ListPlans)

	authed := api.Group("", s.AuthRequired())
	{
		authed.GET("/me", s.Me)
		authed.GET("/me/transactions", s.ListMyTransactions)

		authed.GET("/videos", s.ListVideos)
		authed.POST("/videos", s.CreateVideo)
		authed.POST("/videos/regenerate", s.RegenerateVideo)
		authed.GET("/videos/status", s.VideoStatus)

		authed.POST("/payments/confirm", s.ConfirmPayment)

		authed.GET("/products", s.ListProducts)
		authed.POST("/products", s.CreateProduct)
		authed.GET("/products/:id", s.GetProductByID)
		authed.PUT("/products/:id", s.UpdateProduct)
		authed.DELETE("/products/:id", s.DeleteProduct)
	}
}
