package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/kitstock/internal/audit"
	auditdomain "github.com/smallbiznis/kitstock/internal/audit/domain"
	"github.com/smallbiznis/kitstock/internal/authorization"
	"github.com/smallbiznis/kitstock/internal/config"
	"github.com/smallbiznis/kitstock/internal/customer"
	customerdomain "github.com/smallbiznis/kitstock/internal/customer/domain"
	"github.com/smallbiznis/kitstock/internal/dashboard"
	dashboarddomain "github.com/smallbiznis/kitstock/internal/dashboard/domain"
	"github.com/smallbiznis/kitstock/internal/finance"
	financedomain "github.com/smallbiznis/kitstock/internal/finance/domain"
	"github.com/smallbiznis/kitstock/internal/inventory"
	inventorydomain "github.com/smallbiznis/kitstock/internal/inventory/domain"
	"github.com/smallbiznis/kitstock/internal/kit"
	kitdomain "github.com/smallbiznis/kitstock/internal/kit/domain"
	"github.com/smallbiznis/kitstock/internal/observability"
	obsmiddleware "github.com/smallbiznis/kitstock/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/kitstock/internal/observability/metrics"
	obstracing "github.com/smallbiznis/kitstock/internal/observability/tracing"
	"github.com/smallbiznis/kitstock/internal/order"
	orderdomain "github.com/smallbiznis/kitstock/internal/order/domain"
	"github.com/smallbiznis/kitstock/internal/product"
	productdomain "github.com/smallbiznis/kitstock/internal/product/domain"
	"github.com/smallbiznis/kitstock/internal/quote"
	quotedomain "github.com/smallbiznis/kitstock/internal/quote/domain"
	"github.com/smallbiznis/kitstock/internal/ratelimit"
	"github.com/smallbiznis/kitstock/internal/sequence"
	"github.com/smallbiznis/kitstock/internal/supplier"
	supplierdomain "github.com/smallbiznis/kitstock/internal/supplier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	sequence.Module,
	ratelimit.Module,
	product.Module,
	kit.Module,
	inventory.Module,
	customer.Module,
	supplier.Module,
	finance.Module,
	order.Module,
	quote.Module,
	dashboard.Module,
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
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
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
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
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
	engine       *gin.Engine
	cfg          config.Config
	authzSvc     authorization.Service
	auditSvc     auditdomain.Service
	productSvc   productdomain.Service
	kitSvc       kitdomain.Service
	inventorySvc inventorydomain.Service
	orderSvc     orderdomain.Service
	quoteSvc     quotedomain.Service
	customerSvc  customerdomain.Service
	supplierSvc  supplierdomain.Service
	financeSvc   financedomain.Service
	dashboardSvc dashboarddomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	AuthzSvc     authorization.Service
	AuditSvc     auditdomain.Service
	ProductSvc   productdomain.Service
	KitSvc       kitdomain.Service
	InventorySvc inventorydomain.Service
	OrderSvc     orderdomain.Service
	QuoteSvc     quotedomain.Service
	CustomerSvc  customerdomain.Service
	SupplierSvc  supplierdomain.Service
	FinanceSvc   financedomain.Service
	DashboardSvc dashboarddomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		authzSvc:     p.AuthzSvc,
		auditSvc:     p.AuditSvc,
		productSvc:   p.ProductSvc,
		kitSvc:       p.KitSvc,
		inventorySvc: p.InventorySvc,
		orderSvc:     p.OrderSvc,
		quoteSvc:     p.QuoteSvc,
		customerSvc:  p.CustomerSvc,
		supplierSvc:  p.SupplierSvc,
		financeSvc:   p.FinanceSvc,
		dashboardSvc: p.DashboardSvc,
	}

	svc.registerAPIRoutes()
	svc.registerPublicRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.OrgContext(), s.ActorRequired())

	// -------- Products --------
	api.GET("/products", s.authorizeOrgAction(authorization.ObjectProduct, authorization.ActionProductView), s.ListProducts)
	api.GET("/products/low-stock", s.authorizeOrgAction(authorization.ObjectProduct, authorization.ActionProductView), s.ListLowStockProducts)
	api.POST("/products", s.authorizeOrgAction(authorization.ObjectProduct, authorization.ActionProductCreate), s.CreateProduct)
	api.GET("/products/:id", s.authorizeOrgAction(authorization.ObjectProduct, authorization.ActionProductView), s.GetProductByID)
	api.PATCH("/products/:id", s.authorizeOrgAction(authorization.ObjectProduct, authorization.ActionProductUpdate), s.UpdateProduct)
	api.POST("/products/:id/archive", s.authorizeOrgAction(authorization.ObjectProduct, authorization.ActionProductDelete), s.ArchiveProduct)
	// stock.adjust is checked by the inventory service on the locked path.
	api.POST("/products/:id/stock", s.AdjustProductStock)

	// -------- Kits --------
	api.GET("/kits", s.authorizeOrgAction(authorization.ObjectKit, authorization.ActionKitView), s.ListKits)
	api.POST("/kits", s.authorizeOrgAction(authorization.ObjectKit, authorization.ActionKitCreate), s.CreateKit)
	api.GET("/kits/:id", s.authorizeOrgAction(authorization.ObjectKit, authorization.ActionKitView), s.GetKitByID)
	api.PATCH("/kits/:id", s.authorizeOrgAction(authorization.ObjectKit, authorization.ActionKitUpdate), s.UpdateKit)
	api.PUT("/kits/:id/components", s.authorizeOrgAction(authorization.ObjectKit, authorization.ActionKitUpdate), s.ReplaceKitComponents)
	api.POST("/kits/:id/archive", s.authorizeOrgAction(authorization.ObjectKit, authorization.ActionKitDelete), s.ArchiveKit)
	api.GET("/kits/:id/availability", s.authorizeOrgAction(authorization.ObjectStock, authorization.ActionStockView), s.GetKitAvailability)

	// -------- Stock --------
	api.GET("/stock/kits", s.authorizeOrgAction(authorization.ObjectStock, authorization.ActionStockView), s.ListKitAvailability)
	api.GET("/stock/movements", s.authorizeOrgAction(authorization.ObjectStock, authorization.ActionStockView), s.ListStockMovements)

	// -------- Orders --------
	api.GET("/orders", s.authorizeOrgAction(authorization.ObjectOrder, authorization.ActionOrderView), s.ListOrders)
	api.POST("/orders", s.CreateOrder)
	api.GET("/orders/:id", s.authorizeOrgAction(authorization.ObjectOrder, authorization.ActionOrderView), s.GetOrderByID)
	api.GET("/orders/:id/availability", s.authorizeOrgAction(authorization.ObjectOrder, authorization.ActionOrderView), s.CheckOrderAvailability)
	api.POST("/orders/:id/approve", s.ApproveOrder)
	api.POST("/orders/:id/reject", s.RejectOrder)
	api.POST("/orders/:id/cancel", s.CancelOrder)
	api.POST("/orders/:id/status", s.AdvanceOrder)

	// -------- Quotes --------
	api.GET("/quotes", s.authorizeOrgAction(authorization.ObjectQuote, authorization.ActionQuoteView), s.ListQuotes)
	api.POST("/quotes", s.CreateQuote)
	api.GET("/quotes/:id", s.authorizeOrgAction(authorization.ObjectQuote, authorization.ActionQuoteView), s.GetQuoteByID)
	api.GET("/quotes/:id/availability", s.authorizeOrgAction(authorization.ObjectQuote, authorization.ActionQuoteView), s.CheckQuoteAvailability)
	api.POST("/quotes/:id/approve", s.ApproveQuote)
	api.POST("/quotes/:id/reject", s.RejectQuote)
	api.POST("/quotes/:id/cancel", s.CancelQuote)

	// -------- Customers --------
	api.GET("/customers", s.authorizeOrgAction(authorization.ObjectCustomer, authorization.ActionCustomerView), s.ListCustomers)
	api.POST("/customers", s.authorizeOrgAction(authorization.ObjectCustomer, authorization.ActionCustomerCreate), s.CreateCustomer)
	api.GET("/customers/:id", s.authorizeOrgAction(authorization.ObjectCustomer, authorization.ActionCustomerView), s.GetCustomerByID)
	api.PATCH("/customers/:id", s.authorizeOrgAction(authorization.ObjectCustomer, authorization.ActionCustomerUpdate), s.UpdateCustomer)

	// -------- Suppliers --------
	api.GET("/suppliers", s.authorizeOrgAction(authorization.ObjectSupplier, authorization.ActionSupplierView), s.ListSuppliers)
	api.POST("/suppliers", s.authorizeOrgAction(authorization.ObjectSupplier, authorization.ActionSupplierCreate), s.CreateSupplier)
	api.GET("/suppliers/:id", s.authorizeOrgAction(authorization.ObjectSupplier, authorization.ActionSupplierView), s.GetSupplierByID)
	api.PATCH("/suppliers/:id", s.authorizeOrgAction(authorization.ObjectSupplier, authorization.ActionSupplierUpdate), s.UpdateSupplier)

	// -------- Finance --------
	api.GET("/finance/transactions", s.authorizeOrgAction(authorization.ObjectFinance, authorization.ActionFinanceView), s.ListTransactions)
	api.POST("/finance/transactions", s.authorizeOrgAction(authorization.ObjectFinance, authorization.ActionFinanceCreate), s.CreateTransaction)
	api.POST("/finance/transactions/:id/settle", s.authorizeOrgAction(authorization.ObjectFinance, authorization.ActionFinanceCreate), s.SettleTransaction)
	api.GET("/finance/sales", s.authorizeOrgAction(authorization.ObjectFinance, authorization.ActionFinanceView), s.ListSales)
	api.GET("/finance/summary", s.authorizeOrgAction(authorization.ObjectFinance, authorization.ActionFinanceView), s.FinanceSummary)

	// -------- Dashboard --------
	api.GET("/dashboard", s.authorizeOrgAction(authorization.ObjectDashboard, authorization.ActionDashboardView), s.DashboardStats)
	api.GET("/audit-logs", s.authorizeOrgAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

func (s *Server) registerPublicRoutes() {
	public := s.engine.Group("/public", s.OrgContext())

	public.GET("/catalog/kits", s.ListCatalogKits)
	public.POST("/catalog/orders", s.SubmitCatalogOrder)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
