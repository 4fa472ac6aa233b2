package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/config"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/service"
)

type Server struct {
	router       *gin.Engine
	handler      *Handler
	adminHandler *AdminHandler
	cfg          *config.Config
}

// Purchase initiation limiter: a captive-portal client has no business
// starting more than a handful of payments per window.
var purchaseRateLimiter = NewRateLimiter(10, time.Minute)

// Free-plan claims are the main abuse target; keep them tighter.
var freePlanRateLimiter = NewRateLimiter(5, time.Hour)

func NewServer(cfg *config.Config, purchaseService *service.PurchaseService, activationService *service.ActivationService, freePlanGuard *service.FreePlanGuard, adminService *service.AdminService) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:       router,
		handler:      NewHandler(purchaseService, activationService, freePlanGuard),
		adminHandler: NewAdminHandler(adminService),
		cfg:          cfg,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "portal-service",
		})
	})

	// Portal API - captive-portal clients, no auth (the device is the identity)
	portal := s.router.Group("/api/portal")
	{
		portal.GET("/plans", s.handler.ListPlans)
		portal.POST("/purchase", RateLimitMiddleware(purchaseRateLimiter), s.handler.Purchase)
		portal.GET("/purchase/:request_ref", s.handler.PollPurchase)
		portal.POST("/activate", s.handler.Activate)
		portal.GET("/free-eligibility", RateLimitMiddleware(freePlanRateLimiter), s.handler.FreeEligibility)
	}

	// Internal API - payment callback bridge
	internal := s.router.Group("/api/internal")
	internal.Use(InternalAuthMiddleware(s.cfg.InternalSecret))
	{
		internal.POST("/payments/confirm", s.handler.ConfirmPayment)
	}

	// Admin API - dashboard, JWT auth
	admin := s.router.Group("/api/admin")
	admin.Use(JWTAuthMiddleware(s.cfg.JWT.SecretKey))
	{
		admin.GET("/pools", s.adminHandler.ListPools)
		admin.POST("/pools", s.adminHandler.CreatePool)
		admin.PUT("/pools/:id", s.adminHandler.UpdatePool)
		admin.DELETE("/pools/:id", s.adminHandler.DeletePool)

		admin.GET("/plans", s.adminHandler.ListPlans)
		admin.POST("/plans", s.adminHandler.CreatePlan)
		admin.PUT("/plans/:id", s.adminHandler.UpdatePlan)
		admin.POST("/plans/:id/toggle", s.adminHandler.TogglePlan)

		admin.GET("/access-points", s.adminHandler.ListAccessPoints)
		admin.PUT("/access-points/:ap_mac", s.adminHandler.UpdateAccessPoint)
		admin.POST("/access-points/import", s.adminHandler.ImportAccessPoint)

		admin.POST("/vouchers/:id/revoke", s.adminHandler.RevokeVoucher)
		admin.GET("/audit", s.adminHandler.ListAudit)
		admin.GET("/revenue", s.adminHandler.Revenue)
	}
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
