package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mandrosoa/hotspot-platform/portal-service/internal/cache"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/client"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/config"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/db"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/http"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/repository"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/service"
)

// mvolaPayments adapts the MVola client to the service-side initiator.
type mvolaPayments struct {
	c *client.MVolaClient
}

func (m *mvolaPayments) InitiatePayment(ctx context.Context, order *service.PaymentOrder) (string, error) {
	resp, err := m.c.InitiatePayment(ctx, &client.InitiatePaymentRequest{
		AmountAr:    order.AmountAr,
		DebitPhone:  order.DebitPhone,
		Reference:   order.Reference,
		Description: order.Description,
	})
	if err != nil {
		return "", err
	}
	return resp.ServerCorrelationID, nil
}

func main() {
	log.Println("Starting Portal Service...")

	// Load configuration
	cfg := config.Load()
	if cfg.Server.Mode == "release" {
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}
	}

	// Initialize database
	pool, err := db.NewPool(cfg.Database.DSN(), cfg.Database.Schema)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Initialize purchase poll cache
	purchaseCache, err := cache.NewPurchaseCache(
		cfg.Redis.Addr,
		cfg.Redis.Password,
		cfg.Redis.DB,
		time.Duration(cfg.Portal.PurchaseTTLMinutes)*time.Minute,
	)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer purchaseCache.Close()

	// Initialize repositories
	voucherRepo := repository.NewVoucherRepository(pool)
	planRepo := repository.NewPlanRepository(pool)
	poolRepo := repository.NewPoolRepository(pool)
	apRepo := repository.NewAccessPointRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	// Initialize clients
	tanazaClient := client.NewTanazaClient(cfg.Tanaza.APIBaseURL, cfg.Tanaza.APIKey)
	mvolaClient := client.NewMVolaClient(cfg.MVola.BaseURL, cfg.MVola.MerchantNumber, cfg.MVola.APIKey)

	// Initialize services
	freePlanGuard := service.NewFreePlanGuard(voucherRepo)
	allocationService := service.NewAllocationService(voucherRepo, planRepo, freePlanGuard, auditRepo)
	activationService := service.NewActivationService(voucherRepo, planRepo, poolRepo, auditRepo, tanazaClient)
	purchaseService := service.NewPurchaseService(
		planRepo,
		voucherRepo,
		allocationService,
		auditRepo,
		&mvolaPayments{c: mvolaClient},
		purchaseCache,
	)
	adminService := service.NewAdminService(poolRepo, planRepo, apRepo, voucherRepo, auditRepo, tanazaClient)

	// Initialize HTTP server
	server := http.NewServer(cfg, purchaseService, activationService, freePlanGuard, adminService)

	// Start server in goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		log.Printf("Server starting on %s", addr)
		if err := server.Run(addr); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	log.Println("Server exited")
}
