package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mandrosoa/hotspot-platform/portal-service/internal/client"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/config"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/db"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/repository"
)

// The sweeper owns two background duties: flipping overdue active vouchers
// to expired, and refreshing access-point liveness from the Tanaza
// controller. Neither runs inside a request path.
func main() {
	log.Println("Starting Portal Sweeper...")

	cfg := config.Load()

	pool, err := db.NewPool(cfg.Database.DSN(), cfg.Database.Schema)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	voucherRepo := repository.NewVoucherRepository(pool)
	apRepo := repository.NewAccessPointRepository(pool)
	tanazaClient := client.NewTanazaClient(cfg.Tanaza.APIBaseURL, cfg.Tanaza.APIKey)

	c := cron.New()

	// Voucher expiry: expires_at is authoritative, this sweep just makes the
	// stored status catch up so stock and audit queries stay honest.
	if _, err := c.AddFunc("@every 1m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		n, err := voucherRepo.ExpireOverdue(ctx)
		if err != nil {
			log.Printf("[Sweeper] expiry sweep failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("[Sweeper] expired %d overdue vouchers", n)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule expiry sweep: %v", err)
	}

	// AP refresh: best effort per device, a controller hiccup on one AP must
	// not block the rest of the fleet.
	if _, err := c.AddFunc("@every 5m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
		defer cancel()

		aps, err := apRepo.List(ctx, "")
		if err != nil {
			log.Printf("[Sweeper] AP list failed: %v", err)
			return
		}

		refreshed := 0
		for _, ap := range aps {
			info, err := tanazaClient.GetDeviceByMAC(ctx, ap.APMAC)
			if err != nil {
				log.Printf("[Sweeper] controller lookup failed for %s: %v", ap.APMAC, err)
				continue
			}
			if err := apRepo.UpdateControllerState(ctx, ap.APMAC, info.Online, info.ConnectedClients, time.Now()); err != nil {
				log.Printf("[Sweeper] state update failed for %s: %v", ap.APMAC, err)
				continue
			}
			refreshed++
		}
		log.Printf("[Sweeper] refreshed %d/%d access points", refreshed, len(aps))
	}); err != nil {
		log.Fatalf("Failed to schedule AP refresh: %v", err)
	}

	c.Start()
	log.Println("Sweeper schedules started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down sweeper...")
	stopCtx := c.Stop()
	<-stopCtx.Done()
	log.Println("Sweeper exited")
}
