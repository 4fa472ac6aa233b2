package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/mandrosoa/hotspot-platform/portal-service/internal/apperr"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/models"
)

func paidPlan(id string) *models.Plan {
	return &models.Plan{
		ID:              id,
		Name:            "1 Hour",
		PriceAr:         1000,
		DurationMinutes: 60,
		MaxDevices:      1,
		IsVisible:       true,
		IsActive:        true,
	}
}

func freePlan(id string) *models.Plan {
	p := paidPlan(id)
	p.Name = "Free Trial"
	p.PriceAr = 0
	p.DurationMinutes = 15
	return p
}

func newAllocationFixture(plans ...*models.Plan) (*AllocationService, *memVoucherStore, *memAuditStore) {
	vouchers := newMemVoucherStore()
	audit := &memAuditStore{}
	guard := NewFreePlanGuard(vouchers)
	svc := NewAllocationService(vouchers, newMemPlanStore(plans...), guard, audit)
	return svc, vouchers, audit
}

func TestAllocateClaimsVoucher(t *testing.T) {
	svc, vouchers, audit := newAllocationFixture(paidPlan("p1"))
	vouchers.seed("p1", "CODE-1")

	resp, err := svc.Allocate(context.Background(), &AllocateParams{
		PlanID:    "p1",
		Phone:     "0341234567",
		ClientMAC: "aa:bb:cc:dd:ee:01",
	})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if resp.Code != "CODE-1" {
		t.Errorf("Code = %q, want CODE-1", resp.Code)
	}
	if resp.Plan.ID != "p1" {
		t.Errorf("Plan.ID = %q, want p1", resp.Plan.ID)
	}

	v := vouchers.get("CODE-1")
	if v.Status != models.VoucherStatusAssigned {
		t.Errorf("voucher status = %q, want assigned", v.Status)
	}
	if v.ClientMAC == nil || *v.ClientMAC != "AA:BB:CC:DD:EE:01" {
		t.Errorf("voucher client_mac = %v, want normalized AA:BB:CC:DD:EE:01", v.ClientMAC)
	}

	events := audit.byType(models.AuditEventAllocation)
	if len(events) != 1 {
		t.Fatalf("audit events = %d, want 1", len(events))
	}
	if events[0].Status != models.AuditStatusSuccess {
		t.Errorf("audit status = %q, want success", events[0].Status)
	}
	if events[0].Metadata["code_hash"] == "CODE-1" {
		t.Error("audit metadata contains the clear code")
	}
}

func TestAllocateSameDeviceReturnsExistingCode(t *testing.T) {
	svc, vouchers, _ := newAllocationFixture(paidPlan("p1"))
	vouchers.seed("p1", "CODE-1")
	vouchers.seed("p1", "CODE-2")

	first, err := svc.Allocate(context.Background(), &AllocateParams{
		PlanID: "p1", Phone: "034", ClientMAC: "aa:bb:cc:dd:ee:01",
	})
	if err != nil {
		t.Fatalf("first Allocate() error = %v", err)
	}

	_, err = svc.Allocate(context.Background(), &AllocateParams{
		PlanID: "p1", Phone: "034", ClientMAC: "aa:bb:cc:dd:ee:01",
	})
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("second Allocate() kind = %v, want conflict (err=%v)", apperr.KindOf(err), err)
	}
	details := apperr.DetailsOf(err)
	if details["existing_code"] != first.Code {
		t.Errorf("existing_code detail = %v, want %q", details["existing_code"], first.Code)
	}

	if v := vouchers.get("CODE-2"); v.Status != models.VoucherStatusUnassigned {
		t.Errorf("second voucher was consumed by the rejected request: status = %q", v.Status)
	}
}

func TestAllocateExhaustedWhenNoStock(t *testing.T) {
	svc, vouchers, _ := newAllocationFixture(paidPlan("p1"))
	vouchers.seed("p1", "CODE-1")

	if _, err := svc.Allocate(context.Background(), &AllocateParams{
		PlanID: "p1", Phone: "034", ClientMAC: "aa:bb:cc:dd:ee:01",
	}); err != nil {
		t.Fatalf("first Allocate() error = %v", err)
	}

	_, err := svc.Allocate(context.Background(), &AllocateParams{
		PlanID: "p1", Phone: "034", ClientMAC: "aa:bb:cc:dd:ee:02",
	})
	if apperr.KindOf(err) != apperr.KindExhausted {
		t.Errorf("Allocate() kind = %v, want exhausted (err=%v)", apperr.KindOf(err), err)
	}
}

// Concurrent buyers of the same plan never oversell the stock, and every
// successful claim hands out a distinct code.
func TestAllocateConcurrentNoOversell(t *testing.T) {
	const stock = 5
	const buyers = 20

	svc, vouchers, audit := newAllocationFixture(paidPlan("p1"))
	for i := 0; i < stock; i++ {
		vouchers.seed("p1", fmt.Sprintf("CODE-%d", i))
	}

	var wg sync.WaitGroup
	results := make([]*models.AllocateResponse, buyers)
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Allocate(context.Background(), &AllocateParams{
				PlanID:    "p1",
				Phone:     "034",
				ClientMAC: fmt.Sprintf("aa:bb:cc:dd:ee:%02x", i),
			})
		}(i)
	}
	wg.Wait()

	codes := map[string]bool{}
	failures := 0
	for i := 0; i < buyers; i++ {
		if errs[i] != nil {
			if kind := apperr.KindOf(errs[i]); kind != apperr.KindExhausted {
				t.Errorf("buyer %d: kind = %v, want exhausted", i, kind)
			}
			failures++
			continue
		}
		if codes[results[i].Code] {
			t.Errorf("code %q handed out twice", results[i].Code)
		}
		codes[results[i].Code] = true
	}
	if len(codes) != stock {
		t.Errorf("distinct codes = %d, want %d", len(codes), stock)
	}
	if failures != buyers-stock {
		t.Errorf("failures = %d, want %d", failures, buyers-stock)
	}
	if events := audit.byType(models.AuditEventAllocation); len(events) != buyers {
		t.Errorf("audit events = %d, want one per decision (%d)", len(events), buyers)
	}
}

// Two simultaneous free-plan requests from the same device get exactly one
// voucher between them.
func TestAllocateConcurrentFreePlanSameDevice(t *testing.T) {
	svc, vouchers, _ := newAllocationFixture(freePlan("free"))
	vouchers.seed("free", "FREE-1")
	vouchers.seed("free", "FREE-2")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Allocate(context.Background(), &AllocateParams{
				PlanID:    "free",
				ClientMAC: "aa:bb:cc:dd:ee:01",
			})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		if kind := apperr.KindOf(err); kind != apperr.KindConflict {
			t.Errorf("loser kind = %v, want conflict (err=%v)", kind, err)
		}
	}
	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}
	if v := vouchers.get("FREE-2"); v.Status != models.VoucherStatusUnassigned {
		t.Errorf("second free voucher consumed: status = %q", v.Status)
	}
}

func TestAllocateFreePlanOncePerDevice(t *testing.T) {
	svc, vouchers, _ := newAllocationFixture(freePlan("free"))
	vouchers.seed("free", "FREE-1")
	vouchers.seed("free", "FREE-2")

	first, err := svc.Allocate(context.Background(), &AllocateParams{
		PlanID: "free", ClientMAC: "aa:bb:cc:dd:ee:01",
	})
	if err != nil {
		t.Fatalf("first Allocate() error = %v", err)
	}

	// The first voucher has since expired; the device still may not claim
	// the free plan again.
	vouchers.mu.Lock()
	for _, stored := range vouchers.vouchers {
		if stored.Code == first.Code {
			stored.Status = models.VoucherStatusExpired
		}
	}
	vouchers.mu.Unlock()

	_, err = svc.Allocate(context.Background(), &AllocateParams{
		PlanID: "free", ClientMAC: "aa:bb:cc:dd:ee:01",
	})
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("repeat Allocate() kind = %v, want conflict (err=%v)", apperr.KindOf(err), err)
	}
	if _, ok := apperr.DetailsOf(err)["last_used_at"]; !ok {
		t.Error("conflict is missing the last_used_at detail")
	}

	// A different device is unaffected.
	if _, err := svc.Allocate(context.Background(), &AllocateParams{
		PlanID: "free", ClientMAC: "aa:bb:cc:dd:ee:02",
	}); err != nil {
		t.Errorf("other device Allocate() error = %v", err)
	}
}

func TestAllocateRejectsBadInput(t *testing.T) {
	svc, vouchers, _ := newAllocationFixture(paidPlan("p1"))
	vouchers.seed("p1", "CODE-1")

	_, err := svc.Allocate(context.Background(), &AllocateParams{
		PlanID: "p1", Phone: "034", ClientMAC: "not-a-mac",
	})
	if apperr.KindOf(err) != apperr.KindInvalidRequest {
		t.Errorf("bad mac kind = %v, want invalid_request", apperr.KindOf(err))
	}

	_, err = svc.Allocate(context.Background(), &AllocateParams{
		PlanID: "missing", Phone: "034", ClientMAC: "aa:bb:cc:dd:ee:01",
	})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("missing plan kind = %v, want not_found", apperr.KindOf(err))
	}
}

func TestAllocateInactivePlan(t *testing.T) {
	plan := paidPlan("p1")
	plan.IsActive = false
	svc, vouchers, _ := newAllocationFixture(plan)
	vouchers.seed("p1", "CODE-1")

	_, err := svc.Allocate(context.Background(), &AllocateParams{
		PlanID: "p1", Phone: "034", ClientMAC: "aa:bb:cc:dd:ee:01",
	})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("inactive plan kind = %v, want not_found", apperr.KindOf(err))
	}
}
