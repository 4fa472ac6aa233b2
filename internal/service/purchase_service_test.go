package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mandrosoa/hotspot-platform/portal-service/internal/apperr"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/models"
)

func newPurchaseFixture(plans ...*models.Plan) (*PurchaseService, *memVoucherStore, *fakePayments, *memStateStore) {
	vouchers := newMemVoucherStore()
	planStore := newMemPlanStore(plans...)
	audit := &memAuditStore{}
	guard := NewFreePlanGuard(vouchers)
	allocation := NewAllocationService(vouchers, planStore, guard, audit)
	payments := &fakePayments{}
	states := newMemStateStore()
	svc := NewPurchaseService(planStore, vouchers, allocation, audit, payments, states)
	return svc, vouchers, payments, states
}

func TestPurchaseFreePlanAllocatesImmediately(t *testing.T) {
	svc, vouchers, payments, states := newPurchaseFixture(freePlan("free"))
	vouchers.seed("free", "FREE-1")

	resp, err := svc.Purchase(context.Background(), &models.PurchaseRequest{
		PlanID:    "free",
		ClientMAC: "aa:bb:cc:dd:ee:01",
	})
	if err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	if resp.Status != models.PurchaseStatusReady {
		t.Errorf("Status = %q, want ready", resp.Status)
	}
	if resp.Code != "FREE-1" {
		t.Errorf("Code = %q, want FREE-1", resp.Code)
	}
	if len(payments.orders) != 0 {
		t.Error("free plan triggered a payment initiation")
	}

	state, _ := states.Get(context.Background(), resp.RequestRef)
	if state == nil || state.Status != models.PurchaseStatusReady {
		t.Errorf("poll state = %+v, want ready", state)
	}
}

func TestPurchasePaidPlanInitiatesPayment(t *testing.T) {
	svc, _, payments, states := newPurchaseFixture(paidPlan("p1"))

	resp, err := svc.Purchase(context.Background(), &models.PurchaseRequest{
		PlanID:    "p1",
		Phone:     "0341234567",
		ClientMAC: "aa:bb:cc:dd:ee:01",
	})
	if err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	if resp.Status != models.PurchaseStatusPending {
		t.Errorf("Status = %q, want pending", resp.Status)
	}
	if resp.Code != "" {
		t.Error("pending purchase already carries a code")
	}

	if len(payments.orders) != 1 {
		t.Fatalf("payment initiations = %d, want 1", len(payments.orders))
	}
	order := payments.orders[0]
	if order.AmountAr != 1000 || order.DebitPhone != "0341234567" || order.Reference != resp.RequestRef {
		t.Errorf("payment order = %+v, want amount/phone/ref from the request", order)
	}

	state, _ := states.Get(context.Background(), resp.RequestRef)
	if state == nil || state.Status != models.PurchaseStatusPending {
		t.Errorf("poll state = %+v, want pending", state)
	}
}

func TestPurchasePaidPlanRequiresPhone(t *testing.T) {
	svc, _, _, _ := newPurchaseFixture(paidPlan("p1"))

	_, err := svc.Purchase(context.Background(), &models.PurchaseRequest{
		PlanID:    "p1",
		ClientMAC: "aa:bb:cc:dd:ee:01",
	})
	if apperr.KindOf(err) != apperr.KindInvalidRequest {
		t.Errorf("kind = %v, want invalid_request (err=%v)", apperr.KindOf(err), err)
	}
}

func TestPurchaseRejectedBeforePaymentWhenVoucherHeld(t *testing.T) {
	svc, vouchers, payments, _ := newPurchaseFixture(paidPlan("p1"))
	vouchers.seed("p1", "CODE-1")

	if _, err := vouchers.Claim(context.Background(), "p1", "034", "AA:BB:CC:DD:EE:01", "", false); err != nil {
		t.Fatalf("seed claim error = %v", err)
	}

	_, err := svc.Purchase(context.Background(), &models.PurchaseRequest{
		PlanID:    "p1",
		Phone:     "0341234567",
		ClientMAC: "aa:bb:cc:dd:ee:01",
	})
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("kind = %v, want conflict (err=%v)", apperr.KindOf(err), err)
	}
	if apperr.DetailsOf(err)["existing_code"] != "CODE-1" {
		t.Errorf("existing_code = %v, want CODE-1", apperr.DetailsOf(err)["existing_code"])
	}
	if len(payments.orders) != 0 {
		t.Error("payment was initiated despite the held voucher")
	}
}

func TestPurchaseGatewayFailure(t *testing.T) {
	svc, _, payments, _ := newPurchaseFixture(paidPlan("p1"))
	payments.err = errors.New("gateway timeout")

	_, err := svc.Purchase(context.Background(), &models.PurchaseRequest{
		PlanID:    "p1",
		Phone:     "0341234567",
		ClientMAC: "aa:bb:cc:dd:ee:01",
	})
	if apperr.KindOf(err) != apperr.KindUpstreamUnavailable {
		t.Errorf("kind = %v, want upstream_unavailable (err=%v)", apperr.KindOf(err), err)
	}
}

func TestConfirmPaymentAllocates(t *testing.T) {
	svc, vouchers, _, states := newPurchaseFixture(paidPlan("p1"))
	vouchers.seed("p1", "CODE-1")

	resp, err := svc.ConfirmPayment(context.Background(), &models.ConfirmPaymentRequest{
		RequestRef: "ref-1",
		PlanID:     "p1",
		Phone:      "0341234567",
		ClientMAC:  "aa:bb:cc:dd:ee:01",
	})
	if err != nil {
		t.Fatalf("ConfirmPayment() error = %v", err)
	}
	if resp.Code != "CODE-1" || resp.Reused {
		t.Errorf("resp = %+v, want fresh CODE-1", resp)
	}

	state, _ := states.Get(context.Background(), "ref-1")
	if state == nil || state.Status != models.PurchaseStatusReady || state.Code != "CODE-1" {
		t.Errorf("poll state = %+v, want ready with code", state)
	}
}

// A duplicate confirmation (retried callback, double submit) surfaces the
// already-claimed code instead of failing the buyer after they paid.
func TestConfirmPaymentDuplicateSurfacesExistingCode(t *testing.T) {
	svc, vouchers, _, _ := newPurchaseFixture(paidPlan("p1"))
	vouchers.seed("p1", "CODE-1")
	vouchers.seed("p1", "CODE-2")

	req := &models.ConfirmPaymentRequest{
		RequestRef: "ref-1",
		PlanID:     "p1",
		Phone:      "0341234567",
		ClientMAC:  "aa:bb:cc:dd:ee:01",
	}
	first, err := svc.ConfirmPayment(context.Background(), req)
	if err != nil {
		t.Fatalf("first ConfirmPayment() error = %v", err)
	}

	second, err := svc.ConfirmPayment(context.Background(), req)
	if err != nil {
		t.Fatalf("duplicate ConfirmPayment() error = %v", err)
	}
	if second.Code != first.Code {
		t.Errorf("duplicate returned %q, want the original code %q", second.Code, first.Code)
	}
	if !second.Reused {
		t.Error("duplicate response not marked as reused")
	}
	if v := vouchers.get("CODE-2"); v.Status != models.VoucherStatusUnassigned {
		t.Errorf("duplicate confirmation consumed a second voucher: status = %q", v.Status)
	}
}

func TestConfirmPaymentExhaustedMarksFailed(t *testing.T) {
	svc, _, _, states := newPurchaseFixture(paidPlan("p1"))

	_, err := svc.ConfirmPayment(context.Background(), &models.ConfirmPaymentRequest{
		RequestRef: "ref-1",
		PlanID:     "p1",
		Phone:      "0341234567",
		ClientMAC:  "aa:bb:cc:dd:ee:01",
	})
	if apperr.KindOf(err) != apperr.KindExhausted {
		t.Fatalf("kind = %v, want exhausted (err=%v)", apperr.KindOf(err), err)
	}

	state, _ := states.Get(context.Background(), "ref-1")
	if state == nil || state.Status != models.PurchaseStatusFailed {
		t.Errorf("poll state = %+v, want failed", state)
	}
}

func TestPollFallsBackToVoucherTable(t *testing.T) {
	svc, vouchers, _, states := newPurchaseFixture(paidPlan("p1"))
	vouchers.seed("p1", "CODE-1")

	if _, err := vouchers.Claim(context.Background(), "p1", "034", "AA:BB:CC:DD:EE:01", "", false); err != nil {
		t.Fatalf("seed claim error = %v", err)
	}
	states.drop("ref-1") // cache evicted

	resp, err := svc.Poll(context.Background(), "ref-1", "aa:bb:cc:dd:ee:01")
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if resp.Status != models.PurchaseStatusReady || resp.Code != "CODE-1" {
		t.Errorf("resp = %+v, want ready with CODE-1 from the voucher table", resp)
	}
}

func TestPollUnknownRef(t *testing.T) {
	svc, _, _, _ := newPurchaseFixture(paidPlan("p1"))

	_, err := svc.Poll(context.Background(), "ref-unknown", "aa:bb:cc:dd:ee:99")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("kind = %v, want not_found (err=%v)", apperr.KindOf(err), err)
	}
}
