package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mandrosoa/hotspot-platform/portal-service/internal/cache"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/models"
	"github.com/mandrosoa/hotspot-platform/portal-service/internal/repository"
)

// memVoucherStore reproduces the repository's claim semantics in memory:
// the mutex gives each call the same atomicity the conditional UPDATE has,
// and the in-statement guards are re-checked under the same lock that
// performs the write.
type memVoucherStore struct {
	mu       sync.Mutex
	vouchers []*models.Voucher
	seq      int
}

func newMemVoucherStore() *memVoucherStore {
	return &memVoucherStore{}
}

// seed adds an unassigned voucher for the plan.
func (s *memVoucherStore) seed(planID, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.vouchers = append(s.vouchers, &models.Voucher{
		ID:        fmt.Sprintf("v-%d", s.seq),
		Code:      code,
		PlanID:    planID,
		Status:    models.VoucherStatusUnassigned,
		CreatedAt: time.Now(),
	})
}

// seedVoucher adds an arbitrary voucher row.
func (s *memVoucherStore) seedVoucher(v *models.Voucher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if v.ID == "" {
		v.ID = fmt.Sprintf("v-%d", s.seq)
	}
	s.vouchers = append(s.vouchers, v)
}

func (s *memVoucherStore) get(code string) *models.Voucher {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.vouchers {
		if v.Code == code {
			return copyVoucher(v)
		}
	}
	return nil
}

func (s *memVoucherStore) Claim(ctx context.Context, planID, paidBy, clientMAC, apMAC string, freePlan bool) (*models.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.vouchers {
		if v.ClientMAC != nil && *v.ClientMAC == clientMAC &&
			(v.Status == models.VoucherStatusAssigned || v.Status == models.VoucherStatusActive) {
			return nil, repository.ErrActiveVoucherExists
		}
	}
	if freePlan {
		for _, v := range s.vouchers {
			if v.PlanID == planID && v.ClientMAC != nil && *v.ClientMAC == clientMAC &&
				(v.Status == models.VoucherStatusAssigned || v.Status == models.VoucherStatusActive || v.Status == models.VoucherStatusExpired) {
				return nil, repository.ErrClaimMiss
			}
		}
	}

	for _, v := range s.vouchers {
		if v.PlanID != planID || v.Status != models.VoucherStatusUnassigned {
			continue
		}
		now := time.Now()
		v.Status = models.VoucherStatusAssigned
		v.PaidBy = &paidBy
		v.ClientMAC = &clientMAC
		if apMAC != "" {
			v.APMAC = &apMAC
		}
		v.AssignedAt = &now
		v.UpdatedAt = now
		return copyVoucher(v), nil
	}
	return nil, repository.ErrClaimMiss
}

func (s *memVoucherStore) GetByCode(ctx context.Context, code string) (*models.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.vouchers {
		if v.Code == code {
			return copyVoucher(v), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memVoucherStore) GetCurrentByClientMAC(ctx context.Context, clientMAC string) (*models.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.vouchers {
		if v.ClientMAC != nil && *v.ClientMAC == clientMAC &&
			(v.Status == models.VoucherStatusAssigned || v.Status == models.VoucherStatusActive) {
			return copyVoucher(v), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memVoucherStore) LastRedemption(ctx context.Context, planID, clientMAC string) (*models.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Voucher
	for _, v := range s.vouchers {
		if v.PlanID != planID || v.ClientMAC == nil || *v.ClientMAC != clientMAC {
			continue
		}
		switch v.Status {
		case models.VoucherStatusAssigned, models.VoucherStatusActive, models.VoucherStatusExpired:
		default:
			continue
		}
		if latest == nil || (v.AssignedAt != nil && latest.AssignedAt != nil && v.AssignedAt.After(*latest.AssignedAt)) {
			latest = v
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return copyVoucher(latest), nil
}

func (s *memVoucherStore) ActivateAssigned(ctx context.Context, code string, durationMinutes int, clientMAC, apMAC string) (*models.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.vouchers {
		if v.Code != code || v.Status != models.VoucherStatusAssigned {
			continue
		}
		now := time.Now()
		expires := now.Add(time.Duration(durationMinutes) * time.Minute)
		v.Status = models.VoucherStatusActive
		v.ActivatedAt = &now
		v.ExpiresAt = &expires
		if clientMAC != "" {
			v.ClientMAC = &clientMAC
		}
		if apMAC != "" {
			v.APMAC = &apMAC
		}
		v.UpdatedAt = now
		return copyVoucher(v), nil
	}
	return nil, repository.ErrNotFound
}

func copyVoucher(v *models.Voucher) *models.Voucher {
	c := *v
	return &c
}

// memPlanStore serves a fixed catalog.
type memPlanStore struct {
	plans map[string]*models.Plan
}

func newMemPlanStore(plans ...*models.Plan) *memPlanStore {
	m := &memPlanStore{plans: map[string]*models.Plan{}}
	for _, p := range plans {
		m.plans[p.ID] = p
	}
	return m
}

func (s *memPlanStore) GetByID(ctx context.Context, id string) (*models.Plan, error) {
	p, ok := s.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (s *memPlanStore) ListVisible(ctx context.Context) ([]*models.Plan, error) {
	var out []*models.Plan
	for _, p := range s.plans {
		if p.IsVisible && p.IsActive {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

// memPoolStore maps AP MACs to pools.
type memPoolStore struct {
	byAPMAC map[string]*models.Pool
}

func newMemPoolStore() *memPoolStore {
	return &memPoolStore{byAPMAC: map[string]*models.Pool{}}
}

func (s *memPoolStore) GetByAPMAC(ctx context.Context, apMAC string) (*models.Pool, error) {
	p, ok := s.byAPMAC[apMAC]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

// memAuditStore records appended events. Safe for the fire-and-forget
// activation path.
type memAuditStore struct {
	mu     sync.Mutex
	events []*models.AuditEvent
}

func (s *memAuditStore) Append(ctx context.Context, e *models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *memAuditStore) byType(eventType string) []*models.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.AuditEvent
	for _, e := range s.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// fakeSubmitter records controller login submits.
type fakeSubmitter struct {
	mu        sync.Mutex
	loginURLs []string
	codes     []string
	err       error
}

func (f *fakeSubmitter) SubmitLogin(ctx context.Context, loginURL, code, continueURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginURLs = append(f.loginURLs, loginURL)
	f.codes = append(f.codes, code)
	return f.err
}

// fakePayments returns a canned correlation ID or a canned failure.
type fakePayments struct {
	mu     sync.Mutex
	orders []*PaymentOrder
	err    error
}

func (f *fakePayments) InitiatePayment(ctx context.Context, order *PaymentOrder) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.orders = append(f.orders, order)
	return "corr-" + order.Reference, nil
}

// memStateStore is the poll cache without the redis.
type memStateStore struct {
	mu     sync.Mutex
	states map[string]*cache.PurchaseState
}

func newMemStateStore() *memStateStore {
	return &memStateStore{states: map[string]*cache.PurchaseState{}}
}

func (s *memStateStore) Set(ctx context.Context, requestRef string, state *cache.PurchaseState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[requestRef] = state
	return nil
}

func (s *memStateStore) Get(ctx context.Context, requestRef string) (*cache.PurchaseState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[requestRef], nil
}

func (s *memStateStore) drop(requestRef string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, requestRef)
}
