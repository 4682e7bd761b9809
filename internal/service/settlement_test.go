package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"vlessbot/internal/models"
	"vlessbot/internal/payment"
)

type fakeGateway struct {
	status string
	err    error
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) CreateInvoice(ctx context.Context, amountRub int, description, payload string) (*payment.InvoiceResult, error) {
	panic("settlement must not create invoices")
}

func (g *fakeGateway) InvoiceStatus(ctx context.Context, invoiceID int64) (string, error) {
	return g.status, g.err
}

type fakeStore struct {
	rows map[string]*models.PendingPayment
}

func (s *fakeStore) FindByID(paymentID string) (*models.PendingPayment, error) {
	row, ok := s.rows[paymentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *row
	return &copied, nil
}

func (s *fakeStore) Claim(paymentID string, at time.Time) (bool, error) {
	row, ok := s.rows[paymentID]
	if !ok || row.ConsumedAt != nil {
		return false, nil
	}
	row.ConsumedAt = &at
	return true, nil
}

type fakeProvisioner struct {
	created  int
	renewed  int
	deltas   int
	resets   int
	lastCall PaymentIntent
	err      error
}

func (p *fakeProvisioner) Create(ctx context.Context, userTgID, serverID string, durationDays, trafficGB int) (*ProvisionResult, error) {
	p.created++
	p.lastCall = PaymentIntent{Kind: IntentNewSubscription, ServerID: serverID, DurationDays: durationDays, TrafficGB: trafficGB}
	if p.err != nil {
		return nil, p.err
	}
	return &ProvisionResult{
		Subscription: &models.Subscription{ID: "new-sub", UserTgID: userTgID},
		VlessLink:    "vless://new-sub@host:443",
	}, nil
}

func (p *fakeProvisioner) Renew(ctx context.Context, userTgID, subscriptionID string, extraDays int) error {
	p.renewed++
	p.lastCall = PaymentIntent{Kind: IntentRenewal, SubscriptionID: subscriptionID, ExtraDays: extraDays}
	return p.err
}

func (p *fakeProvisioner) ApplyTrafficDelta(ctx context.Context, userTgID, subscriptionID string, deltaGB int) error {
	p.deltas++
	p.lastCall = PaymentIntent{Kind: IntentTrafficAdd, SubscriptionID: subscriptionID, DeltaGB: deltaGB}
	return p.err
}

func (p *fakeProvisioner) ResetTraffic(ctx context.Context, userTgID, subscriptionID string) error {
	p.resets++
	p.lastCall = PaymentIntent{Kind: IntentTrafficReset, SubscriptionID: subscriptionID}
	return p.err
}

type fakeDiscounts struct {
	cleared []string
}

func (d *fakeDiscounts) ClearPendingDiscount(tgID string) error {
	d.cleared = append(d.cleared, tgID)
	return nil
}

type openGuard struct{}

func (openGuard) Acquire(string) bool { return true }
func (openGuard) Release(string)      {}

type closedGuard struct{}

func (closedGuard) Acquire(string) bool { return false }
func (closedGuard) Release(string)      {}

func pendingRow(t *testing.T, intent PaymentIntent) *models.PendingPayment {
	t.Helper()
	payload, err := EncodeIntent(intent)
	if err != nil {
		t.Fatal(err)
	}
	return &models.PendingPayment{
		PaymentID:    "pay-1",
		BotInvoiceID: "12345",
		Payload:      payload,
		CreatedAt:    time.Now().UTC(),
		UserID:       "42",
	}
}

func newTestSettlement(gw *fakeGateway, store *fakeStore, prov *fakeProvisioner, disc *fakeDiscounts, g SubmitGuard) *SettlementService {
	return NewSettlementService(gw, store, prov, disc, g, zap.NewNop())
}

func TestSettlePaidNewSubscription(t *testing.T) {
	intent := PaymentIntent{Kind: IntentNewSubscription, ServerID: "de-1", DurationDays: 30, TrafficGB: 100}
	store := &fakeStore{rows: map[string]*models.PendingPayment{"pay-1": pendingRow(t, intent)}}
	prov := &fakeProvisioner{}
	disc := &fakeDiscounts{}
	svc := newTestSettlement(&fakeGateway{status: "paid"}, store, prov, disc, openGuard{})

	result, err := svc.Settle(context.Background(), "pay-1")
	if err != nil {
		t.Fatalf("Settle() error = %v", err)
	}
	if prov.created != 1 {
		t.Errorf("created = %d, want 1", prov.created)
	}
	if result.Provision == nil || result.Provision.Subscription.ID != "new-sub" {
		t.Errorf("result.Provision = %+v, want new-sub", result.Provision)
	}
	if len(disc.cleared) != 1 || disc.cleared[0] != "42" {
		t.Errorf("discount cleared for %v, want [42]", disc.cleared)
	}
	if store.rows["pay-1"].ConsumedAt == nil {
		t.Error("payment row not claimed")
	}
}

func TestSettleReplayIsRejected(t *testing.T) {
	intent := PaymentIntent{Kind: IntentRenewal, SubscriptionID: "sub-1", ExtraDays: 90}
	store := &fakeStore{rows: map[string]*models.PendingPayment{"pay-1": pendingRow(t, intent)}}
	prov := &fakeProvisioner{}
	svc := newTestSettlement(&fakeGateway{status: "paid"}, store, prov, &fakeDiscounts{}, openGuard{})

	if _, err := svc.Settle(context.Background(), "pay-1"); err != nil {
		t.Fatalf("first Settle() error = %v", err)
	}
	_, err := svc.Settle(context.Background(), "pay-1")
	if !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("second Settle() error = %v, want ErrAlreadySettled", err)
	}
	if prov.renewed != 1 {
		t.Errorf("renewed = %d, want exactly 1 despite replay", prov.renewed)
	}
}

func TestSettleUnpaidInvoice(t *testing.T) {
	intent := PaymentIntent{Kind: IntentTrafficReset, SubscriptionID: "sub-1"}
	store := &fakeStore{rows: map[string]*models.PendingPayment{"pay-1": pendingRow(t, intent)}}
	prov := &fakeProvisioner{}
	svc := newTestSettlement(&fakeGateway{status: "active"}, store, prov, &fakeDiscounts{}, openGuard{})

	_, err := svc.Settle(context.Background(), "pay-1")
	if !errors.Is(err, ErrNotPaid) {
		t.Fatalf("Settle() error = %v, want ErrNotPaid", err)
	}
	if prov.resets != 0 {
		t.Errorf("resets = %d, want 0 for unpaid invoice", prov.resets)
	}
	if store.rows["pay-1"].ConsumedAt != nil {
		t.Error("unpaid invoice must not be claimed")
	}
}

func TestSettleExpiredInvoice(t *testing.T) {
	intent := PaymentIntent{Kind: IntentTrafficAdd, SubscriptionID: "sub-1", DeltaGB: 100}
	store := &fakeStore{rows: map[string]*models.PendingPayment{"pay-1": pendingRow(t, intent)}}
	svc := newTestSettlement(&fakeGateway{status: "expired"}, store, &fakeProvisioner{}, &fakeDiscounts{}, openGuard{})

	_, err := svc.Settle(context.Background(), "pay-1")
	if !errors.Is(err, ErrInvoiceExpired) {
		t.Fatalf("Settle() error = %v, want ErrInvoiceExpired", err)
	}
}

func TestSettleUnknownPayment(t *testing.T) {
	svc := newTestSettlement(&fakeGateway{status: "paid"}, &fakeStore{rows: map[string]*models.PendingPayment{}}, &fakeProvisioner{}, &fakeDiscounts{}, openGuard{})

	_, err := svc.Settle(context.Background(), "missing")
	if !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("Settle() error = %v, want ErrPaymentNotFound", err)
	}
}

func TestSettleGuardSuppressesDuplicateSubmission(t *testing.T) {
	intent := PaymentIntent{Kind: IntentTrafficReset, SubscriptionID: "sub-1"}
	store := &fakeStore{rows: map[string]*models.PendingPayment{"pay-1": pendingRow(t, intent)}}
	svc := newTestSettlement(&fakeGateway{status: "paid"}, store, &fakeProvisioner{}, &fakeDiscounts{}, closedGuard{})

	_, err := svc.Settle(context.Background(), "pay-1")
	if !errors.Is(err, ErrCheckInProgress) {
		t.Fatalf("Settle() error = %v, want ErrCheckInProgress while guard held", err)
	}
	if store.rows["pay-1"].ConsumedAt != nil {
		t.Error("guard-suppressed check must not claim the payment")
	}
}

func TestSettleClaimsBeforeDispatch(t *testing.T) {
	intent := PaymentIntent{Kind: IntentRenewal, SubscriptionID: "sub-1", ExtraDays: 30}
	store := &fakeStore{rows: map[string]*models.PendingPayment{"pay-1": pendingRow(t, intent)}}
	prov := &fakeProvisioner{err: errors.New("panel down")}
	svc := newTestSettlement(&fakeGateway{status: "paid"}, store, prov, &fakeDiscounts{}, openGuard{})

	if _, err := svc.Settle(context.Background(), "pay-1"); err == nil {
		t.Fatal("Settle() succeeded, want dispatch error")
	}
	// The claim sticks even though dispatch failed: divergence is logged
	// for manual reconciliation, never re-executed.
	if store.rows["pay-1"].ConsumedAt == nil {
		t.Error("payment row not claimed before dispatch")
	}
	_, err := svc.Settle(context.Background(), "pay-1")
	if !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("retry after failed dispatch error = %v, want ErrAlreadySettled", err)
	}
}
