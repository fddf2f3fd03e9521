package service

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"care4kids/internal/models"
)

type registrationFixture struct {
	svc           *RegistrationService
	registrations *fakeRegistrations
	store         *fakeDocStore
	parent        *models.Account
}

func newRegistrationFixture(t *testing.T) *registrationFixture {
	t.Helper()
	registrations := newFakeRegistrations()
	accounts := newFakeAccounts()
	store := newFakeDocStore()
	coord := NewCoordinator(store, 3, time.Millisecond)

	parent, err := accounts.Create("jane", "jane@example.com", "Jane Doe", "hash", "", models.RolePrimary)
	if err != nil {
		t.Fatalf("failed to create parent: %v", err)
	}
	familyID, err := coord.CreateFamily(context.Background(), parent)
	if err != nil {
		t.Fatalf("failed to create family: %v", err)
	}
	parent.FamilyID = familyID

	return &registrationFixture{
		svc:           NewRegistrationService(registrations, &fixedCodes{}, coord),
		registrations: registrations,
		store:         store,
		parent:        parent,
	}
}

func TestRegistrationIssue(t *testing.T) {
	fx := newRegistrationFixture(t)

	reg, err := fx.svc.Issue(fx.parent, "Timmy", DeviceMetadata{DeviceType: "tablet", DeviceModel: "iPad", Notes: "birthday gift"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if len(reg.Code) != 6 {
		t.Errorf("code length = %d, want 6", len(reg.Code))
	}
	if reg.Status != models.RegistrationPending {
		t.Errorf("status = %q, want pending", reg.Status)
	}

	remaining := time.Until(reg.ExpiresAt)
	if remaining < 23*time.Hour || remaining > 25*time.Hour {
		t.Errorf("expiry %s not near the 24 hour TTL", remaining)
	}

	if reg.DeviceInfo["device_type"] != "tablet" || reg.DeviceInfo["device_model"] != "iPad" {
		t.Errorf("unexpected device_info: %v", reg.DeviceInfo)
	}
	if _, ok := reg.DeviceInfo["expected_setup_date"]; !ok {
		t.Error("expected expected_setup_date in device_info")
	}
}

func TestRegistrationIssueValidation(t *testing.T) {
	fx := newRegistrationFixture(t)

	if _, err := fx.svc.Issue(fx.parent, "", DeviceMetadata{}); !models.IsValidation(err) {
		t.Errorf("empty child name: expected validation error, got %v", err)
	}

	noFamily := &models.Account{ID: 99, Email: "solo@example.com"}
	if _, err := fx.svc.Issue(noFamily, "Timmy", DeviceMetadata{}); !models.IsValidation(err) {
		t.Errorf("no family: expected validation error, got %v", err)
	}
}

func TestRegistrationReissueSupersedes(t *testing.T) {
	fx := newRegistrationFixture(t)

	first, err := fx.svc.Issue(fx.parent, "Timmy", DeviceMetadata{})
	if err != nil {
		t.Fatalf("first issue failed: %v", err)
	}
	second, err := fx.svc.Issue(fx.parent, "Timmy", DeviceMetadata{})
	if err != nil {
		t.Fatalf("second issue failed: %v", err)
	}

	if got := fx.registrations.get(first.ID); got.Status != models.RegistrationCancelled {
		t.Errorf("first registration status = %q, want cancelled", got.Status)
	}
	if _, err := fx.svc.Check(first.Code); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("superseded code: expected ErrNotFound, got %v", err)
	}
	if _, err := fx.svc.Check(second.Code); err != nil {
		t.Errorf("live code: expected success, got %v", err)
	}
}

func TestRegistrationRedeem(t *testing.T) {
	fx := newRegistrationFixture(t)

	reg, err := fx.svc.Issue(fx.parent, "Timmy", DeviceMetadata{DeviceType: "tablet"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	device := models.Device{
		DeviceID:   "dev-abc-123",
		DeviceName: "Timmy's iPad",
		OS:         "iOS 17",
		Model:      "iPad Air",
		AppVersion: "1.4.0",
	}
	redeemed, err := fx.svc.Redeem(context.Background(), reg.Code, device)
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if redeemed.Status != models.RegistrationUsed || redeemed.UsedAt == nil {
		t.Fatalf("expected used registration, got %+v", redeemed)
	}
	if redeemed.DeviceInfo["device_id"] != "dev-abc-123" {
		t.Errorf("device_id not merged: %v", redeemed.DeviceInfo)
	}
	if redeemed.DeviceInfo["device_type"] != "tablet" {
		t.Errorf("issue-time metadata lost on merge: %v", redeemed.DeviceInfo)
	}
	if redeemed.DeviceInfo["status"] != "active" {
		t.Errorf("status = %v, want active", redeemed.DeviceInfo["status"])
	}

	doc, _ := fx.store.Get(context.Background(), fx.parent.FamilyID)
	if len(doc.Children) != 1 {
		t.Fatalf("expected 1 child in family document, got %d", len(doc.Children))
	}
	child := doc.Children[0]
	if child.ChildID != strconv.FormatInt(reg.ID, 10) {
		t.Errorf("child_id = %q, want registration id", child.ChildID)
	}
	if child.Name != "Timmy" {
		t.Errorf("child name = %q", child.Name)
	}
	if len(child.Devices) != 1 || child.Devices[0].DeviceID != "dev-abc-123" {
		t.Errorf("unexpected devices: %+v", child.Devices)
	}
	if child.Devices[0].Status != "active" || child.Devices[0].LinkedAt.IsZero() {
		t.Errorf("device not activated: %+v", child.Devices[0])
	}
	if !child.Monitoring.ScreenTime || !child.Monitoring.AppRestrictions || !child.Monitoring.BedtimeMode {
		t.Errorf("expected default monitoring flags on, got %+v", child.Monitoring)
	}
	if child.Monitoring.LocationTracking {
		t.Error("location tracking should default off")
	}

	// The code is consumed
	if _, err := fx.svc.Redeem(context.Background(), reg.Code, device); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second redeem: expected ErrNotFound, got %v", err)
	}
}

func TestRegistrationRedeemValidation(t *testing.T) {
	fx := newRegistrationFixture(t)

	if _, err := fx.svc.Redeem(context.Background(), "123456", models.Device{}); !models.IsValidation(err) {
		t.Errorf("missing device_id: expected validation error, got %v", err)
	}
	if _, err := fx.svc.Redeem(context.Background(), "12ab56", models.Device{DeviceID: "d1"}); !models.IsValidation(err) {
		t.Errorf("malformed code: expected validation error, got %v", err)
	}
	if _, err := fx.svc.Redeem(context.Background(), "999999", models.Device{DeviceID: "d1"}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown code: expected ErrNotFound, got %v", err)
	}
}

func TestRegistrationRedeemExpiredCode(t *testing.T) {
	fx := newRegistrationFixture(t)

	reg, err := fx.registrations.Create("424242", "Timmy", fx.parent.FamilyID, fx.parent.ID, time.Now().Add(-time.Minute), nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = fx.svc.Redeem(context.Background(), "424242", models.Device{DeviceID: "d1"})
	if !errors.Is(err, models.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if got := fx.registrations.get(reg.ID); got.Status != models.RegistrationExpired {
		t.Errorf("status = %q, want expired", got.Status)
	}

	// Second attempt sees no pending row
	_, err = fx.svc.Redeem(context.Background(), "424242", models.Device{DeviceID: "d1"})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on retry, got %v", err)
	}
}

func TestRegistrationRedeemStoreDown(t *testing.T) {
	fx := newRegistrationFixture(t)

	reg, err := fx.svc.Issue(fx.parent, "Timmy", DeviceMetadata{})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	fx.store.failNext(100)
	_, err = fx.svc.Redeem(context.Background(), reg.Code, models.Device{DeviceID: "d1"})
	if !errors.Is(err, models.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	// The identity transition holds; a later retry of the append converges
	if got := fx.registrations.get(reg.ID); got.Status != models.RegistrationUsed {
		t.Errorf("registration status = %q, want used", got.Status)
	}
}

func TestRegistrationExpireOverdue(t *testing.T) {
	fx := newRegistrationFixture(t)

	if _, err := fx.registrations.Create("111111", "A", fx.parent.FamilyID, fx.parent.ID, time.Now().Add(-time.Hour), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := fx.registrations.Create("222222", "B", fx.parent.FamilyID, fx.parent.ID, time.Now().Add(time.Hour), nil); err != nil {
		t.Fatal(err)
	}

	n, err := fx.svc.ExpireOverdue()
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}
}
