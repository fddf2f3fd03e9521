package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"care4kids/internal/codes"
	"care4kids/internal/models"
	"care4kids/internal/utils"
)

// RegistrationStore is the identity-store surface for child registration rows
type RegistrationStore interface {
	Create(code, childName, familyID string, createdBy int64, expiresAt time.Time, deviceInfo map[string]any) (*models.ChildRegistration, error)
	GetPendingByCode(code string) (*models.ChildRegistration, error)
	CancelPending(childName, familyID string) (int64, error)
	MarkExpired(id int64) (bool, error)
	MarkUsed(id int64, at time.Time, deviceInfo map[string]any) (bool, error)
	ListByCreator(accountID int64) ([]models.ChildRegistration, error)
	ExpireOverdue(now time.Time) (int64, error)
}

// DeviceMetadata is the optional expected-device description captured when a
// registration code is issued, before any real device exists.
type DeviceMetadata struct {
	DeviceType  string
	DeviceModel string
	Notes       string
}

// RegistrationService manages child registration codes and device linking
type RegistrationService struct {
	registrations RegistrationStore
	codegen       CodeSource
	coordinator   *Coordinator
}

// NewRegistrationService creates a new registration service
func NewRegistrationService(registrations RegistrationStore, codegen CodeSource, coordinator *Coordinator) *RegistrationService {
	return &RegistrationService{
		registrations: registrations,
		codegen:       codegen,
		coordinator:   coordinator,
	}
}

// Issue creates a pending registration code for a child profile. A prior
// pending code for the same child name and family is cancelled first, so
// regenerating a code supersedes the old one.
func (s *RegistrationService) Issue(creator *models.Account, childName string, meta DeviceMetadata) (*models.ChildRegistration, error) {
	if err := utils.ValidateName("child_name", childName); err != nil {
		return nil, err
	}
	if creator.FamilyID == "" {
		return nil, models.ValidationError{Field: "family", Message: "creator has no family"}
	}
	childName = strings.TrimSpace(childName)

	cancelled, err := s.registrations.CancelPending(childName, creator.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("failed to supersede prior registration: %w", err)
	}
	if cancelled > 0 {
		log.Printf("Cancelled %d prior pending registration(s) for child %q", cancelled, childName)
	}

	code, err := s.codegen.Generate(codes.KindChildRegistration)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	expiresAt := now.Add(models.RegistrationTTL)
	deviceInfo := map[string]any{
		"device_type":         meta.DeviceType,
		"device_model":        meta.DeviceModel,
		"notes":               meta.Notes,
		"expected_setup_date": expiresAt.Format(time.RFC3339),
	}

	return s.registrations.Create(code, childName, creator.FamilyID, creator.ID, expiresAt, deviceInfo)
}

// Check looks up a pending registration by code without consuming it.
// Overdue codes are expired by the read itself.
func (s *RegistrationService) Check(code string) (*models.ChildRegistration, error) {
	return s.lookupPending(code)
}

// Redeem consumes a registration code from a child device: the registration
// row transitions to used with the real device record merged into its
// device_info, and the child summary is appended to the family document.
// The identity write commits before the document append; an append failure
// surfaces as ErrStoreUnavailable with the used row intact.
func (s *RegistrationService) Redeem(ctx context.Context, code string, device models.Device) (*models.ChildRegistration, error) {
	device.DeviceID = strings.TrimSpace(device.DeviceID)
	if device.DeviceID == "" {
		return nil, models.ValidationError{Field: "device_id", Message: "device_id is required"}
	}

	reg, err := s.lookupPending(code)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	device.LinkedAt = now
	device.Status = "active"

	merged := make(map[string]any, len(reg.DeviceInfo)+7)
	for k, v := range reg.DeviceInfo {
		merged[k] = v
	}
	merged["device_id"] = device.DeviceID
	merged["device_name"] = device.DeviceName
	merged["os"] = device.OS
	merged["model"] = device.Model
	merged["app_version"] = device.AppVersion
	merged["linked_at"] = now.Format(time.RFC3339)
	merged["status"] = device.Status

	used, err := s.registrations.MarkUsed(reg.ID, now, merged)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem registration: %w", err)
	}
	if !used {
		// Lost a race with a concurrent redeem or cancel after the lookup
		return nil, models.ErrNotFound
	}
	reg.Status = models.RegistrationUsed
	reg.UsedAt = &now
	reg.DeviceInfo = merged

	child := models.ChildSummary{
		// The registration row id keys the append, so a retried redeem
		// converges instead of duplicating the child.
		ChildID:    strconv.FormatInt(reg.ID, 10),
		Name:       reg.ChildName,
		Devices:    []models.Device{device},
		Monitoring: models.DefaultMonitoring(),
		AddedAt:    now,
	}
	if err := s.coordinator.AppendChild(ctx, reg.FamilyID, child); err != nil {
		return nil, err
	}

	return reg, nil
}

// ListByCreator returns all registration codes ever issued by an account
func (s *RegistrationService) ListByCreator(accountID int64) ([]models.ChildRegistration, error) {
	return s.registrations.ListByCreator(accountID)
}

// ExpireOverdue sweeps pending registrations past their TTL
func (s *RegistrationService) ExpireOverdue() (int64, error) {
	return s.registrations.ExpireOverdue(time.Now())
}

func (s *RegistrationService) lookupPending(code string) (*models.ChildRegistration, error) {
	code = strings.TrimSpace(code)
	if !codes.IsWellFormed(code) {
		return nil, models.ValidationError{Field: "code", Message: "code must be exactly 6 digits"}
	}

	reg, err := s.registrations.GetPendingByCode(code)
	if err != nil {
		return nil, fmt.Errorf("failed to look up registration: %w", err)
	}
	if reg == nil {
		return nil, models.ErrNotFound
	}

	if reg.IsExpired() {
		transitioned, err := s.registrations.MarkExpired(reg.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to expire registration: %w", err)
		}
		if !transitioned {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("%w: registration code %s", models.ErrExpired, code)
	}

	return reg, nil
}
