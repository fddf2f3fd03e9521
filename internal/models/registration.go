package models

import "time"

// Child registration statuses
const (
	RegistrationPending   = "pending"
	RegistrationUsed      = "used"
	RegistrationExpired   = "expired"
	RegistrationCancelled = "cancelled"
)

// RegistrationTTL is how long a child registration code stays redeemable
const RegistrationTTL = 24 * time.Hour

// ChildRegistration represents a pending offer binding a device to a child profile
type ChildRegistration struct {
	ID         int64
	Code       string
	ChildName  string
	FamilyID   string
	CreatedBy  int64
	Status     string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	UsedAt     *time.Time
	DeviceInfo map[string]any // open attribute map, stored as JSON
}

// IsExpired reports whether a still-pending registration is past its TTL
func (r *ChildRegistration) IsExpired() bool {
	return r.Status == RegistrationPending && time.Now().After(r.ExpiresAt)
}

// Device is the record merged into DeviceInfo when a code is redeemed
type Device struct {
	DeviceID   string    `json:"device_id" bson:"device_id"`
	DeviceName string    `json:"device_name,omitempty" bson:"device_name,omitempty"`
	OS         string    `json:"os,omitempty" bson:"os,omitempty"`
	Model      string    `json:"model,omitempty" bson:"model,omitempty"`
	AppVersion string    `json:"app_version,omitempty" bson:"app_version,omitempty"`
	LinkedAt   time.Time `json:"linked_at" bson:"linked_at"`
	Status     string    `json:"status" bson:"status"`
}
