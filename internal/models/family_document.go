package models

import "time"

// FamilyDocument is the secondary aggregate stored in the document store.
// It is created exactly once, when the primary account of a family registers,
// and afterwards only grows by appends keyed by family_id.
type FamilyDocument struct {
	FamilyID       string          `json:"family_id" bson:"family_id"`
	FamilyName     string          `json:"family_name,omitempty" bson:"family_name,omitempty"`
	OwnerAccountID int64           `json:"owner_account_id" bson:"owner_account_id"`
	Parents        []ParentSummary `json:"parents" bson:"parents"`
	Children       []ChildSummary  `json:"children" bson:"children"`
	FamilySettings FamilySettings  `json:"family_settings" bson:"family_settings"`
	CreatedAt      time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" bson:"updated_at"`
}

// ParentSummary is the rendered view of a parent account inside the document
type ParentSummary struct {
	ParentID  string     `json:"parent_id" bson:"parent_id"`
	AccountID int64      `json:"account_id" bson:"account_id"`
	FullName  string     `json:"full_name" bson:"full_name"`
	Email     string     `json:"email" bson:"email"`
	Phone     string     `json:"phone,omitempty" bson:"phone,omitempty"`
	Role      string     `json:"role" bson:"role"`
	Username  string     `json:"username" bson:"username"`
	JoinedAt  *time.Time `json:"joined_at,omitempty" bson:"joined_at,omitempty"`
}

// ChildSummary is the rendered view of a child profile and its devices
type ChildSummary struct {
	ChildID    string             `json:"child_id" bson:"child_id"`
	Name       string             `json:"name" bson:"name"`
	Devices    []Device           `json:"devices" bson:"devices"`
	Monitoring MonitoringSettings `json:"monitoring" bson:"monitoring"`
	AddedAt    time.Time          `json:"added_at" bson:"added_at"`
}

// MonitoringSettings holds the per-child monitoring flags
type MonitoringSettings struct {
	ScreenTime       bool `json:"screen_time" bson:"screen_time"`
	AppRestrictions  bool `json:"app_restrictions" bson:"app_restrictions"`
	LocationTracking bool `json:"location_tracking" bson:"location_tracking"`
	BedtimeMode      bool `json:"bedtime_mode" bson:"bedtime_mode"`
}

// DefaultMonitoring returns the flags applied when a device is first linked
func DefaultMonitoring() MonitoringSettings {
	return MonitoringSettings{
		ScreenTime:       true,
		AppRestrictions:  true,
		LocationTracking: false,
		BedtimeMode:      true,
	}
}

// FamilySettings holds family-level preferences
type FamilySettings struct {
	Timezone                 string `json:"timezone" bson:"timezone"`
	EmergencyOverrideEnabled bool   `json:"emergency_override_enabled" bson:"emergency_override_enabled"`
	DefaultBedtime           string `json:"default_bedtime" bson:"default_bedtime"`
}

// DefaultFamilySettings returns the settings a new family document starts with
func DefaultFamilySettings() FamilySettings {
	return FamilySettings{
		Timezone:                 "America/New_York",
		EmergencyOverrideEnabled: true,
		DefaultBedtime:           "21:00",
	}
}
