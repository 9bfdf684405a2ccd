package model

import "time"

// Pet is the last known snapshot of a pet and its position.
type Pet struct {
	ID          int64  `gorm:"primaryKey"` // Upstream ID
	HouseholdID int64  `gorm:"index;not null"`
	Name        string `gorm:"size:128;not null"`
	TagID       int64
	// Where is 1 inside, 2 outside, 0 unknown.
	Where int `gorm:"column:location;not null;default:0"`
	Since time.Time
	// DeviceID is the device that last saw the pet.
	DeviceID  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
