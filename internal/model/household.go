package model

import "time"

// Household represents a Sure Petcare household.
type Household struct {
	ID        int64     `gorm:"primaryKey"` // Upstream ID
	Name      string    `gorm:"size:128;not null"`
	Timezone  string    `gorm:"size:64"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	// Associations
	Pets []Pet `gorm:"foreignKey:HouseholdID"`
}
