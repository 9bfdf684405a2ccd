package model

import "time"

// TimelineEvent is a timeline entry as received, keyed by its upstream id.
type TimelineEvent struct {
	ID          string    `gorm:"primaryKey;size:64"`
	Scope       string    `gorm:"size:64;not null;index"`
	Type        int       `gorm:"not null"`
	HouseholdID int64     `gorm:"index"`
	OccurredAt  time.Time `gorm:"index"`
	ObservedAt  time.Time `gorm:"not null"`
	Payload     string    `gorm:"type:text;not null"`

	// Associations
	Pets []EventPet `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
}

// EventPet records that an event mentions a pet.
type EventPet struct {
	EventID string `gorm:"primaryKey;size:64"`
	PetID   int64  `gorm:"primaryKey;index"`
}

// WatchCursor is the newest timeline entry seen for a scope (hot table).
type WatchCursor struct {
	Scope     string    `gorm:"primaryKey;size:64"`
	SinceID   string    `gorm:"size:64;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
