package store

import "time"

// EventItem is a timeline entry ready to be stored.
type EventItem struct {
	ID          string
	Type        int
	HouseholdID int64
	OccurredAt  time.Time
	PetIDs      []int64
	Payload     []byte
}

// PetItem is a pet snapshot as fetched from the cloud API.
type PetItem struct {
	ID          int64
	HouseholdID int64
	Name        string
	TagID       int64
	Where       int
	Since       time.Time
	DeviceID    int64
}

// HouseholdItem is a household as fetched from the cloud API.
type HouseholdItem struct {
	ID       int64
	Name     string
	Timezone string
}
