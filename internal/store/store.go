package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sureflap-monitor/internal/model"
)

// DefaultEventLimit caps RecentEvents when no limit is given.
const DefaultEventLimit = 50

// Store defines the interface for all database operations.
type Store interface {
	SubscriptionStore

	DB() *gorm.DB
	UpsertHouseholds(ctx context.Context, items []HouseholdItem) error
	UpsertPets(ctx context.Context, items []PetItem) error
	ListPets(ctx context.Context) ([]model.Pet, error)
	GetPet(ctx context.Context, id int64) (*model.Pet, error)
	SaveEvents(ctx context.Context, scope string, observedAt time.Time, items []EventItem) ([]EventItem, error)
	RecentEvents(ctx context.Context, petID int64, limit int) ([]model.TimelineEvent, error)
	Cursor(ctx context.Context, scope string) (string, error)
	SetCursor(ctx context.Context, scope, sinceID string) error
}

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying connection for handlers that work on
// subscriptions directly.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// SaveEvents stores the entries not stored before and returns them, in the
// order given. Entries already present are skipped.
func (s *gormStore) SaveEvents(ctx context.Context, scope string, observedAt time.Time, items []EventItem) ([]EventItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}

	var inserted []EventItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []string
		if err := tx.Model(&model.TimelineEvent{}).Where("id IN ?", ids).Pluck("id", &existing).Error; err != nil {
			return fmt.Errorf("failed to look up stored events: %w", err)
		}
		seen := make(map[string]bool, len(existing)+len(items))
		for _, id := range existing {
			seen[id] = true
		}

		for _, item := range items {
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true

			event := prepareEvent(item, scope, observedAt)
			if err := tx.Create(&event).Error; err != nil {
				return fmt.Errorf("failed to store event %s: %w", item.ID, err)
			}
			inserted = append(inserted, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(inserted) > 0 {
		slog.Debug("Stored timeline events", "scope", scope, "new", len(inserted), "skipped", len(items)-len(inserted))
	}
	return inserted, nil
}

func prepareEvent(item EventItem, scope string, observedAt time.Time) model.TimelineEvent {
	event := model.TimelineEvent{
		ID:          item.ID,
		Scope:       scope,
		Type:        item.Type,
		HouseholdID: item.HouseholdID,
		OccurredAt:  item.OccurredAt,
		ObservedAt:  observedAt,
		Payload:     string(item.Payload),
	}
	petSeen := make(map[int64]bool, len(item.PetIDs))
	for _, petID := range item.PetIDs {
		if petSeen[petID] {
			continue
		}
		petSeen[petID] = true
		event.Pets = append(event.Pets, model.EventPet{EventID: item.ID, PetID: petID})
	}
	return event
}

// RecentEvents returns stored events newest first. A positive petID limits
// the result to events mentioning that pet.
func (s *gormStore) RecentEvents(ctx context.Context, petID int64, limit int) ([]model.TimelineEvent, error) {
	if limit <= 0 {
		limit = DefaultEventLimit
	}

	q := s.db.WithContext(ctx).Model(&model.TimelineEvent{})
	if petID > 0 {
		q = q.Where("id IN (?)", s.db.Model(&model.EventPet{}).Select("event_id").Where("pet_id = ?", petID))
	}

	var events []model.TimelineEvent
	if err := q.Preload("Pets").
		Order("occurred_at DESC").
		Order("observed_at DESC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return events, nil
}

// Cursor returns the newest entry id stored for scope, or "" if none.
func (s *gormStore) Cursor(ctx context.Context, scope string) (string, error) {
	var cursor model.WatchCursor
	err := s.db.WithContext(ctx).Where("scope = ?", scope).Take(&cursor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load cursor for %s: %w", scope, err)
	}
	return cursor.SinceID, nil
}

// SetCursor records the newest entry id seen for scope.
func (s *gormStore) SetCursor(ctx context.Context, scope, sinceID string) error {
	cursor := model.WatchCursor{Scope: scope, SinceID: sinceID, UpdatedAt: time.Now()}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope"}},
		DoUpdates: clause.AssignmentColumns([]string{"since_id", "updated_at"}),
	}).Create(&cursor).Error; err != nil {
		return fmt.Errorf("failed to save cursor for %s: %w", scope, err)
	}
	return nil
}

// UpsertHouseholds inserts or updates household metadata.
func (s *gormStore) UpsertHouseholds(ctx context.Context, items []HouseholdItem) error {
	if len(items) == 0 {
		return nil
	}
	households := make([]model.Household, 0, len(items))
	for _, item := range items {
		households = append(households, model.Household{ID: item.ID, Name: item.Name, Timezone: item.Timezone})
	}

	slog.Debug("Batch upserting households", "count", len(households))
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "timezone", "updated_at"}),
	}).Create(&households).Error
}

// UpsertPets inserts or updates pet snapshots, skipping pets whose stored
// snapshot is unchanged.
func (s *gormStore) UpsertPets(ctx context.Context, items []PetItem) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	existingPets, err := s.fetchPets(ctx, ids)
	if err != nil {
		slog.Warn("Could not pre-fetch pets", "error", err)
		existingPets = make(map[int64]model.Pet)
	}

	var petsToUpsert []model.Pet
	for _, item := range items {
		pet, needsUpsert := preparePet(item, existingPets)
		if needsUpsert {
			petsToUpsert = append(petsToUpsert, pet)
		}
	}

	if len(petsToUpsert) == 0 {
		return nil
	}
	slog.Debug("Batch upserting pets", "count", len(petsToUpsert))
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return batchUpsertPets(tx, petsToUpsert)
	})
}

// ListPets returns every stored pet ordered by name.
func (s *gormStore) ListPets(ctx context.Context) ([]model.Pet, error) {
	var pets []model.Pet
	if err := s.db.WithContext(ctx).Order("name").Order("id").Find(&pets).Error; err != nil {
		return nil, fmt.Errorf("failed to load pets: %w", err)
	}
	return pets, nil
}

// GetPet returns a stored pet or ErrNotFound.
func (s *gormStore) GetPet(ctx context.Context, id int64) (*model.Pet, error) {
	var pet model.Pet
	err := s.db.WithContext(ctx).First(&pet, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pet %d: %w", id, err)
	}
	return &pet, nil
}

func (s *gormStore) fetchPets(ctx context.Context, ids []int64) (map[int64]model.Pet, error) {
	var pets []model.Pet
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&pets).Error; err != nil {
		return nil, err
	}
	petMap := make(map[int64]model.Pet, len(pets))
	for _, p := range pets {
		petMap[p.ID] = p
	}
	return petMap, nil
}

func preparePet(item PetItem, existingPets map[int64]model.Pet) (model.Pet, bool) {
	newPet := model.Pet{
		ID:          item.ID,
		HouseholdID: item.HouseholdID,
		Name:        item.Name,
		TagID:       item.TagID,
		Where:       item.Where,
		Since:       item.Since,
		DeviceID:    item.DeviceID,
	}

	if oldPet, exists := existingPets[newPet.ID]; exists {
		if oldPet.HouseholdID == newPet.HouseholdID &&
			oldPet.Name == newPet.Name &&
			oldPet.TagID == newPet.TagID &&
			oldPet.Where == newPet.Where &&
			oldPet.Since.Equal(newPet.Since) &&
			oldPet.DeviceID == newPet.DeviceID {
			return newPet, false
		}
	}
	return newPet, true
}

func batchUpsertPets(tx *gorm.DB, pets []model.Pet) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"household_id", "name", "tag_id", "location", "since", "device_id", "updated_at"}),
	}).Create(&pets).Error
}
