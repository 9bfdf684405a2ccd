package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sureflap-monitor/internal/model"
)

const subscriptionPetTable = "subscription_pet_mapping"

// SubscriptionStore persists browser push subscriptions and the pets each
// one follows.
type SubscriptionStore interface {
	SaveSubscription(ctx context.Context, sub model.PushSubscription, petIDs []int64) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, []int64, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForPet(ctx context.Context, petID int64) ([]model.PushSubscription, error)
}

// SaveSubscription creates or replaces a subscription. The followed pets are
// replaced by petIDs; ids of pets that are not stored are ignored.
func (s *gormStore) SaveSubscription(ctx context.Context, sub model.PushSubscription, petIDs []int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(&sub).Error; err != nil {
			return fmt.Errorf("failed to save subscription: %w", err)
		}

		var pets []model.Pet
		if len(petIDs) > 0 {
			if err := tx.Find(&pets, petIDs).Error; err != nil {
				return fmt.Errorf("failed to load pets: %w", err)
			}
		}

		if err := tx.Model(&sub).Association("Pets").Replace(&pets); err != nil {
			return fmt.Errorf("failed to map subscription to pets: %w", err)
		}
		return nil
	})
}

// GetSubscription returns a subscription and the ids of the pets it follows,
// or ErrNotFound.
func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, []int64, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).Preload("Pets").First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	petIDs := make([]int64, len(sub.Pets))
	for i, pet := range sub.Pets {
		petIDs[i] = pet.ID
	}
	return &sub, petIDs, nil
}

// DeleteSubscription removes a subscription and its pet mappings. Deleting
// an unknown endpoint is not an error.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM "+subscriptionPetTable+" WHERE push_subscription_endpoint = ?", endpoint).Error; err != nil {
			return fmt.Errorf("failed to unmap subscription: %w", err)
		}
		if err := tx.Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
			return fmt.Errorf("failed to delete subscription: %w", err)
		}
		return nil
	})
}

// SubscriptionsForPet returns the subscriptions following a pet.
func (s *gormStore) SubscriptionsForPet(ctx context.Context, petID int64) ([]model.PushSubscription, error) {
	var subscriptions []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN "+subscriptionPetTable+" spm ON spm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("spm.pet_id = ?", petID).
		Find(&subscriptions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions for pet %d: %w", petID, err)
	}
	return subscriptions, nil
}
