// Package monitor follows a pet door timeline and keeps the local store and
// subscribers up to date.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SherClockHolmes/webpush-go"

	"sureflap-monitor/config"
	"sureflap-monitor/internal/notification"
	"sureflap-monitor/internal/store"
	"sureflap-monitor/internal/surehub"
)

// Service polls the configured timeline, stores new entries and notifies
// subscribers of pets that moved.
type Service struct {
	cfg        *config.Config
	store      store.Store
	client     *surehub.Client
	workerPool *notification.WorkerPool
	logger     *slog.Logger

	mu      sync.Mutex
	watcher *surehub.Watcher
}

// NewService creates a monitor for the timeline selected by cfg.Watcher.
func NewService(cfg *config.Config, st store.Store, client *surehub.Client) *Service {
	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	return &Service{
		cfg:        cfg,
		store:      st,
		client:     client,
		workerPool: notification.NewWorkerPool(cfg.WorkerPool.Size, st, &webpushOptions),
		logger:     slog.Default().With("component", "monitor", "scope", cfg.Watcher.ScopeKey()),
	}
}

// Run polls until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Watcher.Enabled {
		s.logger.Info("Watcher is disabled. Not starting.")
		return
	}
	s.logger.Info("Starting monitor service", "interval", s.cfg.Watcher.Interval)

	s.workerPool.Start(ctx)

	if err := s.SyncPets(ctx); err != nil {
		s.logger.Error("Initial pet sync failed", "error", err)
	}
	s.poll(ctx)

	timer := time.NewTimer(s.cfg.Watcher.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Monitor service shutting down.")
			return
		case <-timer.C:
			s.poll(ctx)
			timer.Reset(s.cfg.Watcher.Interval)
		}
	}
}

func (s *Service) poll(ctx context.Context) {
	if err := s.PollOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("Poll failed", "error", err)
	}
}

// Resume builds the watcher, starting after the last entry stored for the
// configured scope.
func (s *Service) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resume(ctx)
}

func (s *Service) resume(ctx context.Context) error {
	scope := s.cfg.Watcher.ScopeKey()
	since, err := s.store.Cursor(ctx, scope)
	if err != nil {
		return err
	}

	opts := []surehub.WatcherOption{surehub.WithPageSize(s.cfg.Watcher.PageSize)}
	if since != "" {
		opts = append(opts, surehub.WithSince(surehub.EntryID(since)))
	}

	var w *surehub.Watcher
	switch s.cfg.Watcher.Scope {
	case config.ScopeHousehold:
		h, err := s.client.Household(ctx, s.cfg.Watcher.HouseholdID)
		if err != nil {
			return fmt.Errorf("failed to load household %d: %w", s.cfg.Watcher.HouseholdID, err)
		}
		w, err = h.Timeline(opts...)
		if err != nil {
			return err
		}
	case config.ScopePet:
		p, err := s.client.Pet(ctx, s.cfg.Watcher.PetID)
		if err != nil {
			return fmt.Errorf("failed to load pet %d: %w", s.cfg.Watcher.PetID, err)
		}
		w, err = p.Timeline(opts...)
		if err != nil {
			return err
		}
	default:
		w, err = s.client.Timeline(opts...)
		if err != nil {
			return err
		}
	}

	s.logger.Info("Watching timeline", "path", w.Path(), "since", since)
	s.watcher = w
	return nil
}

// SyncPets stores the households and pets visible to the account.
func (s *Service) SyncPets(ctx context.Context) error {
	households, err := s.client.Households(ctx)
	if err != nil {
		return fmt.Errorf("failed to list households: %w", err)
	}
	householdItems := make([]store.HouseholdItem, 0, len(households))
	for _, h := range households {
		householdItems = append(householdItems, householdItem(h))
	}
	if err := s.store.UpsertHouseholds(ctx, householdItems); err != nil {
		return fmt.Errorf("failed to store households: %w", err)
	}

	pets, err := s.client.Pets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pets: %w", err)
	}
	petItems := make([]store.PetItem, 0, len(pets))
	for _, p := range pets {
		petItems = append(petItems, petItem(p))
	}
	if err := s.store.UpsertPets(ctx, petItems); err != nil {
		return fmt.Errorf("failed to store pets: %w", err)
	}

	s.logger.Info("Synced pets", "households", len(householdItems), "pets", len(petItems))
	return nil
}

// PollOnce fetches new timeline entries, stores them and advances the stored
// cursor. Pets mentioned by new movement entries are refreshed and their
// subscribers notified.
func (s *Service) PollOnce(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.watcher == nil {
		if err := s.resume(ctx); err != nil {
			return err
		}
	}
	scope := s.cfg.Watcher.ScopeKey()
	now := time.Now().UTC()

	prev := s.watcher.Since()
	entries, err := s.watcher.Poll(ctx)
	if err != nil {
		return fmt.Errorf("failed to poll timeline: %w", err)
	}
	if len(entries) == 0 {
		s.logger.Debug("No new timeline entries")
		return nil
	}

	items := make([]store.EventItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, eventItem(e))
	}

	inserted, err := s.store.SaveEvents(ctx, scope, now, items)
	if err != nil {
		// Rewind so the same entries are fetched again next time.
		s.rewind(prev)
		return fmt.Errorf("failed to store timeline entries: %w", err)
	}

	if err := s.store.SetCursor(ctx, scope, string(s.watcher.Since())); err != nil {
		s.logger.Warn("Failed to save cursor", "error", err)
	}
	s.logger.Info("Stored timeline entries", "received", len(entries), "new", len(inserted), "since", s.watcher.Since())

	s.notifyMoves(ctx, movedPets(entries, inserted))
	return nil
}

func (s *Service) rewind(prev surehub.EntryID) {
	opts := []surehub.WatcherOption{surehub.WithPageSize(s.cfg.Watcher.PageSize)}
	if prev != "" {
		opts = append(opts, surehub.WithSince(prev))
	}
	s.watcher = surehub.NewWatcher(s.client.Session(), s.watcher.Path(), opts...)
}

func (s *Service) notifyMoves(ctx context.Context, petIDs []int64) {
	if len(petIDs) == 0 {
		return
	}
	s.logger.Info("Dispatching notifications", "pets", len(petIDs))
	for _, id := range petIDs {
		p, err := s.client.Pet(ctx, id)
		if err != nil {
			s.logger.Warn("Failed to refresh pet", "pet_id", id, "error", err)
		} else if err := s.store.UpsertPets(ctx, []store.PetItem{petItem(p)}); err != nil {
			s.logger.Warn("Failed to store pet", "pet_id", id, "error", err)
		}
		if err := s.workerPool.Dispatch(ctx, id); err != nil {
			s.logger.Warn("Notification not queued", "pet_id", id, "error", err)
			return
		}
	}
}

// movedPets returns, once each and in order of appearance, the pets named by
// newly stored entries that record a pass through a door.
func movedPets(entries []surehub.Entry, inserted []store.EventItem) []int64 {
	isNew := make(map[string]bool, len(inserted))
	for _, item := range inserted {
		isNew[item.ID] = true
	}

	var petIDs []int64
	seen := make(map[int64]bool)
	for _, e := range entries {
		if !isNew[string(e.ID)] || len(e.Movements) == 0 {
			continue
		}
		for _, p := range e.Pets {
			if p.ID == 0 || seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			petIDs = append(petIDs, p.ID)
		}
	}
	return petIDs
}

func eventItem(e surehub.Entry) store.EventItem {
	item := store.EventItem{
		ID:          string(e.ID),
		Type:        e.Type,
		HouseholdID: e.HouseholdID,
		OccurredAt:  e.CreatedAt,
		Payload:     e.Raw,
	}
	for _, p := range e.Pets {
		item.PetIDs = append(item.PetIDs, p.ID)
	}
	return item
}

func petItem(p *surehub.Pet) store.PetItem {
	item := store.PetItem{
		ID:          p.ID(),
		HouseholdID: p.HouseholdID,
		Name:        p.Name,
		TagID:       p.TagID,
	}
	if p.Position != nil {
		item.Where = int(p.Position.Where)
		item.Since = p.Position.Since
		item.DeviceID = p.Position.DeviceID
	}
	return item
}

func householdItem(h *surehub.Household) store.HouseholdItem {
	item := store.HouseholdItem{ID: h.ID(), Name: h.Name}
	if h.Timezone != nil {
		item.Timezone = h.Timezone.Timezone
	}
	return item
}
