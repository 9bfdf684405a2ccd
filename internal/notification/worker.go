package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"sureflap-monitor/internal/model"
	"sureflap-monitor/internal/store"
	"sureflap-monitor/internal/surehub"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Store is the subset of the store the workers read and clean up.
type Store interface {
	GetPet(ctx context.Context, id int64) (*model.Pet, error)
	SubscriptionsForPet(ctx context.Context, petID int64) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Message is the JSON payload pushed to subscribers.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	PetID int64  `json:"pet_id"`
	Where int    `json:"where"`
}

// WorkerPool manages a pool of workers that tell subscribers a pet moved.
type WorkerPool struct {
	size    int
	jobs    chan int64
	store   Store
	webpush *webpush.Options
	sender  NotificationSender
	logger  *slog.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, s Store, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size), // Buffered channel
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		logger:  slog.Default().With("component", "notification"),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.logger.Debug("Worker started", "worker", id)
	for {
		select {
		case petID := <-wp.jobs:
			wp.logger.Debug("Worker processing pet", "worker", id, "pet_id", petID)
			wp.sendNotificationsForPet(ctx, petID)
		case <-ctx.Done():
			wp.logger.Debug("Worker shutting down", "worker", id)
			return
		}
	}
}

// Dispatch queues a notification for a pet that moved. It blocks while the
// queue is full and gives up with ctx.Err() when ctx ends first.
func (wp *WorkerPool) Dispatch(ctx context.Context, petID int64) error {
	select {
	case wp.jobs <- petID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan int64 {
	return wp.jobs
}

func (wp *WorkerPool) sendNotificationsForPet(ctx context.Context, petID int64) {
	subscriptions, err := wp.store.SubscriptionsForPet(ctx, petID)
	if err != nil {
		wp.logger.Error("Error fetching subscriptions", "pet_id", petID, "error", err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	wp.logger.Info("Sending notifications", "pet_id", petID, "count", len(subscriptions))

	msg := Message{Title: "Pet door", PetID: petID}
	petLabel := fmt.Sprintf("Pet %d", petID)
	pet, err := wp.store.GetPet(ctx, petID)
	if err != nil {
		wp.logger.Warn("Error fetching pet", "pet_id", petID, "error", err)
	} else {
		if pet.Name != "" {
			petLabel = pet.Name
		}
		msg.Where = pet.Where
	}
	msg.Body = movementText(petLabel, surehub.Where(msg.Where))

	payload, err := json.Marshal(msg)
	if err != nil {
		wp.logger.Error("Error encoding notification", "pet_id", petID, "error", err)
		return
	}
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func movementText(label string, where surehub.Where) string {
	switch where {
	case surehub.Inside, surehub.Outside:
		return fmt.Sprintf("%s is now %s", label, where)
	default:
		return fmt.Sprintf("%s used the pet door", label)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.logger.Error("Error sending notification", "endpoint", sub.Endpoint, "error", err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		wp.logger.Info("Subscription expired, deleting", "endpoint", sub.Endpoint, "status", resp.StatusCode)
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.logger.Error("Failed to delete expired subscription", "endpoint", sub.Endpoint, "error", err)
		}
	}
}

var _ Store = (store.Store)(nil)
