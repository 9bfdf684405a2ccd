package surehub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// HouseholdAttrs are the decoded fields of a household record.
type HouseholdAttrs struct {
	Name      string    `json:"name"`
	ShareCode string    `json:"share_code"`
	Timezone  *Timezone `json:"timezone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Timezone is the expanded timezone of a household.
type Timezone struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// Household groups devices, pets and users.
type Household struct {
	Resource
	HouseholdAttrs
}

func newHousehold(r Resource) (*Household, error) {
	h := &Household{Resource: r}
	if err := r.decode(&h.HouseholdAttrs); err != nil {
		return nil, err
	}
	return h, nil
}

// Devices lists the household's devices.
func (h *Household) Devices(ctx context.Context) ([]*Device, error) {
	return Fetch(ctx, h.session, DeviceKind, fmt.Sprintf("/api/household/%d/device", h.id), nil)
}

// Pets lists the household's pets.
func (h *Household) Pets(ctx context.Context) ([]*Pet, error) {
	return Fetch(ctx, h.session, PetKind, fmt.Sprintf("/api/household/%d/pet", h.id), nil)
}

// Report returns the household report; args select the aggregate report.
func (h *Household) Report(ctx context.Context, args url.Values) (json.RawMessage, error) {
	return h.session.Report(ctx, fmt.Sprintf("/api/report/household/%d", h.id), args)
}

// Timeline returns a watcher over the household's timeline.
func (h *Household) Timeline(opts ...WatcherOption) (*Watcher, error) {
	return HouseholdKind.timeline(h.session, fmt.Sprintf("/api/timeline/household/%d", h.id), opts)
}
