package surehub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// isoMillis matches the timestamps the API accepts for position updates.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Where is a pet's location relative to the house.
type Where int

const (
	Inside  Where = 1
	Outside Where = 2
)

func (w Where) String() string {
	switch w {
	case Inside:
		return "inside"
	case Outside:
		return "outside"
	default:
		return fmt.Sprintf("where(%d)", int(w))
	}
}

// Position is where a pet was last seen and since when.
type Position struct {
	TagID    int64     `json:"tag_id,omitempty"`
	DeviceID int64     `json:"device_id,omitempty"`
	Where    Where     `json:"where"`
	Since    time.Time `json:"since"`
}

// PetAttrs are the decoded fields of a pet record.
type PetAttrs struct {
	Name        string    `json:"name"`
	HouseholdID int64     `json:"household_id"`
	TagID       int64     `json:"tag_id,omitempty"`
	Gender      int       `json:"gender,omitempty"`
	Position    *Position `json:"position,omitempty"`
}

// Pet is an animal registered to a household.
type Pet struct {
	Resource
	PetAttrs
}

func newPet(r Resource) (*Pet, error) {
	p := &Pet{Resource: r}
	if err := r.decode(&p.PetAttrs); err != nil {
		return nil, err
	}
	return p, nil
}

// Household fetches the household the pet belongs to.
func (p *Pet) Household(ctx context.Context) (*Household, error) {
	return FetchOne(ctx, p.session, HouseholdKind, fmt.Sprintf("/api/household/%d", p.HouseholdID), nil)
}

// CurrentPosition fetches the pet's position from the API.
func (p *Pet) CurrentPosition(ctx context.Context) (*Position, error) {
	data, err := p.session.Call(ctx, http.MethodGet, p.positionPath(), nil)
	if err != nil {
		return nil, err
	}
	var pos Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return nil, fmt.Errorf("decode position of pet %d: %w", p.id, err)
	}
	return &pos, nil
}

// SetPosition records that the pet is at where since the given time. A zero
// since means now. The local snapshot is not updated.
func (p *Pet) SetPosition(ctx context.Context, where Where, since time.Time) (json.RawMessage, error) {
	if since.IsZero() {
		since = time.Now()
	}
	payload := struct {
		Where Where  `json:"where"`
		Since string `json:"since"`
	}{
		Where: where,
		Since: since.UTC().Format(isoMillis),
	}
	return p.session.Call(ctx, http.MethodPost, p.positionPath(), payload)
}

// Report returns the pet report; args select the aggregate report.
func (p *Pet) Report(ctx context.Context, args url.Values) (json.RawMessage, error) {
	return p.session.Report(ctx, fmt.Sprintf("/api/report/household/%d/pet/%d", p.HouseholdID, p.id), args)
}

// Timeline returns a watcher over the pet's timeline.
func (p *Pet) Timeline(opts ...WatcherOption) (*Watcher, error) {
	return PetKind.timeline(p.session, fmt.Sprintf("/api/timeline/pet/%d", p.id), opts)
}

func (p *Pet) positionPath() string {
	return fmt.Sprintf("/api/pet/%d/position", p.id)
}
