package surehub

import (
	"context"
	"fmt"
)

const globalTimelinePath = "/api/timeline"

// Client is the account root: the entry point to households, devices and
// pets visible to the logged in user.
type Client struct {
	Resource
}

// NewClient returns the account root for s.
func NewClient(s *Session) *Client {
	return &Client{Resource: Resource{session: s, kind: MeKind.Name, with: MeKind.With}}
}

// Login authenticates the session if needed.
func (c *Client) Login(ctx context.Context) (*LoginData, error) {
	return c.session.Login(ctx)
}

// Logout ends the session.
func (c *Client) Logout(ctx context.Context) error {
	return c.session.Logout(ctx)
}

// Households lists the user's households.
func (c *Client) Households(ctx context.Context) ([]*Household, error) {
	return Fetch(ctx, c.session, HouseholdKind, "/api/household", nil)
}

// Household fetches one household.
func (c *Client) Household(ctx context.Context, id int64) (*Household, error) {
	return FetchOne(ctx, c.session, HouseholdKind, fmt.Sprintf("/api/household/%d", id), nil)
}

// Devices lists all devices across households.
func (c *Client) Devices(ctx context.Context) ([]*Device, error) {
	return Fetch(ctx, c.session, DeviceKind, "/api/device", nil)
}

// Device fetches one device.
func (c *Client) Device(ctx context.Context, id int64) (*Device, error) {
	return FetchOne(ctx, c.session, DeviceKind, fmt.Sprintf("/api/device/%d", id), nil)
}

// Pets lists all pets across households.
func (c *Client) Pets(ctx context.Context) ([]*Pet, error) {
	return Fetch(ctx, c.session, PetKind, "/api/pet", nil)
}

// Pet fetches one pet.
func (c *Client) Pet(ctx context.Context, id int64) (*Pet, error) {
	return FetchOne(ctx, c.session, PetKind, fmt.Sprintf("/api/pet/%d", id), nil)
}

// Timeline returns a watcher over the timeline of every household.
func (c *Client) Timeline(opts ...WatcherOption) (*Watcher, error) {
	return MeKind.timeline(c.session, globalTimelinePath, opts)
}
