package surehub

import (
	"encoding/json"
	"fmt"
)

// Kind describes a resource type: its name, the expansions requested with
// every fetch, what it supports, and how to build it from a record.
type Kind[T any] struct {
	Name string
	// With lists the related records the API embeds in each response.
	With []string
	// Timeline reports whether the kind has an activity timeline.
	Timeline bool

	build func(Resource) (T, error)
}

func (k Kind[T]) hydrate(s *Session, raw json.RawMessage) (T, error) {
	r := Resource{session: s, kind: k.Name, with: k.With, raw: raw}
	var head struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		var zero T
		return zero, fmt.Errorf("decode %s: %w", k.Name, err)
	}
	r.id = head.ID
	return k.build(r)
}

// timeline returns a watcher for path, or an UnsupportedError if the kind
// has no timeline.
func (k Kind[T]) timeline(s *Session, path string, opts []WatcherOption) (*Watcher, error) {
	if !k.Timeline {
		return nil, &UnsupportedError{Kind: k.Name, Op: "timeline"}
	}
	return NewWatcher(s, path, opts...), nil
}

var (
	// MeKind is the account root. It has no record of its own.
	MeKind = Kind[*Client]{
		Name:     "me",
		Timeline: true,
	}

	HouseholdKind = Kind[*Household]{
		Name: "household",
		With: []string{
			"invites",
			"invites.creating",
			"invites.creating.profilePhoto",
			"invites.accepting",
			"invites.accepting.profilePhoto",
			"pets",
			"users",
			"users.user",
			"users.user.profilePhoto",
			"users.households",
			"timezone",
		},
		Timeline: true,
		build:    newHousehold,
	}

	DeviceKind = Kind[*Device]{
		Name:     "device",
		With:     []string{"children", "status", "tags", "control"},
		Timeline: false,
		build:    newDevice,
	}

	PetKind = Kind[*Pet]{
		Name: "pet",
		With: []string{
			"breed",
			"conditions",
			"food_type",
			"photo",
			"position",
			"species",
			"status",
			"tag",
		},
		Timeline: true,
		build:    newPet,
	}
)

// Resource is the part every resource shares: the session it was fetched
// with and the raw record.
type Resource struct {
	session *Session
	kind    string
	id      int64
	with    []string
	raw     json.RawMessage
}

// ID returns the record identifier, or 0 for the account root.
func (r Resource) ID() int64 { return r.id }

// Kind returns the resource kind name.
func (r Resource) Kind() string { return r.kind }

// Raw returns the record as received.
func (r Resource) Raw() json.RawMessage { return r.raw }

// With returns the expansions requested for this kind.
func (r Resource) With() []string {
	return append([]string(nil), r.with...)
}

// Session returns the session the resource was fetched with.
func (r Resource) Session() *Session { return r.session }

func (r Resource) decode(v any) error {
	if err := json.Unmarshal(r.raw, v); err != nil {
		return fmt.Errorf("decode %s %d: %w", r.kind, r.id, err)
	}
	return nil
}
