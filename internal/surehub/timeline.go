package surehub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"time"
)

// DefaultPageSize is the number of entries requested by a watcher's first
// poll.
const DefaultPageSize = 25

// EntryID identifies a timeline entry. The API sends numbers; strings are
// accepted too.
type EntryID string

// UnmarshalJSON accepts a JSON number or string.
func (id *EntryID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = EntryID(s)
		return nil
	}
	if string(b) == "null" {
		*id = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("timeline entry id: %w", err)
	}
	*id = EntryID(n.String())
	return nil
}

// EntryRef names a pet or device mentioned by an entry.
type EntryRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Movement is a pass through a pet door.
type Movement struct {
	ID        int64 `json:"id"`
	TagID     int64 `json:"tag_id"`
	DeviceID  int64 `json:"device_id"`
	Direction int   `json:"direction"`
}

// Entry is one event in a timeline.
type Entry struct {
	ID          EntryID
	Type        int
	HouseholdID int64
	CreatedAt   time.Time
	Pets        []EntryRef
	Devices     []EntryRef
	Movements   []Movement
	Raw         json.RawMessage
}

// UnmarshalJSON decodes the fields in common use and keeps the raw entry.
// An unparseable created_at leaves CreatedAt zero.
func (e *Entry) UnmarshalJSON(b []byte) error {
	var a struct {
		ID          EntryID    `json:"id"`
		Type        int        `json:"type"`
		HouseholdID int64      `json:"household_id"`
		CreatedAt   string     `json:"created_at"`
		Pets        []EntryRef `json:"pets"`
		Devices     []EntryRef `json:"devices"`
		Movements   []Movement `json:"movements"`
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*e = Entry{
		ID:          a.ID,
		Type:        a.Type,
		HouseholdID: a.HouseholdID,
		Pets:        a.Pets,
		Devices:     a.Devices,
		Movements:   a.Movements,
		Raw:         append(json.RawMessage(nil), b...),
	}
	if t, err := time.Parse(time.RFC3339, a.CreatedAt); err == nil {
		e.CreatedAt = t
	}
	return nil
}

// MarshalJSON writes the entry as received.
func (e Entry) MarshalJSON() ([]byte, error) {
	if len(e.Raw) > 0 {
		return e.Raw, nil
	}
	return json.Marshal(map[string]any{"id": string(e.ID), "type": e.Type})
}

// Watcher polls a timeline and returns only entries it has not returned
// before.
//
// Until a poll returns data the watcher asks for the latest page; after that
// it asks only for entries newer than the newest one seen.
type Watcher struct {
	session  *Session
	path     string
	pageSize int

	mu    sync.Mutex
	since EntryID
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithPageSize sets how many entries the first poll requests.
func WithPageSize(n int) WatcherOption {
	return func(w *Watcher) {
		if n > 0 {
			w.pageSize = n
		}
	}
}

// WithSince resumes from a previously seen entry.
func WithSince(id EntryID) WatcherOption {
	return func(w *Watcher) { w.since = id }
}

// NewWatcher returns a watcher over the timeline at path.
func NewWatcher(s *Session, path string, opts ...WatcherOption) *Watcher {
	w := &Watcher{session: s, path: path, pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the timeline path.
func (w *Watcher) Path() string { return w.path }

// Since returns the newest entry seen, or "" before the first entry.
func (w *Watcher) Since() EntryID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.since
}

// Get fetches one page of the timeline, newest first.
func (w *Watcher) Get(ctx context.Context, args url.Values) ([]Entry, error) {
	data, err := w.session.Call(ctx, http.MethodGet, newAPIPath(w.path).merge(args).String(), nil)
	if err != nil {
		return nil, err
	}
	entries := []Entry{}
	if len(data) == 0 || string(data) == "null" {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode timeline %s: %w", w.path, err)
	}
	return entries, nil
}

// Poll returns the entries that arrived since the last poll, oldest first.
func (w *Watcher) Poll(ctx context.Context) ([]Entry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	args := url.Values{}
	if w.since == "" {
		args.Set("page_size", strconv.Itoa(w.pageSize))
	} else {
		args.Set("since_id", string(w.since))
	}

	entries, err := w.Get(ctx, args)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}

	// Entries without an id cannot serve as a cursor.
	for _, e := range entries {
		if e.ID != "" {
			w.since = e.ID
			break
		}
	}
	slices.Reverse(entries)
	return entries, nil
}
