package surehub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// timelineServer serves pages of entries in order and records each query.
type timelineServer struct {
	*apiServer
	mu      sync.Mutex
	pages   [][]any
	queries []url.Values
}

func newTimelineServer(t *testing.T, pages ...[]any) *timelineServer {
	ts := &timelineServer{pages: pages}
	ts.apiServer = newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		defer ts.mu.Unlock()
		ts.queries = append(ts.queries, r.URL.Query())
		if len(ts.pages) == 0 {
			writeData(w, []any{})
			return
		}
		page := ts.pages[0]
		ts.pages = ts.pages[1:]
		writeData(w, page)
	})
	return ts
}

func (ts *timelineServer) query(i int) url.Values {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.queries[i]
}

func entries(ids ...any) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, map[string]any{"id": id, "type": 0, "created_at": "2024-03-01T08:30:15+00:00"})
	}
	return out
}

func ids(es []Entry) []EntryID {
	out := make([]EntryID, 0, len(es))
	for _, e := range es {
		out = append(out, e.ID)
	}
	return out
}

func TestWatcher_InitialThenTracking(t *testing.T) {
	ts := newTimelineServer(t, entries(5, 4, 3), entries(7, 6))
	w := NewWatcher(ts.session(), "/api/timeline/household/3")
	ctx := context.Background()

	got, err := w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []EntryID{"3", "4", "5"}, ids(got))
	assert.Equal(t, EntryID("5"), w.Since())
	assert.Equal(t, "25", ts.query(0).Get("page_size"))
	assert.Empty(t, ts.query(0).Get("since_id"))

	got, err = w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []EntryID{"6", "7"}, ids(got))
	assert.Equal(t, EntryID("7"), w.Since())
	assert.Equal(t, "5", ts.query(1).Get("since_id"))
	assert.Empty(t, ts.query(1).Get("page_size"))
}

func TestWatcher_EmptyTrackingKeepsCursor(t *testing.T) {
	ts := newTimelineServer(t, entries(9), []any{})
	w := NewWatcher(ts.session(), "/api/timeline")
	ctx := context.Background()

	_, err := w.Poll(ctx)
	require.NoError(t, err)

	got, err := w.Poll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, EntryID("9"), w.Since())

	_, err = w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "9", ts.query(2).Get("since_id"))
}

func TestWatcher_EmptyInitialStaysInitial(t *testing.T) {
	ts := newTimelineServer(t, []any{}, entries(1))
	w := NewWatcher(ts.session(), "/api/timeline", WithPageSize(10))
	ctx := context.Background()

	got, err := w.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, EntryID(""), w.Since())

	got, err = w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []EntryID{"1"}, ids(got))
	assert.Equal(t, "10", ts.query(0).Get("page_size"))
	assert.Equal(t, "10", ts.query(1).Get("page_size"))
}

func TestWatcher_EntryWithoutIDDoesNotStallCursor(t *testing.T) {
	ts := newTimelineServer(t, entries(nil, 4), entries(nil))
	w := NewWatcher(ts.session(), "/api/timeline")
	ctx := context.Background()

	got, err := w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []EntryID{"4", ""}, ids(got))
	assert.Equal(t, EntryID("4"), w.Since())

	got, err = w.Poll(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "4", ts.query(1).Get("since_id"))
	assert.Empty(t, ts.query(1).Get("page_size"))
	assert.Equal(t, EntryID("4"), w.Since(), "a page of id-less entries keeps the cursor")
}

func TestWatcher_ResumeWithSince(t *testing.T) {
	ts := newTimelineServer(t, entries(12, 11))
	w := NewWatcher(ts.session(), "/api/timeline/pet/11", WithSince("10"))

	got, err := w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []EntryID{"11", "12"}, ids(got))
	assert.Equal(t, "10", ts.query(0).Get("since_id"))
	assert.Equal(t, EntryID("12"), w.Since())
}

func TestWatcher_StringIDs(t *testing.T) {
	ts := newTimelineServer(t, entries("b", "a"))
	w := NewWatcher(ts.session(), "/api/timeline")

	got, err := w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []EntryID{"a", "b"}, ids(got))
	assert.Equal(t, EntryID("b"), w.Since())
}

func TestWatcher_ErrorKeepsCursor(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Internal failure")
	})
	w := NewWatcher(srv.session(), "/api/timeline", WithSince("4"))

	_, err := w.Poll(context.Background())
	require.Error(t, err)
	assert.Equal(t, EntryID("4"), w.Since())
}

func TestWatcher_GetPassesArgs(t *testing.T) {
	ts := newTimelineServer(t, entries(3))
	w := NewWatcher(ts.session(), "/api/timeline")

	got, err := w.Get(context.Background(), url.Values{"type": {"0,6"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "0,6", ts.query(0).Get("type"))
	assert.Equal(t, EntryID(""), w.Since(), "Get does not move the cursor")
}

func TestEntry_Unmarshal(t *testing.T) {
	raw := `{
		"id": 1234567,
		"type": 0,
		"household_id": 3,
		"created_at": "2024-03-01T08:30:15+00:00",
		"pets": [{"id": 11, "name": "Tom"}],
		"devices": [{"id": 21, "name": "Back door"}],
		"movements": [{"id": 99, "tag_id": 7, "device_id": 21, "direction": 1}]
	}`

	var e Entry
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	assert.Equal(t, EntryID("1234567"), e.ID)
	assert.Equal(t, int64(3), e.HouseholdID)
	assert.True(t, e.CreatedAt.Equal(time.Date(2024, 3, 1, 8, 30, 15, 0, time.UTC)))
	assert.Equal(t, []EntryRef{{ID: 11, Name: "Tom"}}, e.Pets)
	assert.Equal(t, int64(21), e.Movements[0].DeviceID)

	out, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestEntry_BadTimestamp(t *testing.T) {
	var e Entry
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x","created_at":"yesterday"}`), &e))
	assert.True(t, e.CreatedAt.IsZero())
	assert.Equal(t, EntryID("x"), e.ID)
}
