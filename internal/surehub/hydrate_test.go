package surehub

import (
	"context"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_Array(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeData(w, []map[string]any{
			{"id": 11, "name": "Tom", "household_id": 3},
			{"id": 12, "name": "Jerry", "household_id": 3},
		})
	})

	pets, err := Fetch(context.Background(), srv.session(), PetKind, "/api/pet", nil)
	require.NoError(t, err)
	require.Len(t, pets, 2)
	assert.Equal(t, int64(11), pets[0].ID())
	assert.Equal(t, "Tom", pets[0].Name)
	assert.Equal(t, int64(12), pets[1].ID())
	assert.Equal(t, "Jerry", pets[1].Name)
	assert.Equal(t, "pet", pets[1].Kind())
	assert.Equal(t, PetKind.With, pets[0].With())
}

func TestFetch_Object(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeData(w, map[string]any{"id": 3, "name": "Home"})
	})

	households, err := Fetch(context.Background(), srv.session(), HouseholdKind, "/api/household/3", nil)
	require.NoError(t, err)
	require.Len(t, households, 1)
	assert.Equal(t, int64(3), households[0].ID())
	assert.Equal(t, "Home", households[0].Name)
	assert.JSONEq(t, `{"id":3,"name":"Home"}`, string(households[0].Raw()))
}

func TestFetch_Empty(t *testing.T) {
	for _, body := range []any{[]any{}, nil} {
		srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
			writeData(w, body)
		})

		devices, err := Fetch(context.Background(), srv.session(), DeviceKind, "/api/device", nil)
		require.NoError(t, err)
		assert.NotNil(t, devices)
		assert.Empty(t, devices)
	}
}

func TestFetch_BadRecordFailsWholeFetch(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeData(w, []any{
			map[string]any{"id": 1, "name": "Tom"},
			map[string]any{"id": "not-a-number"},
		})
	})

	pets, err := Fetch(context.Background(), srv.session(), PetKind, "/api/pet", nil)
	require.Error(t, err)
	assert.Nil(t, pets)
	assert.Contains(t, err.Error(), "record 1")
}

func TestFetch_AppendsExpansions(t *testing.T) {
	var rawQuery atomic.Value
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		rawQuery.Store(r.URL.RawQuery)
		assert.Equal(t, "/api/pet/5", r.URL.Path)
		writeData(w, map[string]any{"id": 5})
	})
	kind := Kind[*Pet]{Name: "pet", With: []string{"breed", "species"}, build: newPet}

	_, err := Fetch(context.Background(), srv.session(), kind, "/api/pet/5", nil)
	require.NoError(t, err)

	assert.Equal(t, "with[]=breed&with[]=species", rawQuery.Load().(string))
}

func TestFetch_KeepsExistingQuery(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, []string{"3"}, q["household_id"])
		assert.Equal(t, DeviceKind.With, q["with[]"])
		writeData(w, []any{})
	})

	_, err := Fetch(context.Background(), srv.session(), DeviceKind, "/api/device?household_id=3", nil)
	require.NoError(t, err)
}

func TestFetch_CallErrorPropagates(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, "Forbidden")
	})

	_, err := Fetch(context.Background(), srv.session(), PetKind, "/api/pet", nil)
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
}

func TestFetchOne(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/pet" {
			writeData(w, []any{map[string]any{"id": 1}})
			return
		}
		writeData(w, map[string]any{"id": 2, "name": "Felix"})
	})
	s := srv.session()

	pet, err := FetchOne(context.Background(), s, PetKind, "/api/pet/2", nil)
	require.NoError(t, err)
	assert.Equal(t, "Felix", pet.Name)

	_, err = FetchOne(context.Background(), s, PetKind, "/api/pet", nil)
	assert.ErrorIs(t, err, ErrUnexpectedShape)
}

func TestSession_Report(t *testing.T) {
	var paths []string
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path+"?"+r.URL.RawQuery)
		writeData(w, map[string]any{"datapoints": []int{1, 2}})
	})
	s := srv.session()

	data, err := s.Report(context.Background(), "/api/report/household/3", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"datapoints":[1,2]}`, string(data))

	_, err = s.Report(context.Background(), "/api/report/household/3", url.Values{"from": {"2024-01-01"}, "to": {"2024-01-07"}})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/api/report/household/3?",
		"/api/report/household/3/aggregate?from=2024-01-01&to=2024-01-07",
	}, paths)
}

func TestAPIPath(t *testing.T) {
	p := newAPIPath("/api/pet").with([]string{"tag", "position"}).merge(url.Values{"a b": {"c&d"}})
	assert.Equal(t, "/api/pet?a+b=c%26d&with[]=tag&with[]=position", p.String())
	assert.Equal(t, "/api/pet", newAPIPath("/api/pet").String())
	assert.Equal(t, "/api/report/1/aggregate", newAPIPath("/api/report/1/").aggregate().String())
	assert.Equal(t, "/api/x?k[=a%5B%5D", newAPIPath("/api/x").merge(url.Values{"k[": {"a[]"}}).String(), "brackets in values stay encoded")
}
