package surehub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Fetch GETs path with the kind's expansions and builds one resource per
// record in the response. An object yields one resource, an array one per
// element in order, and an empty array or null an empty slice. Either every
// record is built or an error is returned.
func Fetch[T any](ctx context.Context, s *Session, kind Kind[T], path string, payload any) ([]T, error) {
	data, err := s.Call(ctx, http.MethodGet, newAPIPath(path).with(kind.With).String(), payload)
	if err != nil {
		return nil, err
	}

	records, _, err := splitRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", kind.Name, path, err)
	}

	out := make([]T, 0, len(records))
	for i, rec := range records {
		v, err := kind.hydrate(s, rec)
		if err != nil {
			return nil, fmt.Errorf("%s %s: record %d: %w", kind.Name, path, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// FetchOne is Fetch for paths that return a single record.
func FetchOne[T any](ctx context.Context, s *Session, kind Kind[T], path string, payload any) (T, error) {
	var zero T

	data, err := s.Call(ctx, http.MethodGet, newAPIPath(path).with(kind.With).String(), payload)
	if err != nil {
		return zero, err
	}

	records, list, err := splitRecords(data)
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", kind.Name, path, err)
	}
	if list || len(records) != 1 {
		return zero, fmt.Errorf("%s %s: expected a single record: %w", kind.Name, path, ErrUnexpectedShape)
	}
	v, err := kind.hydrate(s, records[0])
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", kind.Name, path, err)
	}
	return v, nil
}

// splitRecords turns response data into individual records and reports
// whether the data was an array.
func splitRecords(data json.RawMessage) ([]json.RawMessage, bool, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false, nil
	}
	if trimmed[0] == '[' {
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, true, fmt.Errorf("decode records: %w", err)
		}
		return records, true, nil
	}
	return []json.RawMessage{trimmed}, false, nil
}

// Report returns report data for path. With args the aggregate report is
// requested and args are sent as query parameters. Report data is returned
// as is.
func (s *Session) Report(ctx context.Context, path string, args url.Values) (json.RawMessage, error) {
	p := newAPIPath(path)
	if len(args) > 0 {
		p.aggregate().merge(args)
	}
	return s.Call(ctx, http.MethodGet, p.String(), nil)
}
