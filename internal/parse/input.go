package parse

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"sureflap-monitor/internal/surehub"
)

var (
	argRe  = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.\[\]]*)=(.*)$`)
	agoRe  = regexp.MustCompile(`^-\s*(\S+)$`)
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Where parses a pet location given as a name or as the API's number.
func Where(raw string) (surehub.Where, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "inside", "in", "1":
		return surehub.Inside, nil
	case "outside", "out", "2":
		return surehub.Outside, nil
	}
	return 0, fmt.Errorf("unknown location %q: want inside or outside", raw)
}

// Since parses the time a position change happened. Empty input and "now"
// return the zero time, which the client replaces with the current time.
// "-15m" style offsets are relative to now; absolute times are RFC 3339 or
// a bare date in loc.
func Since(raw string, now time.Time, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "now") {
		return time.Time{}, nil
	}

	if m := agoRe.FindStringSubmatch(s); m != nil {
		d, err := time.ParseDuration(m[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid offset %q: %w", raw, err)
		}
		return now.Add(-d), nil
	}

	if dateRe.MatchString(s) {
		if loc == nil {
			loc = time.Local
		}
		return time.ParseInLocation(time.DateOnly, s, loc)
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339, YYYY-MM-DD or -DURATION", raw)
	}
	return t, nil
}

// ReportArgs turns key=value pairs into query arguments. Keys may repeat.
func ReportArgs(pairs []string) (url.Values, error) {
	args := url.Values{}
	for _, p := range pairs {
		m := argRe.FindStringSubmatch(strings.TrimSpace(p))
		if m == nil {
			return nil, fmt.Errorf("invalid argument %q: want key=value", p)
		}
		args.Add(m[1], m[2])
	}
	return args, nil
}

// ID parses a positive resource identifier.
func ID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
