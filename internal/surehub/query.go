package surehub

import (
	"net/url"
	"slices"
	"strings"
)

// expandKey is the repeated query key used for expansions.
const expandKey = "with[]"

// apiPath builds an API path and its query string. Values of a repeated key
// keep the order in which they were added.
type apiPath struct {
	path  string
	query url.Values
}

func newAPIPath(p string) *apiPath {
	path, rawQuery, _ := strings.Cut(p, "?")
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		q = url.Values{}
	}
	return &apiPath{path: path, query: q}
}

func (p *apiPath) with(names []string) *apiPath {
	for _, n := range names {
		p.query.Add(expandKey, n)
	}
	return p
}

func (p *apiPath) merge(args url.Values) *apiPath {
	for k, vs := range args {
		for _, v := range vs {
			p.query.Add(k, v)
		}
	}
	return p
}

func (p *apiPath) aggregate() *apiPath {
	p.path = strings.TrimSuffix(p.path, "/") + "/aggregate"
	return p
}

// String returns the path and its query. Keys are sorted and values are
// percent-encoded; square brackets in keys are left literal, so expansions
// read with[]=breed&with[]=species.
func (p *apiPath) String() string {
	if len(p.query) == 0 {
		return p.path
	}
	keys := make([]string, 0, len(p.query))
	for k := range p.query {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for _, k := range keys {
		key := bracketUnescaper.Replace(url.QueryEscape(k))
		for _, v := range p.query[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(key)
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return p.path + "?" + b.String()
}

var bracketUnescaper = strings.NewReplacer("%5B", "[", "%5D", "]")
