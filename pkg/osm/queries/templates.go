// Package queries provides utilities for building Overpass QL queries.
package queries

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultTimeout is the server-side query timeout in seconds.
const DefaultTimeout = 25

// TagFilter matches a tag key. No values checks presence, one value checks
// equality, several values become an anchored regex alternation.
type TagFilter struct {
	Key    string
	Values []string
}

// Tag is shorthand for a TagFilter.
func Tag(key string, values ...string) TagFilter {
	return TagFilter{Key: key, Values: values}
}

func (f TagFilter) String() string {
	switch len(f.Values) {
	case 0:
		return fmt.Sprintf("[%q]", f.Key)
	case 1:
		return fmt.Sprintf("[%q=%q]", f.Key, f.Values[0])
	default:
		quoted := make([]string, len(f.Values))
		for i, v := range f.Values {
			// QL strings unescape backslashes once before the regex sees them.
			quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(v), `\`, `\\`)
		}
		return fmt.Sprintf("[%q~\"^(%s)$\"]", f.Key, strings.Join(quoted, "|"))
	}
}

// OverpassBuilder provides a fluent interface for building Overpass API queries.
type OverpassBuilder struct {
	timeout  int
	elements []string
	output   string
}

// NewOverpassBuilder creates a builder for JSON output with the default timeout.
func NewOverpassBuilder() *OverpassBuilder {
	return &OverpassBuilder{
		timeout: DefaultTimeout,
		output:  "body",
	}
}

// WithTimeout sets the query timeout in seconds. Zero omits the setting.
func (b *OverpassBuilder) WithTimeout(seconds int) *OverpassBuilder {
	b.timeout = seconds
	return b
}

// WithWayInBbox adds a way query within a bounding box.
func (b *OverpassBuilder) WithWayInBbox(south, west, north, east float64, tags ...TagFilter) *OverpassBuilder {
	var q strings.Builder
	fmt.Fprintf(&q, "way(%f,%f,%f,%f)", south, west, north, east)
	for _, t := range tags {
		q.WriteString(t.String())
	}
	q.WriteString(";")
	b.elements = append(b.elements, q.String())
	return b
}

// WithOutput sets the output verbosity, e.g. body, center, geom.
func (b *OverpassBuilder) WithOutput(outputType string) *OverpassBuilder {
	b.output = outputType
	return b
}

// Build returns the complete Overpass query string.
func (b *OverpassBuilder) Build() string {
	var buf strings.Builder
	buf.WriteString("[out:json]")
	if b.timeout > 0 {
		fmt.Fprintf(&buf, "[timeout:%d]", b.timeout)
	}
	buf.WriteString(";(")
	for _, e := range b.elements {
		buf.WriteString(e)
	}
	fmt.Fprintf(&buf, ");out %s;", b.output)
	return buf.String()
}
