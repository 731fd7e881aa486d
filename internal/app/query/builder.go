// Package query turns dashboard lookups into Flux and parses the CSV the
// store answers with.
package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultBucket      = "sensor-data"
	DefaultMeasurement = "sensor_data"

	// DefaultEnumerationRange applies to floor, sensor and field listings.
	DefaultEnumerationRange = "-30d"
	// DefaultValueRange applies to value and series lookups.
	DefaultValueRange = "-6h"
	// RangeAll starts at the Unix epoch.
	RangeAll = "0"
)

var ErrInvalidTimeRange = errors.New("invalid time range")

var relativeRange = regexp.MustCompile(`^-(\d+(ns|us|µs|ms|mo|s|m|h|d|w|y))+$`)

// TagFilter is an equality predicate on one column.
type TagFilter struct {
	Column string
	Value  string
}

// Spec describes one Flux pipeline. Zero fields are left out of the query.
type Spec struct {
	Bucket      string
	Measurement string
	Range       string
	Exists      []string
	Tags        []TagFilter
	Field       string
	Group       []string
	Last        bool
	Keep        []string
	Distinct    string
}

// ValidateRange accepts a negative Flux duration (-6h, -1h30m, -2mo), an RFC3339
// timestamp or RangeAll.
func ValidateRange(r string) error {
	if r == RangeAll || relativeRange.MatchString(r) {
		return nil
	}
	if _, err := time.Parse(time.RFC3339Nano, r); err == nil {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidTimeRange, r)
}

// Build renders s as a single-line Flux query.
func Build(s Spec) (string, error) {
	if s.Bucket == "" {
		s.Bucket = DefaultBucket
	}
	if err := ValidateRange(s.Range); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %s) |> range(start: %s)", literal(s.Bucket), s.Range)

	if s.Measurement != "" {
		writeEquals(&b, "_measurement", s.Measurement)
	}
	for _, col := range s.Exists {
		fmt.Fprintf(&b, " |> filter(fn: (r) => exists r[%s])", literal(col))
	}
	for _, tag := range s.Tags {
		writeEquals(&b, tag.Column, tag.Value)
	}
	if s.Field != "" {
		writeEquals(&b, "_field", s.Field)
	}
	if len(s.Group) > 0 {
		fmt.Fprintf(&b, " |> group(columns: [%s])", columns(s.Group))
	}
	if s.Last {
		b.WriteString(" |> last()")
	}
	if len(s.Keep) > 0 {
		fmt.Fprintf(&b, " |> keep(columns: [%s])", columns(s.Keep))
	}
	if s.Distinct != "" {
		fmt.Fprintf(&b, " |> distinct(column: %s)", literal(s.Distinct))
	}
	return b.String(), nil
}

func writeEquals(b *strings.Builder, column, value string) {
	fmt.Fprintf(b, " |> filter(fn: (r) => r[%s] == %s)", literal(column), literal(value))
}

func columns(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = literal(c)
	}
	return strings.Join(out, ", ")
}

var escaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// literal quotes s as a Flux string literal.
func literal(s string) string {
	return `"` + escaper.Replace(s) + `"`
}
