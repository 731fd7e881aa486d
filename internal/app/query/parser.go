package query

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/domain"
)

const (
	colValue = "_value"
	colTime  = "_time"
	colField = "_field"
)

// RowError reports a response row that was skipped.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e RowError) Unwrap() error { return e.Err }

var errMissingColumn = errors.New("missing column")

// table walks the records of a raw CSV response, tracking the active header.
type table struct {
	r      *csv.Reader
	header []string
	cols   map[string]int
	errs   []RowError
}

func newTable(raw string) *table {
	r := csv.NewReader(strings.NewReader(raw))
	r.FieldsPerRecord = -1
	r.Comment = '#'
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	return &table{r: r}
}

// next returns the following data row, or nil at the end of the response.
func (t *table) next() ([]string, int) {
	for {
		rec, err := t.r.Read()
		if errors.Is(err, io.EOF) {
			return nil, 0
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				t.errs = append(t.errs, RowError{Line: perr.Line, Err: err})
				continue
			}
			t.errs = append(t.errs, RowError{Err: err})
			return nil, 0
		}
		line, _ := t.r.FieldPos(0)
		if blank(rec) {
			continue
		}
		if t.header == nil || t.isHeader(rec) {
			t.setHeader(rec)
			continue
		}
		return rec, line
	}
}

// isHeader recognises the header line that starts every table of a multi-table response.
func (t *table) isHeader(rec []string) bool {
	if equal(rec, t.header) {
		return true
	}
	var result, tbl bool
	for _, c := range rec {
		switch strings.TrimSpace(c) {
		case "result":
			result = true
		case "table":
			tbl = true
		}
	}
	return result && tbl
}

func (t *table) setHeader(rec []string) {
	t.header = rec
	t.cols = make(map[string]int, len(rec))
	for i, c := range rec {
		t.cols[strings.TrimSpace(c)] = i
	}
}

// cell resolves a column by name on the active header.
func (t *table) cell(rec []string, names ...string) (string, error) {
	for _, name := range names {
		if i, ok := t.cols[name]; ok {
			if i >= len(rec) {
				return "", fmt.Errorf("%w %q", errMissingColumn, name)
			}
			return strings.TrimSpace(rec[i]), nil
		}
	}
	return "", fmt.Errorf("%w %q", errMissingColumn, names[0])
}

func (t *table) skip(line int, err error) {
	t.errs = append(t.errs, RowError{Line: line, Err: err})
}

// ParseDistinct extracts the distinct values of column. The value is read from
// _value, or from the column itself when the response carries it under its own name.
// Duplicates and empty cells are dropped; first-seen order is kept.
func ParseDistinct(raw, column string) ([]string, []RowError) {
	out := []string{}
	t := newTable(raw)
	seen := make(map[string]struct{})
	for {
		rec, line := t.next()
		if rec == nil {
			break
		}
		v, err := t.cell(rec, colValue, column)
		if err != nil {
			t.skip(line, err)
			continue
		}
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out, t.errs
}

// ParseValues extracts (_time, _value) rows.
func ParseValues(raw string) ([]domain.SensorValue, []RowError) {
	out := []domain.SensorValue{}
	t := newTable(raw)
	for {
		rec, line := t.next()
		if rec == nil {
			break
		}
		ts, v, err := t.timeAndValue(rec)
		if err != nil {
			t.skip(line, err)
			continue
		}
		out = append(out, domain.SensorValue{Time: ts, Value: v})
	}
	return out, t.errs
}

// ParseSeries extracts (_time, _field, _value) rows.
func ParseSeries(raw string) ([]domain.SensorSeries, []RowError) {
	out := []domain.SensorSeries{}
	t := newTable(raw)
	for {
		rec, line := t.next()
		if rec == nil {
			break
		}
		field, err := t.cell(rec, colField)
		if err == nil && field == "" {
			err = fmt.Errorf("empty %s", colField)
		}
		if err != nil {
			t.skip(line, err)
			continue
		}
		ts, v, err := t.timeAndValue(rec)
		if err != nil {
			t.skip(line, err)
			continue
		}
		out = append(out, domain.SensorSeries{Time: ts, Field: field, Value: v})
	}
	return out, t.errs
}

// ParseMappings extracts sensor-to-room rows: the tag columns named by
// sensorCol and floorCol, an integral _value and _time.
func ParseMappings(raw, sensorCol, floorCol string) ([]domain.SensorMapping, []RowError) {
	out := []domain.SensorMapping{}
	t := newTable(raw)
	for {
		rec, line := t.next()
		if rec == nil {
			break
		}
		sensor, err := t.cell(rec, sensorCol)
		if err != nil {
			t.skip(line, err)
			continue
		}
		floor, err := t.cell(rec, floorCol)
		if err != nil {
			t.skip(line, err)
			continue
		}
		if sensor == "" || floor == "" {
			t.skip(line, fmt.Errorf("empty %s or %s", sensorCol, floorCol))
			continue
		}
		ts, v, err := t.timeAndValue(rec)
		if err != nil {
			t.skip(line, err)
			continue
		}
		if v != math.Trunc(v) {
			t.skip(line, fmt.Errorf("room id %g is not an integer", v))
			continue
		}
		out = append(out, domain.SensorMapping{SensorID: sensor, Floor: floor, RoomID: int(v), Timestamp: ts})
	}
	return out, t.errs
}

func (t *table) timeAndValue(rec []string) (time.Time, float64, error) {
	rawTime, err := t.cell(rec, colTime)
	if err != nil {
		return time.Time{}, 0, err
	}
	rawValue, err := t.cell(rec, colValue)
	if err != nil {
		return time.Time{}, 0, err
	}
	ts, err := time.Parse(time.RFC3339Nano, rawTime)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("bad timestamp %q: %w", rawTime, err)
	}
	v, err := strconv.ParseFloat(rawValue, 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("bad value %q: %w", rawValue, err)
	}
	return ts, v, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if strings.TrimSpace(a[i]) != strings.TrimSpace(b[i]) {
			return false
		}
	}
	return true
}
