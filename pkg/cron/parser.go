// Package cron parses five-field cron expressions and computes run times.
package cron

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldKind identifies one of the five cron positions.
type FieldKind int

const (
	FieldMinute FieldKind = iota
	FieldHour
	FieldDayOfMonth
	FieldMonth
	FieldDayOfWeek
)

// String returns the field name as used in diagnostics.
func (k FieldKind) String() string {
	switch k {
	case FieldMinute:
		return "minute"
	case FieldHour:
		return "hour"
	case FieldDayOfMonth:
		return "day-of-month"
	case FieldMonth:
		return "month"
	case FieldDayOfWeek:
		return "day-of-week"
	}
	return "unknown"
}

// bounds returns the inclusive value range for the field.
func (k FieldKind) bounds() (min, max int) {
	switch k {
	case FieldMinute:
		return 0, 59
	case FieldHour:
		return 0, 23
	case FieldDayOfMonth:
		return 1, 31
	case FieldMonth:
		return 1, 12
	case FieldDayOfWeek:
		return 0, 6
	}
	return 0, 0
}

// ParseError describes a malformed cron field.
type ParseError struct {
	Field  FieldKind
	Expr   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cron: invalid %s field %q: %s", e.Field, e.Expr, e.Reason)
}

// Field holds the normalized value set for one cron position.
// The zero value is not valid; fields are produced by Parse.
type Field struct {
	kind     FieldKind
	bits     uint64
	wildcard bool // written as a bare "*"
}

// Kind returns the field's position.
func (f Field) Kind() FieldKind { return f.kind }

// Contains reports whether v is in the field's value set.
func (f Field) Contains(v int) bool {
	min, max := f.kind.bounds()
	if v < min || v > max {
		return false
	}
	return f.bits&(1<<uint(v)) != 0
}

// Restricted reports whether the field constrains its position. A field
// written as a bare "*" is unrestricted; everything else (including "*/s"
// and full explicit ranges) counts as restricted, matching the standard
// day-of-month/day-of-week combination convention.
func (f Field) Restricted() bool { return !f.wildcard }

// Values returns the field's value set sorted ascending.
func (f Field) Values() []int {
	min, max := f.kind.bounds()
	vals := make([]int, 0, max-min+1)
	for v := min; v <= max; v++ {
		if f.bits&(1<<uint(v)) != 0 {
			vals = append(vals, v)
		}
	}
	return vals
}

// format renders the field in its normalized form: "*" when unrestricted,
// otherwise the sorted comma-separated value list.
func (f Field) format() string {
	if f.wildcard {
		return "*"
	}
	vals := f.Values()
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// minGap returns the minimum gap between consecutive values in the set,
// treating the set as circular over the field's period.
func (f Field) minGap() int {
	min, max := f.kind.bounds()
	period := max - min + 1
	vals := f.Values()
	if len(vals) <= 1 {
		return period
	}
	gap := vals[0] + period - vals[len(vals)-1]
	for i := 1; i < len(vals); i++ {
		if d := vals[i] - vals[i-1]; d < gap {
			gap = d
		}
	}
	return gap
}

// Expression is an immutable parsed cron expression.
type Expression struct {
	minute, hour, dom, month, dow Field
	source                        string
}

// Source returns the original expression text.
func (e *Expression) Source() string { return e.source }

// String returns the original expression text.
func (e *Expression) String() string { return e.source }

// Normalized renders the expression with each field in canonical form
// (sorted, deduplicated value lists). Parsing the result yields an
// expression equal to the receiver.
func (e *Expression) Normalized() string {
	return strings.Join([]string{
		e.minute.format(),
		e.hour.format(),
		e.dom.format(),
		e.month.format(),
		e.dow.format(),
	}, " ")
}

// Equal reports whether two expressions resolve to the same field sets,
// regardless of how they were written.
func (e *Expression) Equal(other *Expression) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.minute.bits == other.minute.bits && e.minute.wildcard == other.minute.wildcard &&
		e.hour.bits == other.hour.bits && e.hour.wildcard == other.hour.wildcard &&
		e.dom.bits == other.dom.bits && e.dom.wildcard == other.dom.wildcard &&
		e.month.bits == other.month.bits && e.month.wildcard == other.month.wildcard &&
		e.dow.bits == other.dow.bits && e.dow.wildcard == other.dow.wildcard
}

// descriptors maps shorthand schedules to their five-field equivalents.
var descriptors = map[string]string{
	"@yearly":   "0 0 1 1 *",
	"@annually": "0 0 1 1 *",
	"@monthly":  "0 0 1 * *",
	"@weekly":   "0 0 * * 0",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@hourly":   "0 * * * *",
}

// Parse parses a five-field cron expression (minute, hour, day-of-month,
// month, day-of-week). Each field supports "*", single values, comma lists,
// inclusive ranges "a-b", and steps "a-b/s" or "*/s". Month and day-of-week
// fields also accept the usual three-letter names (JAN..DEC, SUN..SAT).
// Shorthand descriptors (@hourly, @daily, @weekly, @monthly, @yearly,
// @midnight) desugar to their five-field equivalents.
func Parse(text string) (*Expression, error) {
	source := text
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "@") {
		desugared, ok := descriptors[strings.ToLower(text)]
		if !ok {
			return nil, &ParseError{Field: FieldMinute, Expr: text, Reason: "unrecognized descriptor"}
		}
		text = desugared
	}

	fields := strings.Fields(text)
	if len(fields) != 5 {
		return nil, &ParseError{
			Field:  FieldMinute,
			Expr:   source,
			Reason: fmt.Sprintf("expected 5 fields, got %d", len(fields)),
		}
	}

	expr := &Expression{source: source}
	kinds := [5]FieldKind{FieldMinute, FieldHour, FieldDayOfMonth, FieldMonth, FieldDayOfWeek}
	targets := [5]*Field{&expr.minute, &expr.hour, &expr.dom, &expr.month, &expr.dow}

	for i, kind := range kinds {
		field, err := parseField(fields[i], kind)
		if err != nil {
			return nil, err
		}
		*targets[i] = field
	}

	return expr, nil
}

// MustParse parses text and panics on error. Intended for fixed expressions.
func MustParse(text string) *Expression {
	expr, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return expr
}

// Validate checks whether text is a parseable cron expression.
func Validate(text string) error {
	_, err := Parse(text)
	return err
}

// parseField resolves one field to its normalized value set.
func parseField(text string, kind FieldKind) (Field, error) {
	field := Field{kind: kind, wildcard: text == "*"}

	for _, part := range strings.Split(text, ",") {
		bits, err := parsePart(part, kind)
		if err != nil {
			return Field{}, err
		}
		field.bits |= bits
	}

	if field.bits == 0 {
		return Field{}, &ParseError{Field: kind, Expr: text, Reason: "empty value set"}
	}
	return field, nil
}

// parsePart resolves a single comma-separated element: a value, a range,
// a wildcard, or any of those with a step suffix.
func parsePart(part string, kind FieldKind) (uint64, error) {
	min, max := kind.bounds()

	base := part
	step := 1
	if idx := strings.IndexByte(part, '/'); idx >= 0 {
		if strings.IndexByte(part[idx+1:], '/') >= 0 {
			return 0, &ParseError{Field: kind, Expr: part, Reason: "too many steps"}
		}
		base = part[:idx]
		n, err := strconv.Atoi(part[idx+1:])
		if err != nil || n < 1 {
			return 0, &ParseError{Field: kind, Expr: part, Reason: "step must be a positive integer"}
		}
		step = n
	}

	var lo, hi int
	switch {
	case base == "*":
		lo, hi = min, max
	case strings.IndexByte(base, '-') > 0:
		bounds := strings.SplitN(base, "-", 2)
		a, err := parseValue(bounds[0], kind)
		if err != nil {
			return 0, err
		}
		b, err := parseValue(bounds[1], kind)
		if err != nil {
			return 0, err
		}
		if a > b {
			return 0, &ParseError{Field: kind, Expr: base, Reason: "range start exceeds end"}
		}
		lo, hi = a, b
	default:
		v, err := parseValue(base, kind)
		if err != nil {
			return 0, err
		}
		lo = v
		hi = v
		if step > 1 {
			// "n/s" follows the conventional reading "n-max/s".
			hi = max
		}
	}

	var bits uint64
	for v := lo; v <= hi; v += step {
		bits |= 1 << uint(v)
	}
	return bits, nil
}

var monthNames = map[string]int{
	"JAN": 1, "FEB": 2, "MAR": 3, "APR": 4, "MAY": 5, "JUN": 6,
	"JUL": 7, "AUG": 8, "SEP": 9, "OCT": 10, "NOV": 11, "DEC": 12,
}

var dayNames = map[string]int{
	"SUN": 0, "MON": 1, "TUE": 2, "WED": 3, "THU": 4, "FRI": 5, "SAT": 6,
}

// parseValue parses a single numeric or named value, validated against the
// field's bounds.
func parseValue(text string, kind FieldKind) (int, error) {
	min, max := kind.bounds()

	if v, err := strconv.Atoi(text); err == nil {
		if v < min || v > max {
			return 0, &ParseError{
				Field:  kind,
				Expr:   text,
				Reason: fmt.Sprintf("value %d out of range [%d, %d]", v, min, max),
			}
		}
		return v, nil
	}

	switch kind {
	case FieldMonth:
		if v, ok := monthNames[strings.ToUpper(text)]; ok {
			return v, nil
		}
	case FieldDayOfWeek:
		if v, ok := dayNames[strings.ToUpper(text)]; ok {
			return v, nil
		}
	}

	return 0, &ParseError{Field: kind, Expr: text, Reason: "not a valid value"}
}
