// Package journal reads the game's newline-delimited JSON journal: it parses
// lines into records, locates journal files and tails the active one.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Record is one parsed journal line. Kind is the "event" tag; the vocabulary
// is open, so unknown kinds are normal.
type Record struct {
	Kind      string
	Timestamp time.Time // zero when the line carries none
	Fields    map[string]any
}

// ParseError reports a line that is not a structured journal record.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string { return "journal parse: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

var errNoEvent = errors.New("missing event tag")

// Parse decodes one journal line.
func Parse(line string) (*Record, error) {
	line = strings.TrimSpace(line)
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return nil, &ParseError{Line: line, Err: err}
	}
	kind, _ := fields["event"].(string)
	if kind == "" {
		return nil, &ParseError{Line: line, Err: errNoEvent}
	}
	r := &Record{Kind: kind, Fields: fields}
	if raw, ok := fields["timestamp"].(string); ok && raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, &ParseError{Line: line, Err: fmt.Errorf("timestamp %q: %w", raw, err)}
		}
		r.Timestamp = ts
	}
	return r, nil
}

// Has reports whether key is present.
func (r *Record) Has(key string) bool {
	_, ok := r.Fields[key]
	return ok
}

// StrOr returns the string at key, or def when absent or not a string.
func (r *Record) StrOr(key, def string) string {
	if s, ok := r.Fields[key].(string); ok {
		return s
	}
	return def
}

// BoolOr returns the bool at key, or def when absent or not a bool.
func (r *Record) BoolOr(key string, def bool) bool {
	if b, ok := r.Fields[key].(bool); ok {
		return b
	}
	return def
}

// Contains reports whether the string at key contains substr.
func (r *Record) Contains(key, substr string) bool {
	return strings.Contains(r.StrOr(key, ""), substr)
}

// Read returns a field reader that records the first access error.
func (r *Record) Read() *Fields { return &Fields{r: r} }

// FieldError reports a missing or mistyped field on a recognised record.
type FieldError struct {
	Key     string
	Want    string
	Missing bool
}

func (e *FieldError) Error() string {
	if e.Missing {
		return fmt.Sprintf("field %q missing", e.Key)
	}
	return fmt.Sprintf("field %q is not %s", e.Key, e.Want)
}

// Fields reads typed values from a record. After the first failure every
// accessor returns a zero value and Err reports that failure.
type Fields struct {
	r   *Record
	err error
}

// Err returns the first access error, if any.
func (f *Fields) Err() error { return f.err }

func (f *Fields) get(key, want string) (any, bool) {
	if f.err != nil {
		return nil, false
	}
	v, ok := f.r.Fields[key]
	if !ok {
		f.err = &FieldError{Key: key, Want: want, Missing: true}
		return nil, false
	}
	return v, true
}

func (f *Fields) fail(key, want string) {
	f.err = &FieldError{Key: key, Want: want}
}

func (f *Fields) Str(key string) string {
	v, ok := f.get(key, "a string")
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		f.fail(key, "a string")
	}
	return s
}

func (f *Fields) Float(key string) float64 {
	v, ok := f.get(key, "a number")
	if !ok {
		return 0
	}
	n, ok := v.(float64)
	if !ok {
		f.fail(key, "a number")
	}
	return n
}

func (f *Fields) Int(key string) int64 { return int64(f.Float(key)) }

func (f *Fields) Bool(key string) bool {
	v, ok := f.get(key, "a bool")
	if !ok {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		f.fail(key, "a bool")
	}
	return b
}

func (f *Fields) Objects(key string) []map[string]any {
	v, ok := f.get(key, "a list of objects")
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		f.fail(key, "a list of objects")
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, it := range list {
		m, ok := it.(map[string]any)
		if !ok {
			f.fail(key, "a list of objects")
			return nil
		}
		out = append(out, m)
	}
	return out
}

func (f *Fields) Object(key string) map[string]any {
	v, ok := f.get(key, "an object")
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		f.fail(key, "an object")
	}
	return m
}

// Localised returns key+"_Localised" when present, else the value at key
// passed through fallback.
func (f *Fields) Localised(key string, fallback func(string) string) string {
	if s, ok := f.r.Fields[key+"_Localised"].(string); ok && s != "" {
		return s
	}
	s := f.Str(key)
	if fallback != nil {
		return fallback(s)
	}
	return s
}

// Each calls fn with a reader for every object in the list at key. The
// first failure inside an element becomes f's failure and stops the walk.
func (f *Fields) Each(key string, fn func(*Fields)) {
	for _, m := range f.Objects(key) {
		sub := &Fields{r: &Record{Kind: f.r.Kind, Timestamp: f.r.Timestamp, Fields: m}}
		fn(sub)
		if sub.err != nil {
			f.err = sub.err
			return
		}
	}
}

// In calls fn with a reader for the object at key.
func (f *Fields) In(key string, fn func(*Fields)) {
	m := f.Object(key)
	if m == nil {
		return
	}
	sub := &Fields{r: &Record{Kind: f.r.Kind, Timestamp: f.r.Timestamp, Fields: m}}
	fn(sub)
	if sub.err != nil {
		f.err = sub.err
	}
}
