// Package mapper fills typed records from flattened payloads.
//
// HOW A KEY FINDS ITS FIELD:
//
//	flattened key               field name               table entry
//	id_str                  →   idStr                →   "idStr"
//	entities_media_0_media_url → entitiesMedia0MediaUrl → "entitiesMedia0MediaUrl"
//
// The lookup is case-insensitive, so "userProfileImageURL" and
// "userProfileImageUrl" are the same field. Keys without a table entry are
// skipped: payloads carry far more than any record stores, and the record keeps
// the full original JSON separately.
//
// Each record type declares its table once (see model.TweetFields). There is
// no reflection involved.
package mapper

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/sakif/tweetsync/internal/apperror"
	"github.com/sakif/tweetsync/internal/flatten"
)

// Setter assigns one converted value onto dst.
type Setter[T any] func(dst *T, value any) error

// FieldTable is the static field-name → setter table of one record type.
type FieldTable[T any] struct {
	setters map[string]Setter[T] // keyed by lower-cased field name
}

// NewFieldTable builds a table. Field names are matched case-insensitively.
func NewFieldTable[T any](fields map[string]Setter[T]) *FieldTable[T] {
	setters := make(map[string]Setter[T], len(fields))
	for name, set := range fields {
		setters[strings.ToLower(name)] = set
	}
	return &FieldTable[T]{setters: setters}
}

// Lookup returns the setter for a field name.
func (t *FieldTable[T]) Lookup(field string) (Setter[T], bool) {
	set, ok := t.setters[strings.ToLower(field)]
	return set, ok
}

// Len is the number of settable fields.
func (t *FieldTable[T]) Len() int { return len(t.setters) }

// FieldName converts a flattened key to lowerCamel. Runs of '_' or '-' are
// treated as one word boundary.
func FieldName(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' })

	var sb strings.Builder
	for i, w := range words {
		if i == 0 {
			sb.WriteString(lowerFirst(w))
			continue
		}
		sb.WriteString(upperFirst(w))
	}
	return sb.String()
}

// Map applies flat onto dst. dateFields are flattened keys whose string value
// must parse as a timestamp before the setter runs.
func Map[T any](flat flatten.Map, dateFields []string, table *FieldTable[T], dst *T) error {
	isDate := make(map[string]bool, len(dateFields))
	for _, k := range dateFields {
		isDate[k] = true
	}

	for _, e := range flat {
		set, ok := table.Lookup(FieldName(e.Key))
		if !ok {
			continue
		}

		value := e.Value
		if isDate[e.Key] {
			ts, err := parseDate(e.Key, value)
			if err != nil {
				return err
			}
			value = ts
		}

		if err := set(dst, value); err != nil {
			return apperror.Malformed(fmt.Sprintf("field %s: %v", e.Key, err), err)
		}
	}
	return nil
}

func parseDate(key string, value any) (time.Time, error) {
	s, ok := value.(string)
	if !ok {
		return time.Time{}, apperror.Malformed(
			fmt.Sprintf("date field %s is %T, not a string", key, value), nil)
	}
	ts, err := ParseTime(s)
	if err != nil {
		return time.Time{}, apperror.Malformed(
			fmt.Sprintf("date field %s: cannot parse %q", key, s), err)
	}
	return ts, nil
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
