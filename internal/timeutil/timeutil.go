// Package timeutil converts due dates between the storage form and a user's
// local civil time.
//
// STORAGE CONVENTION:
// Due dates are stored "naive": a wall-clock value with no zone, always meaning
// UTC. In Go that is a time.Time whose Location is time.UTC. Conversion to the
// user's zone happens only when presenting, and every write converts back.
package timeutil

import (
	"fmt"
	"strings"
	"time"

	// Embeds the IANA zone database so names like "US/Eastern" resolve even on
	// hosts without /usr/share/zoneinfo (scratch containers, CI runners).
	_ "time/tzdata"
)

// DefaultZone is the zone assigned to new users.
const DefaultZone = "US/Eastern"

// StorageLayout is the text form of a naive UTC instant in the database.
// Fixed width, so lexical order equals chronological order.
const StorageLayout = "2006-01-02 15:04:05"

// inputLayouts are the due-date formats accepted from forms, tried in order.
var inputLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// LoadZone resolves an IANA zone name. An empty name means DefaultZone.
func LoadZone(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timeutil: unknown time zone %q: %w", name, err)
	}
	return loc, nil
}

// Localize converts a naive UTC instant to the civil time of zoneName.
func Localize(naive time.Time, zoneName string) (time.Time, error) {
	loc, err := LoadZone(zoneName)
	if err != nil {
		return time.Time{}, err
	}
	return AsUTC(naive).In(loc), nil
}

// Universify normalises any instant to naive UTC, truncated to the second.
// Sub-second precision is dropped because the storage layout does not keep it.
func Universify(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// AsUTC reinterprets the wall clock of t as UTC without shifting it.
// Values read back from storage pass through here.
func AsUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// FormatStorage renders a due date in StorageLayout after universifying it.
func FormatStorage(t time.Time) string {
	return Universify(t).Format(StorageLayout)
}

// ParseStorage reads a value written by FormatStorage.
func ParseStorage(s string) (time.Time, error) {
	t, err := time.ParseInLocation(StorageLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: parsing stored due date %q: %w", s, err)
	}
	return t, nil
}

// ParseDueDate parses a due date typed by a user in zoneName.
//
// Returns (nil, nil) for an empty string: "no due date" is a valid answer.
// RFC 3339 input carries its own offset and ignores zoneName; the other
// layouts are read as wall-clock time in the user's zone. The result is
// already universified and ready for storage.
func ParseDueDate(raw, zoneName string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		u := Universify(t)
		return &u, nil
	}

	loc, err := LoadZone(zoneName)
	if err != nil {
		return nil, err
	}

	for _, layout := range inputLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			u := Universify(t)
			return &u, nil
		}
	}

	return nil, fmt.Errorf("timeutil: unrecognised due date %q", raw)
}
