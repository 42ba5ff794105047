// Package timeutil normalizes the many timestamp forms the upstream emits
// into server-local instants. Every captured_at that reaches storage goes
// through a Normalizer first.
package timeutil

import (
	"time"

	"github.com/rs/zerolog"
)

// Layouts accepted for upstream timestamp strings, tried in order.
var stringLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Normalizer converts timestamps into a fixed server-local timezone.
type Normalizer struct {
	loc    *time.Location
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a Normalizer for the given IANA timezone name.
func New(timezone string, logger zerolog.Logger) (*Normalizer, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &Normalizer{
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Location returns the server-local timezone.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Now returns the current server-local instant.
func (n *Normalizer) Now() time.Time {
	return n.now().In(n.loc)
}

// ToLocal coerces v into a server-local instant:
//   - nil or empty string: now
//   - time.Time: converted (the zero value falls back to now)
//   - string: parsed as RFC3339, offset-less ISO (assumed UTC), or a bare
//     date (midnight server-local), then converted
//   - anything else: now, with a warning
//
// Sub-second precision is preserved. ToLocal is idempotent over its own
// output.
func (n *Normalizer) ToLocal(v any) time.Time {
	switch t := v.(type) {
	case nil:
		return n.Now()
	case time.Time:
		if t.IsZero() {
			return n.Now()
		}
		return t.In(n.loc)
	case *time.Time:
		if t == nil || t.IsZero() {
			return n.Now()
		}
		return t.In(n.loc)
	case string:
		if t == "" {
			return n.Now()
		}
		if parsed, ok := n.parseString(t); ok {
			return parsed.In(n.loc)
		}
		n.logger.Warn().Str("value", t).Msg("Unparseable timestamp, falling back to now")
		return n.Now()
	default:
		n.logger.Warn().Interface("value", v).Msg("Unsupported timestamp type, falling back to now")
		return n.Now()
	}
}

func (n *Normalizer) parseString(s string) (time.Time, bool) {
	for _, layout := range stringLayouts {
		var (
			t   time.Time
			err error
		)
		switch layout {
		case "2006-01-02T15:04:05":
			// Offset-less instants are assumed UTC.
			t, err = time.ParseInLocation(layout, s, time.UTC)
		case "2006-01-02":
			// Bare dates are days in the server-local zone.
			t, err = time.ParseInLocation(layout, s, n.loc)
		default:
			t, err = time.Parse(layout, s)
		}
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
