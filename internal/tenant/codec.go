package tenant

import (
	"fmt"
	"strings"
	"time"

	"almanac/internal/clock"
	"almanac/internal/rollover"
	"almanac/internal/schedule"
)

// Encode flattens a record into plain key/value fields. Absent optional
// values encode as "".
func Encode(s Schedule) map[string]string {
	out := map[string]string{
		string(FieldTimezone): s.Timezone,
		string(FieldCadence):  s.Cadence.String(),
		string(FieldChannel):  s.Channel,
	}
	out[string(FieldLastFiredAt)] = EncodeTime(s.LastFiredAt)
	out[string(FieldLogicalDate)] = encodeDate(s.LogicalDate)
	out[string(FieldLogicalOrigin)] = encodeDate(s.LogicalOrigin)
	out[string(FieldLogicalAnchor)] = encodeDate(s.LogicalAnchor)
	return out
}

// Decode rebuilds a record. A stored zone that no longer validates falls back
// to the default so read sites never see an invalid zone.
func Decode(id string, fields map[string]string, d Defaults) (Schedule, error) {
	s := New(id, d)

	if tz := strings.TrimSpace(fields[string(FieldTimezone)]); tz != "" && clock.ValidateZone(tz) {
		s.Timezone = tz
	}

	c, err := schedule.Parse(fields[string(FieldCadence)])
	if err != nil {
		return Schedule{}, fmt.Errorf("tenant %s: %w", id, err)
	}
	s.Cadence = c

	if v := strings.TrimSpace(fields[string(FieldLastFiredAt)]); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return Schedule{}, fmt.Errorf("tenant %s: invalid %s %q: %w", id, FieldLastFiredAt, v, err)
		}
		t = t.UTC()
		s.LastFiredAt = &t
	}

	if s.LogicalDate, err = decodeDate(fields[string(FieldLogicalDate)]); err != nil {
		return Schedule{}, fmt.Errorf("tenant %s: %s: %w", id, FieldLogicalDate, err)
	}
	if s.LogicalOrigin, err = decodeDate(fields[string(FieldLogicalOrigin)]); err != nil {
		return Schedule{}, fmt.Errorf("tenant %s: %s: %w", id, FieldLogicalOrigin, err)
	}
	if s.LogicalAnchor, err = decodeDate(fields[string(FieldLogicalAnchor)]); err != nil {
		return Schedule{}, fmt.Errorf("tenant %s: %s: %w", id, FieldLogicalAnchor, err)
	}

	s.Channel = strings.TrimSpace(fields[string(FieldChannel)])
	return s, nil
}

func EncodeTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeDate(d *rollover.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func decodeDate(v string) (*rollover.Date, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	d, err := rollover.ParseDate(v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
