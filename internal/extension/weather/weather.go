// Package weather posts randomized weather for a tenant's zone.
package weather

import (
	"context"
	"fmt"
	"time"

	"almanac/internal/driver"
	"almanac/internal/tenant"
)

const Kind = "weather"

// Record is one sampled weather report.
type Record struct {
	Condition string
	Emoji     string
	TempC     int
	WindKPH   int
	Humidity  int // percent
}

// Sampler produces a weather record for a zone. It is called once per due fire.
type Sampler interface {
	Sample(zone string) Record
}

type SamplerFunc func(zone string) Record

func (f SamplerFunc) Sample(zone string) Record { return f(zone) }

type Composer struct {
	Sampler Sampler
}

func NewComposer(s Sampler) Composer {
	if s == nil {
		s = NewRandomSampler(time.Now().UnixNano())
	}
	return Composer{Sampler: s}
}

func (c Composer) Compose(ctx context.Context, rec tenant.Schedule, now time.Time) (driver.Composition, error) {
	r := c.Sampler.Sample(rec.Timezone)
	return driver.Composition{Payload: driver.Payload{Kind: Kind, Text: Render(r, now)}}, nil
}

// Render formats a record; now supplies the local time shown in the header.
func Render(r Record, now time.Time) string {
	return fmt.Sprintf("%s Weather at %s: %s, %d°C, wind %d km/h, humidity %d%%.",
		r.Emoji, now.Format("15:04 MST"), r.Condition, r.TempC, r.WindKPH, r.Humidity)
}
