package weather

import (
	"context"
	"testing"
	"time"

	"almanac/internal/tenant"
)

func TestRandomSamplerStaysInRange(t *testing.T) {
	t.Parallel()
	s := NewRandomSampler(42)
	for i := 0; i < 500; i++ {
		r := s.Sample("UTC")
		var c *condition
		for j := range conditions {
			if conditions[j].name == r.Condition {
				c = &conditions[j]
			}
		}
		if c == nil {
			t.Fatalf("unknown condition %q", r.Condition)
		}
		if r.TempC < c.minTemp || r.TempC > c.maxTemp {
			t.Fatalf("%s temp %d outside [%d,%d]", r.Condition, r.TempC, c.minTemp, c.maxTemp)
		}
		if r.WindKPH < 0 || r.WindKPH > c.maxWind || r.Humidity < c.minHum || r.Humidity > 100 {
			t.Fatalf("record out of range: %+v", r)
		}
	}
}

func TestSeededSamplerIsDeterministic(t *testing.T) {
	t.Parallel()
	a, b := NewRandomSampler(7), NewRandomSampler(7)
	for i := 0; i < 20; i++ {
		if ra, rb := a.Sample("UTC"), b.Sample("UTC"); ra != rb {
			t.Fatalf("draw %d differs: %+v vs %+v", i, ra, rb)
		}
	}
}

func TestComposeUsesTenantZone(t *testing.T) {
	t.Parallel()
	var gotZone string
	c := NewComposer(SamplerFunc(func(zone string) Record {
		gotZone = zone
		return Record{Condition: "Fog", Emoji: "🌫️", TempC: 3, WindKPH: 5, Humidity: 95}
	}))
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	now := time.Date(2025, 1, 2, 7, 30, 0, 0, loc)

	comp, err := c.Compose(context.Background(), tenant.Schedule{TenantID: "g", Timezone: "Asia/Tokyo"}, now)
	if err != nil {
		t.Fatal(err)
	}
	if gotZone != "Asia/Tokyo" {
		t.Fatalf("sampler zone = %q", gotZone)
	}
	want := "🌫️ Weather at 07:30 JST: Fog, 3°C, wind 5 km/h, humidity 95%."
	if comp.Payload.Text != want || comp.Payload.Kind != Kind || comp.LogicalDate != nil {
		t.Fatalf("composition = %+v", comp)
	}
}
