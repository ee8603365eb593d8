package weather

import (
	"math/rand/v2"
	"sync"
)

type condition struct {
	name    string
	emoji   string
	minTemp int
	maxTemp int
	maxWind int
	minHum  int
}

var conditions = []condition{
	{"Sunny", "☀️", 18, 34, 20, 20},
	{"Partly cloudy", "⛅", 12, 28, 25, 35},
	{"Overcast", "☁️", 6, 22, 30, 50},
	{"Rain", "🌧️", 4, 20, 45, 70},
	{"Thunderstorm", "⛈️", 14, 30, 70, 75},
	{"Fog", "🌫️", 0, 14, 10, 85},
	{"Snow", "🌨️", -12, 2, 40, 60},
}

// RandomSampler draws from a fixed table of conditions. It ignores the zone.
type RandomSampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomSampler(seed int64) *RandomSampler {
	return &RandomSampler{rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))}
}

func (s *RandomSampler) Sample(zone string) Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := conditions[s.rng.IntN(len(conditions))]
	return Record{
		Condition: c.name,
		Emoji:     c.emoji,
		TempC:     c.minTemp + s.rng.IntN(c.maxTemp-c.minTemp+1),
		WindKPH:   s.rng.IntN(c.maxWind + 1),
		Humidity:  c.minHum + s.rng.IntN(100-c.minHum+1),
	}
}
