package conveyor

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/justconveyor/unit"
)

// TimeProfile summarizes recent per-package durations.
type TimeProfile struct {
	Min    time.Duration `json:"min"`
	Median time.Duration `json:"median"`
	Max    time.Duration `json:"max"`
}

func profileOf(samples []time.Duration) TimeProfile {
	if len(samples) == 0 {
		return TimeProfile{}
	}
	slices.Sort(samples)
	n := len(samples)
	median := samples[n/2]
	if n%2 == 0 {
		median = (samples[n/2-1] + samples[n/2]) / 2
	}
	return TimeProfile{Min: samples[0], Median: median, Max: samples[n-1]}
}

// meter turns a growing count into a per-second rate over the last
// harvest period.
type meter struct {
	mu    sync.Mutex
	last  int64
	at    time.Time
	value float64
}

func (m *meter) reset(at time.Time) {
	m.mu.Lock()
	m.last, m.at, m.value = 0, at, 0
	m.mu.Unlock()
}

func (m *meter) tick(n int64, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.at.IsZero() {
		if secs := now.Sub(m.at).Seconds(); secs > 0 {
			m.value = float64(n-m.last) / secs
		}
	}
	m.last, m.at = n, now
}

func (m *meter) rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

// counters are updated by lines and derived by the harvester.
type counters struct {
	in, out, errs atomic.Int64
	rate          meter

	mu          sync.Mutex
	profiles    []unit.Profile
	onQueue     int
	onQueuePrev int
	wait        TimeProfile
	process     TimeProfile
}

func (c *counters) record(p unit.Profile) {
	c.mu.Lock()
	c.profiles = append(c.profiles, p)
	c.mu.Unlock()
}

// harvest shifts the queue depth, updates the output rate and recomputes
// the time profiles from the samples gathered since the previous harvest.
func (c *counters) harvest(depth int, now time.Time) {
	c.rate.tick(c.out.Load(), now)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.onQueuePrev, c.onQueue = c.onQueue, depth

	waits := make([]time.Duration, len(c.profiles))
	procs := make([]time.Duration, len(c.profiles))
	for i, p := range c.profiles {
		waits[i] = p.WaitTime()
		procs[i] = p.ProcessTime()
	}
	c.profiles = nil
	c.wait = profileOf(waits)
	c.process = profileOf(procs)
}

type harvested struct {
	onQueue, onQueuePrev int
	wait, process        TimeProfile
}

func (c *counters) harvested() harvested {
	c.mu.Lock()
	defer c.mu.Unlock()
	return harvested{onQueue: c.onQueue, onQueuePrev: c.onQueuePrev, wait: c.wait, process: c.process}
}
