package textinput

import (
	"time"

	"github.com/bnema/waycomp/internal/compositor"
)

const (
	respawnWindow = 10 * time.Second
	respawnLimit  = 5
)

// Respawner decides whether a crashed helper may be restarted. Deaths are
// counted in windows starting at the first death after the previous window
// expired.
type Respawner struct {
	Clock  compositor.Clock
	Window time.Duration
	Limit  int

	count int
	stamp time.Time
}

func NewRespawner(clock compositor.Clock) *Respawner {
	if clock == nil {
		clock = compositor.SystemClock
	}
	return &Respawner{
		Clock:  clock,
		Window: respawnWindow,
		Limit:  respawnLimit,
	}
}

// Died records a death and reports whether the helper should be launched
// again.
func (r *Respawner) Died() bool {
	now := r.Clock.Now()
	if r.stamp.IsZero() || now.Sub(r.stamp) > r.Window {
		r.stamp = now
		r.count = 0
	}
	r.count++
	return r.count <= r.Limit
}

// Deaths returns the deaths counted in the current window.
func (r *Respawner) Deaths() int {
	return r.count
}
