package compositor

import (
	"context"
	"sync"
	"time"
)

// Loop is the single dispatch thread. Everything that touches compositor
// state runs on it; other goroutines hand work over with Post.
type Loop struct {
	queue  chan func()
	closed chan struct{}
	once   sync.Once
}

func NewLoop(depth int) *Loop {
	if depth <= 0 {
		depth = 256
	}
	return &Loop{
		queue:  make(chan func(), depth),
		closed: make(chan struct{}),
	}
}

// Post queues fn to run on the loop. It may be called from any goroutine.
// Work posted after the loop stopped is dropped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.closed:
	case l.queue <- fn:
	}
}

// AfterFunc runs fn on the loop once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() {
		l.Post(fn)
	})
}

// Run dispatches posted work until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.closed) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.queue:
			fn()
		}
	}
}

// DispatchPending runs whatever is queued without blocking and returns the
// number of functions run.
func (l *Loop) DispatchPending() int {
	n := 0
	for {
		select {
		case fn := <-l.queue:
			fn()
			n++
		default:
			return n
		}
	}
}

// Clock supplies wall time. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock is the real-time clock.
var SystemClock Clock = systemClock{}
