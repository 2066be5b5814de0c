package eventloop

import "time"

// Manual is a Scheduler and Poster driven by hand. Time only moves when
// Advance is called, which makes timer ordering in tests deterministic.
type Manual struct {
	now    time.Time
	seq    uint64
	timers []*manualTimer
	posted []func()
}

// NewManual returns a Manual clock starting at the Unix epoch.
func NewManual() *Manual {
	return &Manual{now: time.Unix(0, 0)}
}

type manualTimer struct {
	m       *Manual
	due     time.Time
	seq     uint64
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.m.remove(t)
	return true
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	return m.now
}

// AfterFunc schedules fn at Now()+d.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{m: m, due: m.now.Add(d), seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

// Post queues fn until the next Flush or Advance.
func (m *Manual) Post(fn func()) bool {
	m.posted = append(m.posted, fn)
	return true
}

// Flush runs posted tasks, including any they post, until none remain.
func (m *Manual) Flush() {
	for len(m.posted) > 0 {
		fn := m.posted[0]
		m.posted = m.posted[1:]
		fn()
	}
}

// Advance moves time forward by d, firing due timers in order.
func (m *Manual) Advance(d time.Duration) {
	deadline := m.now.Add(d)
	m.Flush()
	for {
		t := m.next()
		if t == nil || t.due.After(deadline) {
			break
		}
		m.remove(t)
		if t.due.After(m.now) {
			m.now = t.due
		}
		t.fired = true
		t.fn()
		m.Flush()
	}
	if deadline.After(m.now) {
		m.now = deadline
	}
}

// Pending reports how many timers are waiting.
func (m *Manual) Pending() int {
	return len(m.timers)
}

func (m *Manual) next() *manualTimer {
	var best *manualTimer
	for _, t := range m.timers {
		if best == nil || t.due.Before(best.due) || (t.due.Equal(best.due) && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

func (m *Manual) remove(target *manualTimer) {
	for i, t := range m.timers {
		if t == target {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}
