package timer

import (
	"log/slog"
	"time"

	"github.com/mattjoyce/saucer/core"
	"github.com/mattjoyce/saucer/internal/log"
)

// SelfMsg reports that a timer fired. Gen distinguishes re-arms of the same
// id so a stale firing is ignored.
type SelfMsg struct {
	ID  uint64
	Gen uint64
}

type entry[Msg any] struct {
	gen     uint64
	at      time.Time
	returns func() Msg
	stop    func() bool
}

// State tracks pending timers by id.
type State[Msg any] struct {
	gen     uint64
	pending map[uint64]entry[Msg]
}

// Pending returns the number of armed timers.
func (s State[Msg]) Pending() int { return len(s.pending) }

// IsPending reports whether timer id is armed.
func (s State[Msg]) IsPending(id uint64) bool {
	_, ok := s.pending[id]
	return ok
}

// Deadline returns when timer id is due to fire.
func (s State[Msg]) Deadline(id uint64) (time.Time, bool) {
	e, ok := s.pending[id]
	return e.at, ok
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	clock  Clock
	logger *slog.Logger
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(o *options) { o.clock = c } }

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// Manager interprets timer requests.
type Manager[Msg any] struct {
	clock  Clock
	logger *slog.Logger
}

// NewManager creates a timer manager on the wall clock.
func NewManager[Msg any](opts ...Option) *Manager[Msg] {
	o := options{clock: SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.WithPlugin("timer")
	}
	return &Manager[Msg]{clock: o.clock, logger: o.logger}
}

func (m *Manager[Msg]) InitState() State[Msg] {
	return State[Msg]{pending: make(map[uint64]entry[Msg])}
}

func (m *Manager[Msg]) OnEffects(r core.Router[Msg, SelfMsg], s State[Msg], reqs []Request[Msg]) State[Msg] {
	if s.pending == nil {
		s.pending = make(map[uint64]entry[Msg])
	}
	for _, req := range reqs {
		switch req.op {
		case opNow:
			r.DeliverToApp(req.withTime(m.clock.Now()))
		case opNotifyAt:
			s = m.arm(r, s, req.id, req.at.Sub(m.clock.Now()), req.returns)
		case opNotifyAfter:
			s = m.arm(r, s, req.id, req.after, req.returns)
		case opClear:
			if e, ok := s.pending[req.id]; ok {
				e.stop()
				delete(s.pending, req.id)
				m.logger.Debug("timer cleared", "id", req.id)
			}
			r.DeliverToApp(req.returns())
		default:
			m.logger.Warn("invalid timer request dropped")
		}
	}
	return s
}

func (m *Manager[Msg]) arm(r core.Router[Msg, SelfMsg], s State[Msg], id uint64, d time.Duration, returns func() Msg) State[Msg] {
	if prev, ok := s.pending[id]; ok {
		prev.stop()
		m.logger.Debug("timer re-armed", "id", id)
	}
	d = max(d, 0)
	s.gen++
	gen := s.gen
	stop := m.clock.AfterFunc(d, func() {
		r.DeliverToSelf(SelfMsg{ID: id, Gen: gen})
	})
	s.pending[id] = entry[Msg]{gen: gen, at: m.clock.Now().Add(d), returns: returns, stop: stop}
	return s
}

// OnSelfMsg completes a fired timer if it is still the pending generation.
func (m *Manager[Msg]) OnSelfMsg(r core.Router[Msg, SelfMsg], s State[Msg], msg SelfMsg) State[Msg] {
	e, ok := s.pending[msg.ID]
	if !ok || e.gen != msg.Gen {
		m.logger.Debug("stale timer firing ignored", "id", msg.ID, "gen", msg.Gen)
		return s
	}
	delete(s.pending, msg.ID)
	r.DeliverToApp(e.returns())
	return s
}

// Finalize stops every pending timer.
func (m *Manager[Msg]) Finalize(s State[Msg]) {
	for id, e := range s.pending {
		e.stop()
		delete(s.pending, id)
	}
}
