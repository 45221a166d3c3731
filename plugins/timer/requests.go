package timer

import (
	"fmt"
	"time"
)

type op uint8

const (
	opNow op = iota + 1
	opNotifyAt
	opNotifyAfter
	opClear
)

// Request is one timer operation. Continuations stay opaque; String never
// renders them.
type Request[Msg any] struct {
	op       op
	id       uint64
	at       time.Time
	after    time.Duration
	withTime func(time.Time) Msg
	returns  func() Msg
}

// Now reads the clock and delivers returns(now) to the application.
func Now[Msg any](returns func(time.Time) Msg) Request[Msg] {
	return Request[Msg]{op: opNow, withTime: returns}
}

// NotifyAt arms timer id to fire at the given instant. Instants in the past
// fire immediately. Arming an id that is already pending replaces it.
func NotifyAt[Msg any](id uint64, at time.Time, returns func() Msg) Request[Msg] {
	return Request[Msg]{op: opNotifyAt, id: id, at: at, returns: returns}
}

// NotifyAfter arms timer id to fire after d.
func NotifyAfter[Msg any](id uint64, d time.Duration, returns func() Msg) Request[Msg] {
	return Request[Msg]{op: opNotifyAfter, id: id, after: d, returns: returns}
}

// Clear cancels timer id and acknowledges with returns(). Once a Clear is
// applied the timer never completes, even if it had already fired.
func Clear[Msg any](id uint64, returns func() Msg) Request[Msg] {
	return Request[Msg]{op: opClear, id: id, returns: returns}
}

// MapRequest rewrites the message type produced by r's continuation.
func MapRequest[A, B any](r Request[A], f func(A) B) Request[B] {
	out := Request[B]{op: r.op, id: r.id, at: r.at, after: r.after}
	if r.withTime != nil {
		k := r.withTime
		out.withTime = func(t time.Time) B { return f(k(t)) }
	}
	if r.returns != nil {
		k := r.returns
		out.returns = func() B { return f(k()) }
	}
	return out
}

func (r Request[Msg]) String() string {
	switch r.op {
	case opNow:
		return "Now"
	case opNotifyAt:
		return fmt.Sprintf("NotifyAt(%d, %s)", r.id, r.at.UTC().Format(time.RFC3339Nano))
	case opNotifyAfter:
		return fmt.Sprintf("NotifyAfter(%d, %s)", r.id, r.after)
	case opClear:
		return fmt.Sprintf("Clear(%d)", r.id)
	}
	return "Invalid"
}
