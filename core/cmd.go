package core

// Cmd is an ordered batch of pending effect requests. The zero value is the
// empty batch. A Cmd is immutable; And and Map always return new batches.
type Cmd[R any] struct {
	reqs []R
}

// None returns the empty batch, the identity of And.
func None[R any]() Cmd[R] {
	return Cmd[R]{}
}

// Single returns a batch holding one request.
func Single[R any](req R) Cmd[R] {
	return Cmd[R]{reqs: []R{req}}
}

// Batch concatenates cmds in order.
func Batch[R any](cmds ...Cmd[R]) Cmd[R] {
	n := 0
	for _, c := range cmds {
		n += len(c.reqs)
	}
	if n == 0 {
		return Cmd[R]{}
	}
	reqs := make([]R, 0, n)
	for _, c := range cmds {
		reqs = append(reqs, c.reqs...)
	}
	return Cmd[R]{reqs: reqs}
}

// And returns c followed by d.
func (c Cmd[R]) And(d Cmd[R]) Cmd[R] {
	return Batch(c, d)
}

// Requests returns a copy of the batch in order.
func (c Cmd[R]) Requests() []R {
	if len(c.reqs) == 0 {
		return nil
	}
	out := make([]R, len(c.reqs))
	copy(out, c.reqs)
	return out
}

// Len returns the number of requests in the batch.
func (c Cmd[R]) Len() int { return len(c.reqs) }

// IsNone reports whether the batch is empty.
func (c Cmd[R]) IsNone() bool { return len(c.reqs) == 0 }

// Map applies f to every request, keeping order and cardinality.
func Map[R, S any](c Cmd[R], f func(R) S) Cmd[S] {
	if len(c.reqs) == 0 {
		return Cmd[S]{}
	}
	out := make([]S, len(c.reqs))
	for i, r := range c.reqs {
		out[i] = f(r)
	}
	return Cmd[S]{reqs: out}
}
