package ports

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownPort is returned for a port nobody declared.
var ErrUnknownPort = errors.New("unknown port")

// InPort is a typed entry point into the application.
type InPort[T any] struct {
	name string
	send func(T) bool
}

// Name returns the port name.
func (p *InPort[T]) Name() string { return p.name }

// Send delivers the message built from v to Update. It is safe from any
// goroutine and returns false once the runtime is shutting down or before
// the manager is bound.
func (p *InPort[T]) Send(v T) bool { return p.send(v) }

// Inbound declares port name. Values sent through it reach the application
// as ctor(v). The host bridge decodes JSON payloads into T. Declaring the
// same name twice replaces the earlier port.
func Inbound[T, Msg any](m *Manager[Msg], name string, ctor func(T) Msg) *InPort[T] {
	m.mu.Lock()
	m.inbound[name] = inbound[Msg]{decode: func(raw json.RawMessage) (Msg, error) {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			var zero Msg
			return zero, fmt.Errorf("decode %s payload: %w", name, err)
		}
		return ctor(v), nil
	}}
	m.mu.Unlock()
	return &InPort[T]{name: name, send: func(v T) bool { return m.deliver(ctor(v)) }}
}
