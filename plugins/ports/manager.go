package ports

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mattjoyce/saucer/core"
	"github.com/mattjoyce/saucer/internal/log"
)

// Outbound is one value sent through a port.
type Outbound struct {
	Port  string `json:"port"`
	Value any    `json:"value"`
}

// State counts values sent per port.
type State[Msg any] struct {
	sent map[string]uint64
}

// Sent returns how many values went out on port.
func (s State[Msg]) Sent(port string) uint64 { return s.sent[port] }

// Direction of a port relative to the application.
type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// Info describes a known port.
type Info struct {
	Name      string    `json:"name"`
	Direction Direction `json:"direction"`
}

type subscriber struct {
	id int
	fn func(Outbound)
}

type inbound[Msg any] struct {
	decode func(json.RawMessage) (Msg, error)
}

// Manager connects the application to a host process. Inbound ports push
// messages straight to the app mailbox; outbound values are handed to
// subscribers on the loop goroutine, so subscribers must not block.
type Manager[Msg any] struct {
	logger *slog.Logger

	mu       sync.RWMutex
	router   core.Router[Msg, struct{}]
	attached bool
	inbound  map[string]inbound[Msg]
	subs     map[string][]subscriber
	all      []subscriber
	nextSub  int
}

// NewManager creates a ports manager.
func NewManager[Msg any](logger *slog.Logger) *Manager[Msg] {
	if logger == nil {
		logger = log.WithPlugin("ports")
	}
	return &Manager[Msg]{
		logger:  logger,
		inbound: make(map[string]inbound[Msg]),
		subs:    make(map[string][]subscriber),
	}
}

func (m *Manager[Msg]) InitState() State[Msg] { return State[Msg]{sent: map[string]uint64{}} }

// Attach receives the router when the manager is bound to a runtime.
func (m *Manager[Msg]) Attach(r core.Router[Msg, struct{}]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.router = r
	m.attached = true
}

func (m *Manager[Msg]) OnEffects(_ core.Router[Msg, struct{}], s State[Msg], reqs []Request[Msg]) State[Msg] {
	if s.sent == nil {
		s.sent = map[string]uint64{}
	}
	for _, req := range reqs {
		s.sent[req.port]++
		out := Outbound{Port: req.port, Value: req.value}

		m.mu.RLock()
		targets := append(append([]subscriber(nil), m.subs[req.port]...), m.all...)
		m.mu.RUnlock()
		if len(targets) == 0 {
			m.logger.Debug("no subscribers for port", "port", req.port)
		}
		for _, sub := range targets {
			m.call(sub, out)
		}
	}
	return s
}

func (m *Manager[Msg]) call(sub subscriber, out Outbound) {
	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("port subscriber panicked", "port", out.Port, "panic", fmt.Sprint(p))
		}
	}()
	sub.fn(out)
}

func (m *Manager[Msg]) deliver(msg Msg) bool {
	m.mu.RLock()
	r, ok := m.router, m.attached
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return r.DeliverToApp(msg)
}

// Subscribe calls fn with every value sent on port. The returned func
// removes the subscription.
func (m *Manager[Msg]) Subscribe(port string, fn func(value any)) func() {
	return m.add(port, func(o Outbound) { fn(o.Value) })
}

// SubscribeAll calls fn with every outbound value on every port.
func (m *Manager[Msg]) SubscribeAll(fn func(Outbound)) func() {
	return m.add("", fn)
}

func (m *Manager[Msg]) add(port string, fn func(Outbound)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSub++
	sub := subscriber{id: m.nextSub, fn: fn}
	if port == "" {
		m.all = append(m.all, sub)
	} else {
		m.subs[port] = append(m.subs[port], sub)
	}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if port == "" {
			m.all = remove(m.all, sub.id)
			return
		}
		m.subs[port] = remove(m.subs[port], sub.id)
		if len(m.subs[port]) == 0 {
			delete(m.subs, port)
		}
	}
}

func remove(subs []subscriber, id int) []subscriber {
	out := subs[:0:0]
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

// SubscribeTo is Subscribe with a typed callback. Values of any other type
// are logged and skipped.
func SubscribeTo[T, Msg any](m *Manager[Msg], port string, fn func(T)) func() {
	return m.Subscribe(port, func(v any) {
		t, ok := v.(T)
		if !ok {
			m.logger.Warn("port value has unexpected type", "port", port, "type", fmt.Sprintf("%T", v))
			return
		}
		fn(t)
	})
}

// Ports lists inbound ports and outbound ports with subscribers, by name.
func (m *Manager[Msg]) Ports() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Info, 0, len(m.inbound)+len(m.subs))
	for name := range m.inbound {
		out = append(out, Info{Name: name, Direction: In})
	}
	for name := range m.subs {
		out = append(out, Info{Name: name, Direction: Out})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].Direction < out[j].Direction
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// deliverJSON decodes payload for the named inbound port and delivers it.
func (m *Manager[Msg]) deliverJSON(port string, payload json.RawMessage) (bool, error) {
	m.mu.RLock()
	in, ok := m.inbound[port]
	m.mu.RUnlock()
	if !ok {
		return false, ErrUnknownPort
	}
	msg, err := in.decode(payload)
	if err != nil {
		return false, err
	}
	return m.deliver(msg), nil
}
