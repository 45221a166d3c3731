package core

import "log/slog"

// slot is the type-erased view the loop keeps of each binding.
type slot interface {
	pluginName() string
	drainSelf() int
	flush()
	close() int
	finalize()
}

// Binding owns one plugin instance, its state, its self mailbox and the
// effect batch collected during routing.
type Binding[Msg, State, Req, Self any] struct {
	name    string
	plugin  Plugin[Msg, State, Req, Self]
	onSelf  SelfHandler[Msg, State, Self]
	state   State
	self    *Mailbox[Self]
	router  Router[Msg, Self]
	batch   []Req
	observe func(Observation)
	logger  *slog.Logger
}

// Bind registers plugin under name on host. Bindings are flushed in the
// order they were bound. A plugin implementing Attacher receives its Router
// immediately.
func Bind[Msg, State, Req, Self any](host Host[Msg], name string, plugin Plugin[Msg, State, Req, Self], initial State) *Binding[Msg, State, Req, Self] {
	b := &Binding[Msg, State, Req, Self]{
		name:    name,
		plugin:  plugin,
		state:   initial,
		self:    newMailbox[Self](host.wakeChan()),
		observe: host.observe,
		logger:  host.log().With(slog.String("plugin", name)),
	}
	b.router = Router[Msg, Self]{app: host.appSink(), self: b.self}
	if h, ok := any(plugin).(SelfHandler[Msg, State, Self]); ok {
		b.onSelf = h
	}
	if a, ok := any(plugin).(Attacher[Msg, Self]); ok {
		a.Attach(b.router)
	}
	host.register(b)
	return b
}

// Enqueue appends req to the batch dispatched at the next flush.
func (b *Binding[Msg, State, Req, Self]) Enqueue(req Req) {
	b.batch = append(b.batch, req)
}

// State returns the current plugin state. Only meaningful from the loop
// goroutine or after Run has returned.
func (b *Binding[Msg, State, Req, Self]) State() State { return b.state }

// Router returns the binding's router.
func (b *Binding[Msg, State, Req, Self]) Router() Router[Msg, Self] { return b.router }

func (b *Binding[Msg, State, Req, Self]) pluginName() string { return b.name }

func (b *Binding[Msg, State, Req, Self]) drainSelf() int {
	n := 0
	// Handlers may queue further self-messages; keep going until empty.
	for {
		msgs := b.self.Drain()
		if len(msgs) == 0 {
			return n
		}
		for _, m := range msgs {
			n++
			b.observe(Observation{Kind: SelfMessage, Plugin: b.name, Data: m})
			if b.onSelf == nil {
				b.logger.Debug("self-message without handler dropped")
				continue
			}
			b.state = b.onSelf.OnSelfMsg(b.router, b.state, m)
		}
	}
}

func (b *Binding[Msg, State, Req, Self]) flush() {
	b.drainSelf()
	if len(b.batch) == 0 {
		return
	}
	batch := b.batch
	b.batch = nil
	b.state = b.plugin.OnEffects(b.router, b.state, batch)
}

func (b *Binding[Msg, State, Req, Self]) close() int {
	dropped := len(b.batch)
	b.batch = nil
	return dropped + b.self.Close()
}

func (b *Binding[Msg, State, Req, Self]) finalize() {
	if f, ok := any(b.plugin).(Finalizer[State]); ok {
		f.Finalize(b.state)
	}
}
