package core

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mattjoyce/saucer/internal/log"
)

// Phase is the lifecycle state of a Loop.
type Phase int32

const (
	Initializing Phase = iota
	Running
	Draining
	Terminated
)

func (p Phase) String() string {
	switch p {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Directive is returned by a route function for each request.
type Directive int

const (
	// Continue keeps routing the current Cmd.
	Continue Directive = iota
	// Terminate stops routing and shuts the loop down. Requests after the
	// terminal one are dropped.
	Terminate
)

// Program is the application: a pure Init and Update and an optional View
// called after every Model change.
type Program[Model, Msg, Req any] struct {
	Init   func() (Model, Cmd[Req])
	Update func(Model, Msg) (Model, Cmd[Req])
	View   func(Model)
}

// Host is what Bind needs from a Loop. Only Loop implements it.
type Host[Msg any] interface {
	appSink() Sink[Msg]
	wakeChan() chan struct{}
	register(s slot)
	observe(o Observation)
	log() *slog.Logger
}

var (
	// ErrAlreadyRun is returned when Run is called more than once.
	ErrAlreadyRun = errors.New("loop already run")
	// ErrIncompleteProgram is returned when Init or Update is nil.
	ErrIncompleteProgram = errors.New("program needs Init and Update")
)

// Loop is the dispatcher. All plugin handlers, Update and View run on the
// goroutine that calls Run.
type Loop[Model, Msg, Req any] struct {
	program Program[Model, Msg, Req]
	route   func(Req) Directive
	opts    options
	logger  *slog.Logger

	wake  chan struct{}
	app   *Mailbox[Msg]
	slots []slot

	phase atomic.Int32
	seq   uint64
	model Model
}

// NewLoop builds a Loop in the Initializing phase. route places each request
// on the owning Binding (usually via Binding.Enqueue) and reports whether it
// was the terminal request. Plugins are attached with Bind before Run.
func NewLoop[Model, Msg, Req any](program Program[Model, Msg, Req], route func(Req) Directive, opts ...Option) *Loop[Model, Msg, Req] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = log.WithComponent("dispatch")
	}

	l := &Loop[Model, Msg, Req]{
		program: program,
		route:   route,
		opts:    o,
		logger:  logger,
		wake:    make(chan struct{}, 1),
	}
	l.app = newMailbox[Msg](l.wake)
	if n := o.warnDepth; n > 0 {
		l.app.onDepth = func(depth int) {
			if depth%n == 0 {
				logger.Warn("app mailbox depth", "depth", depth)
			}
		}
	}
	return l
}

// Run drives the program until a terminal request is routed, the context is
// cancelled, or (with WithExitWhenIdle) nothing is left to do. It returns
// ctx.Err() on cancellation and nil otherwise.
func (l *Loop[Model, Msg, Req]) Run(ctx context.Context) error {
	if l.program.Init == nil || l.program.Update == nil {
		return ErrIncompleteProgram
	}
	if !l.phase.CompareAndSwap(int32(Initializing), int32(Running)) {
		return ErrAlreadyRun
	}

	model, cmd := l.program.Init()
	l.model = model
	l.view()
	l.logger.Debug("loop started", "plugins", len(l.slots))

	for {
		if err := ctx.Err(); err != nil {
			l.terminate("context")
			return err
		}
		if l.dispatch(cmd) {
			l.terminate("shutdown")
			return nil
		}
		cmd = None[Req]()

		msg, ok := l.next()
		if !ok {
			if l.opts.exitWhenIdle {
				l.terminate("idle")
				return nil
			}
			select {
			case <-ctx.Done():
				l.terminate("context")
				return ctx.Err()
			case <-l.wake:
			}
			continue
		}

		l.observe(Observation{Kind: Message, Data: msg})
		l.model, cmd = l.program.Update(l.model, msg)
		l.view()
	}
}

// Phase returns the current lifecycle phase.
func (l *Loop[Model, Msg, Req]) Phase() Phase { return Phase(l.phase.Load()) }

// Model returns the latest Model. Call it after Run returns.
func (l *Loop[Model, Msg, Req]) Model() Model { return l.model }

// Deliver queues msg for Update as if a plugin had delivered it.
func (l *Loop[Model, Msg, Req]) Deliver(msg Msg) bool { return l.app.Deliver(msg) }

// dispatch routes cmd and flushes every binding in bind order. It reports
// whether a terminal request was routed.
func (l *Loop[Model, Msg, Req]) dispatch(cmd Cmd[Req]) bool {
	terminal := false
	for i, req := range cmd.reqs {
		o := Observation{Kind: Effect, Data: req}
		if n, ok := any(req).(Named); ok {
			o.Plugin = n.PluginName()
		}
		l.observe(o)
		if l.route(req) == Terminate {
			if rest := len(cmd.reqs) - i - 1; rest > 0 {
				l.logger.Debug("requests after shutdown dropped", "count", rest)
			}
			terminal = true
			break
		}
	}
	for _, s := range l.slots {
		s.flush()
	}
	return terminal
}

// next applies every queued self-message, then pops one app message.
func (l *Loop[Model, Msg, Req]) next() (Msg, bool) {
	for _, s := range l.slots {
		s.drainSelf()
	}
	return l.app.Pop()
}

func (l *Loop[Model, Msg, Req]) terminate(reason string) {
	l.phase.Store(int32(Draining))
	dropped := l.app.Close()
	for _, s := range l.slots {
		dropped += s.close()
	}
	l.logger.Info("loop draining", "reason", reason, "dropped", dropped)
	for _, s := range l.slots {
		s.finalize()
	}
	l.phase.Store(int32(Terminated))
}

func (l *Loop[Model, Msg, Req]) view() {
	if l.program.View != nil {
		l.program.View(l.model)
	}
}

func (l *Loop[Model, Msg, Req]) observe(o Observation) {
	l.seq++
	if l.opts.observer == nil {
		return
	}
	o.Seq = l.seq
	o.At = l.opts.now()
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("observer panicked", "panic", r, "kind", o.Kind.String())
		}
	}()
	l.opts.observer(o)
}

func (l *Loop[Model, Msg, Req]) appSink() Sink[Msg] { return l.app }

func (l *Loop[Model, Msg, Req]) wakeChan() chan struct{} { return l.wake }

func (l *Loop[Model, Msg, Req]) log() *slog.Logger { return l.logger }

func (l *Loop[Model, Msg, Req]) register(s slot) {
	if l.Phase() != Initializing {
		panic("core: Bind called after Run")
	}
	l.slots = append(l.slots, s)
}
