package core

// Plugin interprets one category of effect requests. Its State is owned by
// the runtime and passed by value into every call; handlers never run
// concurrently with each other.
type Plugin[Msg, State, Req, Self any] interface {
	// InitState returns the state used when the application supplies none.
	InitState() State
	// OnEffects handles one batch of requests, in Cmd order, and returns the
	// replacement state.
	OnEffects(r Router[Msg, Self], s State, reqs []Req) State
}

// SelfHandler is implemented by plugins that correlate asynchronous
// completions through self-messages.
type SelfHandler[Msg, State, Self any] interface {
	OnSelfMsg(r Router[Msg, Self], s State, msg Self) State
}

// Attacher is implemented by plugins that need their Router before the loop
// starts, for example to accept messages pushed by a host process.
type Attacher[Msg, Self any] interface {
	Attach(r Router[Msg, Self])
}

// Finalizer is implemented by plugins that release resources at shutdown.
// Finalize receives the last state once every mailbox is closed.
type Finalizer[State any] interface {
	Finalize(s State)
}

// Control is the request variant reserved for the runtime itself.
type Control struct {
	shutdown bool
}

// Shutdown returns the terminal request.
func Shutdown() Control { return Control{shutdown: true} }

// IsShutdown reports whether c is the terminal request.
func (c Control) IsShutdown() bool { return c.shutdown }

func (c Control) String() string {
	if c.shutdown {
		return "Shutdown"
	}
	return "Noop"
}

// Named is implemented by request types that know their owning plugin.
// Observers use it to label effect observations.
type Named interface {
	PluginName() string
}
