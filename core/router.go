package core

// Router is the capability a plugin uses to talk back to the runtime. It is a
// small value: copies share the same two sinks, so a Router can be handed to
// any number of goroutines.
type Router[Msg, Self any] struct {
	app  Sink[Msg]
	self Sink[Self]
}

// NewRouter builds a Router over explicit sinks. The runtime builds Routers
// itself; this is mainly for exercising plugins in isolation.
func NewRouter[Msg, Self any](app Sink[Msg], self Sink[Self]) Router[Msg, Self] {
	return Router[Msg, Self]{app: app, self: self}
}

// DeliverToApp queues msg for Update. It is safe from any goroutine and
// returns false, without panicking, once the runtime has begun draining.
func (r Router[Msg, Self]) DeliverToApp(msg Msg) bool {
	if r.app == nil {
		return false
	}
	return r.app.Deliver(msg)
}

// DeliverToSelf queues msg for the owning plugin's OnSelfMsg. Everything
// queued before a dispatch point is applied before that plugin's next
// effect batch.
func (r Router[Msg, Self]) DeliverToSelf(msg Self) bool {
	if r.self == nil {
		return false
	}
	return r.self.Deliver(msg)
}
