package core

import (
	"log/slog"
	"time"
)

// ObservationKind classifies an Observation.
type ObservationKind int

const (
	// Effect is a request routed out of a Cmd.
	Effect ObservationKind = iota
	// Message is an app message about to be applied by Update.
	Message
	// SelfMessage is a plugin self-message about to be applied.
	SelfMessage
)

func (k ObservationKind) String() string {
	switch k {
	case Effect:
		return "effect"
	case Message:
		return "message"
	case SelfMessage:
		return "self_message"
	default:
		return "unknown"
	}
}

// Observation is a read-only record of one step of the loop. Seq increases by
// one per observation within a Loop.
type Observation struct {
	Seq    uint64
	Kind   ObservationKind
	At     time.Time
	Plugin string
	Data   any
}

// Observer receives every Observation. It runs on the loop goroutine and must
// not block for long; a panic raised by an observer is recovered and logged.
type Observer func(Observation)

// NoOpObserver ignores everything.
func NoOpObserver() Observer {
	return func(Observation) {}
}

// LogObserver writes messages at info and effects and self-messages at
// debug.
func LogObserver(logger *slog.Logger) Observer {
	return func(o Observation) {
		attrs := []any{
			slog.Uint64("seq", o.Seq),
			slog.String("kind", o.Kind.String()),
			slog.Any("data", o.Data),
		}
		if o.Plugin != "" {
			attrs = append(attrs, slog.String("plugin", o.Plugin))
		}
		if o.Kind == Message {
			logger.Info("msg", attrs...)
			return
		}
		logger.Debug(o.Kind.String(), attrs...)
	}
}

// FilterObserver forwards only the selected kinds to wrapped.
func FilterObserver(wrapped Observer, messages, selfMessages, effects bool) Observer {
	return FilterWith(wrapped, func(o Observation) bool {
		switch o.Kind {
		case Message:
			return messages
		case SelfMessage:
			return selfMessages
		case Effect:
			return effects
		}
		return false
	})
}

// FilterWith forwards observations for which keep returns true.
func FilterWith(wrapped Observer, keep func(Observation) bool) Observer {
	return func(o Observation) {
		if keep(o) {
			wrapped(o)
		}
	}
}

// TeeObserver calls each observer in order.
func TeeObserver(observers ...Observer) Observer {
	return func(o Observation) {
		for _, obs := range observers {
			if obs != nil {
				obs(o)
			}
		}
	}
}
