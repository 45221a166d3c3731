package core

import (
	"log/slog"
	"time"
)

type options struct {
	observer     Observer
	logger       *slog.Logger
	exitWhenIdle bool
	warnDepth    int
	now          func() time.Time
}

// Option configures a Loop.
type Option func(*options)

// WithObserver installs an observer. Several observers can be combined with
// TeeObserver.
func WithObserver(o Observer) Option {
	return func(opts *options) { opts.observer = o }
}

// WithLogger sets the logger used for runtime diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(opts *options) { opts.logger = l }
}

// WithExitWhenIdle makes Run terminate, as if Shutdown had been requested,
// the first time no message or request is available instead of waiting.
func WithExitWhenIdle() Option {
	return func(opts *options) { opts.exitWhenIdle = true }
}

// WithInboxWarnDepth logs a warning each time the app mailbox depth reaches
// a multiple of n. Mailboxes stay unbounded; zero disables the warning.
func WithInboxWarnDepth(n int) Option {
	return func(opts *options) { opts.warnDepth = n }
}

// WithClock overrides the timestamp source for observations.
func WithClock(now func() time.Time) Option {
	return func(opts *options) { opts.now = now }
}
