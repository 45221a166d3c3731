package ports

import "fmt"

// Request sends one value out through a named port.
type Request[Msg any] struct {
	port  string
	value any
}

// Send publishes value on the outbound port. Subscribers of that port, and
// of every port, see it in Cmd order.
func Send[Msg any](port string, value any) Request[Msg] {
	return Request[Msg]{port: port, value: value}
}

// MapRequest changes the message type. Port requests carry no
// continuation, so only the type changes.
func MapRequest[A, B any](r Request[A], _ func(A) B) Request[B] {
	return Request[B]{port: r.port, value: r.value}
}

// String names the port; the value is not rendered.
func (r Request[Msg]) String() string { return fmt.Sprintf("Send(%s)", r.port) }
