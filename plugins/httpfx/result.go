package httpfx

import (
	"fmt"
	"net/http"
)

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Result is what a continuation receives. Exactly one of Response and Err is
// set; a non-2xx status is still a Response.
type Result struct {
	Response *Response
	Err      error
}

// OK reports a response with a 2xx status.
func (r Result) OK() bool {
	return r.Err == nil && r.Response != nil && r.Response.Status >= 200 && r.Response.Status < 300
}

// MapRequest rewrites the message type produced by r's continuation.
func MapRequest[A, B any](r Request[A], f func(A) B) Request[B] {
	out := Request[B]{op: r.op, id: r.id, method: r.method, url: r.url, header: r.header, body: r.body}
	if r.returns != nil {
		k := r.returns
		out.returns = func(res Result) B { return f(k(res)) }
	}
	return out
}

func (r Request[Msg]) String() string {
	switch r.op {
	case opDo:
		if r.id != "" {
			return fmt.Sprintf("%s %s (id=%s)", r.method, r.url, r.id)
		}
		return r.method + " " + r.url
	case opCancel:
		return fmt.Sprintf("Cancel(%s)", r.id)
	}
	return "Invalid"
}
