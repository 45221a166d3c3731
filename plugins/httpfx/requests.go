package httpfx

import (
	"net/http"
)

type op uint8

const (
	opDo op = iota + 1
	opCancel
)

// Request is one outbound call or a cancellation.
type Request[Msg any] struct {
	op      op
	id      string
	method  string
	url     string
	header  http.Header
	body    []byte
	returns func(Result) Msg
}

// Get fetches url.
func Get[Msg any](url string, returns func(Result) Msg) Request[Msg] {
	return Request[Msg]{op: opDo, method: http.MethodGet, url: url, returns: returns}
}

// Post sends body to url with the given content type.
func Post[Msg any](url, contentType string, body []byte, returns func(Result) Msg) Request[Msg] {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return Request[Msg]{op: opDo, method: http.MethodPost, url: url, header: h, body: body, returns: returns}
}

// Do issues an arbitrary request. A non-empty id makes it cancellable with
// Cancel; reusing the id of an in-flight request cancels the older one.
func Do[Msg any](id, method, url string, header http.Header, body []byte, returns func(Result) Msg) Request[Msg] {
	return Request[Msg]{op: opDo, id: id, method: method, url: url, header: header.Clone(), body: body, returns: returns}
}

// Cancel aborts the in-flight request with the given id. A cancelled request
// never completes.
func Cancel[Msg any](id string) Request[Msg] {
	return Request[Msg]{op: opCancel, id: id}
}
