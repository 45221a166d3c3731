// Package httpfx is referenced from templates as http::command::<helper>.
// Helpers live in requests.go.
package httpfx
