// Package timer is referenced from templates as timer::command::<helper>.
// The helpers themselves live in requests.go.
package timer
