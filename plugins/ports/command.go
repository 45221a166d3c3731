// Package ports is referenced from templates as ports::command::<helper>.
// Helpers live in requests.go.
package ports
