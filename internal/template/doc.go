// Package template parses application templates: Go source files that may
// contain symbolic references of the form
//
//	plugin::command::helper(args...)
//
// Parsing is the first phase of generation. It produces a reference tree
// with byte spans and positions but knows nothing about plugins; resolution
// against the registry happens in the codegen package.
//
// An argument may carry a label (returns: GotTime) and may itself contain
// references. Everything outside references is left untouched for the
// emitter to copy through.
package template
