// Package core is the runtime that generated saucer code drives.
//
// An application is a Program: a pure Init and Update pair returning a Model
// and a Cmd of effect requests. A Loop routes each request to the plugin
// Binding that owns it, hands that plugin its State, and feeds messages the
// plugin delivers through its Router back into Update.
//
// Ordering rules:
//   - requests for one plugin reach its OnEffects in Cmd order
//   - self-messages queued before a dispatch point are applied before the
//     owning plugin sees its next effect batch
//   - app messages are applied in the order they were enqueued
//   - after a terminal request every mailbox is closed and later deliveries
//     are discarded
package core
