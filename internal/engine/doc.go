// Package engine wires the panel together: layout model, state cache,
// poller, event stream, renderer, button monitor, dispatcher and the
// optional journal and telemetry sinks.
//
// The engine owns the failure policy. A broken layout degrades the panel
// to its static labels plus a diagnostic row instead of crashing; an
// unreachable Home Assistant instance surfaces as stale values; a failed
// dispatch flashes the button and is journaled. Component goroutines only
// stop on shutdown.
package engine
