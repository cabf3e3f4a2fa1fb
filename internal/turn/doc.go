// Package turn implements the session turn engine (spec §4.7): the agent
// loop that drives one session from its most recent user message to a
// terminal assistant message, dispatching tool calls through the stream
// processor (spec §4.6) along the way.
//
// Grounded on the teacher's internal/session package (processor.go's
// per-session mutual exclusion, loop.go's step structure, stream.go's event
// handling, tools.go's dispatch/permission/doom-loop/diff logic), adapted to
// consume internal/modeladapter's typed Event stream instead of driving an
// eino stream reader directly, and to publish through internal/bus instead
// of a callback + module-level event.Publish.
package turn
