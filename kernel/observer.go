package kernel

import "github.com/tailored-agentic-units/toolbench/observability"

// Kernel event types emitted during a run.
const (
	EventRunStart     observability.EventType = "kernel.run.start"
	EventRoundStart   observability.EventType = "kernel.round.start"
	EventToolCall     observability.EventType = "kernel.tool.call"
	EventToolComplete observability.EventType = "kernel.tool.complete"
	EventRoundLimit   observability.EventType = "kernel.round.limit"
	EventResponse     observability.EventType = "kernel.response"
	EventError        observability.EventType = "kernel.error"
)

const eventSource = "kernel.Run"
