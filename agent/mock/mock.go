// Package mock provides scripted agents for tests and offline runs.
//
// Importing the package registers a "mock" provider whose agents always
// answer with the text in Options["reply"].
package mock

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/tailored-agentic-units/toolbench/agent"
	"github.com/tailored-agentic-units/toolbench/core/protocol"
)

func init() {
	agent.RegisterProvider("mock", func(cfg agent.Config) (agent.Agent, error) {
		return New(cfg.StringOption("name", "mock"), Text(cfg.StringOption("reply", "ok"))), nil
	})
}

// Step is one scripted response: either a reply or a transport error.
type Step struct {
	Reply agent.Reply
	Err   error
}

// Text scripts a final answer.
func Text(text string) Step {
	return Step{Reply: agent.Reply{Text: text}}
}

// Calls scripts a reply that requests tools.
func Calls(text string, calls ...protocol.ToolCall) Step {
	return Step{Reply: agent.Reply{Text: text, ToolCalls: calls}}
}

// Fail scripts a transport failure.
func Fail(err error) Step {
	return Step{Err: err}
}

// Agent replays its steps in order; once exhausted it repeats the last one.
type Agent struct {
	name     string
	steps    []Step
	mu       sync.Mutex
	requests []agent.Request
}

func New(name string, steps ...Step) *Agent {
	return &Agent{name: name, steps: steps}
}

func (a *Agent) Name() string { return a.name }

func (a *Agent) Send(ctx context.Context, req *agent.Request) (*agent.Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	n := len(a.requests)
	a.requests = append(a.requests, cloneRequest(req))
	a.mu.Unlock()

	if len(a.steps) == 0 {
		return &agent.Reply{}, nil
	}
	step := a.steps[min(n, len(a.steps)-1)]
	if step.Err != nil {
		return nil, step.Err
	}

	reply := step.Reply
	reply.ToolCalls = slices.Clone(reply.ToolCalls)
	reply.RawRequest, _ = json.Marshal(map[string]any{"turns": len(req.Turns), "tools": len(req.Tools)})
	reply.RawResponse, _ = json.Marshal(map[string]any{"text": reply.Text, "tool_calls": reply.ToolCalls})
	return &reply, nil
}

// Requests returns a copy of every request received, in order.
func (a *Agent) Requests() []agent.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.requests)
}

func cloneRequest(req *agent.Request) agent.Request {
	c := *req
	c.Turns = slices.Clone(req.Turns)
	c.Tools = slices.Clone(req.Tools)
	c.Artifacts = slices.Clone(req.Artifacts)
	return c
}

// Func adapts a function to the Agent interface.
type Func func(ctx context.Context, req *agent.Request) (*agent.Reply, error)

func (f Func) Name() string { return "func" }

func (f Func) Send(ctx context.Context, req *agent.Request) (*agent.Reply, error) {
	return f(ctx, req)
}
