// Package agent defines the provider-agnostic contract between the kernel and
// a model backend, plus the factory and named registries that build agents
// from configuration.
//
// Provider adapters live in subpackages of agent/providers and register a
// Factory under their provider name from init. Import them for side effects:
//
//	import _ "github.com/tailored-agentic-units/toolbench/agent/providers/openai"
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tailored-agentic-units/toolbench/core/protocol"
	"github.com/tailored-agentic-units/toolbench/core/response"
)

// Request is everything an adapter needs to produce the next assistant turn.
// Turns is the full history; adapters replay it on every call. A nil Tools
// slice means tool use is disabled for this call.
type Request struct {
	System    string
	Turns     []protocol.Turn
	Tools     []protocol.Tool
	Artifacts []protocol.Artifact
}

// ToolsEnabled reports whether the request advertises any tools.
func (r *Request) ToolsEnabled() bool {
	return len(r.Tools) > 0
}

// Reply is one provider response translated into the abstract turn model.
// RawRequest and RawResponse hold the verbatim wire payloads for auditing.
type Reply struct {
	Text        string
	ToolCalls   []protocol.ToolCall
	Artifacts   []protocol.Artifact
	Usage       *response.TokenUsage
	RawRequest  json.RawMessage
	RawResponse json.RawMessage
}

// Agent translates between the turn model and one backend's wire contract.
// Send returns an error only for transport or API failures; it never
// interprets tool calls itself.
type Agent interface {
	Name() string
	Send(ctx context.Context, req *Request) (*Reply, error)
}

// RenderArtifacts formats input artifacts as tagged JSON blocks suitable for
// appending to a system prompt, for backends without a native artifact channel.
func RenderArtifacts(artifacts []protocol.Artifact) string {
	if len(artifacts) == 0 {
		return ""
	}

	var b strings.Builder
	for i, a := range artifacts {
		if i > 0 {
			b.WriteByte('\n')
		}
		data, err := json.MarshalIndent(a.Data, "", "  ")
		if err != nil {
			data = []byte(fmt.Sprintf("%q", fmt.Sprint(a.Data)))
		}
		fmt.Fprintf(&b, "<artifact identifier=%q title=%q type=%q>\n%s\n</artifact>", a.Identifier, a.Title, a.Type, data)
	}
	return b.String()
}

// SystemContent joins the system prompt and rendered artifacts.
func SystemContent(req *Request) string {
	rendered := RenderArtifacts(req.Artifacts)
	switch {
	case rendered == "":
		return req.System
	case req.System == "":
		return rendered
	default:
		return req.System + "\n\n" + rendered
	}
}
