// Package openai adapts the chat-completions function-calling API to the
// agent contract. Tool calls travel as structured objects on the assistant
// message and results are re-injected as tool-role messages keyed by call id.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"

	"github.com/tailored-agentic-units/toolbench/agent"
	"github.com/tailored-agentic-units/toolbench/core/protocol"
	"github.com/tailored-agentic-units/toolbench/core/response"
)

const (
	ProviderName   = "openai"
	DefaultBaseURL = "https://api.openai.com/v1"
	apiKeyEnv      = "OPENAI_API_KEY"
)

var ErrMissingModel = errors.New("openai: model is required")

func init() {
	agent.RegisterProvider(ProviderName, func(cfg agent.Config) (agent.Agent, error) {
		return New(cfg, nil)
	})
}

type Agent struct {
	cfg      agent.Config
	client   *http.Client
	apiKey   string
	endpoint string
}

// New creates a chat-completions agent. A nil client gets one with
// cfg.Timeout applied.
func New(cfg agent.Config, client *http.Client) (*Agent, error) {
	if cfg.Model == "" {
		return nil, ErrMissingModel
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Agent{
		cfg:      cfg,
		client:   client,
		apiKey:   cfg.ResolveAPIKey(apiKeyEnv),
		endpoint: strings.TrimRight(base, "/") + "/chat/completions",
	}, nil
}

func (a *Agent) Name() string { return ProviderName + ":" + a.cfg.Model }

type wireTool struct {
	Type     string        `json:"type"`
	Function protocol.Tool `json:"function"`
}

// Messages transcribes a request into chat-completions messages.
func Messages(req *agent.Request) []protocol.Message {
	var msgs []protocol.Message
	if system := agent.SystemContent(req); system != "" {
		msgs = append(msgs, protocol.NewMessage(protocol.RoleSystem, system))
	}

	for _, turn := range req.Turns {
		switch turn.Kind {
		case protocol.TurnUser:
			msgs = append(msgs, protocol.NewMessage(protocol.RoleUser, turn.Text))
		case protocol.TurnAssistant:
			msg := protocol.Message{Role: protocol.RoleAssistant, ToolCalls: turn.ToolCalls}
			if turn.Text != "" || len(turn.ToolCalls) == 0 {
				msg.Content = turn.Text
			}
			msgs = append(msgs, msg)
		case protocol.TurnToolResult:
			for _, o := range turn.Outcomes {
				msgs = append(msgs, protocol.Message{
					Role:       protocol.RoleTool,
					Content:    string(o.Payload),
					Name:       o.Name,
					ToolCallID: o.CallID,
				})
			}
		}
	}
	return msgs
}

func (a *Agent) body(req *agent.Request) map[string]any {
	body := make(map[string]any, len(a.cfg.Options)+4)
	maps.Copy(body, a.cfg.Options)
	body["model"] = a.cfg.Model
	body["messages"] = Messages(req)
	if a.cfg.MaxTokens > 0 {
		body["max_completion_tokens"] = a.cfg.MaxTokens
	}
	if req.ToolsEnabled() {
		tools := make([]wireTool, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = wireTool{Type: "function", Function: t}
		}
		body["tools"] = tools
	}
	return body
}

func (a *Agent) Send(ctx context.Context, req *agent.Request) (*agent.Reply, error) {
	payload, err := json.Marshal(a.body(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", agent.ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", agent.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", agent.ErrTransport, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, agent.NewTransportError(resp.StatusCode, payload, body, errors.New(truncate(body, 512)))
	}

	parsed, err := response.ParseTools(body)
	if err != nil {
		return nil, agent.NewTransportError(resp.StatusCode, payload, body, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, agent.NewTransportError(resp.StatusCode, payload, body, agent.ErrEmptyReply)
	}

	return &agent.Reply{
		Text:        parsed.Content(),
		ToolCalls:   parsed.ToolCalls(),
		Usage:       parsed.Usage,
		RawRequest:  payload,
		RawResponse: body,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
