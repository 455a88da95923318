// Package anthropic adapts the block-based Messages API to the agent
// contract. Tool calls are tool_use blocks inside the assistant message and
// all results of a round return as tool_result blocks in one user message.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tailored-agentic-units/toolbench/agent"
	"github.com/tailored-agentic-units/toolbench/core/protocol"
	"github.com/tailored-agentic-units/toolbench/core/response"
)

const (
	ProviderName = "anthropic"
	DefaultModel = "claude-3-5-sonnet-20241022"
	apiKeyEnv    = "ANTHROPIC_API_KEY"
)

func init() {
	agent.RegisterProvider(ProviderName, func(cfg agent.Config) (agent.Agent, error) {
		return New(cfg, nil), nil
	})
}

type Agent struct {
	cfg    agent.Config
	client *sdk.Client
}

// New creates a Messages API agent. A nil httpClient gets one with
// cfg.Timeout applied. SDK retries are disabled; the kernel decides what a
// transport failure means.
func New(cfg agent.Config, httpClient *http.Client) *Agent {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if key := cfg.ResolveAPIKey(apiKeyEnv); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	c := sdk.NewClient(opts...)
	return &Agent{cfg: cfg, client: &c}
}

func (a *Agent) Name() string { return ProviderName + ":" + a.cfg.Model }

func (a *Agent) Send(ctx context.Context, req *agent.Request) (*agent.Reply, error) {
	params := a.params(req)
	rawReq, _ := json.Marshal(params)

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return nil, agent.NewTransportError(apiErr.StatusCode, rawReq, []byte(apiErr.RawJSON()), err)
		}
		return nil, fmt.Errorf("%w: %w", agent.ErrTransport, err)
	}

	reply := &agent.Reply{
		RawRequest:  rawReq,
		RawResponse: json.RawMessage(msg.RawJSON()),
		Usage: &response.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}

	var texts []string
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case sdk.TextBlock:
			texts = append(texts, v.Text)
		case sdk.ToolUseBlock:
			reply.ToolCalls = append(reply.ToolCalls, protocol.NewToolCall(v.ID, v.Name, v.JSON.Input.Raw()))
		}
	}
	reply.Text = strings.Join(texts, " ")
	return reply, nil
}

func (a *Agent) params(req *agent.Request) sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(a.cfg.Model),
		MaxTokens: int64(a.cfg.MaxTokens),
		Messages:  Messages(req.Turns, req.ToolsEnabled()),
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = 4096
	}
	if system := agent.SystemContent(req); system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if req.ToolsEnabled() {
		params.Tools = Tools(req.Tools)
	}
	return params
}

// Tools converts tool schemas into Messages API tool definitions.
func Tools(tools []protocol.Tool) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, sdk.ToolUnionParam{OfTool: &sdk.ToolParam{
			Name:        t.Name,
			Description: sdk.String(t.Description),
			InputSchema: sdk.ToolInputSchemaParam{
				Properties: t.Properties(),
				Required:   t.Required(),
			},
		}})
	}
	return out
}

// Messages transcribes turns into alternating Messages API messages.
// Consecutive turns with the same role are merged into one message. When
// tools are disabled, earlier tool_use and tool_result blocks are rendered
// as text, since the API rejects tool blocks without tool definitions.
func Messages(turns []protocol.Turn, toolsEnabled bool) []sdk.MessageParam {
	var msgs []sdk.MessageParam

	add := func(role sdk.MessageParamRole, blocks []sdk.ContentBlockParamUnion) {
		if len(blocks) == 0 {
			return
		}
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content = append(msgs[n-1].Content, blocks...)
			return
		}
		msgs = append(msgs, sdk.MessageParam{Role: role, Content: blocks})
	}

	for _, turn := range turns {
		switch turn.Kind {
		case protocol.TurnUser:
			add(sdk.MessageParamRoleUser, textBlocks(turn.Text))
		case protocol.TurnAssistant:
			blocks := textBlocks(turn.Text)
			for _, call := range turn.ToolCalls {
				if toolsEnabled {
					blocks = append(blocks, sdk.ContentBlockParamUnion{OfToolUse: &sdk.ToolUseBlockParam{
						ID:    call.ID,
						Name:  call.Name,
						Input: objectInput(call.Arguments),
					}})
					continue
				}
				blocks = append(blocks, sdk.NewTextBlock(fmt.Sprintf("[called tool %s (%s) with %s]", call.Name, call.ID, call.Arguments)))
			}
			add(sdk.MessageParamRoleAssistant, blocks)
		case protocol.TurnToolResult:
			blocks := make([]sdk.ContentBlockParamUnion, 0, len(turn.Outcomes))
			for _, o := range turn.Outcomes {
				if toolsEnabled {
					blocks = append(blocks, sdk.NewToolResultBlock(o.CallID, string(o.Payload), !o.OK))
					continue
				}
				blocks = append(blocks, sdk.NewTextBlock(fmt.Sprintf("[result of tool %s (%s)]: %s", o.Name, o.CallID, o.Payload)))
			}
			add(sdk.MessageParamRoleUser, blocks)
		}
	}
	return msgs
}

func textBlocks(text string) []sdk.ContentBlockParamUnion {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []sdk.ContentBlockParamUnion{sdk.NewTextBlock(text)}
}

// The API requires tool_use input to be an object; malformed arguments from
// an earlier reply are replayed as an empty object.
func objectInput(args string) json.RawMessage {
	var obj map[string]any
	if json.Unmarshal([]byte(args), &obj) != nil || obj == nil {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(args)
}
