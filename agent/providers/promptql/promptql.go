// Package promptql adapts a declarative evaluation endpoint to the agent
// contract. The backend performs any tool use itself and answers each call
// with a complete interaction: message text plus the artifacts it modified.
// Replies never carry tool calls, so a run always ends after one round.
package promptql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/tidwall/gjson"

	"github.com/tailored-agentic-units/toolbench/agent"
	"github.com/tailored-agentic-units/toolbench/core/protocol"
)

const (
	ProviderName   = "promptql"
	DefaultBaseURL = "https://api.promptql.pro.hasura.io/query"
	apiKeyEnv      = "PROMPTQL_SECRET_KEY"

	// NoResponse is the reply text when the backend reports no assistant action.
	NoResponse = "No response received from the model"
)

func init() {
	agent.RegisterProvider(ProviderName, func(cfg agent.Config) (agent.Agent, error) {
		return New(cfg, nil), nil
	})
}

// Agent posts interactions to the evaluation endpoint. Options:
//
//	llm_provider     backend LLM provider name (default "anthropic")
//	llm_api_key_env  env var holding the backend LLM key
//	ddn_url          data connector SQL endpoint
//	timezone         IANA zone for date reasoning (default "America/Los_Angeles")
type Agent struct {
	cfg      agent.Config
	client   *http.Client
	endpoint string
}

func New(cfg agent.Config, client *http.Client) *Agent {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = DefaultBaseURL
	}
	return &Agent{cfg: cfg, client: client, endpoint: endpoint}
}

func (a *Agent) Name() string { return ProviderName }

type llmConfig struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key,omitempty"`
	Model    string `json:"model,omitempty"`
}

type ddnConfig struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
}

type userMessage struct {
	Text string `json:"text"`
}

type assistantAction struct {
	Message string `json:"message"`
}

type interaction struct {
	UserMessage      userMessage         `json:"user_message"`
	AssistantActions []assistantAction   `json:"assistant_actions,omitempty"`
	ModifiedArtifact []protocol.Artifact `json:"modified_artifacts,omitempty"`
}

type payload struct {
	Version            string              `json:"version"`
	APIKey             string              `json:"promptql_api_key,omitempty"`
	LLM                llmConfig           `json:"llm"`
	DDN                ddnConfig           `json:"ddn"`
	Artifacts          []protocol.Artifact `json:"artifacts"`
	SystemInstructions string              `json:"system_instructions,omitempty"`
	Timezone           string              `json:"timezone"`
	Interactions       []interaction       `json:"interactions"`
	Stream             bool                `json:"stream"`
}

// interactions folds turns into the endpoint's interaction list: each user
// turn opens an interaction and following assistant turns attach to it.
// Tool turns carry nothing for this backend and are skipped.
func interactions(turns []protocol.Turn) []interaction {
	out := make([]interaction, 0, len(turns))
	for _, turn := range turns {
		switch turn.Kind {
		case protocol.TurnUser:
			out = append(out, interaction{UserMessage: userMessage{Text: turn.Text}})
		case protocol.TurnAssistant:
			if len(out) == 0 {
				continue
			}
			last := &out[len(out)-1]
			last.AssistantActions = append(last.AssistantActions, assistantAction{Message: turn.Text})
			last.ModifiedArtifact = append(last.ModifiedArtifact, turn.Artifacts...)
		}
	}
	return out
}

// currentArtifacts returns the input artifacts overlaid with every later
// modification, keyed by identifier, in first-seen order.
func currentArtifacts(req *agent.Request) []protocol.Artifact {
	var order []string
	latest := make(map[string]protocol.Artifact)
	put := func(a protocol.Artifact) {
		if _, seen := latest[a.Identifier]; !seen {
			order = append(order, a.Identifier)
		}
		latest[a.Identifier] = a
	}

	for _, a := range req.Artifacts {
		put(a)
	}
	for _, turn := range req.Turns {
		for _, a := range turn.Artifacts {
			put(a)
		}
	}

	out := make([]protocol.Artifact, 0, len(order))
	for _, id := range order {
		out = append(out, latest[id])
	}
	return out
}

func (a *Agent) payload(req *agent.Request) payload {
	llm := llmConfig{
		Provider: a.cfg.StringOption("llm_provider", "anthropic"),
		Model:    a.cfg.Model,
	}
	if env := a.cfg.StringOption("llm_api_key_env", ""); env != "" {
		llm.APIKey = os.Getenv(env)
	}

	return payload{
		Version:            "v1",
		APIKey:             a.cfg.ResolveAPIKey(apiKeyEnv),
		LLM:                llm,
		DDN:                ddnConfig{URL: a.cfg.StringOption("ddn_url", ""), Headers: map[string]string{}},
		Artifacts:          currentArtifacts(req),
		SystemInstructions: req.System,
		Timezone:           a.cfg.StringOption("timezone", "America/Los_Angeles"),
		Interactions:       interactions(req.Turns),
		Stream:             false,
	}
}

func (a *Agent) Send(ctx context.Context, req *agent.Request) (*agent.Reply, error) {
	p := a.payload(req)
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", agent.ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: API request failed: %w", agent.ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", agent.ErrTransport, err)
	}

	// Keys travel in the body; the audit copy drops them.
	p.APIKey, p.LLM.APIKey = "", ""
	audit, _ := json.Marshal(p)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, agent.NewTransportError(resp.StatusCode, audit, data,
			fmt.Errorf("API request failed: %s", truncate(data, 512)))
	}
	if !gjson.ValidBytes(data) {
		return nil, agent.NewTransportError(resp.StatusCode, audit, data, errors.New("invalid JSON response"))
	}

	reply, err := parseReply(data)
	if err != nil {
		return nil, agent.NewTransportError(resp.StatusCode, audit, data, err)
	}

	reply.RawRequest = audit
	reply.RawResponse = data
	return reply, nil
}

func parseReply(data []byte) (*agent.Reply, error) {
	result := gjson.ParseBytes(data)
	reply := &agent.Reply{Text: NoResponse}

	if actions := result.Get("assistant_actions").Array(); len(actions) > 0 {
		reply.Text = actions[len(actions)-1].Get("message").String()
	}

	if modified := result.Get("modified_artifacts"); modified.Exists() && modified.IsArray() {
		if err := json.Unmarshal([]byte(modified.Raw), &reply.Artifacts); err != nil {
			return nil, fmt.Errorf("decode modified_artifacts: %w", err)
		}
	}
	return reply, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
