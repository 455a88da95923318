// Package kernel implements the tool-calling orchestration loop: for one
// query it repeatedly calls an agent, dispatches any tool calls the reply
// carries, feeds the outcomes back, and stops on the first reply without tool
// calls or after a bounded number of tool-bearing rounds.
//
// The kernel initializes from configuration via New, creating the agent,
// tools, memory store and observer internally. Functional options override
// any subsystem, which is how tests inject scripted agents and fake tools.
//
//	k, err := kernel.New(cfg)
//	defer k.Close()
//	result, err := k.Run(ctx, "Which customers churned last quarter?")
package kernel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tailored-agentic-units/toolbench/agent"
	"github.com/tailored-agentic-units/toolbench/core/protocol"
	"github.com/tailored-agentic-units/toolbench/core/response"
	"github.com/tailored-agentic-units/toolbench/memory"
	"github.com/tailored-agentic-units/toolbench/observability"
	"github.com/tailored-agentic-units/toolbench/session"
	"github.com/tailored-agentic-units/toolbench/tools"
	"github.com/tailored-agentic-units/toolbench/tools/sandbox"
	"github.com/tailored-agentic-units/toolbench/tools/sqlquery"
)

// LimitInstruction is appended as a user turn once the round cap is reached,
// ahead of the final call made without tools.
const LimitInstruction = "You have reached the maximum number of tool uses. Please provide a final response based on the information you have gathered so far."

// Result holds the outcome of a Run.
type Result struct {
	Text       string // Final answer, or the error text when Failed.
	Failed     bool   // The run ended on an agent failure or timeout.
	BestEffort bool   // The answer was forced at the round cap.
	Rounds     int    // Model calls made.
	ToolRounds int    // Rounds that dispatched at least one tool call.
	SessionID  string
	Turns      []protocol.Turn
	Exchanges  []session.Exchange
	Usage      response.TokenUsage
}

// ToolExecutor lists and dispatches tools. *tools.Registry implements it.
// Dispatch must fold every failure into the returned outcome.
type ToolExecutor interface {
	List() []protocol.Tool
	Dispatch(ctx context.Context, call protocol.ToolCall) protocol.ToolOutcome
}

// Describer contributes a block of text to the system content.
// *sqlquery.Tool implements it with a schema description.
type Describer interface {
	Describe(ctx context.Context) (string, error)
}

// SessionFactory creates the session for one run.
type SessionFactory func() (session.Session, error)

// Option configures a Kernel. Options are applied before config-driven
// initialization; a subsystem set by an option is not created from config.
type Option func(*Kernel)

// WithAgent overrides the config-created agent.
func WithAgent(a agent.Agent) Option {
	return func(k *Kernel) { k.agent = a }
}

// WithRegistry overrides the config-created agent registry.
func WithRegistry(r *agent.Registry) Option {
	return func(k *Kernel) { k.registry = r }
}

// WithTools overrides the config-created tool registry.
func WithTools(e ToolExecutor) Option {
	return func(k *Kernel) { k.tools = e }
}

// WithDescribers adds system content sources on top of any configured ones.
func WithDescribers(d ...Describer) Option {
	return func(k *Kernel) { k.describers = append(k.describers, d...) }
}

// WithMemoryStore overrides the config-created memory store.
func WithMemoryStore(s memory.Store) Option {
	return func(k *Kernel) { k.store = s }
}

// WithObserver overrides the configured observer.
func WithObserver(o observability.Observer) Option {
	return func(k *Kernel) { k.observer = o }
}

// WithSessionFactory overrides how each run's session is created.
func WithSessionFactory(f SessionFactory) Option {
	return func(k *Kernel) { k.newSession = f }
}

// WithLogger sets the logger handed to config-created tools.
func WithLogger(l *slog.Logger) Option {
	return func(k *Kernel) { k.logger = l }
}

// Kernel runs the orchestration loop. A Kernel is safe for concurrent Runs;
// each Run owns its own session.
type Kernel struct {
	agent          agent.Agent
	registry       *agent.Registry
	tools          ToolExecutor
	toolsEnabled   bool
	parallelism    int
	describers     []Describer
	store          memory.Store
	observer       observability.Observer
	newSession     SessionFactory
	logger         *slog.Logger
	maxRounds      int
	roundTimeout   time.Duration
	sessionTimeout time.Duration
	systemPrompt   string
	closers        []io.Closer
}

// New creates a Kernel from configuration. SQL tools open their databases
// here; Close releases them.
func New(cfg *Config, opts ...Option) (*Kernel, error) {
	k := &Kernel{
		toolsEnabled:   cfg.Tools.IsEnabled(),
		parallelism:    cfg.Tools.Parallelism,
		maxRounds:      cfg.MaxRounds,
		roundTimeout:   cfg.RoundTimeout,
		sessionTimeout: cfg.SessionTimeout,
		systemPrompt:   cfg.SystemPrompt,
	}
	if k.maxRounds <= 0 {
		k.maxRounds = DefaultMaxRounds
	}

	for _, opt := range opts {
		opt(k)
	}

	if err := k.init(cfg); err != nil {
		k.Close()
		return nil, err
	}
	return k, nil
}

func (k *Kernel) init(cfg *Config) error {
	if k.logger == nil {
		k.logger = slog.Default()
	}

	if k.agent == nil {
		a, err := agent.New(&cfg.Agent)
		if err != nil {
			return fmt.Errorf("failed to create agent: %w", err)
		}
		k.agent = a
	}

	if k.registry == nil {
		reg := agent.NewRegistry()
		for name, agentCfg := range cfg.Agents {
			if err := reg.Register(name, agentCfg); err != nil {
				return fmt.Errorf("failed to register agent %q: %w", name, err)
			}
		}
		k.registry = reg
	}

	if k.newSession == nil {
		sessionCfg := cfg.Session
		k.newSession = func() (session.Session, error) { return session.New(&sessionCfg) }
	}

	if k.store == nil {
		store, err := memory.NewStore(&cfg.Memory)
		if err != nil {
			return fmt.Errorf("failed to create memory store: %w", err)
		}
		k.store = store
	}

	if k.tools == nil {
		reg, err := k.openTools(&cfg.Tools)
		if err != nil {
			return err
		}
		k.tools = reg
	}

	if k.observer == nil {
		name := cfg.Observer
		if name == "" {
			name = defaultObserver
		}
		obs, err := observability.GetObserver(name)
		if err != nil {
			return fmt.Errorf("failed to resolve observer: %w", err)
		}
		if cfg.EventLog != "" {
			events, err := observability.OpenJSONL(cfg.EventLog)
			if err != nil {
				return err
			}
			k.closers = append(k.closers, events)
			obs = observability.NewMultiObserver(obs, events)
		}
		k.observer = obs
	}

	return nil
}

func (k *Kernel) openTools(cfg *ToolsConfig) (*tools.Registry, error) {
	reg := tools.NewRegistry()

	for _, sc := range cfg.SQL {
		t, err := sqlquery.Open(sc, k.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open sql tool %q: %w", sc.Name, err)
		}
		k.closers = append(k.closers, t)
		if err := t.Register(reg); err != nil {
			return nil, fmt.Errorf("failed to register sql tool: %w", err)
		}
		if sc.IncludeSchema {
			k.describers = append(k.describers, t)
		}
	}

	if cfg.Sandbox != nil {
		if err := sandbox.New(*cfg.Sandbox, k.logger).Register(reg); err != nil {
			return nil, fmt.Errorf("failed to register sandbox tool: %w", err)
		}
	}

	return reg, nil
}

// Agent returns the agent runs are sent to.
func (k *Kernel) Agent() agent.Agent {
	return k.agent
}

// Registry returns the kernel's named agent registry.
func (k *Kernel) Registry() *agent.Registry {
	return k.registry
}

// Tools returns the tool executor.
func (k *Kernel) Tools() ToolExecutor {
	return k.tools
}

// Using returns a Kernel that shares k's tools and settings but sends to the
// named agent from the registry. The returned Kernel does not own any
// resources; close k instead.
func (k *Kernel) Using(name string) (*Kernel, error) {
	a, err := k.registry.Get(name)
	if err != nil {
		return nil, err
	}
	clone := *k
	clone.agent = a
	clone.closers = nil
	return &clone, nil
}

// Close releases the databases and event log opened by New.
func (k *Kernel) Close() error {
	var errs []error
	for _, c := range k.closers {
		errs = append(errs, c.Close())
	}
	k.closers = nil
	return errors.Join(errs...)
}

// Run answers query, optionally seeding the agent with input artifacts.
//
// Tool failures never end a run; they reach the model as failed outcomes. An
// agent error or timeout ends the run with an error turn and Result.Failed.
// Run returns a non-nil error only when ctx ends, and still returns the
// partial Result in that case.
func (k *Kernel) Run(ctx context.Context, query string, artifacts ...protocol.Artifact) (*Result, error) {
	sess, err := k.newSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	sess.Append(protocol.NewUserTurn(query))

	result := &Result{SessionID: sess.ID()}
	defer func() {
		result.Turns = sess.Turns()
		result.Exchanges = sess.Exchanges()
	}()

	runCtx := ctx
	if k.sessionTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeoutCause(ctx, k.sessionTimeout, ErrSessionTimeout)
		defer cancel()
	}

	system, err := k.buildSystemContent(runCtx)
	if err != nil {
		return k.fail(ctx, runCtx, sess, result, err)
	}

	var offered []protocol.Tool
	if k.toolsEnabled && k.tools != nil {
		if list := k.tools.List(); len(list) > 0 {
			offered = list
		}
	}

	k.emit(runCtx, EventRunStart, observability.LevelInfo, map[string]any{
		"session_id":   sess.ID(),
		"agent":        k.agent.Name(),
		"query_length": len(query),
		"artifacts":    len(artifacts),
		"tools":        len(offered),
		"max_rounds":   k.maxRounds,
	})

	for round := 1; ; round++ {
		if runCtx.Err() != nil {
			return k.fail(ctx, runCtx, sess, result, context.Cause(runCtx))
		}

		capped := round > k.maxRounds
		if capped {
			sess.Append(protocol.NewUserTurn(LimitInstruction))
			k.emit(runCtx, EventRoundLimit, observability.LevelWarning, map[string]any{
				"round":      round,
				"max_rounds": k.maxRounds,
			})
		}

		req := &agent.Request{System: system, Turns: sess.Turns(), Artifacts: artifacts}
		if !capped {
			req.Tools = offered
		}

		k.emit(runCtx, EventRoundStart, observability.LevelVerbose, map[string]any{
			"round":         round,
			"turns":         len(req.Turns),
			"tools_enabled": req.ToolsEnabled(),
		})

		result.Rounds = round
		roundCtx, cancel := k.roundContext(runCtx)

		reply, err := k.send(roundCtx, sess, round, req)
		if err != nil {
			cancel()
			return k.fail(ctx, runCtx, sess, result, err)
		}
		if reply.Usage != nil {
			result.Usage.PromptTokens += reply.Usage.PromptTokens
			result.Usage.CompletionTokens += reply.Usage.CompletionTokens
			result.Usage.TotalTokens += reply.Usage.TotalTokens
		}

		// Calls are only honoured when this request offered tools.
		calls := reply.ToolCalls
		if !req.ToolsEnabled() {
			calls = nil
		}

		turn := protocol.NewAssistantTurn(reply.Text, calls)
		turn.Artifacts = reply.Artifacts
		sess.Append(turn)

		if len(calls) == 0 {
			cancel()
			result.Text = reply.Text
			result.BestEffort = capped

			k.emit(runCtx, EventResponse, observability.LevelInfo, map[string]any{
				"round":           round,
				"tool_rounds":     result.ToolRounds,
				"response_length": len(reply.Text),
				"artifacts":       len(reply.Artifacts),
				"best_effort":     capped,
				"dropped_calls":   len(reply.ToolCalls),
			})
			return result, nil
		}

		outcomes := k.dispatch(roundCtx, round, calls)
		cancel()

		sess.Append(protocol.NewToolResultTurn(outcomes))
		result.ToolRounds++
	}
}

func (k *Kernel) roundContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if k.roundTimeout > 0 {
		return context.WithTimeoutCause(ctx, k.roundTimeout, ErrRoundTimeout)
	}
	return context.WithCancel(ctx)
}

// send calls the agent and records the exchange, including failed calls that
// carried wire payloads. When the failure coincides with a cancelled context,
// the cancellation cause is reported instead.
func (k *Kernel) send(ctx context.Context, sess session.Session, round int, req *agent.Request) (*agent.Reply, error) {
	reply, err := k.agent.Send(ctx, req)
	if err != nil {
		var te *agent.TransportError
		if errors.As(err, &te) {
			sess.Record(session.Exchange{
				Round:     round,
				Timestamp: time.Now(),
				Request:   te.RawRequest,
				Response:  te.RawResponse,
			})
		}
		if cause := context.Cause(ctx); cause != nil {
			return nil, cause
		}
		return nil, err
	}
	if reply == nil {
		return nil, agent.ErrEmptyReply
	}

	sess.Record(session.Exchange{
		Round:     round,
		Timestamp: time.Now(),
		Request:   reply.RawRequest,
		Response:  reply.RawResponse,
	})
	return reply, nil
}

// dispatch runs every call of one round and returns the outcomes in request
// order. Calls run concurrently up to the configured parallelism.
func (k *Kernel) dispatch(ctx context.Context, round int, calls []protocol.ToolCall) []protocol.ToolOutcome {
	outcomes := make([]protocol.ToolOutcome, len(calls))

	var g errgroup.Group
	if k.parallelism > 0 {
		g.SetLimit(k.parallelism)
	}

	for i, call := range calls {
		g.Go(func() error {
			k.emit(ctx, EventToolCall, observability.LevelVerbose, map[string]any{
				"round":          round,
				"index":          i,
				"name":           call.Name,
				"call_id":        call.ID,
				"argument_bytes": len(call.Arguments),
			})

			start := time.Now()
			outcome := k.tools.Dispatch(ctx, call)
			outcome.CallID, outcome.Name = call.ID, call.Name
			outcomes[i] = outcome

			level := observability.LevelVerbose
			if !outcome.OK {
				level = observability.LevelWarning
			}
			k.emit(ctx, EventToolComplete, level, map[string]any{
				"round":         round,
				"index":         i,
				"name":          call.Name,
				"ok":            outcome.OK,
				"payload_bytes": len(outcome.Payload),
				"duration":      time.Since(start),
			})
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

// fail ends the run with an error turn. The returned error is the caller's
// context error, nil unless ctx itself ended.
func (k *Kernel) fail(ctx, runCtx context.Context, sess session.Session, result *Result, err error) (*Result, error) {
	text := "Error processing query: " + err.Error()
	sess.Append(protocol.NewAssistantTurn(text, nil))
	result.Text = text
	result.Failed = true

	k.emit(runCtx, EventError, observability.LevelError, map[string]any{
		"round":     result.Rounds,
		"error":     err.Error(),
		"transport": errors.Is(err, agent.ErrTransport),
	})
	return result, ctx.Err()
}

func (k *Kernel) buildSystemContent(ctx context.Context) (string, error) {
	var parts []string
	if k.systemPrompt != "" {
		parts = append(parts, k.systemPrompt)
	}

	for _, d := range k.describers {
		desc, err := d.Describe(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to describe schema: %w", err)
		}
		if desc != "" {
			parts = append(parts, desc)
		}
	}

	if k.store != nil {
		cache := memory.NewCache(k.store)
		if err := cache.Bootstrap(ctx); err != nil {
			return "", fmt.Errorf("failed to load memory entries: %w", err)
		}
		for _, entry := range cache.Entries("") {
			parts = append(parts, string(entry.Value))
		}
	}

	return strings.Join(parts, "\n\n"), nil
}

func (k *Kernel) emit(ctx context.Context, typ observability.EventType, level observability.Level, data map[string]any) {
	k.observer.OnEvent(ctx, observability.NewEvent(typ, level, eventSource, data))
}
