// Package bench runs an input file's query variations through the kernel
// repeatedly and persists each run's answer, history, provider exchanges,
// and wall time for offline scoring.
package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tailored-agentic-units/toolbench/core/protocol"
	"github.com/tailored-agentic-units/toolbench/extract"
	"github.com/tailored-agentic-units/toolbench/kernel"
	"github.com/tailored-agentic-units/toolbench/memory"
	"github.com/tailored-agentic-units/toolbench/observability"
)

const (
	EventRunStart    observability.EventType = "bench.run.start"
	EventRunSkip     observability.EventType = "bench.run.skip"
	EventRunComplete observability.EventType = "bench.run.complete"
	EventRunError    observability.EventType = "bench.run.error"

	eventSource = "bench.Run"
)

// Output file suffixes written per run key.
const (
	SuffixResult  = ".result"
	SuffixHistory = ".history"
	SuffixAPI     = ".api"
	SuffixTime    = ".time"
)

// Runner answers one query. *kernel.Kernel implements it.
type Runner interface {
	Run(ctx context.Context, query string, artifacts ...protocol.Artifact) (*kernel.Result, error)
}

type Options struct {
	System    System
	Oracle    bool
	Repeat    int
	Stagger   time.Duration
	OutputDir string
}

func DefaultOptions() Options {
	return Options{
		System:    SystemToolCalling,
		Repeat:    3,
		Stagger:   30 * time.Second,
		OutputDir: "output",
	}
}

// OutputDir returns base/<system>/<oracle|retrieval>.
func OutputDir(base string, system System, oracle bool) string {
	mode := "retrieval"
	if oracle {
		mode = "oracle"
	}
	return filepath.Join(base, string(system), mode)
}

// RunRecord describes one executed run.
type RunRecord struct {
	Variation  string
	Index      int
	Key        string
	Elapsed    time.Duration
	Failed     bool
	BestEffort bool
	Rounds     int
}

// Summary reports what a bench pass did. Runs is ordered by plan position.
type Summary struct {
	Planned   int
	Skipped   int
	Completed int
	Failed    int
	Runs      []RunRecord
}

type task struct {
	variation Variation
	index     int
	key       string
	query     string
	delay     time.Duration
}

type Bench struct {
	runner   Runner
	input    *Input
	opts     Options
	store    *memory.FileStore
	observer observability.Observer
}

// New creates a bench writing under OutputDir(opts.OutputDir, opts.System,
// opts.Oracle). A nil observer discards events.
func New(runner Runner, input *Input, opts Options, observer observability.Observer) (*Bench, error) {
	if _, err := ParseSystem(string(opts.System)); err != nil {
		return nil, err
	}
	if opts.Repeat < 1 {
		return nil, fmt.Errorf("%w: repeat must be at least 1", ErrInvalidInput)
	}
	if observer == nil {
		observer = observability.NoOpObserver{}
	}
	return &Bench{
		runner:   runner,
		input:    input,
		opts:     opts,
		store:    memory.NewFileStore(OutputDir(opts.OutputDir, opts.System, opts.Oracle)),
		observer: observer,
	}, nil
}

// Dir returns the directory run outputs are written to.
func (b *Bench) Dir() string { return b.store.Root() }

// Key names the outputs of one run.
func Key(variation string, index int) string {
	return fmt.Sprintf("%s_run_%d", variation, index)
}

// Run executes every planned run that has no result file yet. Runs start
// staggered by Options.Stagger and execute concurrently. A failed kernel
// result is still persisted; a persistence failure stops the pass.
func (b *Bench) Run(ctx context.Context) (*Summary, error) {
	tasks, skipped, err := b.plan(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Planned: len(tasks) + skipped,
		Skipped: skipped,
		Runs:    make([]RunRecord, len(tasks)),
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tasks {
		g.Go(func() error {
			if err := wait(gctx, t.delay); err != nil {
				return err
			}
			rec, err := b.execute(gctx, t)
			if err != nil {
				b.emit(gctx, EventRunError, observability.LevelError, map[string]any{
					"key":   t.key,
					"error": err.Error(),
				})
				return fmt.Errorf("run %s: %w", t.key, err)
			}

			mu.Lock()
			summary.Runs[i] = rec
			summary.Completed++
			if rec.Failed {
				summary.Failed++
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (b *Bench) plan(ctx context.Context) ([]task, int, error) {
	template := b.input.Template(b.opts.System, b.opts.Oracle)
	if template == "" {
		return nil, 0, fmt.Errorf("%w: no query template for %s", ErrInvalidInput, b.opts.System)
	}

	var tasks []task
	skipped := 0
	for _, v := range b.input.Variations {
		query, err := Render(template, v.Parameters)
		if err != nil {
			return nil, 0, fmt.Errorf("variation %s: %w", v.Name, err)
		}
		for i := range b.opts.Repeat {
			key := Key(v.Name, i)
			done, err := b.store.Exists(ctx, key+SuffixResult)
			if err != nil {
				return nil, 0, err
			}
			if done {
				skipped++
				b.emit(ctx, EventRunSkip, observability.LevelInfo, map[string]any{"key": key})
				continue
			}
			tasks = append(tasks, task{
				variation: v,
				index:     i,
				key:       key,
				query:     query,
				delay:     time.Duration(len(tasks)) * b.opts.Stagger,
			})
		}
	}
	return tasks, skipped, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bench) execute(ctx context.Context, t task) (RunRecord, error) {
	var artifacts []protocol.Artifact
	if b.opts.Oracle {
		var err error
		if artifacts, err = b.input.OracleArtifacts(t.variation); err != nil {
			return RunRecord{}, err
		}
	}

	b.emit(ctx, EventRunStart, observability.LevelInfo, map[string]any{
		"key":       t.key,
		"artifacts": len(artifacts),
	})

	start := time.Now()
	result, err := b.runner.Run(ctx, t.query, artifacts...)
	elapsed := time.Since(start)
	if err != nil {
		return RunRecord{}, err
	}

	answer, err := b.extract(result)
	if err != nil {
		return RunRecord{}, err
	}

	if err := b.persist(ctx, t.key, answer, result, elapsed); err != nil {
		return RunRecord{}, err
	}

	rec := RunRecord{
		Variation:  t.variation.Name,
		Index:      t.index,
		Key:        t.key,
		Elapsed:    elapsed,
		Failed:     result.Failed,
		BestEffort: result.BestEffort,
		Rounds:     result.Rounds,
	}

	level := observability.LevelInfo
	if result.Failed {
		level = observability.LevelWarning
	}
	b.emit(ctx, EventRunComplete, level, map[string]any{
		"key":         t.key,
		"session":     result.SessionID,
		"elapsed":     elapsed.String(),
		"failed":      result.Failed,
		"best_effort": result.BestEffort,
		"rounds":      result.Rounds,
	})
	return rec, nil
}

// extract pulls the scored answer out of a finished run. The promptql system
// reads the configured artifact; the tool-calling systems read the result tag
// from the final text. A missing answer is written as null or empty text.
func (b *Bench) extract(result *kernel.Result) (string, error) {
	if b.opts.System == SystemPromptQL {
		cfg := b.input.PromptQL
		value, ok := extract.Artifact(result.Turns, cfg.ResultArtifactName, cfg.ResultArtifactKey)
		if !ok {
			return "null", nil
		}
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode artifact %s: %w", cfg.ResultArtifactName, err)
		}
		return string(data), nil
	}

	text, _ := extract.Tag(result.Text, b.input.ToolCalling.ResultTagName)
	return text, nil
}

func (b *Bench) persist(ctx context.Context, key, answer string, result *kernel.Result, elapsed time.Duration) error {
	history, err := memory.JSONEntry(key+SuffixHistory, result.Turns)
	if err != nil {
		return err
	}
	exchanges, err := memory.JSONEntry(key+SuffixAPI, result.Exchanges)
	if err != nil {
		return err
	}

	cache := memory.NewCache(b.store)
	cache.Set(history, exchanges, memory.TextEntry(key+SuffixTime, elapsed.String()))
	if err := cache.Flush(ctx); err != nil {
		return err
	}

	// The result file marks the run complete, so it lands last.
	cache.Set(memory.TextEntry(key+SuffixResult, answer))
	return cache.Flush(ctx)
}

func (b *Bench) emit(ctx context.Context, typ observability.EventType, level observability.Level, data map[string]any) {
	b.observer.OnEvent(ctx, observability.NewEvent(typ, level, eventSource, data))
}
