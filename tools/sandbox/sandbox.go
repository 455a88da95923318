// Package sandbox runs model-written programs in a child process.
//
// Each run writes the program to its own uniquely named temp file, runs the
// interpreter on it with no stdin, captures both output streams and removes
// the file before returning. Execute never fails: launch errors are folded
// into Stderr and a negative ExitCode.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/tailored-agentic-units/toolbench/core/protocol"
	"github.com/tailored-agentic-units/toolbench/tools"
)

// Killed processes may leave pipes held open by grandchildren.
const waitDelay = 2 * time.Second

// Input is the argument object the model sends.
type Input struct {
	Code       string `json:"code" jsonschema_description:"Program source to execute"`
	DataValues string `json:"dataValues,omitempty" jsonschema_description:"JSON string of data values passed as the first program argument"`
}

// Output is the captured result of one run. ExitCode is encoded as a string.
type Output struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode,string"`
}

type Sandbox struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Sandbox {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Sandbox{cfg: cfg, logger: logger}
}

func (s *Sandbox) Name() string { return s.cfg.Name }

// Schema returns the tool definition advertised to the model.
func (s *Sandbox) Schema() protocol.Tool {
	return protocol.Tool{
		Name:        s.cfg.Name,
		Description: s.cfg.Description,
		Parameters:  tools.GenerateSchema[Input](),
	}
}

// Execute runs code and reports its output. dataValues, when non-empty, is
// passed as the program's first argument. Cancelling ctx kills the process.
func (s *Sandbox) Execute(ctx context.Context, code, dataValues string) Output {
	s.logger.DebugContext(ctx, "executing code", slog.String("tool", s.cfg.Name), slog.Int("bytes", len(code)))

	path, err := s.materialize(code)
	if err != nil {
		return Output{Stderr: err.Error(), ExitCode: -1}
	}
	defer os.Remove(path)

	args := append(slices.Clone(s.cfg.Args), path)
	if dataValues != "" {
		args = append(args, dataValues)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.cfg.Interpreter, args...)
	cmd.Stdin = nil
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	err = cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		out.ExitCode = 0
	case errors.As(err, &exitErr):
		out.ExitCode = exitErr.ExitCode()
		if ctxErr := ctx.Err(); ctxErr != nil {
			out.Stderr = appendLine(out.Stderr, ctxErr.Error())
		}
	default:
		out.ExitCode = -1
		out.Stderr = appendLine(out.Stderr, err.Error())
	}

	s.logger.DebugContext(ctx, "code finished", slog.String("tool", s.cfg.Name), slog.Int("exit_code", out.ExitCode))
	return out
}

func (s *Sandbox) materialize(code string) (string, error) {
	f, err := os.CreateTemp(s.cfg.TempDir, "sandbox-*"+s.cfg.Suffix)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()

	_, werr := f.WriteString(code)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	return path, nil
}

func appendLine(s, line string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s + line
	}
	return s + "\n" + line
}

// Handler adapts Execute to the tools registry. A non-zero exit is still a
// successful tool call; the model reads the exit code.
func (s *Sandbox) Handler() tools.Handler {
	return func(ctx context.Context, args json.RawMessage) (tools.Result, error) {
		var in Input
		if err := json.Unmarshal(args, &in); err != nil {
			return tools.Result{}, fmt.Errorf("decode arguments: %w", err)
		}
		out := s.Execute(ctx, in.Code, in.DataValues)
		return tools.Result{Payload: out, IsError: out.ExitCode < 0}, nil
	}
}

// Register adds the sandbox to reg.
func (s *Sandbox) Register(reg *tools.Registry) error {
	return reg.Register(s.Schema(), s.Handler())
}
