package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/tailored-agentic-units/toolbench/core/protocol"
	"github.com/tailored-agentic-units/toolbench/tools"
)

func testTool(name string) protocol.Tool {
	return protocol.Tool{
		Name:        name,
		Description: "test tool: " + name,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"input": map[string]any{"type": "string"},
			},
		},
	}
}

func echoHandler(_ context.Context, args json.RawMessage) (tools.Result, error) {
	return tools.Result{Payload: string(args)}, nil
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name    string
		tool    protocol.Tool
		wantErr error
	}{
		{
			name: "valid tool",
			tool: testTool("register_valid"),
		},
		{
			name:    "empty name",
			tool:    protocol.Tool{Name: ""},
			wantErr: tools.ErrEmptyName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := tools.NewRegistry()
			err := reg.Register(tt.tool, echoHandler)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Errorf("Register() unexpected error: %v", err)
			}
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	reg := tools.NewRegistry()
	tool := testTool("register_duplicate")

	if err := reg.Register(tool, echoHandler); err != nil {
		t.Fatalf("first Register() failed: %v", err)
	}

	err := reg.Register(tool, echoHandler)
	if !errors.Is(err, tools.ErrAlreadyExists) {
		t.Errorf("second Register() error = %v, want %v", err, tools.ErrAlreadyExists)
	}
}

func TestRegistries_AreIndependent(t *testing.T) {
	a := tools.NewRegistry()
	b := tools.NewRegistry()

	if err := a.Register(testTool("shared"), echoHandler); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if _, exists := b.Get("shared"); exists {
		t.Error("tool leaked into a second registry")
	}
}

func TestReplace(t *testing.T) {
	reg := tools.NewRegistry()
	tool := testTool("replace_existing")

	if err := reg.Register(tool, echoHandler); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	replacementHandler := func(_ context.Context, _ json.RawMessage) (tools.Result, error) {
		return tools.Result{Payload: "replaced"}, nil
	}

	if err := reg.Replace(tool, replacementHandler); err != nil {
		t.Fatalf("Replace() failed: %v", err)
	}

	result, err := reg.Execute(context.Background(), "replace_existing", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute() after Replace() failed: %v", err)
	}
	if result.Payload != "replaced" {
		t.Errorf("Execute() payload = %v, want %q", result.Payload, "replaced")
	}
}

func TestReplace_NotFound(t *testing.T) {
	err := tools.NewRegistry().Replace(testTool("replace_nonexistent"), echoHandler)
	if !errors.Is(err, tools.ErrNotFound) {
		t.Errorf("Replace() error = %v, want %v", err, tools.ErrNotFound)
	}
}

func TestReplace_EmptyName(t *testing.T) {
	err := tools.NewRegistry().Replace(protocol.Tool{Name: ""}, echoHandler)
	if !errors.Is(err, tools.ErrEmptyName) {
		t.Errorf("Replace() error = %v, want %v", err, tools.ErrEmptyName)
	}
}

func TestGet(t *testing.T) {
	reg := tools.NewRegistry()
	if err := reg.Register(testTool("get_existing"), echoHandler); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	handler, exists := reg.Get("get_existing")
	if !exists {
		t.Fatal("Get() returned exists=false, want true")
	}
	if handler == nil {
		t.Fatal("Get() returned nil handler")
	}

	if _, exists := reg.Get("get_nonexistent"); exists {
		t.Error("Get() returned exists=true for nonexistent tool")
	}
}

func TestList_SortedByName(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(testTool("run_code"), echoHandler)
	reg.Register(testTool("query_data"), echoHandler)

	list := reg.List()
	if len(list) != 2 {
		t.Fatalf("List() returned %d tools, want 2", len(list))
	}
	if list[0].Name != "query_data" || list[1].Name != "run_code" {
		t.Errorf("List() order = [%s %s], want [query_data run_code]", list[0].Name, list[1].Name)
	}
}

func TestExecute_NotFound(t *testing.T) {
	_, err := tools.NewRegistry().Execute(context.Background(), "execute_nonexistent", nil)
	if !errors.Is(err, tools.ErrNotFound) {
		t.Errorf("Execute() error = %v, want %v", err, tools.ErrNotFound)
	}
}

func TestExecute_HandlerError(t *testing.T) {
	reg := tools.NewRegistry()
	handlerErr := errors.New("handler failed")
	reg.Register(testTool("execute_error"), func(_ context.Context, _ json.RawMessage) (tools.Result, error) {
		return tools.Result{}, handlerErr
	})

	_, err := reg.Execute(context.Background(), "execute_error", nil)
	if !errors.Is(err, handlerErr) {
		t.Errorf("Execute() error chain does not contain handler error: %v", err)
	}
}

func TestExecute_RecoversPanic(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(testTool("execute_panic"), func(_ context.Context, _ json.RawMessage) (tools.Result, error) {
		panic("boom")
	})

	_, err := reg.Execute(context.Background(), "execute_panic", nil)
	if !errors.Is(err, tools.ErrPanic) {
		t.Errorf("Execute() error = %v, want %v", err, tools.ErrPanic)
	}
}

func TestExecute_RespectsContext(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(testTool("execute_ctx"), func(ctx context.Context, _ json.RawMessage) (tools.Result, error) {
		if err := ctx.Err(); err != nil {
			return tools.Result{}, err
		}
		return tools.Result{Payload: "ok"}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reg.Execute(ctx, "execute_ctx", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestDispatch(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register(testTool("ok"), func(_ context.Context, args json.RawMessage) (tools.Result, error) {
		return tools.Result{Payload: []map[string]any{{"n": 1}}}, nil
	})
	reg.Register(testTool("soft_fail"), func(_ context.Context, _ json.RawMessage) (tools.Result, error) {
		return tools.Result{Payload: map[string]string{"error": "syntax error"}, IsError: true}, nil
	})
	reg.Register(testTool("hard_fail"), func(_ context.Context, _ json.RawMessage) (tools.Result, error) {
		return tools.Result{}, errors.New("connection reset")
	})
	reg.Register(testTool("panics"), func(_ context.Context, _ json.RawMessage) (tools.Result, error) {
		panic("nil map")
	})

	tests := []struct {
		name      string
		tool      string
		wantOK    bool
		wantInErr string
	}{
		{"success", "ok", true, ""},
		{"tool reported error", "soft_fail", false, "syntax error"},
		{"handler error", "hard_fail", false, "Error executing hard_fail: "},
		{"panic", "panics", false, "nil map"},
		{"unknown tool", "missing", false, "tool not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := protocol.NewToolCall("id-"+tt.tool, tt.tool, `{}`)
			outcome := reg.Dispatch(context.Background(), call)

			if outcome.CallID != call.ID {
				t.Errorf("got call id %q, want %q", outcome.CallID, call.ID)
			}
			if outcome.OK != tt.wantOK {
				t.Errorf("got ok %v, want %v", outcome.OK, tt.wantOK)
			}
			if len(outcome.Payload) == 0 {
				t.Fatal("payload is empty")
			}
			if tt.wantOK {
				return
			}

			var payload map[string]string
			if err := json.Unmarshal(outcome.Payload, &payload); err != nil {
				t.Fatalf("error payload is not an object: %s", outcome.Payload)
			}
			if !strings.Contains(payload["error"], tt.wantInErr) {
				t.Errorf("got error %q, want it to contain %q", payload["error"], tt.wantInErr)
			}
		})
	}
}

func TestDispatch_MalformedArgumentsReachHandler(t *testing.T) {
	reg := tools.NewRegistry()
	var seen string
	reg.Register(testTool("raw"), func(_ context.Context, args json.RawMessage) (tools.Result, error) {
		seen = string(args)
		return tools.Result{Payload: "ok"}, nil
	})

	reg.Dispatch(context.Background(), protocol.NewToolCall("1", "raw", `{"sql": `))
	if seen != `{"sql": ` {
		t.Errorf("handler saw %q, want the raw arguments", seen)
	}
}
