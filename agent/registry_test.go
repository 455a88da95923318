package agent_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/tailored-agentic-units/toolbench/agent"
	_ "github.com/tailored-agentic-units/toolbench/agent/mock"
)

func mockConfig(model string) agent.Config {
	return agent.Config{
		Provider: "mock",
		Model:    model,
		Options:  map[string]any{"reply": "hello from " + model},
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := agent.NewRegistry()

	if err := r.Register("small", mockConfig("small-model")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	a, err := r.Get("small")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if a == nil {
		t.Fatal("Get returned nil agent")
	}

	// Second Get returns same cached instance
	a2, err := r.Get("small")
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if a != a2 {
		t.Error("expected cached agent instance")
	}
}

func TestRegistry_RegisterEmptyName(t *testing.T) {
	r := agent.NewRegistry()

	err := r.Register("", agent.Config{})
	if !errors.Is(err, agent.ErrEmptyAgentName) {
		t.Errorf("got %v, want ErrEmptyAgentName", err)
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := agent.NewRegistry()

	cfg := mockConfig("small-model")
	if err := r.Register("small", cfg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	err := r.Register("small", cfg)
	if !errors.Is(err, agent.ErrAgentExists) {
		t.Errorf("got %v, want ErrAgentExists", err)
	}
}

func TestRegistry_GetNotFound(t *testing.T) {
	r := agent.NewRegistry()

	_, err := r.Get("nonexistent")
	if !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("got %v, want ErrAgentNotFound", err)
	}
}

func TestRegistry_GetUnknownProvider(t *testing.T) {
	r := agent.NewRegistry()
	r.Register("bad", agent.Config{Provider: "carrier-pigeon"})

	_, err := r.Get("bad")
	if !errors.Is(err, agent.ErrUnknownProvider) {
		t.Errorf("got %v, want ErrUnknownProvider", err)
	}
}

func TestRegistry_Replace(t *testing.T) {
	r := agent.NewRegistry()

	if err := r.Register("small", mockConfig("small-model")); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	a1, err := r.Get("small")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if err := r.Replace("small", mockConfig("bigger-model")); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	a2, err := r.Get("small")
	if err != nil {
		t.Fatalf("Get after Replace failed: %v", err)
	}
	if a1 == a2 {
		t.Error("expected new agent instance after Replace")
	}

	infos := r.List()
	if infos[0].Model != "bigger-model" {
		t.Errorf("got model %q, want %q", infos[0].Model, "bigger-model")
	}
}

func TestRegistry_ReplaceErrors(t *testing.T) {
	r := agent.NewRegistry()

	if err := r.Replace("", agent.Config{}); !errors.Is(err, agent.ErrEmptyAgentName) {
		t.Errorf("got %v, want ErrEmptyAgentName", err)
	}
	if err := r.Replace("nonexistent", agent.Config{}); !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("got %v, want ErrAgentNotFound", err)
	}
}

func TestRegistry_List(t *testing.T) {
	r := agent.NewRegistry()

	r.Register("oracle", mockConfig("o-model"))
	r.Register("baseline", mockConfig("b-model"))

	infos := r.List()
	if len(infos) != 2 {
		t.Fatalf("got %d entries, want 2", len(infos))
	}

	// Sorted by name
	if infos[0].Name != "baseline" || infos[1].Name != "oracle" {
		t.Errorf("got order [%s %s], want [baseline oracle]", infos[0].Name, infos[1].Name)
	}
	if infos[0].Provider != "mock" {
		t.Errorf("got provider %q, want mock", infos[0].Provider)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := agent.NewRegistry()
	r.Register("small", mockConfig("small-model"))
	r.Get("small")

	if err := r.Unregister("small"); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}

	_, err := r.Get("small")
	if !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("got %v, want ErrAgentNotFound after Unregister", err)
	}
	if infos := r.List(); len(infos) != 0 {
		t.Errorf("got %d entries after Unregister, want 0", len(infos))
	}

	if err := r.Unregister("small"); !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("got %v, want ErrAgentNotFound", err)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := agent.NewRegistry()

	for i := range 10 {
		name := string(rune('a' + i))
		r.Register(name, mockConfig("model-"+name))
	}

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			r.List()
		})
		wg.Go(func() {
			r.Get("b")
		})
	}
	wg.Wait()
}
