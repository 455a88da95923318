// Command toolbench answers questions with a tool-calling LLM loop and
// benchmarks the answers across query variations.
package main

import (
	_ "github.com/tailored-agentic-units/toolbench/agent/mock"
	_ "github.com/tailored-agentic-units/toolbench/agent/providers/anthropic"
	_ "github.com/tailored-agentic-units/toolbench/agent/providers/openai"
	_ "github.com/tailored-agentic-units/toolbench/agent/providers/promptql"
)

func main() {
	Execute()
}
