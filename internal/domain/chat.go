package domain

import "encoding/json"

// Chat message roles used on the wire to the LLM.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleFunction  = "function"
)

// ChatMessage is the provider-agnostic chat message shape used by the
// orchestrator and LLM integrations. Name is only set on function-result
// messages, FunctionCall only on assistant messages.
type ChatMessage struct {
	Role         string        `json:"role"`
	Content      string        `json:"content"`
	Name         string        `json:"name,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty"`
}

// FunctionCall is the tool invocation requested by the model. Arguments is
// the raw JSON object produced by the model; the dispatcher parses it.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// FunctionSpec describes one callable function advertised to the model.
type FunctionSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}
