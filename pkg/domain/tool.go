package domain

// CallProposal is an operation call suggested by the model.
// It is transient: produced per model turn and consumed by the coercer.
type CallProposal struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ValidatedCall is a call whose arguments are restricted to the keys declared by
// the operation schema plus the injected identity key.
type ValidatedCall struct {
	Name      string         `json:"name"`
	Identity  string         `json:"identity"`
	Arguments map[string]any `json:"arguments"`
}

// ToolRequest is the wire-level request sent to the tool-execution service.
type ToolRequest struct {
	ID        string         `json:"id"` // Correlation id, never sent to the model
	Name      string         `json:"toolName"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the response of the tool-execution service.
// The payload is always text; operations serialize structured data themselves.
type ToolResult struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	IsError bool   `json:"is_error,omitempty"`
	Empty   bool   `json:"empty,omitempty"` // The service returned no content
}

// NewToolRequest builds the wire request for a validated call.
func NewToolRequest(id string, call ValidatedCall) ToolRequest {
	args := make(map[string]any, len(call.Arguments))
	for k, v := range call.Arguments {
		args[k] = v
	}
	return ToolRequest{
		ID:        id,
		Name:      call.Name,
		Arguments: args,
	}
}
