package domain

import "strconv"

// Language is a user-facing language code.
type Language string

const (
	Kyrgyz  Language = "ky"
	Russian Language = "ru"
	English Language = "en"
)

// ParseLanguage normalizes a language code, returning fallback for unknown codes.
func ParseLanguage(code string, fallback Language) Language {
	switch Language(code) {
	case Kyrgyz, Russian, English:
		return Language(code)
	default:
		return fallback
	}
}

// Profile is the caller's static profile supplied by the web layer.
type Profile struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Accounts []string `json:"accounts,omitempty"` // Account types, e.g. "Current", "Savings"
}

// Identity returns the key under which pending state and calls are scoped.
func (p Profile) Identity() string {
	return strconv.FormatInt(p.ID, 10)
}

// Turn is one past exchange of the conversation.
type Turn struct {
	Message  string `json:"message"`
	Response string `json:"response"`
}

// Role of a message sent to the model.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the model input.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ToolSpec describes an operation offered to a model that supports structured calls.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema object
}

// ModelRequest is the input of one model invocation.
type ModelRequest struct {
	Messages []Message
	Tools    []ToolSpec // Empty when the backend works in marker mode
}

// ModelResponse is the normalized output of one model invocation.
// Calls holds proposals returned as structured objects by the backend.
type ModelResponse struct {
	Text  string
	Calls []CallProposal
}
