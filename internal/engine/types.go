package engine

import (
	"encoding/json"
)

// Request is one utterance within a conversation
type Request struct {
	Prompt         string `json:"prompt"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// UnmarshalJSON accepts "query" as an alias for "prompt"
func (r *Request) UnmarshalJSON(data []byte) error {
	var raw struct {
		Prompt         string `json:"prompt"`
		Query          string `json:"query"`
		ConversationID string `json:"conversation_id"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Prompt = raw.Prompt
	if r.Prompt == "" {
		r.Prompt = raw.Query
	}

	r.ConversationID = raw.ConversationID

	return nil
}

// Response carries exactly one of rows, an error or a conversational
// message. SQL is echoed with rows and with execution errors, never with
// policy rejections.
type Response struct {
	ConversationID  string
	SQL             string
	Columns         []string
	Rows            []map[string]any
	Truncated       bool
	Error           string
	Message         string
	Retryable       bool
	ExecutionTimeMs float64
}

// Success reports whether the response carries rows
func (r Response) Success() bool {
	return r.Error == "" && r.Message == ""
}

type responseJSON struct {
	Success         bool             `json:"success"`
	ConversationID  string           `json:"conversation_id"`
	SQL             string           `json:"sql,omitempty"`
	Columns         []string         `json:"columns,omitempty"`
	Rows            []map[string]any `json:"rows,omitempty"`
	Truncated       bool             `json:"truncated,omitempty"`
	Error           string           `json:"error,omitempty"`
	Message         string           `json:"message,omitempty"`
	Retryable       bool             `json:"retryable,omitempty"`
	ExecutionTimeMs float64          `json:"execution_time_ms,omitempty"`
}

// MarshalJSON always emits rows for a successful response, even when empty
func (r Response) MarshalJSON() ([]byte, error) {
	out := responseJSON{
		Success:         r.Success(),
		ConversationID:  r.ConversationID,
		SQL:             r.SQL,
		Columns:         r.Columns,
		Truncated:       r.Truncated,
		Error:           r.Error,
		Message:         r.Message,
		Retryable:       r.Retryable,
		ExecutionTimeMs: r.ExecutionTimeMs,
	}

	if !out.Success {
		return json.Marshal(out)
	}

	rows := r.Rows
	if rows == nil {
		rows = []map[string]any{}
	}

	// The outer Rows shadows the embedded omitempty field.
	return json.Marshal(struct {
		responseJSON
		Rows []map[string]any `json:"rows"`
	}{out, rows})
}
