package model

import "encoding/json"

// Error code constants
const (
	ErrCodeGeneration = "generation_failed"
	ErrCodeAdapter    = "adapter_failed"
	ErrCodeValidation = "validation_failed"
	ErrCodeInternal   = "internal_error"
)

// CoreError is the single flat error kind used for item-level failures,
// discriminated by Code.
type CoreError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *CoreError) Error() string {
	return e.Code + ": " + e.Message
}

// NewCoreError creates a CoreError from a code and an underlying error.
func NewCoreError(code string, err error) *CoreError {
	return &CoreError{Code: code, Message: err.Error()}
}

// ToJSON serializes the error to a JSON string.
func (e *CoreError) ToJSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}
