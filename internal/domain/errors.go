package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIllegalTransition  = errors.New("illegal order status transition")
	ErrPaymentNotReceived = errors.New("payment not received for this order")
	ErrOrderNotFound      = errors.New("order not found")
)

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field       string `json:"field"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ValidationErrors is returned whenever client input is malformed or incomplete.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Description))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationErrors) Add(field, code, description string) {
	*v = append(*v, ValidationError{Field: field, Code: code, Description: description})
}

// Err returns nil when nothing was collected.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
