package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/paramkit/core/schema"
)

var (
	// ErrCustomRuleFault marks a custom rule that returned an error or panicked.
	ErrCustomRuleFault = errors.New("custom rule fault")

	// ErrUnboundCustomRule marks a custom rule slot with no function bound.
	ErrUnboundCustomRule = errors.New("custom rule not bound")
)

// FieldError is one rule violation, or one validator fault, at a path.
type FieldError struct {
	// Path is the full path of the offending value.
	Path string `json:"path" yaml:"path"`

	// Rule is the machine-readable rule kind.
	Rule schema.RuleType `json:"rule" yaml:"rule"`

	// Name identifies the custom rule, if Rule is Custom.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Message is the human-readable description.
	Message string `json:"message" yaml:"message"`

	// Fault is set when the validator itself failed rather than the value.
	Fault bool `json:"fault,omitempty" yaml:"fault,omitempty"`

	// Mismatch is set when the rule does not apply to the value's kind.
	Mismatch bool `json:"mismatch,omitempty" yaml:"mismatch,omitempty"`

	// Cause is the underlying error for faults and mismatches.
	Cause error `json:"-" yaml:"-"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Path, e.Message, e.Rule)
}

func (e FieldError) Unwrap() error { return e.Cause }

// Result holds every error found for one path, in rule declaration order.
type Result struct {
	Path   string       `json:"path" yaml:"path"`
	Errors []FieldError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Valid reports whether no rule failed and no validator faulted.
func (r Result) Valid() bool { return len(r.Errors) == 0 }

// Faulted reports whether any error is a validator fault.
func (r Result) Faulted() bool {
	for _, e := range r.Errors {
		if e.Fault {
			return true
		}
	}
	return false
}

// Rules returns the rule kinds that failed, in order.
func (r Result) Rules() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = string(e.Rule)
	}
	return out
}

// Messages returns the messages of every error, in order.
func (r Result) Messages() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Message
	}
	return out
}

// Error is returned when a stored value fails validation. It accumulates
// every violation rather than the first.
type Error struct {
	Errors []FieldError
}

// NewError returns an *Error for errs, or nil when errs is empty.
func NewError(errs []FieldError) error {
	if len(errs) == 0 {
		return nil
	}
	return &Error{Errors: append([]FieldError(nil), errs...)}
}

func (e *Error) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Unwrap exposes each field error, so errors.Is finds fault and mismatch causes.
func (e *Error) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, fe := range e.Errors {
		out[i] = fe
	}
	return out
}

// Faulted reports whether any error is a validator fault.
func (e *Error) Faulted() bool {
	return Result{Errors: e.Errors}.Faulted()
}
