package schema

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"sync"

	"github.com/google/uuid"

	"github.com/artpar/paramkit/core/value"
)

// Rule is a declarative validation rule.
// Built-in rules are pure functions of the value and their literal
// parameters. A Custom rule carries a host-supplied function in Custom; the
// function is never serialized and must be re-bound after decoding.
type Rule struct {
	// Type identifies the rule.
	Type RuleType

	// Value is the single parameter of MinLength, MaxLength, Min, Max and Pattern.
	Value value.Value

	// Min and Max bound a Range rule, inclusive.
	Min value.Value
	Max value.Value

	// Message overrides the default message for this rule.
	Message string

	// Name identifies a Custom rule so hosts can re-bind it.
	Name string

	// Custom is the host function of a Custom rule. Nil until bound.
	Custom CustomFunc `json:"-" yaml:"-"`
}

// RuleType identifies the type of rule. The names are the wire names.
type RuleType string

const (
	RuleRequired  RuleType = "Required"
	RuleMinLength RuleType = "MinLength"
	RuleMaxLength RuleType = "MaxLength"
	RuleMin       RuleType = "Min"
	RuleMax       RuleType = "Max"
	RuleRange     RuleType = "Range"
	RulePattern   RuleType = "Pattern"
	RuleEmail     RuleType = "Email"
	RuleURL       RuleType = "Url"
	RuleUUID      RuleType = "Uuid"
	RuleCustom    RuleType = "Custom"
)

// FieldReader gives custom rules read-only access to the other values of
// the context being validated. Unknown paths report false.
type FieldReader interface {
	Lookup(path string) (value.Value, bool)
}

// CustomFunc validates v. A non-empty message means the value is invalid.
// A non-nil error means the validator itself is broken and is reported
// separately from ordinary failures.
type CustomFunc func(ctx context.Context, v value.Value, fields FieldReader) (message string, err error)

// Rule constructors.

func Required() Rule                { return Rule{Type: RuleRequired} }
func MinLength(n int) Rule          { return Rule{Type: RuleMinLength, Value: value.Int(int64(n))} }
func MaxLength(n int) Rule          { return Rule{Type: RuleMaxLength, Value: value.Int(int64(n))} }
func Min(n value.Value) Rule        { return Rule{Type: RuleMin, Value: n} }
func Max(n value.Value) Rule        { return Rule{Type: RuleMax, Value: n} }
func Range(lo, hi value.Value) Rule { return Rule{Type: RuleRange, Min: lo, Max: hi} }
func Email() Rule                   { return Rule{Type: RuleEmail} }
func URL() Rule                     { return Rule{Type: RuleURL} }
func UUID() Rule                    { return Rule{Type: RuleUUID} }

// Pattern requires text to match the regular expression expr.
func Pattern(expr, message string) Rule {
	return Rule{Type: RulePattern, Value: value.Text(expr), Message: message}
}

// Custom wraps a host function under name.
func Custom(name string, fn CustomFunc) Rule {
	return Rule{Type: RuleCustom, Name: name, Custom: fn}
}

// WithMessage returns r with its message overridden.
func (r Rule) WithMessage(msg string) Rule {
	r.Message = msg
	return r
}

// IsBuiltin reports whether r is evaluated by Check.
func (r Rule) IsBuiltin() bool { return r.Type != RuleCustom }

// Missing reports whether v counts as absent for Required: Null, or an
// empty Text or Array.
func Missing(v value.Value) bool {
	switch v.Kind() {
	case value.KindNull:
		return true
	case value.KindText, value.KindArray:
		return v.Len() == 0
	}
	return false
}

// Check evaluates a built-in rule against v. This is a PURE function.
// It reports false with a nil error for an ordinary failure and an error
// wrapping value.ErrTypeMismatch when the rule does not apply to v's kind.
func (r Rule) Check(v value.Value) (bool, error) {
	switch r.Type {
	case RuleRequired:
		return !Missing(v), nil
	case RuleMinLength, RuleMaxLength:
		return checkLength(r, v)
	case RuleMin, RuleMax, RuleRange:
		return checkNumeric(r, v)
	case RulePattern:
		s, err := text(r.Type, v)
		if err != nil {
			return false, err
		}
		re, err := compilePattern(r.Value)
		if err != nil {
			return false, err
		}
		return re.MatchString(s), nil
	case RuleEmail:
		s, err := text(r.Type, v)
		if err != nil {
			return false, err
		}
		addr, err := mail.ParseAddress(s)
		return err == nil && addr.Address == s, nil
	case RuleURL:
		s, err := text(r.Type, v)
		if err != nil {
			return false, err
		}
		u, err := url.ParseRequestURI(s)
		return err == nil && u.Scheme != "" && u.Host != "", nil
	case RuleUUID:
		s, err := text(r.Type, v)
		if err != nil {
			return false, err
		}
		_, err = uuid.Parse(s)
		return err == nil && len(s) == 36, nil
	}
	return false, fmt.Errorf("rule %s has no built-in check", r.Type)
}

func text(t RuleType, v value.Value) (string, error) {
	s, ok := v.AsText()
	if !ok {
		return "", fmt.Errorf("%w: %s needs text, got %s", value.ErrTypeMismatch, t, v.Kind())
	}
	return s, nil
}

func checkLength(r Rule, v value.Value) (bool, error) {
	if v.Kind() != value.KindText && v.Kind() != value.KindArray {
		return false, fmt.Errorf("%w: %s needs text or array, got %s", value.ErrTypeMismatch, r.Type, v.Kind())
	}
	limit, ok := r.Value.AsInt()
	if !ok {
		return false, fmt.Errorf("%s: limit must be an integer", r.Type)
	}
	if r.Type == RuleMinLength {
		return int64(v.Len()) >= limit, nil
	}
	return int64(v.Len()) <= limit, nil
}

func checkNumeric(r Rule, v value.Value) (bool, error) {
	if !v.IsNumeric() {
		return false, fmt.Errorf("%w: %s needs a number, got %s", value.ErrTypeMismatch, r.Type, v.Kind())
	}
	switch r.Type {
	case RuleMin:
		c, err := value.Compare(v, r.Value)
		return c >= 0, err
	case RuleMax:
		c, err := value.Compare(v, r.Value)
		return c <= 0, err
	}
	lo, err := value.Compare(v, r.Min)
	if err != nil {
		return false, err
	}
	hi, err := value.Compare(v, r.Max)
	if err != nil {
		return false, err
	}
	return lo >= 0 && hi <= 0, nil
}

var patternCache sync.Map // string -> *regexp.Regexp

func compilePattern(expr value.Value) (*regexp.Regexp, error) {
	s, ok := expr.AsText()
	if !ok {
		return nil, fmt.Errorf("pattern must be text, got %s", expr.Kind())
	}
	if re, ok := patternCache.Load(s); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(s)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", s, err)
	}
	patternCache.Store(s, re)
	return re, nil
}

// validate checks the literal parameters of r.
func (r Rule) validate() error {
	switch r.Type {
	case RuleRequired, RuleEmail, RuleURL, RuleUUID:
		return nil
	case RuleMinLength, RuleMaxLength:
		n, ok := r.Value.AsInt()
		if !ok || n < 0 {
			return fmt.Errorf("%s needs a non-negative integer, got %v", r.Type, r.Value)
		}
	case RuleMin, RuleMax:
		if !r.Value.IsNumeric() {
			return fmt.Errorf("%s needs a number, got %v", r.Type, r.Value)
		}
	case RuleRange:
		if !r.Min.IsNumeric() || !r.Max.IsNumeric() {
			return fmt.Errorf("Range needs numeric bounds, got %v..%v", r.Min, r.Max)
		}
		if c, _ := value.Compare(r.Min, r.Max); c > 0 {
			return fmt.Errorf("Range min %v exceeds max %v", r.Min, r.Max)
		}
	case RulePattern:
		if _, err := compilePattern(r.Value); err != nil {
			return err
		}
	case RuleCustom:
		if r.Name == "" {
			return fmt.Errorf("Custom rule needs a name")
		}
	default:
		return fmt.Errorf("unknown rule type %q", r.Type)
	}
	return nil
}
