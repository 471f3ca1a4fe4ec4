// Package terminology provides the default validation messages and labels,
// with optional overrides from a host localizer. This allows hosts to show
// "doit contenir au moins 3 caractères" instead of the built-in English text
// without the core knowing anything about locales.
package terminology

import (
	"fmt"
	"strings"

	"github.com/artpar/paramkit/ports"
)

// Messages contains the default message template for each rule kind.
// Templates take the rule parameters as fmt arguments.
type Messages struct {
	Required     string
	MinLength    string
	MaxLength    string
	Min          string
	Max          string
	Range        string
	Pattern      string
	Email        string
	URL          string
	UUID         string
	Custom       string
	TypeMismatch string
	Fault        string
}

// Message keys outside the rule kinds.
const (
	KeyTypeMismatch = "TypeMismatch"
	KeyFault        = "Fault"
)

// Default returns the built-in English messages.
func Default() Messages {
	return Messages{
		Required:     "is required",
		MinLength:    "must be at least %v long",
		MaxLength:    "must be at most %v long",
		Min:          "must be at least %v",
		Max:          "must be at most %v",
		Range:        "must be between %v and %v",
		Pattern:      "does not match required pattern",
		Email:        "invalid email address",
		URL:          "invalid URL",
		UUID:         "invalid UUID",
		Custom:       "is invalid",
		TypeMismatch: "has the wrong type for this rule",
		Fault:        "validator failed",
	}
}

// template returns the default template for key, or "".
func (m Messages) template(key string) string {
	switch key {
	case "Required":
		return m.Required
	case "MinLength":
		return m.MinLength
	case "MaxLength":
		return m.MaxLength
	case "Min":
		return m.Min
	case "Max":
		return m.Max
	case "Range":
		return m.Range
	case "Pattern":
		return m.Pattern
	case "Email":
		return m.Email
	case "Url":
		return m.URL
	case "Uuid":
		return m.UUID
	case "Custom":
		return m.Custom
	case KeyTypeMismatch:
		return m.TypeMismatch
	case KeyFault:
		return m.Fault
	}
	return ""
}

// Map is a Localizer over a fixed key to string table.
type Map map[string]string

func (m Map) Lookup(key string) (string, bool) {
	s, ok := m[key]
	return s, ok
}

var _ ports.Localizer = Map(nil)

// Catalog resolves messages and labels, consulting the localizer first.
type Catalog struct {
	messages  Messages
	localizer ports.Localizer
}

// NewCatalog returns a catalog over the default messages. The localizer may be nil.
func NewCatalog(localizer ports.Localizer) *Catalog {
	return &Catalog{messages: Default(), localizer: localizer}
}

// WithMessages returns a copy of c using msgs as the fallback templates.
func (c *Catalog) WithMessages(msgs Messages) *Catalog {
	out := *c
	out.messages = msgs
	return &out
}

// Message formats the message for a rule kind. Localizer keys are
// "validation.<Kind>", e.g. "validation.MinLength".
func (c *Catalog) Message(kind string, params ...any) string {
	tmpl, ok := c.lookup("validation." + kind)
	if !ok {
		tmpl = c.messages.template(kind)
	}
	if tmpl == "" {
		tmpl = c.messages.Custom
	}
	if len(params) == 0 || !strings.Contains(tmpl, "%") {
		return tmpl
	}
	return fmt.Sprintf(tmpl, params...)
}

// Label resolves the display label of a path. Localizer keys are
// "param.<path>.label"; fallback is returned when none is set.
func (c *Catalog) Label(path, fallback string) string {
	if s, ok := c.lookup("param." + path + ".label"); ok {
		return s
	}
	return fallback
}

func (c *Catalog) lookup(key string) (string, bool) {
	if c == nil || c.localizer == nil {
		return "", false
	}
	return c.localizer.Lookup(key)
}
