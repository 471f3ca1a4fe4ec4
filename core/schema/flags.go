package schema

import (
	"fmt"
	"math/bits"
	"strings"
)

// Flags is a bit-set of orthogonal behavioral attributes attached to a node.
// Every combination is legal; flags only interact through the derived
// predicates below.
type Flags uint32

const (
	FlagRequired Flags = 1 << iota
	FlagReadonly
	FlagHidden
	FlagDisabled
	FlagSensitive
	FlagWriteOnly
	FlagDeprecated
	FlagExperimental
	FlagInternal
	FlagAnimatable
	FlagRealtime
	FlagExpression
	FlagTemplatable
	FlagSkipSave
	FlagRuntime
	FlagConstant
	FlagReplicated
	FlagAdvanced
	FlagCompact

	flagCount = iota
)

// FlagsNone is the empty set.
const FlagsNone Flags = 0

var flagNames = [flagCount]string{
	"REQUIRED",
	"READONLY",
	"HIDDEN",
	"DISABLED",
	"SENSITIVE",
	"WRITE_ONLY",
	"DEPRECATED",
	"EXPERIMENTAL",
	"INTERNAL",
	"ANIMATABLE",
	"REALTIME",
	"EXPRESSION",
	"TEMPLATABLE",
	"SKIP_SAVE",
	"RUNTIME",
	"CONSTANT",
	"REPLICATED",
	"ADVANCED",
	"COMPACT",
}

// AllFlags lists every defined flag in bit order.
func AllFlags() []Flags {
	out := make([]Flags, flagCount)
	for i := range out {
		out[i] = 1 << i
	}
	return out
}

// Has reports whether every flag in mask is set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// Any reports whether some flag in mask is set.
func (f Flags) Any(mask Flags) bool { return f&mask != 0 }

// With returns f with mask added.
func (f Flags) With(mask Flags) Flags { return f | mask }

// Without returns f with mask removed.
func (f Flags) Without(mask Flags) Flags { return f &^ mask }

// Count returns the number of flags set.
func (f Flags) Count() int { return bits.OnesCount32(uint32(f)) }

// IsEditable is true unless READONLY or DISABLED is set.
func (f Flags) IsEditable() bool { return !f.Any(FlagReadonly | FlagDisabled) }

// ShouldPersist is true unless SKIP_SAVE or RUNTIME is set.
func (f Flags) ShouldPersist() bool { return !f.Any(FlagSkipSave | FlagRuntime) }

// CanDisplay is true unless HIDDEN or INTERNAL is set.
func (f Flags) CanDisplay() bool { return !f.Any(FlagHidden | FlagInternal) }

// Names returns the wire names of the set flags in bit order.
// Bits beyond the defined flags are ignored.
func (f Flags) Names() []string {
	var out []string
	for i, name := range flagNames {
		if f&(1<<i) != 0 {
			out = append(out, name)
		}
	}
	return out
}

func (f Flags) String() string {
	names := f.Names()
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}

// ParseFlag returns the flag with the given wire name.
func ParseFlag(name string) (Flags, error) {
	for i, n := range flagNames {
		if n == name {
			return 1 << i, nil
		}
	}
	return 0, fmt.Errorf("unknown flag %q", name)
}

// ParseFlags folds wire names into a set.
func ParseFlags(names []string) (Flags, error) {
	var f Flags
	for _, name := range names {
		flag, err := ParseFlag(name)
		if err != nil {
			return 0, err
		}
		f |= flag
	}
	return f, nil
}
