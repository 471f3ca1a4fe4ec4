// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/artpar/paramkit/core/events"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Localization Ports
// -----------------------------------------------------------------------------

// Localizer resolves message and label keys to display strings.
// The second return value reports whether the key is known.
type Localizer interface {
	Lookup(key string) (string, bool)
}

// -----------------------------------------------------------------------------
// Observation Ports
// -----------------------------------------------------------------------------

// Rule outcomes reported to a ValidationObserver.
const (
	OutcomePass     = "pass"
	OutcomeFail     = "fail"
	OutcomeMismatch = "mismatch"
	OutcomeFault    = "fault"
	OutcomeSkipped  = "skipped"
)

// ValidationObserver receives rule and mutation outcomes.
// Implementations must be safe for concurrent use; custom rules are
// evaluated in parallel.
type ValidationObserver interface {
	// ObserveRule records one rule evaluation.
	ObserveRule(rule, outcome string, duration time.Duration)

	// ObserveMutation records one set_value call against a schema version.
	ObserveMutation(schemaVersion, outcome string)
}

// NopObserver discards all observations.
type NopObserver struct{}

func (NopObserver) ObserveRule(string, string, time.Duration) {}
func (NopObserver) ObserveMutation(string, string)            {}

// -----------------------------------------------------------------------------
// Event Ports
// -----------------------------------------------------------------------------

// Publisher accepts context change events.
type Publisher interface {
	Publish(ctx context.Context, event events.Event)
}
