package state

import (
	"context"

	"github.com/artpar/paramkit/core/events"
	"github.com/artpar/paramkit/core/validation"
)

// Report is the outcome of ValidateAll.
type Report struct {
	// Valid is true only when Complete is true and no visible path has errors.
	Valid bool `json:"valid" yaml:"valid"`

	// Complete is false when the pass was cancelled before every path finished.
	Complete bool `json:"complete" yaml:"complete"`

	// Checked is the number of paths validated.
	Checked int `json:"checked" yaml:"checked"`

	// Errors maps each failing path to its errors.
	Errors map[string][]validation.FieldError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Faulted reports whether any error is a validator fault.
func (r Report) Faulted() bool {
	for _, errs := range r.Errors {
		if (validation.Result{Errors: errs}).Faulted() {
			return true
		}
	}
	return false
}

// ValidateAll revalidates every currently visible valued path, including
// visibility of ancestors and the selected variant of every Mode. Paths are
// validated concurrently and joined. Errors left on hidden paths by earlier
// writes are cleared.
//
// If ctx is cancelled the results of completed paths are still applied, the
// report is marked incomplete and not valid, and the context error is returned.
func (c *Context) ValidateAll(ctx context.Context) (Report, error) {
	c.mu.Lock()

	var jobs []validation.Job
	for _, p := range c.schema.Paths() {
		se, _ := c.schema.Lookup(p)
		if !se.Node.Kind.Valued() {
			continue
		}
		if !c.shownLocked(p) {
			// Hidden values are kept but no longer judged.
			e := c.entries[p]
			e.errors = nil
			e.valid = true
			continue
		}
		jobs = append(jobs, validation.Job{Path: p, Node: se.Node, Value: c.entries[p].value})
	}

	results, err := c.validator.ValidateBatch(ctx, jobs, lockedView{c})

	report := Report{Complete: err == nil, Checked: len(results)}
	for _, res := range results {
		e := c.entries[res.Path]
		e.errors = res.Errors
		e.valid = res.Valid()
		if !e.valid {
			if report.Errors == nil {
				report.Errors = make(map[string][]validation.FieldError)
			}
			report.Errors[res.Path] = res.Errors
		}
	}
	report.Valid = report.Complete && len(report.Errors) == 0

	evt := c.event(events.ValidationCompleted, "", map[string]any{
		"valid":    report.Valid,
		"complete": report.Complete,
		"checked":  report.Checked,
		"failed":   len(report.Errors),
	})
	c.mu.Unlock()

	c.logger.Debug().
		Bool("valid", report.Valid).
		Bool("complete", report.Complete).
		Int("checked", report.Checked).
		Msg("validation completed")
	c.publish(ctx, []events.Event{evt})
	return report, err
}
