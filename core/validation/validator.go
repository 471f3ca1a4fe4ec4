// Package validation evaluates node rules against values.
//
// All rules of a field run, in declared order, so that every violation is
// reported. Custom rules run concurrently and their results are joined back
// into declaration order. A fault inside a custom rule is reported as a fault,
// never as an ordinary failure.
package validation

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/artpar/paramkit/core/schema"
	"github.com/artpar/paramkit/core/terminology"
	"github.com/artpar/paramkit/core/value"
	"github.com/artpar/paramkit/ports"
)

// Validator validates values against node rules. It is safe for concurrent use.
type Validator struct {
	catalog     *terminology.Catalog
	observer    ports.ValidationObserver
	logger      zerolog.Logger
	concurrency int
	ruleTimeout time.Duration
}

// Option configures a Validator.
type Option func(*Validator)

// WithCatalog sets the message catalog.
func WithCatalog(c *terminology.Catalog) Option {
	return func(v *Validator) { v.catalog = c }
}

// WithObserver sets the rule outcome observer.
func WithObserver(o ports.ValidationObserver) Option {
	return func(v *Validator) { v.observer = o }
}

// WithLogger sets the logger used for fault reports.
func WithLogger(l zerolog.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// WithConcurrency bounds how many fields a batch validates at once.
// Zero or less means unbounded.
func WithConcurrency(n int) Option {
	return func(v *Validator) { v.concurrency = n }
}

// WithRuleTimeout bounds each custom rule invocation. Zero means no deadline.
func WithRuleTimeout(d time.Duration) Option {
	return func(v *Validator) { v.ruleTimeout = d }
}

// New creates a validator.
func New(opts ...Option) *Validator {
	v := &Validator{
		catalog:     terminology.NewCatalog(nil),
		observer:    ports.NopObserver{},
		logger:      zerolog.Nop(),
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Catalog returns the message catalog in use.
func (v *Validator) Catalog() *terminology.Catalog { return v.catalog }

// Job is one field to validate in a batch.
type Job struct {
	Path  string
	Node  *schema.Node
	Value value.Value
}

// Validate runs the rules of node against val at path.
//
// Required is in effect when a Required rule is declared or the node has
// FlagRequired. A missing required value yields exactly one Required error
// and no other rule runs. A Null value without Required skips every rule.
// List values are additionally validated element by element against the
// item template at "path.<index>".
func (v *Validator) Validate(ctx context.Context, path string, node *schema.Node, val value.Value, fields schema.FieldReader) Result {
	res := Result{Path: path}
	v.validateInto(ctx, path, node, val, fields, &res.Errors)
	return res
}

func (v *Validator) validateInto(ctx context.Context, path string, node *schema.Node, val value.Value, fields schema.FieldReader, out *[]FieldError) {
	if node == nil {
		return
	}

	if req, ok := requiredRule(node); ok {
		start := time.Now()
		if schema.Missing(val) {
			*out = append(*out, FieldError{
				Path:    path,
				Rule:    schema.RuleRequired,
				Message: v.message(req),
			})
			v.observer.ObserveRule(string(schema.RuleRequired), ports.OutcomeFail, time.Since(start))
			return
		}
		v.observer.ObserveRule(string(schema.RuleRequired), ports.OutcomePass, time.Since(start))
	} else if val.IsNull() {
		for _, r := range node.Rules {
			v.observer.ObserveRule(string(r.Type), ports.OutcomeSkipped, 0)
		}
		return
	}

	slots := make([]*FieldError, len(node.Rules))
	var g errgroup.Group
	for i, r := range node.Rules {
		switch {
		case r.Type == schema.RuleRequired:
		case r.IsBuiltin():
			slots[i] = v.runBuiltin(path, r, val)
		default:
			g.Go(func() error {
				slots[i] = v.runCustom(ctx, path, r, val, fields)
				return nil
			})
		}
	}
	_ = g.Wait()

	for _, fe := range slots {
		if fe != nil {
			*out = append(*out, *fe)
		}
	}

	if node.Kind == schema.KindList && node.Item != nil {
		for i, elem := range val.Items() {
			v.validateElement(ctx, path+"."+strconv.Itoa(i), node.Item, elem, fields, out)
		}
	}
}

// validateElement validates a list element: valued templates directly,
// structural templates field by field.
func (v *Validator) validateElement(ctx context.Context, path string, tmpl *schema.Node, elem value.Value, fields schema.FieldReader, out *[]FieldError) {
	if tmpl.Kind.Valued() {
		v.validateInto(ctx, path, tmpl, elem, fields, out)
		return
	}
	for _, child := range tmpl.Children {
		field, _ := elem.Field(child.Key)
		v.validateElement(ctx, path+"."+child.Key, child, field, fields, out)
	}
}

func (v *Validator) runBuiltin(path string, r schema.Rule, val value.Value) *FieldError {
	start := time.Now()
	ok, err := r.Check(val)
	switch {
	case err != nil && errors.Is(err, value.ErrTypeMismatch):
		v.observer.ObserveRule(string(r.Type), ports.OutcomeMismatch, time.Since(start))
		return &FieldError{
			Path:     path,
			Rule:     r.Type,
			Message:  v.catalog.Message(terminology.KeyTypeMismatch),
			Mismatch: true,
			Cause:    err,
		}
	case err != nil:
		v.observer.ObserveRule(string(r.Type), ports.OutcomeFault, time.Since(start))
		return &FieldError{
			Path:    path,
			Rule:    r.Type,
			Message: v.catalog.Message(terminology.KeyFault),
			Fault:   true,
			Cause:   err,
		}
	case !ok:
		v.observer.ObserveRule(string(r.Type), ports.OutcomeFail, time.Since(start))
		return &FieldError{Path: path, Rule: r.Type, Message: v.message(r)}
	}
	v.observer.ObserveRule(string(r.Type), ports.OutcomePass, time.Since(start))
	return nil
}

func (v *Validator) runCustom(ctx context.Context, path string, r schema.Rule, val value.Value, fields schema.FieldReader) (fe *FieldError) {
	start := time.Now()
	outcome := ports.OutcomePass
	defer func() {
		if rec := recover(); rec != nil {
			fe = v.fault(path, r, fmt.Errorf("%w: %s panicked: %v", ErrCustomRuleFault, r.Name, rec))
		}
		if fe != nil {
			outcome = ports.OutcomeFail
			if fe.Fault {
				outcome = ports.OutcomeFault
			}
		}
		v.observer.ObserveRule(string(schema.RuleCustom), outcome, time.Since(start))
	}()

	if r.Custom == nil {
		return v.fault(path, r, fmt.Errorf("%w: %s", ErrUnboundCustomRule, r.Name))
	}

	if v.ruleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.ruleTimeout)
		defer cancel()
	}

	msg, err := r.Custom(ctx, val, fields)
	if err != nil {
		return v.fault(path, r, fmt.Errorf("%w: %s: %w", ErrCustomRuleFault, r.Name, err))
	}
	if msg == "" {
		return nil
	}
	if r.Message != "" {
		msg = r.Message
	}
	return &FieldError{Path: path, Rule: schema.RuleCustom, Name: r.Name, Message: msg}
}

func (v *Validator) fault(path string, r schema.Rule, err error) *FieldError {
	v.logger.Warn().
		Err(err).
		Str("path", path).
		Str("rule", r.Name).
		Msg("custom rule fault")
	return &FieldError{
		Path:    path,
		Rule:    r.Type,
		Name:    r.Name,
		Message: v.catalog.Message(terminology.KeyFault),
		Fault:   true,
		Cause:   err,
	}
}

// message picks the rule's own message or the catalog default with its parameters.
func (v *Validator) message(r schema.Rule) string {
	if r.Message != "" {
		return r.Message
	}
	switch r.Type {
	case schema.RuleMinLength, schema.RuleMaxLength, schema.RuleMin, schema.RuleMax:
		return v.catalog.Message(string(r.Type), r.Value)
	case schema.RuleRange:
		return v.catalog.Message(string(r.Type), r.Min, r.Max)
	}
	return v.catalog.Message(string(r.Type))
}

func requiredRule(node *schema.Node) (schema.Rule, bool) {
	for _, r := range node.Rules {
		if r.Type == schema.RuleRequired {
			return r, true
		}
	}
	if node.Flags.Has(schema.FlagRequired) {
		return schema.Required(), true
	}
	return schema.Rule{}, false
}

// ValidateBatch validates every job concurrently and joins the results.
// If ctx is cancelled, jobs not yet started are abandoned; the results of
// completed jobs are returned, in job order, together with the context error.
func (v *Validator) ValidateBatch(ctx context.Context, jobs []Job, fields schema.FieldReader) ([]Result, error) {
	results := make([]Result, len(jobs))
	done := make([]bool, len(jobs))

	var g errgroup.Group
	if v.concurrency > 0 {
		g.SetLimit(v.concurrency)
	}
	for i, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = v.Validate(ctx, job.Path, job.Node, job.Value, fields)
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	completed := make([]Result, 0, len(jobs))
	for i, ok := range done {
		if ok {
			completed = append(completed, results[i])
		}
	}
	if len(completed) < len(jobs) {
		return completed, ctx.Err()
	}
	return results, nil
}
