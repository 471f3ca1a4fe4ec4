// Package http exposes the schema registry and value validation over HTTP.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/artpar/paramkit/core/codec"
	"github.com/artpar/paramkit/core/registry"
	"github.com/artpar/paramkit/core/schema"
	"github.com/artpar/paramkit/core/state"
	"github.com/artpar/paramkit/core/value"
	"github.com/artpar/paramkit/pkg/jsonapi"
)

// maxBodyBytes bounds a values document.
const maxBodyBytes = 4 << 20

// Resource types.
const (
	typeSchema     = "schemas"
	typeValidation = "validations"
)

// SchemaSource provides the schemas served by the API.
type SchemaSource interface {
	Entry(name string) (registry.Entry, bool)
	List() []registry.Entry
}

// ContextFactory creates the context a validation request runs against.
type ContextFactory func(s *schema.Schema) *state.Context

// SchemaHandler serves schema definitions and validates value documents.
type SchemaHandler struct {
	schemas    SchemaSource
	newContext ContextFactory
	logger     zerolog.Logger

	// EncodeOptions returns the codec options definitions are rendered
	// with, such as the custom rule policy. Nil uses the codec defaults.
	EncodeOptions func() []codec.Option
}

// NewSchemaHandler creates a schema handler. Every validation request runs
// against a fresh context from newContext; nil uses state.New defaults.
func NewSchemaHandler(schemas SchemaSource, newContext ContextFactory, logger zerolog.Logger) *SchemaHandler {
	if newContext == nil {
		newContext = func(s *schema.Schema) *state.Context { return state.New(s) }
	}
	return &SchemaHandler{
		schemas:    schemas,
		newContext: newContext,
		logger:     logger,
	}
}

// Routes returns the schema routes, to be mounted at /schemas.
func (h *SchemaHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{name}", h.Get)
	r.Post("/{name}/validate", h.Validate)
	return r
}

// List returns every registered schema.
func (h *SchemaHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := h.schemas.List()
	resources := make([]jsonapi.Resource, 0, len(entries))
	for _, e := range entries {
		resources = append(resources, schemaResource(e))
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources)
}

// Get returns one schema with its wire definition.
// With ?format=yaml the raw YAML definition is returned instead.
func (h *SchemaHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	e, ok := h.schemas.Entry(name)
	if !ok {
		jsonapi.WriteError(w, jsonapi.ErrNotFound("schema", name))
		return
	}

	if r.URL.Query().Get("format") == "yaml" {
		data, _, err := codec.EncodeSchemaYAML(e.Schema, h.encodeOptions()...)
		if err != nil {
			h.logger.Error().Err(err).Str("schema", name).Msg("encode schema")
			jsonapi.WriteError(w, jsonapi.ErrInternal(""))
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(data)
		return
	}

	doc, report, err := codec.ToDoc(e.Schema, h.encodeOptions()...)
	if err != nil {
		h.logger.Error().Err(err).Str("schema", name).Msg("encode schema")
		jsonapi.WriteError(w, jsonapi.ErrInternal(""))
		return
	}

	res := schemaResource(e)
	res.Attributes["definition"] = doc
	if len(report.SkippedCustom) > 0 {
		res.Meta = jsonapi.Meta{"skipped_custom": report.SkippedCustom}
	}
	jsonapi.WriteResource(w, http.StatusOK, res)
}

func (h *SchemaHandler) encodeOptions() []codec.Option {
	if h.EncodeOptions == nil {
		return nil
	}
	return h.EncodeOptions()
}

// Validate loads a values-only document into a fresh context, validates
// every visible path and returns the report with the context state.
// SENSITIVE and WRITE_ONLY paths are left out of the returned state.
//
// A document naming unknown paths or carrying values of the wrong kind is
// rejected with 422 and one error per problem. Failed rules are not an HTTP
// error: the report says whether the values are valid.
func (h *SchemaHandler) Validate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	e, ok := h.schemas.Entry(name)
	if !ok {
		jsonapi.WriteError(w, jsonapi.ErrNotFound("schema", name))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest("failed to read request body"))
		return
	}
	values, err := codec.DecodeValues(body)
	if err != nil {
		jsonapi.WriteError(w, jsonapi.ErrBadRequest(err.Error()))
		return
	}

	c := h.newContext(e.Schema)
	if err := c.Load(values); err != nil {
		jsonapi.WriteError(w, loadErrors(err)...)
		return
	}

	report, err := c.ValidateAll(r.Context())
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		h.logger.Error().Err(err).Str("schema", name).Msg("validate values")
		jsonapi.WriteError(w, jsonapi.ErrInternal(""))
		return
	}

	h.logger.Debug().
		Str("schema", name).
		Str("context", c.ID()).
		Bool("valid", report.Valid).
		Int("checked", report.Checked).
		Msg("values validated")

	jsonapi.WriteResource(w, http.StatusOK, jsonapi.Resource{
		Type: typeValidation,
		ID:   c.ID(),
		Attributes: map[string]any{
			"schema": name,
			"report": report,
			"state":  codec.StateToDoc(c.SnapshotFiltered(state.Transmittable)),
		},
	})
}

func schemaResource(e registry.Entry) jsonapi.Resource {
	return jsonapi.Resource{
		Type: typeSchema,
		ID:   e.Name,
		Attributes: map[string]any{
			"version":   e.Schema.Version(),
			"paths":     e.Schema.Len(),
			"source":    e.Source,
			"loaded_at": e.LoadedAt,
		},
		Links: &jsonapi.Links{Self: "/schemas/" + e.Name},
	}
}

// loadErrors converts the joined problems of Context.Load into one
// 422 error each, pointing at the offending path where known.
func loadErrors(err error) []jsonapi.Error {
	var problems []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		problems = joined.Unwrap()
	} else {
		problems = []error{err}
	}

	out := make([]jsonapi.Error, 0, len(problems))
	for _, p := range problems {
		b := jsonapi.NewError(http.StatusUnprocessableEntity, loadErrorCode(p), "Invalid Values").Detail(p.Error())
		out = append(out, b.Build())
	}
	return out
}

func loadErrorCode(err error) string {
	switch {
	case errors.Is(err, schema.ErrUnknownPath):
		return "unknown_path"
	case errors.Is(err, value.ErrTypeMismatch):
		return "type_mismatch"
	default:
		return "invalid_value"
	}
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	checker HealthChecker
}

// HealthChecker reports whether the service can serve traffic.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewHealthHandler creates a new health handler. A nil checker is always ready.
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Liveness returns a simple liveness check.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Readiness checks if the service is ready to handle traffic.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.checker != nil {
		if err := h.checker.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]any{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// VersionHandler returns a handler reporting version.
func VersionHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(VersionResponse{Version: version, Service: "paramkit"})
	}
}

// NewLoggingMiddleware creates a middleware that logs HTTP requests.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if internalPath(r.URL.Path) {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
