// Package http provides the HTTP surface over the shape registry and the
// document store.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/artpar/shapekit/adapters/metrics"
	"github.com/artpar/shapekit/core/jsoncodec"
	"github.com/artpar/shapekit/core/registry"
	"github.com/artpar/shapekit/core/shape"
	"github.com/artpar/shapekit/domain/document"
	"github.com/artpar/shapekit/ports"
)

const maxBodyBytes = 10 << 20 // 10MB

// Registry is the read side of the shape registry used by the handlers.
type Registry interface {
	ports.Shapes
	Get(name string) (shape.Record, bool)
	List() []string
}

// ErrorResponseBody is the JSON body of every error response.
type ErrorResponseBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request. Pointer locates the offending
// value in the request body when the failure came from the codec.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Pointer string `json:"pointer,omitempty"`
}

// VersionResponse represents the version endpoint response.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// HashResponse is returned by the hash endpoint.
type HashResponse struct {
	Shape  string          `json:"shape"`
	Hash   string          `json:"hash"`
	Digest document.Digest `json:"digest"`
}

// DocumentResponse is a stored document with its value in wire form.
type DocumentResponse struct {
	ID        string          `json:"id"`
	Shape     string          `json:"shape"`
	Hash      string          `json:"hash"`
	Digest    document.Digest `json:"digest"`
	CreatedAt time.Time       `json:"created_at"`
	Created   bool            `json:"created,omitempty"`
	Value     any             `json:"value"`
}

// Handler serves the shape and document API.
type Handler struct {
	shapes  Registry
	store   ports.DocumentStore
	digest  document.EncodeOptions
	logger  zerolog.Logger
	metrics *metrics.Collector
	version string
}

// Config holds optional configuration for the router.
type Config struct {
	Metrics     *metrics.Collector
	MetricsPath string       // default /metrics
	Scrape      http.Handler // default promhttp.Handler()
	Version     string
	Encoding    document.EncodeOptions
}

// NewHandler creates a new handler. store may be nil, in which case the
// document endpoints are not mounted.
func NewHandler(shapes Registry, store ports.DocumentStore, logger zerolog.Logger, cfg Config) *Handler {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return &Handler{
		shapes:  shapes,
		store:   store,
		digest:  cfg.Encoding,
		logger:  logger,
		metrics: cfg.Metrics,
		version: version,
	}
}

// NewRouter builds the chi router for h.
func NewRouter(h *Handler, cfg Config) chi.Router {
	r := chi.NewRouter()

	metricsPath := cfg.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}

	r.Use(NewRequestIDMiddleware())
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(h.logger, metricsPath))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics, metricsPath))
	}

	r.Get("/healthz", h.Health)
	r.Get("/version", h.Version)

	if cfg.Metrics != nil {
		scrape := cfg.Scrape
		if scrape == nil {
			scrape = promhttp.Handler()
		}
		r.Handle(metricsPath, scrape)
	}

	r.Route("/shapes", func(r chi.Router) {
		r.Get("/", h.ListShapes)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", h.DescribeShape)
			r.Post("/normalize", h.Normalize)
			r.Post("/hash", h.Hash)
			r.Post("/equals", h.Equals)
			if h.store != nil {
				r.Post("/documents", h.PutDocument)
				r.Get("/documents", h.ListDocuments)
			}
		})
	})

	if h.store != nil {
		r.Get("/documents/{id}", h.GetDocument)
		r.Delete("/documents/{id}", h.DeleteDocument)
	}

	return r
}

// Health returns a simple liveness check.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Version returns the service version.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: h.version, Service: "shapekit"})
}

// ListShapes returns the descriptors of all registered shapes, by name.
func (h *Handler) ListShapes(w http.ResponseWriter, r *http.Request) {
	names := h.shapes.List()
	out := make([]shape.Descriptor, 0, len(names))
	for _, name := range names {
		if rec, ok := h.shapes.Get(name); ok {
			out = append(out, shape.Describe(rec))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// DescribeShape returns one shape descriptor.
func (h *Handler) DescribeShape(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.shapes.Get(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, ErrorDetail{Code: "shape_not_found", Message: "unknown shape " + chi.URLParam(r, "name")})
		return
	}
	writeJSON(w, http.StatusOK, shape.Describe(rec))
}

// Normalize reads the body as the named shape and writes it back in
// canonical wire form.
func (h *Handler) Normalize(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	mapper, value, ok := h.readValue(w, r, name)
	if !ok {
		return
	}
	out, err := mapper.Marshal(value)
	if err != nil {
		h.writeCodecError(w, "write", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// Hash returns the structural hash code and content digest of the body.
func (h *Handler) Hash(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	_, value, ok := h.readValue(w, r, name)
	if !ok {
		return
	}
	hashCode, err := h.shapes.HashCode(name)
	if err != nil {
		h.writeShapeError(w, err)
		return
	}
	storage, err := h.shapes.StorageMapper(name)
	if err != nil {
		h.writeShapeError(w, err)
		return
	}
	body, err := document.Encode(storage, value, h.digest)
	if err != nil {
		h.writeCodecError(w, "write", err)
		return
	}
	writeJSON(w, http.StatusOK, HashResponse{
		Shape:  name,
		Hash:   document.FormatHash(hashCode(value)),
		Digest: body.Digest,
	})
}

// Equals compares the two values in {"a": ..., "b": ...}.
func (h *Handler) Equals(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	mapper, err := h.shapes.Mapper(name)
	if err != nil {
		h.writeShapeError(w, err)
		return
	}
	equals, err := h.shapes.Equals(name)
	if err != nil {
		h.writeShapeError(w, err)
		return
	}

	var pair struct {
		A json.RawMessage `json:"a"`
		B json.RawMessage `json:"b"`
	}
	data, err := readBody(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	if err := json.Unmarshal(data, &pair); err != nil {
		writeError(w, http.StatusBadRequest, ErrorDetail{Code: "bad_request", Message: err.Error()})
		return
	}

	a, err := mapper.Unmarshal(pair.A)
	if err != nil {
		h.writeCodecError(w, "read", prefixPointer(err, "/a"))
		return
	}
	b, err := mapper.Unmarshal(pair.B)
	if err != nil {
		h.writeCodecError(w, "read", prefixPointer(err, "/b"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"equal": equals(a, b)})
}

// PutDocument stores the body unless an equal document exists. It answers
// 201 for a new document and 200 for an existing one.
func (h *Handler) PutDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	mapper, value, ok := h.readValue(w, r, name)
	if !ok {
		return
	}
	doc, created, err := h.store.Put(r.Context(), name, value)
	if err != nil {
		h.logger.Error().Err(err).Str("shape", name).Msg("put document failed")
		writeError(w, http.StatusInternalServerError, ErrorDetail{Code: "internal_error", Message: "failed to store document"})
		return
	}

	resp, err := h.documentResponse(mapper, doc)
	if err != nil {
		h.writeCodecError(w, "write", err)
		return
	}
	resp.Created = created
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

// ListDocuments returns the stored documents of a shape, oldest first.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	mapper, err := h.shapes.Mapper(name)
	if err != nil {
		h.writeShapeError(w, err)
		return
	}
	docs, err := h.store.List(r.Context(), name)
	if err != nil {
		h.logger.Error().Err(err).Str("shape", name).Msg("list documents failed")
		writeError(w, http.StatusInternalServerError, ErrorDetail{Code: "internal_error", Message: "failed to list documents"})
		return
	}

	out := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		resp, err := h.documentResponse(mapper, doc)
		if err != nil {
			h.writeCodecError(w, "write", err)
			return
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetDocument returns one document.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := h.store.Get(r.Context(), id)
	if errors.Is(err, document.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrorDetail{Code: "document_not_found", Message: "unknown document " + id})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("get document failed")
		writeError(w, http.StatusInternalServerError, ErrorDetail{Code: "internal_error", Message: "failed to read document"})
		return
	}

	mapper, err := h.shapes.Mapper(doc.Shape)
	if err != nil {
		h.writeShapeError(w, err)
		return
	}
	resp, err := h.documentResponse(mapper, doc)
	if err != nil {
		h.writeCodecError(w, "write", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteDocument removes a document.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.store.Delete(r.Context(), id)
	if errors.Is(err, document.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrorDetail{Code: "document_not_found", Message: "unknown document " + id})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("id", id).Msg("delete document failed")
		writeError(w, http.StatusInternalServerError, ErrorDetail{Code: "internal_error", Message: "failed to delete document"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readValue resolves the shape's mapper and reads the request body with it.
// On failure it writes the error response and returns ok == false.
func (h *Handler) readValue(w http.ResponseWriter, r *http.Request, name string) (jsoncodec.Mapper, any, bool) {
	mapper, err := h.shapes.Mapper(name)
	if err != nil {
		h.writeShapeError(w, err)
		return nil, nil, false
	}
	data, err := readBody(w, r)
	if err != nil {
		writeBodyError(w, err)
		return nil, nil, false
	}
	value, err := mapper.Unmarshal(data)
	if err != nil {
		h.writeCodecError(w, "read", err)
		return nil, nil, false
	}
	return mapper, value, true
}

func (h *Handler) documentResponse(m jsoncodec.Mapper, doc document.Document) (DocumentResponse, error) {
	wire, err := m.Write(doc.Value)
	if err != nil {
		return DocumentResponse{}, err
	}
	return DocumentResponse{
		ID:        doc.ID,
		Shape:     doc.Shape,
		Hash:      document.FormatHash(doc.Hash),
		Digest:    doc.Digest,
		CreatedAt: doc.CreatedAt,
		Value:     wire,
	}, nil
}

func (h *Handler) writeShapeError(w http.ResponseWriter, err error) {
	if errors.Is(err, registry.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrorDetail{Code: "shape_not_found", Message: err.Error()})
		return
	}
	h.logger.Error().Err(err).Msg("shape lookup failed")
	writeError(w, http.StatusInternalServerError, ErrorDetail{Code: "internal_error", Message: "shape lookup failed"})
}

// writeCodecError answers 422 for values that do not fit the shape and 400
// for bodies that are not JSON at all.
func (h *Handler) writeCodecError(w http.ResponseWriter, op string, err error) {
	if h.metrics != nil {
		h.metrics.RecordCodecError(op, err)
	}

	var decErr *jsoncodec.DecodeError
	if errors.As(err, &decErr) {
		writeError(w, http.StatusUnprocessableEntity, ErrorDetail{
			Code:    metrics.CodecReason(err),
			Message: err.Error(),
			Pointer: decErr.Path,
		})
		return
	}
	var encErr *jsoncodec.EncodeError
	if errors.As(err, &encErr) {
		writeError(w, http.StatusUnprocessableEntity, ErrorDetail{
			Code:    metrics.CodecReason(err),
			Message: err.Error(),
			Pointer: encErr.Path,
		})
		return
	}
	writeError(w, http.StatusBadRequest, ErrorDetail{Code: "invalid_json", Message: err.Error()})
}

func prefixPointer(err error, prefix string) error {
	var decErr *jsoncodec.DecodeError
	if errors.As(err, &decErr) {
		copied := *decErr
		copied.Path = prefix + copied.Path
		return &copied
	}
	return fmt.Errorf("%s: %w", prefix, err)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, io.ErrUnexpectedEOF
	}
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, ErrorDetail{
			Code:    "body_too_large",
			Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
		})
		return
	}
	writeError(w, http.StatusBadRequest, ErrorDetail{Code: "bad_request", Message: "failed to read request body"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail ErrorDetail) {
	writeJSON(w, status, ErrorResponseBody{Error: detail})
}
