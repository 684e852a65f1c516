// Package httpadapter exposes the classification use cases over HTTP.
package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/document-classifier/internal/config"
	"github.com/kirillkom/document-classifier/internal/core/ports"
	"github.com/kirillkom/document-classifier/internal/observability/metrics"
)

const (
	serviceName      = "classifier-api"
	maxUploadBytes   = 64 << 20
	backpressureWait = 250 * time.Millisecond
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Services groups the inbound ports served by the router. Any of them may be
// nil, in which case its endpoint answers 501.
type Services struct {
	Classifier ports.DocumentClassificationService
	Uploader   ports.DocumentUploader
	Reader     ports.DocumentReader
	Exporter   ports.DocumentExporter
}

type Router struct {
	cfg      config.Config
	services Services
	metrics  *metrics.HTTPServerMetrics
	logger   *slog.Logger
}

func NewRouter(cfg config.Config, services Services, httpMetrics *metrics.HTTPServerMetrics, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:      cfg,
		services: services,
		metrics:  httpMetrics,
		logger:   logger,
	}
}

// Handler assembles the middleware chain. It panics when the embedded API
// document is invalid.
func (rt *Router) Handler() http.Handler {
	routes, err := apiRoutes()
	if err != nil {
		panic(err)
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /classify_file", rt.intercept(rt.classifyFile))
	api.HandleFunc("POST /upload_file", rt.intercept(rt.uploadFile))
	api.HandleFunc("GET /get_file", rt.intercept(rt.getFile))
	api.HandleFunc("GET /export", rt.intercept(rt.exportDocuments))

	var limited http.Handler = requestValidationMiddleware(routes, api)
	limited = backpressureMiddleware(limited, rt.cfg.APIMaxInFlight, backpressureWait, rt.recordRejected)
	limited = rateLimitMiddleware(limited, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.recordRejected)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/", limited)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler, rt.logger)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlerFunc returns the status and payload to send, or an error for the
// interceptor to translate.
type handlerFunc func(r *http.Request) (int, any, error)

type fileResponse struct {
	contentType string
	filename    string
	body        []byte
}

func (rt *Router) intercept(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, payload, err := h(r)
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
		if file, ok := payload.(fileResponse); ok {
			w.Header().Set("Content-Type", file.contentType)
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.filename))
			w.WriteHeader(status)
			_, _ = w.Write(file.body)
			return
		}
		writeJSON(w, status, payload)
	}
}

// writeError echoes client errors and hides everything else behind a
// generic message; the full chain goes to the log with the request id.
func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status < http.StatusInternalServerError {
		writeJSON(w, status, errorBody(r, err.Error()))
		return
	}
	rt.logger.Error("request_failed",
		"request_id", requestIDFromContext(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"kind", errorKindName(err),
		"error", err,
	)
	writeJSON(w, status, errorBody(r, "internal server error"))
}

type classifyRequest struct {
	Filename   string `json:"filename"`
	CustomerID int64  `json:"customer_id"`
}

func (rt *Router) classifyFile(r *http.Request) (int, any, error) {
	if rt.services.Classifier == nil {
		return http.StatusNotImplemented, errorBody(r, "classification is not configured"), nil
	}

	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return http.StatusBadRequest, errorBody(r, "invalid json"), nil
	}

	start := time.Now()
	result, err := rt.services.Classifier.ClassifyDocument(r.Context(), req.CustomerID, req.Filename)
	if err != nil {
		rt.recordClassification(errorKindName(err), start)
		return 0, nil, err
	}
	rt.recordClassification(result.FileClass, start)
	return http.StatusOK, result, nil
}

func (rt *Router) uploadFile(r *http.Request) (int, any, error) {
	if rt.services.Uploader == nil {
		return http.StatusNotImplemented, errorBody(r, "upload is not configured"), nil
	}

	var customerID int64
	if err := runtime.BindQueryParameter("form", true, true, "customer_id", r.URL.Query(), &customerID); err != nil {
		return http.StatusBadRequest, errorBody(r, err.Error()), nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		return http.StatusBadRequest, errorBody(r, "multipart field 'file' is required"), nil
	}
	defer file.Close()

	record, err := rt.services.Uploader.Upload(r.Context(), customerID, fileHeader.Filename, file)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, record, nil
}

func (rt *Router) getFile(r *http.Request) (int, any, error) {
	if rt.services.Reader == nil {
		return http.StatusNotImplemented, errorBody(r, "document lookup is not configured"), nil
	}

	var (
		customerID int64
		filename   string
	)
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "customer_id", query, &customerID); err != nil {
		return http.StatusBadRequest, errorBody(r, err.Error()), nil
	}
	if err := runtime.BindQueryParameter("form", true, true, "filename", query, &filename); err != nil {
		return http.StatusBadRequest, errorBody(r, err.Error()), nil
	}

	record, err := rt.services.Reader.GetDocument(r.Context(), customerID, filename)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, record, nil
}

func (rt *Router) exportDocuments(r *http.Request) (int, any, error) {
	if rt.services.Exporter == nil {
		return http.StatusNotImplemented, errorBody(r, "export is not configured"), nil
	}

	var customerID int64
	if err := runtime.BindQueryParameter("form", true, true, "customer_id", r.URL.Query(), &customerID); err != nil {
		return http.StatusBadRequest, errorBody(r, err.Error()), nil
	}

	body, err := rt.services.Exporter.ExportXLSX(r.Context(), customerID)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, fileResponse{
		contentType: xlsxContentType,
		filename:    fmt.Sprintf("customer-%d-documents.xlsx", customerID),
		body:        body,
	}, nil
}

func (rt *Router) recordClassification(outcome string, start time.Time) {
	if rt.metrics != nil {
		rt.metrics.RecordClassification(serviceName, outcome, time.Since(start))
	}
}

func (rt *Router) recordRejected(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(serviceName, reason)
	}
}

func errorBody(r *http.Request, message string) map[string]string {
	body := map[string]string{"error": message}
	if requestID := requestIDFromContext(r.Context()); requestID != "" {
		body["request_id"] = requestID
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
