package handlers

import (
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-dbclient/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/logging"
	"github.com/ekaya-inc/ekaya-dbclient/pkg/services"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// QueryRequest is the body of POST /api/connections/{id}/query.
type QueryRequest struct {
	SQL       string `json:"sql"`
	Params    []any  `json:"params"`
	TimeoutMs int64  `json:"timeoutMs"`
	Limit     int    `json:"limit"`
}

// QueryResponse carries at most Limit rows. RowCount is the full count.
type QueryResponse struct {
	*datasource.QueryResult
	Truncated bool `json:"truncated"`
}

// TestConnectionResponse for connection test result.
type TestConnectionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ConnectionsHandler serves saved connections and their live sessions.
type ConnectionsHandler struct {
	service services.ConnectionService
	logger  *zap.Logger
}

// NewConnectionsHandler creates a new connections handler.
func NewConnectionsHandler(service services.ConnectionService, logger *zap.Logger) *ConnectionsHandler {
	return &ConnectionsHandler{service: service, logger: logger}
}

// RegisterRoutes registers the connections handler's routes on the given mux.
func (h *ConnectionsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/adapters", h.ListAdapters)

	mux.HandleFunc("GET /api/connections", h.List)
	mux.HandleFunc("POST /api/connections", h.Create)
	mux.HandleFunc("POST /api/connections/test", h.Test)
	mux.HandleFunc("GET /api/connections/{id}", h.Get)
	mux.HandleFunc("PUT /api/connections/{id}", h.Update)
	mux.HandleFunc("DELETE /api/connections/{id}", h.Delete)

	mux.HandleFunc("POST /api/connections/{id}/connect", h.Connect)
	mux.HandleFunc("POST /api/connections/{id}/disconnect", h.Disconnect)
	mux.HandleFunc("POST /api/connections/{id}/query", h.Query)
	mux.HandleFunc("POST /api/connections/{id}/cancel", h.Cancel)
	mux.HandleFunc("GET /api/connections/{id}/schema", h.Schema)
	mux.HandleFunc("GET /api/connections/{id}/status", h.Status)

	mux.HandleFunc("GET /api/status", h.AllStatuses)
	mux.HandleFunc("GET /api/sessions", h.Sessions)
	mux.HandleFunc("GET /api/stats", h.Stats)
}

// ListAdapters handles GET /api/adapters
func (h *ConnectionsHandler) ListAdapters(w http.ResponseWriter, r *http.Request) {
	h.ok(w, http.StatusOK, h.service.Adapters())
}

// List handles GET /api/connections
// Passwords are never included.
func (h *ConnectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	conns, err := h.service.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, "list connections", err)
		return
	}
	h.ok(w, http.StatusOK, conns)
}

// Create handles POST /api/connections
func (h *ConnectionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req datasource.ConnectionDescriptor
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	created, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, "create connection", err)
		return
	}
	h.ok(w, http.StatusCreated, created)
}

// Get handles GET /api/connections/{id}
func (h *ConnectionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	conn, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, "get connection", err)
		return
	}
	h.ok(w, http.StatusOK, conn)
}

// Update handles PUT /api/connections/{id}
// An empty password keeps the saved one.
func (h *ConnectionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req datasource.ConnectionDescriptor
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	updated, err := h.service.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, h.logger, "update connection", err)
		return
	}
	h.ok(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/connections/{id}
func (h *ConnectionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, h.logger, "delete connection", err)
		return
	}
	h.ok(w, http.StatusOK, nil)
}

// Test handles POST /api/connections/test
// A failed dial is reported in the body with status 200.
func (h *ConnectionsHandler) Test(w http.ResponseWriter, r *http.Request) {
	var req datasource.ConnectionDescriptor
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	ok, err := h.service.Test(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.logger, "test connection", err)
		return
	}

	resp := TestConnectionResponse{Success: true, Message: "Connection successful"}
	if !ok {
		resp = TestConnectionResponse{Success: false, Message: "Connection failed"}
	}
	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Connect handles POST /api/connections/{id}/connect
func (h *ConnectionsHandler) Connect(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Connect(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, "connect", err)
		return
	}
	h.ok(w, http.StatusOK, status)
}

// Disconnect handles POST /api/connections/{id}/disconnect
func (h *ConnectionsHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Disconnect(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, h.logger, "disconnect", err)
		return
	}
	h.ok(w, http.StatusOK, nil)
}

// Query handles POST /api/connections/{id}/query
func (h *ConnectionsHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	if req.SQL == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "sql is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	id := r.PathValue("id")
	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	result, err := h.service.ExecuteQuery(r.Context(), id, req.SQL, normalizeParams(req.Params), timeout)
	if err != nil {
		h.logger.Debug("query failed",
			zap.String("connection_id", id),
			zap.String("query", logging.SanitizeQuery(req.SQL)),
		)
		writeServiceError(w, h.logger, "query", err)
		return
	}

	h.ok(w, http.StatusOK, limitRows(result, req.Limit))
}

// Cancel handles POST /api/connections/{id}/cancel
func (h *ConnectionsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.service.CancelQuery(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, h.logger, "cancel query", err)
		return
	}
	h.ok(w, http.StatusOK, nil)
}

// Schema handles GET /api/connections/{id}/schema
func (h *ConnectionsHandler) Schema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.service.GetSchema(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, "get schema", err)
		return
	}
	h.ok(w, http.StatusOK, schema)
}

// Status handles GET /api/connections/{id}/status
// An id the manager has never seen reports disconnected.
func (h *ConnectionsHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status, ok := h.service.Status(id)
	if !ok {
		status = datasource.ConnectionStatus{ID: id, Status: datasource.StateDisconnected}
	}
	h.ok(w, http.StatusOK, status)
}

// AllStatuses handles GET /api/status
func (h *ConnectionsHandler) AllStatuses(w http.ResponseWriter, r *http.Request) {
	h.ok(w, http.StatusOK, h.service.AllStatuses())
}

// Stats handles GET /api/stats
// Sessions lists live connections as their adapters report them.
func (h *ConnectionsHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	h.ok(w, http.StatusOK, h.service.Sessions())
}

func (h *ConnectionsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	h.ok(w, http.StatusOK, h.service.Stats())
}

func (h *ConnectionsHandler) ok(w http.ResponseWriter, status int, data any) {
	if err := WriteJSON(w, status, ApiResponse{Success: true, Data: data}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// limitRows trims result to limit rows, defaulting to DefaultPageSize and
// capping at MaxPageSize.
func limitRows(result *datasource.QueryResult, limit int) QueryResponse {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if len(result.Rows) <= limit {
		return QueryResponse{QueryResult: result}
	}

	trimmed := *result
	trimmed.Rows = result.Rows[:limit]
	return QueryResponse{QueryResult: &trimmed, Truncated: true}
}

// normalizeParams turns whole JSON numbers back into int64 so integer
// columns bind without a float conversion.
func normalizeParams(params []any) []any {
	if len(params) == 0 {
		return nil
	}
	out := make([]any, len(params))
	for i, p := range params {
		if f, ok := p.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			out[i] = int64(f)
			continue
		}
		out[i] = p
	}
	return out
}
