/*
handlers.go - HTTP API handlers for the cashback simulation engine

PURPOSE:
  Exposes the simulation engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the cashback package.

ENDPOINTS:
  Customers:
    POST   /api/customers/import       Import a CSV dataset (customer_id, order_history)
    GET    /api/customers              List distinct customer ids
    GET    /api/customers/{id}         Customer rows and parsed orders
    DELETE /api/customers              Drop the dataset

  Programs:
    GET    /api/programs               List saved programs
    POST   /api/programs               Create or update a program from JSON
    GET    /api/programs/default       Default program definition
    GET    /api/programs/{id}          Get one program
    DELETE /api/programs/{id}          Delete a program

  Simulations:
    POST   /api/simulations/lifetime       Full-history view (?format=csv for the trace)
    POST   /api/simulations/monthly        Month-scoped view
    POST   /api/simulations/customer/{id}  One customer's trace

  Scenarios:
    GET    /api/scenarios              List demo datasets
    POST   /api/scenarios/load         Load a demo dataset

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Customer dataset and saved programs
  - ProgramFactory: JSON to Program conversion
  - Workers: Engine pool size per run

REQUEST FLOW:
  1. Parse HTTP request
  2. Resolve the program (inline, saved, or default)
  3. Load the dataset from the store and run the engine
  4. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo dataset loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/warp/cashback-engine/cashback"
	"github.com/warp/cashback-engine/factory"
	"github.com/warp/cashback-engine/generic"
	"github.com/warp/cashback-engine/store"
)

// MaxImportBytes caps the size of an uploaded dataset.
const MaxImportBytes = 64 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store          store.Store
	ProgramFactory *factory.ProgramFactory
	Workers        int
	Logger         *slog.Logger

	// Track currently loaded scenario
	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a new handler with the given store. workers <= 0
// means one worker per CPU.
func NewHandler(s store.Store, workers int, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Store:          s,
		ProgramFactory: factory.NewProgramFactory(),
		Workers:        workers,
		Logger:         logger,
	}
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ImportCustomers reads a CSV dataset from the body (or the "file" field of
// a multipart form) and stores it. Customers already stored are replaced.
// POST /api/customers/import
func (h *Handler) ImportCustomers(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxImportBytes)

	body, err := csvBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid upload", err)
		return
	}
	defer body.Close()

	rows, err := factory.ReadCustomersCSV(body)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "Dataset too large", err)
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "Invalid dataset", err)
		return
	}

	n, err := h.Store.ImportCustomers(r.Context(), rows)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to import customers", err)
		return
	}

	h.Logger.Info("customers imported", "rows", n, "request_id", requestID(r))
	writeJSON(w, http.StatusOK, ImportResponse{
		Imported:  n,
		Customers: len(store.DistinctIDs(rows)),
	})
}

func csvBody(r *http.Request) (io.ReadCloser, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		return file, err
	}
	return r.Body, nil
}

// ListCustomers returns the distinct customer ids in import order.
// GET /api/customers
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.ListCustomers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list customers", err)
		return
	}

	ids := store.DistinctIDs(rows)
	writeJSON(w, http.StatusOK, CustomerListDTO{Count: len(ids), IDs: ids})
}

// GetCustomer returns one customer with every parsed order.
// GET /api/customers/{id}
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get customer", err)
		return
	}

	writeJSON(w, http.StatusOK, CustomerDTO{
		ID:        c.ID,
		Histories: c.Histories,
		Orders:    toOrderDTOs(c.Orders()),
	})
}

// DeleteCustomers drops the whole dataset.
// DELETE /api/customers
func (h *Handler) DeleteCustomers(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteCustomers(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete customers", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// PROGRAM HANDLERS
// =============================================================================

// ListPrograms returns all saved programs. Records whose JSON no longer
// decodes are skipped.
// GET /api/programs
func (h *Handler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListPrograms(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list programs", err)
		return
	}

	dtos := make([]ProgramDTO, 0, len(records))
	for _, rec := range records {
		var config factory.ProgramJSON
		if err := json.Unmarshal([]byte(rec.ConfigJSON), &config); err != nil {
			h.Logger.Warn("skipping unreadable program", "program_id", rec.ID, "error", err)
			continue
		}
		dtos = append(dtos, toProgramDTO(rec, config))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProgram validates a program definition and saves it. A missing id
// gets a fresh UUID; an existing id is updated and its version bumped.
// POST /api/programs
func (h *Handler) CreateProgram(w http.ResponseWriter, r *http.Request) {
	var req factory.ProgramJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec, config, err := h.SaveProgram(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, "Failed to save program", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProgramDTO(rec, config))
}

// SaveProgram validates pj and stores its canonical form, with every label
// filled in. An empty id gets a fresh UUID.
func (h *Handler) SaveProgram(ctx context.Context, pj factory.ProgramJSON) (store.ProgramRecord, factory.ProgramJSON, error) {
	program, err := h.ProgramFactory.FromJSON(pj)
	if err != nil {
		return store.ProgramRecord{}, factory.ProgramJSON{}, err
	}

	config := h.ProgramFactory.ToJSON(program)
	config.ID = pj.ID
	if config.ID == "" {
		config.ID = uuid.NewString()
	}

	data, err := json.Marshal(config)
	if err != nil {
		return store.ProgramRecord{}, factory.ProgramJSON{}, err
	}

	rec, err := h.Store.SaveProgram(ctx, store.ProgramRecord{
		ID:         config.ID,
		Name:       program.Name,
		ConfigJSON: string(data),
	})
	if err != nil {
		return store.ProgramRecord{}, factory.ProgramJSON{}, err
	}
	return rec, config, nil
}

// GetProgram returns one saved program.
// GET /api/programs/{id}
func (h *Handler) GetProgram(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Store.GetProgram(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get program", err)
		return
	}

	var config factory.ProgramJSON
	if err := json.Unmarshal([]byte(rec.ConfigJSON), &config); err != nil {
		writeError(w, http.StatusInternalServerError, "Stored program is unreadable", err)
		return
	}
	writeJSON(w, http.StatusOK, toProgramDTO(rec, config))
}

// DeleteProgram removes a saved program.
// DELETE /api/programs/{id}
func (h *Handler) DeleteProgram(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteProgram(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, "Failed to delete program", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GetDefaultProgram returns the built-in program definition.
// GET /api/programs/default
func (h *Handler) GetDefaultProgram(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, factory.DefaultProgramJSON())
}

// =============================================================================
// SIMULATION HANDLERS
// =============================================================================

// SimulateLifetime runs every stored customer over their full history.
// With ?format=csv the response is the trace as a CSV file.
// POST /api/simulations/lifetime
func (h *Handler) SimulateLifetime(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SimulationRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	program, err := h.resolveProgram(ctx, req)
	if err != nil {
		h.writeDomainError(w, "Failed to resolve program", err)
		return
	}

	runID := uuid.NewString()
	engine := h.engine(program, runID)
	report, err := cashback.FromSource(ctx, h.Store, engine.FullHistory)
	if err != nil {
		h.writeDomainError(w, "Simulation failed", err)
		return
	}
	h.Logger.Info("lifetime simulation", "run_id", runID, "program", program.Name,
		"customers", len(report.Customers), "orders", len(report.Trace))

	if r.URL.Query().Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="trace-`+runID+`.csv"`)
		if err := factory.WriteTraceCSV(w, report.Trace); err != nil {
			h.Logger.Error("write trace csv", "run_id", runID, "error", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, toLifetimeResponse(runID, program, report, req))
}

// SimulateMonthly runs every stored customer once and summarizes the
// requested months. Trend always has one row per month.
// POST /api/simulations/monthly
func (h *Handler) SimulateMonthly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req MonthlyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	monthReq := cashback.MonthRequest{Months: req.Months, ByBracket: req.ByBracket}
	if err := monthReq.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid months", err)
		return
	}

	program, err := h.resolveProgram(ctx, req.SimulationRequest)
	if err != nil {
		h.writeDomainError(w, "Failed to resolve program", err)
		return
	}

	runID := uuid.NewString()
	results, err := cashback.FromSource(ctx, h.Store, h.engine(program, runID).Simulate)
	if err != nil {
		h.writeDomainError(w, "Simulation failed", err)
		return
	}

	rows := cashback.SummarizeMonths(results, program.Brackets, monthReq)
	trend := rows
	if req.ByBracket {
		trend = cashback.SummarizeMonths(results, program.Brackets, cashback.MonthRequest{Months: req.Months})
	}
	h.Logger.Info("monthly simulation", "run_id", runID, "program", program.Name,
		"customers", len(results), "months", len(req.Months))

	writeJSON(w, http.StatusOK, MonthlyResponse{
		RunID:   runID,
		Program: program.Name,
		Rows:    toMonthDTOs(rows),
		Trend:   toMonthDTOs(trend),
	})
}

// SimulateCustomer returns one customer's full trace.
// POST /api/simulations/customer/{id}
func (h *Handler) SimulateCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SimulationRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, err := h.Store.GetCustomer(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Failed to get customer", err)
		return
	}
	program, err := h.resolveProgram(ctx, req)
	if err != nil {
		h.writeDomainError(w, "Failed to resolve program", err)
		return
	}

	res := cashback.Simulator{Program: program}.Run(c.ID, c.Orders())
	writeJSON(w, http.StatusOK, CustomerSimulationResponse{
		RunID:    uuid.NewString(),
		Program:  program.Name,
		Customer: toCustomerSummaryDTO(cashback.Summarize(res)),
		Trace:    toTraceDTOs(res.Trace),
	})
}

// resolveProgram picks the inline program, else the saved one, else the
// default program.
func (h *Handler) resolveProgram(ctx context.Context, req SimulationRequest) (cashback.Program, error) {
	switch {
	case req.Program != nil:
		return h.ProgramFactory.FromJSON(*req.Program)
	case req.ProgramID != "":
		rec, err := h.Store.GetProgram(ctx, req.ProgramID)
		if err != nil {
			return cashback.Program{}, err
		}
		return h.ProgramFactory.ParseProgram(rec.ConfigJSON)
	default:
		return factory.DefaultProgram(), nil
	}
}

func (h *Handler) engine(program cashback.Program, runID string) *cashback.Engine {
	return cashback.NewEngine(program,
		cashback.WithWorkers(h.Workers),
		cashback.WithLogger(h.Logger.With("run_id", runID)),
	)
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeOptional decodes a JSON body; an empty body leaves v untouched.
func decodeOptional(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// writeDomainError maps domain errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Logger.Error(message, "error", err)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
