package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Maciej19820502/windykacja/internal/db"
	"github.com/Maciej19820502/windykacja/internal/dunning"
	"github.com/Maciej19820502/windykacja/internal/rates"
	"github.com/Maciej19820502/windykacja/internal/registry"
)

// Engine drives stage batches and single dispatches.
type Engine interface {
	RunStage(ctx context.Context, stage db.Stage, opts dunning.RunOptions) (sent, errors int, err error)
	Dispatch(ctx context.Context, contractorID int64, stage db.Stage, opts dunning.Options) (bool, string)
	ResolveStage(ctx context.Context, contractorID int64) (db.Stage, *db.Invoice, error)
}

// Repository defines the database operations the handlers need.
type Repository interface {
	GetContractor(ctx context.Context, id int64) (*db.Contractor, error)
	GetContractorByNIP(ctx context.Context, nip string) (*db.Contractor, error)
	CreateContractor(ctx context.Context, c *db.Contractor) error
	GetInvoice(ctx context.Context, id int64) (*db.Invoice, error)
	ListInvoicesByContractor(ctx context.Context, contractorID int64) ([]*db.Invoice, error)
	ListCorrespondence(ctx context.Context, limit, offset int) ([]*db.Correspondence, error)
}

// RateSource provides PLN conversion rates.
type RateSource interface {
	Today(ctx context.Context) rates.Table
}

// Pinger reports storage liveness for the health endpoint.
// Implemented by db.DB.
type Pinger interface {
	Health(ctx context.Context) error
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger    *zap.Logger
	engine    Engine
	repo      Repository
	schedules *dunning.ScheduleStore
	templates dunning.TemplateStore
	rates     RateSource      // nil disables PLN totals
	registry  registry.Lookup // nil disables contractor enrichment
	pinger    Pinger          // nil makes /health static
	now       func() time.Time
}

// NewHandler creates a new API handler. Rates, registry and pinger are optional.
func NewHandler(logger *zap.Logger, engine Engine, repo Repository, schedules *dunning.ScheduleStore, templates dunning.TemplateStore, rateSource RateSource, reg registry.Lookup, pinger Pinger) *Handler {
	return &Handler{
		logger:    logger,
		engine:    engine,
		repo:      repo,
		schedules: schedules,
		templates: templates,
		rates:     rateSource,
		registry:  reg,
		pinger:    pinger,
		now:       time.Now,
	}
}

// RunStageRequest is the optional body of a batch run.
type RunStageRequest struct {
	SkipDuplicateCheck bool `json:"skip_duplicate_check"`
}

// RunStageResponse summarises a batch run.
type RunStageResponse struct {
	Stage  int `json:"stage"`
	Sent   int `json:"sent"`
	Errors int `json:"errors"`
}

// RunStage handles POST /v1/stages/{stage}/run
func (h *Handler) RunStage(w http.ResponseWriter, r *http.Request) {
	stage, ok := h.stageParam(w, r)
	if !ok {
		return
	}

	var req RunStageRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
			return
		}
	}

	sent, errCount, err := h.engine.RunStage(r.Context(), stage, dunning.RunOptions{
		SkipDuplicateCheck: req.SkipDuplicateCheck,
		Trigger:            "manual",
	})
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Stage run failed", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, RunStageResponse{Stage: int(stage), Sent: sent, Errors: errCount})
}

// DispatchRequest is the body of a manual dispatch.
type DispatchRequest struct {
	Stage              int    `json:"stage"`
	InvoiceID          *int64 `json:"invoice_id,omitempty"`
	SkipDuplicateCheck bool   `json:"skip_duplicate_check"`
}

// DispatchResponse reports a single dispatch outcome.
type DispatchResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Dispatch handles POST /v1/contractors/{id}/dispatch
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	contractorID, ok := h.idParam(w, r)
	if !ok {
		return
	}

	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	stage := db.Stage(req.Stage)
	if !stage.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid stage", "stage must be between 1 and 5")
		return
	}

	opts := dunning.Options{SkipDuplicateCheck: req.SkipDuplicateCheck}
	if req.InvoiceID != nil {
		invoice, err := h.repo.GetInvoice(r.Context(), *req.InvoiceID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				h.writeError(w, http.StatusNotFound, "not_found", "Invoice not found", "")
				return
			}
			h.writeError(w, http.StatusInternalServerError, "internal_error", "Invoice lookup failed", err.Error())
			return
		}
		if invoice.ContractorID == nil || *invoice.ContractorID != contractorID {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invoice mismatch", "invoice does not belong to this contractor")
			return
		}
		opts.Invoice = invoice
	}

	ok, message := h.engine.Dispatch(r.Context(), contractorID, stage, opts)
	status := http.StatusOK
	if !ok {
		status = http.StatusUnprocessableEntity
	}
	h.writeJSON(w, status, DispatchResponse{OK: ok, Message: message})
}

// StageSuggestion is the suggested next dispatch for a contractor.
type StageSuggestion struct {
	Stage   int              `json:"stage"`
	Invoice *InvoiceResponse `json:"invoice,omitempty"`
}

// ResolveStage handles GET /v1/contractors/{id}/stage
func (h *Handler) ResolveStage(w http.ResponseWriter, r *http.Request) {
	contractorID, ok := h.idParam(w, r)
	if !ok {
		return
	}

	stage, invoice, err := h.engine.ResolveStage(r.Context(), contractorID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Contractor not found", "")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Stage resolution failed", err.Error())
		return
	}

	resp := StageSuggestion{Stage: int(stage)}
	if invoice != nil {
		resp.Invoice = invoiceResponse(invoice)
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// InvoiceResponse is the external shape of an invoice.
type InvoiceResponse struct {
	ID        int64  `json:"id"`
	Number    string `json:"number"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	IssueDate string `json:"issue_date"`
	DueDate   string `json:"due_date"`
	PaidDate  string `json:"paid_date,omitempty"`
	Status    string `json:"status"`
	DayDiff   int    `json:"day_diff"`
	Bucket    string `json:"bucket"`
}

func invoiceResponse(inv *db.Invoice) *InvoiceResponse {
	resp := &InvoiceResponse{
		ID:        inv.ID,
		Number:    inv.Number,
		Amount:    inv.Amount.StringFixed(2),
		Currency:  inv.Currency,
		IssueDate: inv.IssueDate.Format("2006-01-02"),
		DueDate:   inv.DueDate.Format("2006-01-02"),
	}
	if inv.PaidDate != nil {
		resp.PaidDate = inv.PaidDate.Format("2006-01-02")
	}
	return resp
}

// ObligationsResponse lists a contractor's unpaid invoices with totals.
type ObligationsResponse struct {
	ContractorID int64              `json:"contractor_id"`
	Invoices     []*InvoiceResponse `json:"invoices"`
	TotalUnpaid  string             `json:"total_unpaid"`
	TotalOverdue string             `json:"total_overdue"`
	TotalPLN     string             `json:"total_pln,omitempty"`
}

// Obligations handles GET /v1/contractors/{id}/obligations
func (h *Handler) Obligations(w http.ResponseWriter, r *http.Request) {
	contractorID, ok := h.idParam(w, r)
	if !ok {
		return
	}

	if _, err := h.repo.GetContractor(r.Context(), contractorID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Contractor not found", "")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Contractor lookup failed", err.Error())
		return
	}

	invoices, err := h.repo.ListInvoicesByContractor(r.Context(), contractorID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Invoice listing failed", err.Error())
		return
	}

	today := h.now()
	resp := ObligationsResponse{
		ContractorID: contractorID,
		Invoices:     make([]*InvoiceResponse, 0, len(invoices)),
		TotalUnpaid:  dunning.FormatCurrencySums(dunning.SumUnpaid(invoices)),
		TotalOverdue: dunning.FormatCurrencySums(dunning.SumOverdue(invoices, today)),
	}
	for _, inv := range invoices {
		item := invoiceResponse(inv)
		assessment := dunning.Assess(inv, today)
		item.Status = assessment.Status
		item.DayDiff = assessment.DayDiff
		item.Bucket = assessment.Bucket
		resp.Invoices = append(resp.Invoices, item)
	}

	if h.rates != nil {
		table := h.rates.Today(r.Context())
		total := decimal.Zero
		for _, inv := range invoices {
			if inv.PaidDate != nil {
				continue
			}
			total = total.Add(table.ToPLN(inv.Amount, inv.Currency))
		}
		resp.TotalPLN = dunning.FormatAmount(total) + " PLN"
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// ContractorRequest is the body for creating a contractor.
type ContractorRequest struct {
	NIP     string `json:"nip"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Variant string `json:"variant"`
	Channel string `json:"channel"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

// ContractorResponse is the external shape of a contractor.
type ContractorResponse struct {
	ID        int64  `json:"id"`
	NIP       string `json:"nip"`
	Name      string `json:"name"`
	Address   string `json:"address,omitempty"`
	VATStatus string `json:"vat_status,omitempty"`
	Variant   string `json:"variant"`
	Channel   string `json:"channel"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// CreateContractor handles POST /v1/contractors. When a NIP is given and the
// name or address is missing, the public registries fill the gaps.
func (h *Handler) CreateContractor(w http.ResponseWriter, r *http.Request) {
	var req ContractorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	req.NIP = strings.TrimSpace(req.NIP)
	if req.NIP == "" && strings.TrimSpace(req.Name) == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing identity", "nip or name is required")
		return
	}
	if req.NIP != "" {
		if !registry.ValidNIP(req.NIP) {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid NIP", "nip must be ten digits")
			return
		}
		existing, err := h.repo.GetContractorByNIP(r.Context(), req.NIP)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			h.writeError(w, http.StatusInternalServerError, "internal_error", "Contractor lookup failed", err.Error())
			return
		}
		if existing != nil {
			h.writeError(w, http.StatusConflict, "conflict", "Contractor already exists", "a contractor with this nip is already registered")
			return
		}
	}

	variant := db.Variant(strings.ToUpper(req.Variant))
	if req.Variant == "" {
		variant = db.VariantStandardowa
	}
	if !variant.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid variant", "variant must be one of LEKKA, STANDARDOWA, OSTRA, BRAK")
		return
	}

	channel := db.Channel(strings.ToLower(req.Channel))
	if req.Channel == "" {
		channel = db.ChannelEmail
	}
	if !channel.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid channel", "channel must be email or sms")
		return
	}

	contractor := &db.Contractor{
		NIP:     req.NIP,
		Name:    strings.TrimSpace(req.Name),
		Address: strings.TrimSpace(req.Address),
		Variant: variant,
		Channel: channel,
		Email:   strings.TrimSpace(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
	}

	if h.registry != nil && req.NIP != "" && (contractor.Name == "" || contractor.Address == "") {
		if data, err := h.registry.Find(r.Context(), req.NIP); err != nil {
			h.logger.Warn("registry lookup failed", zap.String("nip", req.NIP), zap.Error(err))
		} else if data != nil {
			if contractor.Name == "" {
				contractor.Name = data.Name
			}
			if contractor.Address == "" {
				contractor.Address = data.Address
			}
			contractor.VATStatus = data.VATStatus
			verifiedAt := h.now()
			contractor.VerifiedAt = &verifiedAt
		}
	}

	if contractor.Name == "" {
		contractor.Name = contractor.NIP
	}

	if err := h.repo.CreateContractor(r.Context(), contractor); err != nil {
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Contractor creation failed", err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, ContractorResponse{
		ID:        contractor.ID,
		NIP:       contractor.NIP,
		Name:      contractor.Name,
		Address:   contractor.Address,
		VATStatus: contractor.VATStatus,
		Variant:   string(contractor.Variant),
		Channel:   string(contractor.Channel),
		Email:     contractor.Email,
		Phone:     contractor.Phone,
	})
}

// CorrespondenceItem is the external shape of a correspondence record.
type CorrespondenceItem struct {
	ID           string `json:"id"`
	ContractorID int64  `json:"contractor_id"`
	InvoiceID    *int64 `json:"invoice_id,omitempty"`
	Stage        int    `json:"stage"`
	Variant      string `json:"variant"`
	Channel      string `json:"channel"`
	Subject      string `json:"subject"`
	SentAt       string `json:"sent_at"`
	Status       string `json:"status"`
	ErrorDetail  string `json:"error_detail,omitempty"`
	Recipient    string `json:"recipient"`
}

// ListCorrespondence handles GET /v1/correspondence
func (h *Handler) ListCorrespondence(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid limit", "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid offset", "offset must not be negative")
			return
		}
		offset = n
	}

	records, err := h.repo.ListCorrespondence(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Correspondence listing failed", err.Error())
		return
	}

	items := make([]CorrespondenceItem, 0, len(records))
	for _, rec := range records {
		item := CorrespondenceItem{
			ID:           rec.ID.String(),
			ContractorID: rec.ContractorID,
			InvoiceID:    rec.InvoiceID,
			Stage:        int(rec.Stage),
			Variant:      string(rec.Variant),
			Channel:      string(rec.Channel),
			Subject:      rec.Subject,
			SentAt:       rec.SentAt.Format("2006-01-02T15:04:05Z07:00"),
			Status:       rec.Status,
			Recipient:    rec.Recipient,
		}
		if rec.ErrorDetail != nil {
			item.ErrorDetail = *rec.ErrorDetail
		}
		items = append(items, item)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"correspondence": items})
}

// ScheduleResponse is the external shape of a stage schedule.
type ScheduleResponse struct {
	Stage      int    `json:"stage"`
	OffsetDays int    `json:"offset_days"`
	At         string `json:"at"`
	Weekdays   []int  `json:"weekdays"`
	Enabled    bool   `json:"enabled"`
}

// ListSchedules handles GET /v1/schedules
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	out := make([]ScheduleResponse, 0, len(db.Stages()))
	for _, stage := range db.Stages() {
		sched, err := h.schedules.Get(r.Context(), stage)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, "internal_error", "Schedule lookup failed", err.Error())
			return
		}
		out = append(out, scheduleResponse(stage, sched))
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"schedules": out})
}

// ScheduleRequest is the body for updating a stage schedule.
type ScheduleRequest struct {
	OffsetDays int    `json:"offset_days"`
	At         string `json:"at"`
	Weekdays   []int  `json:"weekdays"`
	Enabled    bool   `json:"enabled"`
}

// UpdateSchedule handles PUT /v1/schedules/{stage}
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	stage, ok := h.stageParam(w, r)
	if !ok {
		return
	}

	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if len(req.At) != 5 || req.At[2] != ':' {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid time", "at must be HH:MM")
		return
	}
	weekdays := make(map[int]bool, len(req.Weekdays))
	for _, day := range req.Weekdays {
		if day < 1 || day > 7 {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid weekday", "weekdays must be ISO days 1 through 7")
			return
		}
		weekdays[day] = true
	}

	sched := dunning.Schedule{
		OffsetDays: req.OffsetDays,
		At:         req.At,
		Weekdays:   weekdays,
		Enabled:    req.Enabled,
	}
	if err := h.schedules.Save(r.Context(), stage, sched); err != nil {
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Schedule update failed", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, scheduleResponse(stage, sched))
}

func scheduleResponse(stage db.Stage, sched dunning.Schedule) ScheduleResponse {
	days := make([]int, 0, len(sched.Weekdays))
	for day := 1; day <= 7; day++ {
		if sched.Weekdays[day] {
			days = append(days, day)
		}
	}
	return ScheduleResponse{
		Stage:      int(stage),
		OffsetDays: sched.OffsetDays,
		At:         sched.At,
		Weekdays:   days,
		Enabled:    sched.Enabled,
	}
}

// ResetTemplates handles POST /v1/templates/reset. It replaces every
// message template with its default.
func (h *Handler) ResetTemplates(w http.ResponseWriter, r *http.Request) {
	if err := dunning.ResetTemplates(r.Context(), h.templates); err != nil {
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Template reset failed", err.Error())
		return
	}
	h.logger.Info("templates reset to defaults")
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Health(r.Context()); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, "unavailable", "Database unreachable", err.Error())
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) stageParam(w http.ResponseWriter, r *http.Request) (db.Stage, bool) {
	raw := chi.URLParam(r, "stage")
	n, err := strconv.Atoi(raw)
	if err != nil || !db.Stage(n).Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid stage", "stage must be between 1 and 5")
		return 0, false
	}
	return db.Stage(n), true
}

func (h *Handler) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid contractor id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}
