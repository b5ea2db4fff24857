package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/funnelworks/movement-engine/internal/adapter"
	"github.com/funnelworks/movement-engine/internal/api/rest/dto"
	"github.com/funnelworks/movement-engine/internal/domain"
	"github.com/funnelworks/movement-engine/internal/messaging"
	"github.com/funnelworks/movement-engine/internal/notify"
	"github.com/funnelworks/movement-engine/internal/scoring"
	"github.com/funnelworks/movement-engine/internal/store"
	"github.com/funnelworks/movement-engine/internal/store/schema"
)

// Handler defines the interface for REST API handlers
// This interface allows for easy mocking and testing
//
//go:generate mockgen -source=handler.go -destination=../../mocks/api_handler.go -package=mocks -mock_names=Handler=MockAPIHandler
type Handler interface {
	// IngestSignal appends a buyer-intent signal and reports the score movement
	// POST /api/v1/signals
	IngestSignal(c *gin.Context)

	// GetCompanyScore returns a company's decay-adjusted score and band
	// GET /api/v1/companies/:id/score
	GetCompanyScore(c *gin.Context)

	// ListCompanySignals returns a company's signal ledger, newest last
	// GET /api/v1/companies/:id/signals?since=<RFC3339>
	ListCompanySignals(c *gin.Context)

	// ListHotCompanies returns companies above a score threshold, highest
	// score first (hot band when no threshold is given)
	// GET /api/v1/companies/hot?threshold=<score>&limit=<limit>
	ListHotCompanies(c *gin.Context)

	// CreateContact registers a contact in the SUSPECT state
	// POST /api/v1/contacts
	CreateContact(c *gin.Context)

	// GetContact returns a contact's lifecycle snapshot
	// GET /api/v1/contacts/:id
	GetContact(c *gin.Context)

	// ListTransitions returns a contact's applied transitions, newest first
	// GET /api/v1/contacts/:id/transitions?limit=<limit>&offset=<offset>
	ListTransitions(c *gin.Context)

	// ListJournal returns a contact's evaluated events, newest first
	// GET /api/v1/contacts/:id/journal?limit=<limit>
	ListJournal(c *gin.Context)

	// DetectEvent publishes a movement event for asynchronous evaluation
	// POST /api/v1/contacts/:id/events
	DetectEvent(c *gin.Context)

	// OverrideState publishes a manual override event (requires authentication)
	// POST /api/v1/contacts/:id/override
	OverrideState(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	store     store.Store
	scorer    *scoring.Engine
	publisher messaging.Publisher
	notifier  *notify.Notifier
	clock     adapter.Clock
}

// NewHandler creates a new REST API handler
func NewHandler(st store.Store, scorer *scoring.Engine, publisher messaging.Publisher, notifier *notify.Notifier, clock adapter.Clock) Handler {
	return &handler{
		store:     st,
		scorer:    scorer,
		publisher: publisher,
		notifier:  notifier,
		clock:     clock,
	}
}

// IngestSignal appends a buyer-intent signal and reports the score movement
func (h *handler) IngestSignal(c *gin.Context) {
	var req dto.IngestSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	if err := req.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	result, err := h.scorer.IngestSignal(c.Request.Context(), req.Signal())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignalType) {
			respondValidationError(c, err.Error())
			return
		}
		respondInternalError(c, err, "Failed to ingest signal")
		return
	}

	if result.Created && (result.CrossedWarm || result.CrossedHot) {
		h.notifier.Notify(c.Request.Context(), &notify.Notification{
			Type:      notify.TypeScoreBandChanged,
			CompanyID: req.CompanyID,
			Data: map[string]interface{}{
				"band":       string(domain.BandForScore(result.Score)),
				"score":      result.Score,
				"prev_score": result.PrevScore,
			},
		})
	}

	status := http.StatusCreated
	if !result.Created {
		status = http.StatusOK
	}
	c.JSON(status, dto.NewIngestSignalResponse(result))
}

// GetCompanyScore returns a company's decay-adjusted score and band
func (h *handler) GetCompanyScore(c *gin.Context) {
	companyID := c.Param("id")
	if companyID == "" {
		respondBadRequest(c, "Company ID is required")
		return
	}

	score, err := h.scorer.Score(c.Request.Context(), companyID)
	if err != nil {
		if errors.Is(err, domain.ErrCompanyNotFound) {
			respondNotFound(c, "Company not found")
			return
		}
		respondInternalError(c, err, "Failed to score company")
		return
	}

	c.JSON(http.StatusOK, dto.NewCompanyScoreResponse(score))
}

// ListCompanySignals returns a company's signal ledger
func (h *handler) ListCompanySignals(c *gin.Context) {
	companyID := c.Param("id")
	if companyID == "" {
		respondBadRequest(c, "Company ID is required")
		return
	}

	var params SignalsQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondValidationError(c, err.Error())
		return
	}
	since, err := params.SinceTime()
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}

	signals, err := h.store.GetSignals(c.Request.Context(), companyID, since)
	if err != nil {
		respondInternalError(c, err, "Failed to list signals")
		return
	}

	resp := dto.ListSignalsResponse{Signals: make([]dto.SignalResponse, 0, len(signals))}
	for i := range signals {
		resp.Signals = append(resp.Signals, dto.NewSignalResponse(&signals[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// ListHotCompanies returns companies above a score threshold (the hot band
// by default)
func (h *handler) ListHotCompanies(c *gin.Context) {
	var params HotCompaniesQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		respondValidationError(c, err.Error())
		return
	}
	if err := params.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}
	threshold := params.Threshold
	if threshold < 0 {
		threshold = domain.HotScoreThreshold
	}

	companies, err := h.scorer.CompaniesAbove(c.Request.Context(), threshold, params.Limit)
	if err != nil {
		respondInternalError(c, err, "Failed to list hot companies")
		return
	}

	resp := dto.HotCompaniesResponse{Companies: make([]dto.CompanyScoreResponse, 0, len(companies))}
	for i := range companies {
		resp.Companies = append(resp.Companies, dto.NewCompanyScoreResponse(&companies[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// CreateContact registers a contact in the SUSPECT state
func (h *handler) CreateContact(c *gin.Context) {
	var req dto.CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	if err := req.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	contact := &schema.Contact{
		ID:           req.ContactID,
		CompanyID:    req.CompanyID,
		CurrentState: domain.StateSuspect,
		Funnel:       domain.StateSuspect.Funnel(),
		CreatedAt:    h.clock.Now().UTC(),
		UpdatedAt:    h.clock.Now().UTC(),
	}
	if err := h.store.CreateContact(c.Request.Context(), contact); err != nil {
		if errors.Is(err, domain.ErrContactAlreadyExists) {
			respondConflict(c, "Contact already exists")
			return
		}
		respondInternalError(c, err, "Failed to create contact")
		return
	}

	c.JSON(http.StatusCreated, dto.NewContactResponse(contact))
}

// GetContact returns a contact's lifecycle snapshot
func (h *handler) GetContact(c *gin.Context) {
	contact, ok := h.lookupContact(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.NewContactResponse(contact))
}

// ListTransitions returns a contact's applied transitions
func (h *handler) ListTransitions(c *gin.Context) {
	contact, ok := h.lookupContact(c)
	if !ok {
		return
	}

	params, err := ParsePageQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}
	if err := params.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	records, total, err := h.store.ListTransitions(c.Request.Context(), contact.ID, params.Limit, params.Offset)
	if err != nil {
		respondInternalError(c, err, "Failed to list transitions")
		return
	}

	resp := dto.ListTransitionsResponse{
		Transitions: make([]dto.TransitionResponse, 0, len(records)),
		Total:       total,
		Limit:       params.Limit,
		Offset:      params.Offset,
	}
	for i := range records {
		resp.Transitions = append(resp.Transitions, dto.NewTransitionResponse(&records[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// ListJournal returns a contact's evaluated events
func (h *handler) ListJournal(c *gin.Context) {
	contact, ok := h.lookupContact(c)
	if !ok {
		return
	}

	params, err := ParsePageQuery(c)
	if err != nil {
		respondValidationError(c, err.Error())
		return
	}
	if err := params.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	entries, err := h.store.ListJournalEntries(c.Request.Context(), contact.ID, params.Limit)
	if err != nil {
		respondInternalError(c, err, "Failed to list journal entries")
		return
	}

	resp := dto.ListJournalResponse{Entries: make([]dto.JournalEntryResponse, 0, len(entries))}
	for i := range entries {
		resp.Entries = append(resp.Entries, dto.NewJournalEntryResponse(&entries[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// DetectEvent publishes a movement event for asynchronous evaluation
func (h *handler) DetectEvent(c *gin.Context) {
	contact, ok := h.lookupContact(c)
	if !ok {
		return
	}

	var req dto.DetectEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	if err := req.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	detectedAt := h.clock.Now().UTC()
	if req.DetectedAt != nil {
		detectedAt = req.DetectedAt.UTC()
	}
	dedupHash := req.DedupHash
	if dedupHash == "" {
		dedupHash = domain.EventDedupHash(contact.ID, req.Type, detectedAt)
	}

	event := &domain.MovementEvent{
		ID:         domain.NewEventID(detectedAt),
		Type:       req.Type,
		ContactID:  contact.ID,
		DedupHash:  dedupHash,
		DetectedAt: detectedAt,
		Metadata:   req.Metadata,
	}
	if !event.Valid() {
		respondValidationError(c, domain.ErrInvalidEvent.Error())
		return
	}

	if err := h.publisher.PublishMovementEvent(c.Request.Context(), event); err != nil {
		respondInternalError(c, err, "Failed to publish movement event")
		return
	}

	c.JSON(http.StatusAccepted, dto.DetectEventResponse{
		EventID:   event.ID,
		Type:      event.Type,
		DedupHash: event.DedupHash,
		Accepted:  true,
	})
}

// OverrideState publishes a manual override event
func (h *handler) OverrideState(c *gin.Context) {
	contact, ok := h.lookupContact(c)
	if !ok {
		return
	}

	var req dto.OverrideStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body", err.Error())
		return
	}

	if err := req.Validate(); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	now := h.clock.Now().UTC()
	metadata := map[string]any{"target_state": string(req.TargetState)}
	if req.Reason != "" {
		metadata["reason"] = req.Reason
	}

	event := &domain.MovementEvent{
		ID:          domain.NewEventID(now),
		Type:        domain.EventManualOverride,
		ContactID:   contact.ID,
		DedupHash:   domain.EventDedupHash(contact.ID, domain.EventManualOverride, now),
		DetectedAt:  now,
		Metadata:    metadata,
		TargetState: req.TargetState,
	}

	if err := h.publisher.PublishMovementEvent(c.Request.Context(), event); err != nil {
		respondInternalError(c, err, "Failed to publish override event")
		return
	}

	c.JSON(http.StatusAccepted, dto.DetectEventResponse{
		EventID:   event.ID,
		Type:      event.Type,
		DedupHash: event.DedupHash,
		Accepted:  true,
	})
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// lookupContact resolves the :id path parameter to a contact, responding
// with the appropriate error when it cannot
func (h *handler) lookupContact(c *gin.Context) (*schema.Contact, bool) {
	contactID := c.Param("id")
	if contactID == "" {
		respondBadRequest(c, "Contact ID is required")
		return nil, false
	}

	contact, err := h.store.GetContact(c.Request.Context(), contactID)
	if err != nil {
		respondInternalError(c, err, "Failed to load contact")
		return nil, false
	}
	if contact == nil {
		respondNotFound(c, "Contact not found")
		return nil, false
	}
	return contact, true
}
