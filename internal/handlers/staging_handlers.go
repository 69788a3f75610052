package handlers

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"ledgerdesk/internal/common"
	"ledgerdesk/internal/models"
	"ledgerdesk/internal/services"
)

// StagingHandlers exposes the document staging pipeline: batches are
// created from pending documents and each candidate walks its state
// machine through explicit operator decisions.
type StagingHandlers struct {
	staging services.StagingService
	docs    services.DocumentService
}

func NewStagingHandlers(staging services.StagingService, docs services.DocumentService) *StagingHandlers {
	return &StagingHandlers{staging: staging, docs: docs}
}

func (h *StagingHandlers) sendErr(c echo.Context, err error) error {
	return common.SendEnvelope(c, common.ErrEnvelope(err))
}

// ListPendingDocuments lists inbox documents awaiting ingestion
func (h *StagingHandlers) ListPendingDocuments(c echo.Context) error {
	keys, err := h.docs.ListPending(c.Request().Context())
	if err != nil {
		return h.sendErr(c, common.BackendError("list pending documents", err))
	}
	return common.SendEnvelope(c, common.OKEnvelope(keys))
}

type ingestRequest struct {
	Documents []string `json:"documents"`
}

// IngestBatch builds a staged batch from the named documents
func (h *StagingHandlers) IngestBatch(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return h.sendErr(c, common.FieldError(common.ErrInvalidParameter, "body", "request body must be JSON"))
	}
	batch, err := h.staging.Ingest(c.Request().Context(), req.Documents)
	if err != nil {
		return h.sendErr(c, err)
	}
	return common.SendEnvelope(c, common.OKEnvelope(batch))
}

// ListOpenBatches lists batches with undecided candidates
func (h *StagingHandlers) ListOpenBatches(c echo.Context) error {
	batches, err := h.staging.ListOpen(c.Request().Context())
	if err != nil {
		return h.sendErr(c, err)
	}
	return common.SendEnvelope(c, common.OKEnvelope(batches))
}

// GetBatch returns one batch with all candidates
func (h *StagingHandlers) GetBatch(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.sendErr(c, common.FieldError(common.ErrInvalidParameter, "id", "batch id must be a UUID"))
	}
	batch, err := h.staging.GetBatch(c.Request().Context(), id)
	if err != nil {
		return h.sendErr(c, err)
	}
	return common.SendEnvelope(c, common.OKEnvelope(batch))
}

// AbandonBatch terminates every open candidate in a batch
func (h *StagingHandlers) AbandonBatch(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return h.sendErr(c, common.FieldError(common.ErrInvalidParameter, "id", "batch id must be a UUID"))
	}
	if err := h.staging.Abandon(c.Request().Context(), id, actor(c)); err != nil {
		return h.sendErr(c, err)
	}
	return common.SendEnvelope(c, common.OKEnvelope(map[string]string{"batch": id.String(), "state": "abandoned"}))
}

func (h *StagingHandlers) candidateID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, common.FieldError(common.ErrInvalidParameter, "id", "candidate id must be a UUID")
	}
	return id, nil
}

type fieldsRequest struct {
	Job     string `json:"job"`
	Item    string `json:"item"`
	Account string `json:"account"`
}

// ProvideFields supplies required candidate fields
func (h *StagingHandlers) ProvideFields(c echo.Context) error {
	id, err := h.candidateID(c)
	if err != nil {
		return h.sendErr(c, err)
	}
	var req fieldsRequest
	if err := c.Bind(&req); err != nil {
		return h.sendErr(c, common.FieldError(common.ErrInvalidParameter, "body", "request body must be JSON"))
	}
	candidate, err := h.staging.ProvideFields(c.Request().Context(), id, models.RequiredFields{
		Job:     req.Job,
		Item:    req.Item,
		Account: req.Account,
	})
	if err != nil {
		return h.sendErr(c, err)
	}
	return common.SendEnvelope(c, common.OKEnvelope(candidate))
}

type overrideRequest struct {
	Reason string `json:"reason"`
}

// OverrideDuplicate moves a duplicate-halted candidate forward
func (h *StagingHandlers) OverrideDuplicate(c echo.Context) error {
	id, err := h.candidateID(c)
	if err != nil {
		return h.sendErr(c, err)
	}
	var req overrideRequest
	if err := c.Bind(&req); err != nil {
		return h.sendErr(c, common.FieldError(common.ErrInvalidParameter, "body", "request body must be JSON"))
	}
	candidate, err := h.staging.OverrideDuplicate(c.Request().Context(), id, actor(c), req.Reason)
	if err != nil {
		return h.sendErr(c, err)
	}
	return common.SendEnvelope(c, common.OKEnvelope(candidate))
}

// Approve records the affirmative decision for a candidate
func (h *StagingHandlers) Approve(c echo.Context) error {
	id, err := h.candidateID(c)
	if err != nil {
		return h.sendErr(c, err)
	}
	candidate, err := h.staging.Approve(c.Request().Context(), id, actor(c))
	if err != nil {
		return h.sendErr(c, err)
	}
	return common.SendEnvelope(c, common.OKEnvelope(candidate))
}

// Reject terminates a candidate without side effects
func (h *StagingHandlers) Reject(c echo.Context) error {
	id, err := h.candidateID(c)
	if err != nil {
		return h.sendErr(c, err)
	}
	candidate, err := h.staging.Reject(c.Request().Context(), id, actor(c))
	if err != nil {
		return h.sendErr(c, err)
	}
	return common.SendEnvelope(c, common.OKEnvelope(candidate))
}

// Post runs the exactly-once approved-to-posted transition
func (h *StagingHandlers) Post(c echo.Context) error {
	id, err := h.candidateID(c)
	if err != nil {
		return h.sendErr(c, err)
	}
	candidate, err := h.staging.Post(c.Request().Context(), id)
	if err != nil {
		return h.sendErr(c, err)
	}
	return common.SendEnvelope(c, common.OKEnvelope(candidate))
}

// actor identifies the deciding operator for the audit trail.
func actor(c echo.Context) string {
	if who := c.Request().Header.Get("X-Operator"); who != "" {
		return who
	}
	return "operator"
}
