package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"ledgerdesk/internal/common"
	"ledgerdesk/internal/router"
	"ledgerdesk/internal/services"
)

// CommandHandlers is the HTTP face of the command router. The upstream
// caller (a human console or an agent) submits one command per request
// and always receives the uniform envelope.
type CommandHandlers struct {
	router *router.Router
	audit  services.AuditService
}

func NewCommandHandlers(r *router.Router, audit services.AuditService) *CommandHandlers {
	return &CommandHandlers{router: r, audit: audit}
}

type commandRequest struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params"`
}

// Execute runs one command
func (h *CommandHandlers) Execute(c echo.Context) error {
	var req commandRequest
	if err := c.Bind(&req); err != nil {
		return common.SendEnvelope(c, common.ErrEnvelope(
			common.FieldError(common.ErrInvalidParameter, "body", "request body must be JSON")))
	}
	if req.Command == "" {
		return common.SendEnvelope(c, common.ErrEnvelope(
			common.FieldError(common.ErrMissingParameter, "command", "command name is required")))
	}

	env := h.router.Execute(c.Request().Context(), req.Command, req.Params)
	return common.SendEnvelope(c, env)
}

// ListCommands returns every registered command name
func (h *CommandHandlers) ListCommands(c echo.Context) error {
	return common.SendEnvelope(c, common.OKEnvelope(h.router.Commands()))
}

// AuditTrail returns recent audit entries. An optional action filter
// pages through one action's history instead of the time window.
func (h *CommandHandlers) AuditTrail(c echo.Context) error {
	if action := c.QueryParam("action"); action != "" {
		offset := 0
		if raw := c.QueryParam("offset"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				return common.SendEnvelope(c, common.ErrEnvelope(
					common.FieldError(common.ErrInvalidParameter, "offset", "offset must be a non-negative integer")))
			}
			offset = parsed
		}
		entries, err := h.audit.ByAction(c.Request().Context(), action, 200, offset)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, common.ErrEnvelope(
				common.BackendError("load audit trail", err)))
		}
		return common.SendEnvelope(c, common.OKEnvelope(entries))
	}

	since := time.Now().AddDate(0, 0, -7)
	if raw := c.QueryParam("since"); raw != "" {
		parsed, err := common.ParseDate(raw, "since")
		if err != nil {
			return common.SendEnvelope(c, common.ErrEnvelope(err))
		}
		since = parsed
	}

	entries, err := h.audit.Recent(c.Request().Context(), since, 200)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, common.ErrEnvelope(
			common.BackendError("load audit trail", err)))
	}
	return common.SendEnvelope(c, common.OKEnvelope(entries))
}
