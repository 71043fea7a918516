package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizlock/internal/model"
	"github.com/stemsi/quizlock/internal/repository"
	"github.com/stemsi/quizlock/internal/response"
	"github.com/stemsi/quizlock/internal/service"
	"github.com/stemsi/quizlock/internal/validator"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
	auditStatsWindow  = 24 * time.Hour
)

// OperatorHandler handles operator login and diagnostics.
type OperatorHandler struct {
	operatorService *service.OperatorService
	acquisitions    repository.AcquisitionRepository
	log             zerolog.Logger
}

// NewOperatorHandler creates a new OperatorHandler. acquisitions may be nil
// when no database is configured.
func NewOperatorHandler(
	operatorService *service.OperatorService,
	acquisitions repository.AcquisitionRepository,
	log zerolog.Logger,
) *OperatorHandler {
	return &OperatorHandler{
		operatorService: operatorService,
		acquisitions:    acquisitions,
		log:             log.With().Str("component", "operator_handler").Logger(),
	}
}

// IssueToken godoc
// POST /api/v1/operator/token
// Exchanges the operator passphrase for a signed token.
func (h *OperatorHandler) IssueToken(c *gin.Context) {
	var req model.OperatorTokenRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	issued, err := h.operatorService.IssueToken(req.Passphrase)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOperatorDisabled):
			response.Fail(c, http.StatusForbidden, response.ErrOperatorDisabled)
		case errors.Is(err, service.ErrInvalidCredentials):
			h.log.Warn().Str("ip", c.ClientIP()).Msg("Rejected operator passphrase")
			response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		default:
			h.log.Error().Err(err).Msg("Issue operator token failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, issued)
}

// ListAcquisitions godoc
// GET /api/v1/operator/acquisitions?limit=50
// Returns recent acquisition outcomes and per-origin counts for the last day.
func (h *OperatorHandler) ListAcquisitions(c *gin.Context) {
	if h.acquisitions == nil {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrAuditDisabled)
		return
	}

	limit := defaultAuditLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
				map[string]string{"limit": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxAuditLimit)
	}

	ctx := c.Request.Context()
	events, err := h.acquisitions.ListRecent(ctx, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("List acquisitions failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	stats, err := h.acquisitions.StatsSince(ctx, time.Now().Add(-auditStatsWindow))
	if err != nil {
		h.log.Error().Err(err).Msg("Acquisition stats failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if events == nil {
		events = []*model.AcquisitionEvent{}
	}
	if stats == nil {
		stats = []repository.OriginStat{}
	}
	response.Success(c, http.StatusOK, gin.H{
		"acquisitions": events,
		"stats":        stats,
	})
}
