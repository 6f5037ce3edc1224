package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

type enrollmentGateService interface {
	CreatePeriod(ctx context.Context, req dto.CreatePeriodRequest, actorID string) (*models.EnrollmentPeriod, error)
	SetPeriodStatus(ctx context.Context, periodID string, req dto.SetPeriodStatusRequest, actorID string) (*models.EnrollmentPeriod, error)
	ListPeriods(ctx context.Context, programID string) ([]models.EnrollmentPeriod, error)
	SubmitRequest(ctx context.Context, req dto.SubmitEnrollmentRequest, studentID string) (*models.EnrollmentRequest, error)
	ApproveEnrollmentRequest(ctx context.Context, requestID, reviewerID string) (*models.EnrollmentRequest, error)
	RejectEnrollmentRequest(ctx context.Context, requestID, reviewerID, reason string) (*models.EnrollmentRequest, error)
	VoidRequest(ctx context.Context, requestID, actorID, reason string) (*models.EnrollmentRequest, error)
	ListRequests(ctx context.Context, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequest, error)
}

// EnrollmentGateHandler serves enrollment periods and requests.
type EnrollmentGateHandler struct {
	service enrollmentGateService
}

// NewEnrollmentGateHandler constructs EnrollmentGateHandler.
func NewEnrollmentGateHandler(service enrollmentGateService) *EnrollmentGateHandler {
	return &EnrollmentGateHandler{service: service}
}

// CreatePeriod godoc
// @Summary Open an enrollment period
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param payload body dto.CreatePeriodRequest true "Period"
// @Success 201 {object} response.Envelope
// @Router /enrollment-periods [post]
func (h *EnrollmentGateHandler) CreatePeriod(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.CreatePeriodRequest
	if !bindJSON(c, &req) {
		return
	}
	period, err := h.service.CreatePeriod(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}

// SetPeriodStatus godoc
// @Summary Change a period's status
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param id path string true "Period ID"
// @Param payload body dto.SetPeriodStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Router /enrollment-periods/{id}/status [put]
func (h *EnrollmentGateHandler) SetPeriodStatus(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.SetPeriodStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	period, err := h.service.SetPeriodStatus(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, period)
}

// ListPeriods godoc
// @Summary List enrollment periods
// @Tags Enrollment
// @Produce json
// @Param programId query string false "Program"
// @Success 200 {object} response.Envelope
// @Router /enrollment-periods [get]
func (h *EnrollmentGateHandler) ListPeriods(c *gin.Context) {
	periods, err := h.service.ListPeriods(c.Request.Context(), c.Query("programId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, periods)
}

// SubmitRequest godoc
// @Summary Request enrollment in an open period
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param payload body dto.SubmitEnrollmentRequest true "Request"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollment-requests [post]
func (h *EnrollmentGateHandler) SubmitRequest(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.SubmitEnrollmentRequest
	if !bindJSON(c, &req) {
		return
	}
	created, err := h.service.SubmitRequest(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// ListRequests godoc
// @Summary List enrollment requests
// @Tags Enrollment
// @Produce json
// @Param periodId query string false "Period"
// @Param status query string false "Status"
// @Success 200 {object} response.Envelope
// @Router /enrollment-requests [get]
func (h *EnrollmentGateHandler) ListRequests(c *gin.Context) {
	filter := models.EnrollmentRequestFilter{
		PeriodID:  c.Query("periodId"),
		StudentID: c.Query("studentId"),
		Status:    models.EnrollmentRequestStatus(c.Query("status")),
	}
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleStudent {
		filter.StudentID = claims.UserID
	}
	list, err := h.service.ListRequests(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Approve godoc
// @Summary Approve an enrollment request inside its window
// @Tags Enrollment
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollment-requests/{id}/approve [post]
func (h *EnrollmentGateHandler) Approve(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	approved, err := h.service.ApproveEnrollmentRequest(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, approved)
}

// Reject godoc
// @Summary Reject an enrollment request
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ReviewEnrollmentRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Router /enrollment-requests/{id}/reject [post]
func (h *EnrollmentGateHandler) Reject(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.ReviewEnrollmentRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	rejected, err := h.service.RejectEnrollmentRequest(c.Request.Context(), c.Param("id"), actor, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rejected)
}

// Void godoc
// @Summary Void an enrollment request
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ReviewEnrollmentRequest false "Reason"
// @Success 200 {object} response.Envelope
// @Router /enrollment-requests/{id}/void [post]
func (h *EnrollmentGateHandler) Void(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.ReviewEnrollmentRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	voided, err := h.service.VoidRequest(c.Request.Context(), c.Param("id"), actor, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, voided)
}
