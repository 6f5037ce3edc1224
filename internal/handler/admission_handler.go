package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

type admissionService interface {
	Submit(ctx context.Context, req dto.SubmitApplicationRequest, actorID string) (*models.Application, error)
	Approve(ctx context.Context, applicationID, reviewerID, notes string) (*models.Application, error)
	Reject(ctx context.Context, applicationID, reviewerID, notes string) (*models.Application, error)
	UpdateNotes(ctx context.Context, applicationID, actorID, notes string) (*models.Application, error)
	ReviewRequirement(ctx context.Context, applicationID, requirementID string, req dto.ReviewRequirementRequest, actorID string) (*models.RequirementSubmission, error)
	VerifyPayment(ctx context.Context, paymentID, actorID string) (*models.Payment, error)
	UnverifyPayment(ctx context.Context, paymentID, actorID string) (*models.Payment, error)
	Get(ctx context.Context, applicationID string) (*models.Application, error)
	List(ctx context.Context, query dto.ApplicationQuery) ([]models.Application, *models.Pagination, error)
}

type eligibilityChecker interface {
	CanApprove(ctx context.Context, applicationID string) (*models.Eligibility, error)
}

// AdmissionHandler exposes the admission review endpoints.
type AdmissionHandler struct {
	admissions  admissionService
	eligibility eligibilityChecker
}

// NewAdmissionHandler constructs AdmissionHandler.
func NewAdmissionHandler(admissions admissionService, eligibility eligibilityChecker) *AdmissionHandler {
	return &AdmissionHandler{admissions: admissions, eligibility: eligibility}
}

// Submit godoc
// @Summary Submit an admission application
// @Tags Admissions
// @Accept json
// @Produce json
// @Param payload body dto.SubmitApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Router /admissions/applications [post]
func (h *AdmissionHandler) Submit(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.SubmitApplicationRequest
	if !bindJSON(c, &req) {
		return
	}
	app, err := h.admissions.Submit(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// List godoc
// @Summary List applications
// @Tags Admissions
// @Produce json
// @Param status query string false "Filter by status"
// @Param programId query string false "Filter by program"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admissions/applications [get]
func (h *AdmissionHandler) List(c *gin.Context) {
	query := dto.ApplicationQuery{
		Status:    models.ApplicationStatus(c.Query("status")),
		ProgramID: c.Query("programId"),
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		query.PageSize = size
	}
	apps, pagination, err := h.admissions.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, pagination)
}

// Get godoc
// @Summary Get an application
// @Tags Admissions
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /admissions/applications/{id} [get]
func (h *AdmissionHandler) Get(c *gin.Context) {
	app, err := h.admissions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, app)
}

// Eligibility godoc
// @Summary Evaluate whether an application can be approved
// @Tags Admissions
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /admissions/applications/{id}/eligibility [get]
func (h *AdmissionHandler) Eligibility(c *gin.Context) {
	result, err := h.eligibility.CanApprove(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Approve godoc
// @Summary Approve an application and assign a student number
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.ReviewApplicationRequest false "Reviewer notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /admissions/applications/{id}/approve [post]
func (h *AdmissionHandler) Approve(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.ReviewApplicationRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	app, err := h.admissions.Approve(c.Request.Context(), c.Param("id"), actor, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, app)
}

// Reject godoc
// @Summary Reject an application
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.ReviewApplicationRequest false "Reviewer notes"
// @Success 200 {object} response.Envelope
// @Router /admissions/applications/{id}/reject [post]
func (h *AdmissionHandler) Reject(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.ReviewApplicationRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	app, err := h.admissions.Reject(c.Request.Context(), c.Param("id"), actor, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, app)
}

// UpdateNotes godoc
// @Summary Replace application notes
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.UpdateNotesRequest true "Notes"
// @Success 200 {object} response.Envelope
// @Router /admissions/applications/{id}/notes [put]
func (h *AdmissionHandler) UpdateNotes(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.UpdateNotesRequest
	if !bindJSON(c, &req) {
		return
	}
	app, err := h.admissions.UpdateNotes(c.Request.Context(), c.Param("id"), actor, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, app)
}

// ReviewRequirement godoc
// @Summary Set the review status of an application requirement
// @Tags Admissions
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param requirementId path string true "Requirement ID"
// @Param payload body dto.ReviewRequirementRequest true "Review status"
// @Success 200 {object} response.Envelope
// @Router /admissions/applications/{id}/requirements/{requirementId} [put]
func (h *AdmissionHandler) ReviewRequirement(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.ReviewRequirementRequest
	if !bindJSON(c, &req) {
		return
	}
	sub, err := h.admissions.ReviewRequirement(c.Request.Context(), c.Param("id"), c.Param("requirementId"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sub)
}

// VerifyPayment godoc
// @Summary Mark a payment verified
// @Tags Admissions
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /admissions/payments/{id}/verify [post]
func (h *AdmissionHandler) VerifyPayment(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	payment, err := h.admissions.VerifyPayment(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payment)
}

// UnverifyPayment godoc
// @Summary Withdraw a payment verification
// @Tags Admissions
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Router /admissions/payments/{id}/unverify [post]
func (h *AdmissionHandler) UnverifyPayment(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	payment, err := h.admissions.UnverifyPayment(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payment)
}
