package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

type gradeApprovalService interface {
	SubmitGrade(ctx context.Context, req dto.SubmitGradeRequest, teacherID string) (*models.Grade, error)
	ApproveGrade(ctx context.Context, gradeID, reviewerID string) (*models.Grade, error)
	RejectGrade(ctx context.Context, gradeID, reviewerID, reason string) (*models.Grade, error)
	CreateEditRequest(ctx context.Context, gradeID, teacherID string, req dto.CreateEditRequest) (*models.GradeEditRequest, error)
	ApproveRequest(ctx context.Context, requestID, reviewerID, notes string) (*models.GradeEditRequest, error)
	DenyRequest(ctx context.Context, requestID, reviewerID, notes string) (*models.GradeEditRequest, error)
	SubmitEditedValue(ctx context.Context, gradeID, teacherID string, req dto.SubmitEditedValueRequest) (*models.Grade, error)
	CompleteAndRelock(ctx context.Context, gradeID, reviewerID string) (*models.Grade, error)
	Get(ctx context.Context, gradeID string) (*models.Grade, error)
	List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error)
	ListEditRequests(ctx context.Context, gradeID string) ([]models.GradeEditRequest, error)
}

// GradeApprovalHandler serves grade review and edit-request endpoints.
type GradeApprovalHandler struct {
	service gradeApprovalService
}

// NewGradeApprovalHandler constructs GradeApprovalHandler.
func NewGradeApprovalHandler(service gradeApprovalService) *GradeApprovalHandler {
	return &GradeApprovalHandler{service: service}
}

// Submit godoc
// @Summary Submit or revise a grade for review
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.SubmitGradeRequest true "Grade payload"
// @Success 201 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /grades [post]
func (h *GradeApprovalHandler) Submit(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.SubmitGradeRequest
	if !bindJSON(c, &req) {
		return
	}
	grade, err := h.service.SubmitGrade(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grade)
}

// List godoc
// @Summary List grades
// @Tags Grades
// @Produce json
// @Param termId query string false "Term"
// @Param subjectId query string false "Subject"
// @Param status query string false "Approval status"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeApprovalHandler) List(c *gin.Context) {
	filter := models.GradeFilter{
		TermID:         c.Query("termId"),
		SubjectID:      c.Query("subjectId"),
		ApprovalStatus: models.GradeApprovalStatus(c.Query("status")),
		TeacherID:      c.Query("teacherId"),
	}
	if claims := claimsFromContext(c); claims != nil && claims.Role == models.RoleTeacher {
		filter.TeacherID = claims.UserID
	}
	grades, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, grades)
}

// Get godoc
// @Summary Get a grade
// @Tags Grades
// @Produce json
// @Param id path string true "Grade ID"
// @Success 200 {object} response.Envelope
// @Router /grades/{id} [get]
func (h *GradeApprovalHandler) Get(c *gin.Context) {
	grade, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, grade)
}

// Approve godoc
// @Summary Approve a submitted grade and lock it
// @Tags Grades
// @Produce json
// @Param id path string true "Grade ID"
// @Success 200 {object} response.Envelope
// @Router /grades/{id}/approve [post]
func (h *GradeApprovalHandler) Approve(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	grade, err := h.service.ApproveGrade(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, grade)
}

// Reject godoc
// @Summary Reject a submitted grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Grade ID"
// @Param payload body dto.RejectGradeRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Router /grades/{id}/reject [post]
func (h *GradeApprovalHandler) Reject(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.RejectGradeRequest
	if !bindJSON(c, &req) {
		return
	}
	grade, err := h.service.RejectGrade(c.Request.Context(), c.Param("id"), actor, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, grade)
}

// CreateEditRequest godoc
// @Summary Request a one-time edit of an approved grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Grade ID"
// @Param payload body dto.CreateEditRequest true "Edit reason"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /grades/{id}/edit-requests [post]
func (h *GradeApprovalHandler) CreateEditRequest(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.CreateEditRequest
	if !bindJSON(c, &req) {
		return
	}
	editReq, err := h.service.CreateEditRequest(c.Request.Context(), c.Param("id"), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, editReq)
}

// ListEditRequests godoc
// @Summary List edit requests for a grade
// @Tags Grades
// @Produce json
// @Param id path string true "Grade ID"
// @Success 200 {object} response.Envelope
// @Router /grades/{id}/edit-requests [get]
func (h *GradeApprovalHandler) ListEditRequests(c *gin.Context) {
	list, err := h.service.ListEditRequests(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// SubmitEditedValue godoc
// @Summary Apply the corrected value of an unlocked grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Grade ID"
// @Param payload body dto.SubmitEditedValueRequest true "Corrected value"
// @Success 200 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /grades/{id}/edit [post]
func (h *GradeApprovalHandler) SubmitEditedValue(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.SubmitEditedValueRequest
	if !bindJSON(c, &req) {
		return
	}
	grade, err := h.service.SubmitEditedValue(c.Request.Context(), c.Param("id"), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, grade)
}

// CompleteAndRelock godoc
// @Summary Close the edit cycle and relock the grade
// @Tags Grades
// @Produce json
// @Param id path string true "Grade ID"
// @Success 200 {object} response.Envelope
// @Router /grades/{id}/complete-edit [post]
func (h *GradeApprovalHandler) CompleteAndRelock(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	grade, err := h.service.CompleteAndRelock(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, grade)
}

// ApproveEditRequest godoc
// @Summary Approve a grade edit request
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Edit request ID"
// @Param payload body dto.ReviewEditRequest false "Reviewer notes"
// @Success 200 {object} response.Envelope
// @Router /grade-edit-requests/{id}/approve [post]
func (h *GradeApprovalHandler) ApproveEditRequest(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.ReviewEditRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	editReq, err := h.service.ApproveRequest(c.Request.Context(), c.Param("id"), actor, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, editReq)
}

// DenyEditRequest godoc
// @Summary Deny a grade edit request
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Edit request ID"
// @Param payload body dto.ReviewEditRequest true "Reviewer notes"
// @Success 200 {object} response.Envelope
// @Router /grade-edit-requests/{id}/deny [post]
func (h *GradeApprovalHandler) DenyEditRequest(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.ReviewEditRequest
	if !bindJSON(c, &req) {
		return
	}
	editReq, err := h.service.DenyRequest(c.Request.Context(), c.Param("id"), actor, req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, editReq)
}
