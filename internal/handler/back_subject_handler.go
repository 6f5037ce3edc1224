package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

type backSubjectService interface {
	AddBackSubject(ctx context.Context, studentID string, req dto.AddBackSubjectRequest, actorID string) (*models.BackSubject, error)
	UpdateUnits(ctx context.Context, backSubjectID string, req dto.UpdateUnitsRequest, actorID string) (*models.BackSubject, error)
	MarkCompleted(ctx context.Context, backSubjectID string, req dto.MarkCompletedRequest, actorID string) (*models.BackSubject, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.BackSubject, error)
}

// BackSubjectHandler serves remedial subject tracking.
type BackSubjectHandler struct {
	service backSubjectService
}

// NewBackSubjectHandler constructs BackSubjectHandler.
func NewBackSubjectHandler(service backSubjectService) *BackSubjectHandler {
	return &BackSubjectHandler{service: service}
}

// Add godoc
// @Summary Record a back subject for a student
// @Tags BackSubjects
// @Accept json
// @Produce json
// @Param studentId path string true "Student ID"
// @Param payload body dto.AddBackSubjectRequest true "Back subject"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/{studentId}/back-subjects [post]
func (h *BackSubjectHandler) Add(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.AddBackSubjectRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.service.AddBackSubject(c.Request.Context(), c.Param("studentId"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// List godoc
// @Summary List a student's back subjects
// @Tags BackSubjects
// @Produce json
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{studentId}/back-subjects [get]
func (h *BackSubjectHandler) List(c *gin.Context) {
	list, err := h.service.ListByStudent(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// UpdateUnits godoc
// @Summary Update unit progress
// @Tags BackSubjects
// @Accept json
// @Produce json
// @Param id path string true "Back subject ID"
// @Param payload body dto.UpdateUnitsRequest true "Units"
// @Success 200 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /back-subjects/{id}/units [put]
func (h *BackSubjectHandler) UpdateUnits(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.UpdateUnitsRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.service.UpdateUnits(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// Complete godoc
// @Summary Mark a back subject completed
// @Tags BackSubjects
// @Accept json
// @Produce json
// @Param id path string true "Back subject ID"
// @Param payload body dto.MarkCompletedRequest true "Completion"
// @Success 200 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /back-subjects/{id}/complete [post]
func (h *BackSubjectHandler) Complete(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.MarkCompletedRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.service.MarkCompleted(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}
