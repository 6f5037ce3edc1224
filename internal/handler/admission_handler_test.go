package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/dto"
	"github.com/noah-isme/academic-records-api/internal/middleware"
	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

func newJSONContext(method, target, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, target, nil)
	} else {
		req, _ = http.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

var adminClaims = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

type admissionServiceMock struct {
	approveResp  *models.Application
	approveErr   error
	lastReviewer string
	lastNotes    string
	lastQuery    dto.ApplicationQuery
	lastReview   dto.ReviewRequirementRequest
	called       bool
}

func (m *admissionServiceMock) Submit(ctx context.Context, req dto.SubmitApplicationRequest, actorID string) (*models.Application, error) {
	m.called = true
	return &models.Application{ID: "app-1", ApplicantName: req.ApplicantName, Status: models.ApplicationStatusPending}, nil
}

func (m *admissionServiceMock) Approve(ctx context.Context, applicationID, reviewerID, notes string) (*models.Application, error) {
	m.called = true
	m.lastReviewer = reviewerID
	m.lastNotes = notes
	return m.approveResp, m.approveErr
}

func (m *admissionServiceMock) Reject(ctx context.Context, applicationID, reviewerID, notes string) (*models.Application, error) {
	m.called = true
	m.lastNotes = notes
	return &models.Application{ID: applicationID, Status: models.ApplicationStatusRejected}, nil
}

func (m *admissionServiceMock) UpdateNotes(ctx context.Context, applicationID, actorID, notes string) (*models.Application, error) {
	m.called = true
	return &models.Application{ID: applicationID}, nil
}

func (m *admissionServiceMock) ReviewRequirement(ctx context.Context, applicationID, requirementID string, req dto.ReviewRequirementRequest, actorID string) (*models.RequirementSubmission, error) {
	m.called = true
	m.lastReview = req
	return &models.RequirementSubmission{ApplicationID: applicationID, RequirementID: requirementID, Status: req.Status}, nil
}

func (m *admissionServiceMock) VerifyPayment(ctx context.Context, paymentID, actorID string) (*models.Payment, error) {
	m.called = true
	return &models.Payment{ID: paymentID, Status: models.PaymentStatusVerified}, nil
}

func (m *admissionServiceMock) UnverifyPayment(ctx context.Context, paymentID, actorID string) (*models.Payment, error) {
	m.called = true
	return &models.Payment{ID: paymentID, Status: models.PaymentStatusUnverified}, nil
}

func (m *admissionServiceMock) Get(ctx context.Context, applicationID string) (*models.Application, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
}

func (m *admissionServiceMock) List(ctx context.Context, query dto.ApplicationQuery) ([]models.Application, *models.Pagination, error) {
	m.lastQuery = query
	return []models.Application{{ID: "app-1"}}, &models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: 1}, nil
}

type eligibilityStub struct {
	result *models.Eligibility
}

func (s eligibilityStub) CanApprove(ctx context.Context, applicationID string) (*models.Eligibility, error) {
	return s.result, nil
}

func TestAdmissionApproveWithoutBody(t *testing.T) {
	number := "2025-0001"
	svc := &admissionServiceMock{approveResp: &models.Application{ID: "app-1", Status: models.ApplicationStatusApproved, StudentNumber: &number}}
	handler := NewAdmissionHandler(svc, eligibilityStub{})

	c, w := newJSONContext(http.MethodPost, "/admissions/applications/app-1/approve", "", adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	handler.Approve(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin-1", svc.lastReviewer)
	assert.Contains(t, w.Body.String(), "2025-0001")
}

func TestAdmissionApproveGatingFailure(t *testing.T) {
	svc := &admissionServiceMock{approveErr: appErrors.Clone(appErrors.ErrGatingNotMet, "Payment not verified")}
	handler := NewAdmissionHandler(svc, eligibilityStub{})

	c, w := newJSONContext(http.MethodPost, "/admissions/applications/app-1/approve", `{"notes":"looks good"}`, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	handler.Approve(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "GATING_NOT_MET", decodeError(t, w))
	assert.Equal(t, "looks good", svc.lastNotes)
}

func TestAdmissionApproveRequiresActor(t *testing.T) {
	svc := &admissionServiceMock{}
	handler := NewAdmissionHandler(svc, eligibilityStub{})

	c, w := newJSONContext(http.MethodPost, "/admissions/applications/app-1/approve", "", nil)
	handler.Approve(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, svc.called)
}

func TestAdmissionEligibility(t *testing.T) {
	handler := NewAdmissionHandler(&admissionServiceMock{}, eligibilityStub{result: &models.Eligibility{
		ApplicationID: "app-1", Reason: models.EligibilityPaymentUnverified, TotalRequired: 2, ApprovedRequired: 2,
	}})

	c, w := newJSONContext(http.MethodGet, "/admissions/applications/app-1/eligibility", "", adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	handler.Eligibility(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"reason":"PAYMENT_UNVERIFIED"`)
}

func TestAdmissionReviewRequirementInvalidBody(t *testing.T) {
	svc := &admissionServiceMock{}
	handler := NewAdmissionHandler(svc, eligibilityStub{})

	c, w := newJSONContext(http.MethodPut, "/admissions/applications/app-1/requirements/req-1", `{"status":`, adminClaims)
	handler.ReviewRequirement(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeError(t, w))
	assert.False(t, svc.called)
}

func TestAdmissionReviewRequirement(t *testing.T) {
	svc := &admissionServiceMock{}
	handler := NewAdmissionHandler(svc, eligibilityStub{})

	c, w := newJSONContext(http.MethodPut, "/admissions/applications/app-1/requirements/req-1", `{"status":"APPROVED"}`, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "app-1"}, {Key: "requirementId", Value: "req-1"}}
	handler.ReviewRequirement(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RequirementSubmissionApproved, svc.lastReview.Status)
}

func TestAdmissionListParsesPaging(t *testing.T) {
	svc := &admissionServiceMock{}
	handler := NewAdmissionHandler(svc, eligibilityStub{})

	c, w := newJSONContext(http.MethodGet, "/admissions/applications?status=PENDING&page=2&limit=10", "", adminClaims)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ApplicationStatusPending, svc.lastQuery.Status)
	assert.Equal(t, 2, svc.lastQuery.Page)
	assert.Equal(t, 10, svc.lastQuery.PageSize)
	assert.Contains(t, w.Body.String(), `"pagination"`)
}

func TestAdmissionGetNotFound(t *testing.T) {
	handler := NewAdmissionHandler(&admissionServiceMock{}, eligibilityStub{})

	c, w := newJSONContext(http.MethodGet, "/admissions/applications/missing", "", adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
