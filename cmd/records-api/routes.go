package main

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/handler"
	"github.com/noah-isme/academic-records-api/internal/middleware"
	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/config"
)

type routeDeps struct {
	admissions   *handler.AdmissionHandler
	grades       *handler.GradeApprovalHandler
	backSubjects *handler.BackSubjectHandler
	enrollment   *handler.EnrollmentGateHandler
	audit        *handler.AuditHandler
	ops          *handler.MetricsHandler
	tokens       middleware.TokenValidator
}

func registerRoutes(r *gin.Engine, cfg *config.Config, deps routeDeps) {
	r.GET("/health", deps.ops.Health)
	r.GET("/ready", deps.ops.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", deps.ops.Prometheus)
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(deps.tokens))

	reviewers := middleware.RequireRoles(models.RoleAdmin)
	teachers := middleware.RequireRoles(models.RoleTeacher)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	students := middleware.RequireRoles(models.RoleStudent)
	anyone := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher, models.RoleStudent)

	admissions := api.Group("/admissions")
	{
		admissions.POST("/applications", anyone, deps.admissions.Submit)
		admissions.GET("/applications", reviewers, deps.admissions.List)
		admissions.GET("/applications/:id", reviewers, deps.admissions.Get)
		admissions.GET("/applications/:id/eligibility", reviewers, deps.admissions.Eligibility)
		admissions.POST("/applications/:id/approve", reviewers, deps.admissions.Approve)
		admissions.POST("/applications/:id/reject", reviewers, deps.admissions.Reject)
		admissions.PUT("/applications/:id/notes", reviewers, deps.admissions.UpdateNotes)
		admissions.PUT("/applications/:id/requirements/:requirementId", reviewers, deps.admissions.ReviewRequirement)
		admissions.POST("/payments/:id/verify", reviewers, deps.admissions.VerifyPayment)
		admissions.POST("/payments/:id/unverify", reviewers, deps.admissions.UnverifyPayment)
	}

	api.POST("/grades", teachers, deps.grades.Submit)
	api.GET("/grades", staff, deps.grades.List)
	api.GET("/grades/:id", staff, deps.grades.Get)
	api.POST("/grades/:id/approve", reviewers, deps.grades.Approve)
	api.POST("/grades/:id/reject", reviewers, deps.grades.Reject)
	api.GET("/grades/:id/edit-requests", staff, deps.grades.ListEditRequests)
	api.POST("/grades/:id/edit-requests", teachers, deps.grades.CreateEditRequest)
	api.POST("/grades/:id/edit", teachers, deps.grades.SubmitEditedValue)
	api.POST("/grades/:id/complete-edit", reviewers, deps.grades.CompleteAndRelock)
	api.POST("/grade-edit-requests/:id/approve", reviewers, deps.grades.ApproveEditRequest)
	api.POST("/grade-edit-requests/:id/deny", reviewers, deps.grades.DenyEditRequest)

	api.POST("/students/:studentId/back-subjects", reviewers, deps.backSubjects.Add)
	api.GET("/students/:studentId/back-subjects", staff, deps.backSubjects.List)
	api.PUT("/back-subjects/:id/units", reviewers, deps.backSubjects.UpdateUnits)
	api.POST("/back-subjects/:id/complete", reviewers, deps.backSubjects.Complete)

	api.POST("/enrollment-periods", reviewers, deps.enrollment.CreatePeriod)
	api.GET("/enrollment-periods", anyone, deps.enrollment.ListPeriods)
	api.PUT("/enrollment-periods/:id/status", reviewers, deps.enrollment.SetPeriodStatus)
	api.POST("/enrollment-requests", students, deps.enrollment.SubmitRequest)
	api.GET("/enrollment-requests", anyone, deps.enrollment.ListRequests)
	api.POST("/enrollment-requests/:id/approve", reviewers, deps.enrollment.Approve)
	api.POST("/enrollment-requests/:id/reject", reviewers, deps.enrollment.Reject)
	api.POST("/enrollment-requests/:id/void", reviewers, deps.enrollment.Void)

	api.GET("/audit-logs", reviewers, deps.audit.List)
}
