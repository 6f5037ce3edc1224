package workflow

import "github.com/noah-isme/academic-records-api/internal/models"

// ApplicationEvent drives the admission machine.
type ApplicationEvent string

const (
	ApplicationApprove ApplicationEvent = "APPROVE"
	ApplicationReject  ApplicationEvent = "REJECT"
)

// Application allows pending → approved | rejected and nothing else.
var Application = newMachine("application", map[models.ApplicationStatus]map[ApplicationEvent]models.ApplicationStatus{
	models.ApplicationStatusPending: {
		ApplicationApprove: models.ApplicationStatusApproved,
		ApplicationReject:  models.ApplicationStatusRejected,
	},
})
