package workflow

import "github.com/noah-isme/academic-records-api/internal/models"

// GradeEvent drives the grade approval machine.
type GradeEvent string

const (
	GradeApprove  GradeEvent = "APPROVE"
	GradeReject   GradeEvent = "REJECT"
	GradeResubmit GradeEvent = "RESUBMIT"
	GradeRevise   GradeEvent = "REVISE"
	// GradeRelock re-approves a grade after its edit request is consumed.
	GradeRelock GradeEvent = "RELOCK"
)

// Grade governs approval_status. Approved grades only accept RELOCK; the
// edit itself is gated by the EditRequest machine.
var Grade = newMachine("grade", map[models.GradeApprovalStatus]map[GradeEvent]models.GradeApprovalStatus{
	models.GradeStatusSubmitted: {
		GradeApprove: models.GradeStatusApproved,
		GradeReject:  models.GradeStatusRejected,
		GradeRevise:  models.GradeStatusSubmitted,
	},
	models.GradeStatusRejected: {
		GradeResubmit: models.GradeStatusSubmitted,
	},
	models.GradeStatusApproved: {
		GradeRelock: models.GradeStatusApproved,
	},
})

// EditPhase is the edit request lifecycle as the machine sees it. The
// persisted status APPROVED splits into Approved and Edited depending on
// edit_completed.
type EditPhase string

const (
	EditPhasePending   EditPhase = "PENDING"
	EditPhaseApproved  EditPhase = "APPROVED"
	EditPhaseEdited    EditPhase = "EDITED"
	EditPhaseDenied    EditPhase = "DENIED"
	EditPhaseCompleted EditPhase = "COMPLETED"
)

// EditEvent drives the edit request machine.
type EditEvent string

const (
	EditApprove  EditEvent = "APPROVE"
	EditDeny     EditEvent = "DENY"
	EditRecord   EditEvent = "RECORD_EDIT"
	EditComplete EditEvent = "COMPLETE"
)

// EditRequest allows pending → approved | denied, approved → edited once,
// and edited → completed once.
var EditRequest = newMachine("grade edit request", map[EditPhase]map[EditEvent]EditPhase{
	EditPhasePending: {
		EditApprove: EditPhaseApproved,
		EditDeny:    EditPhaseDenied,
	},
	EditPhaseApproved: {
		EditRecord: EditPhaseEdited,
	},
	EditPhaseEdited: {
		EditComplete: EditPhaseCompleted,
	},
})

// PhaseOf derives the machine phase from a persisted request.
func PhaseOf(req models.GradeEditRequest) EditPhase {
	switch req.Status {
	case models.EditRequestApproved:
		if req.EditCompleted {
			return EditPhaseEdited
		}
		return EditPhaseApproved
	case models.EditRequestDenied:
		return EditPhaseDenied
	case models.EditRequestCompleted:
		return EditPhaseCompleted
	default:
		return EditPhasePending
	}
}

// ApplyPhase writes a phase back onto the persisted status fields.
func ApplyPhase(req *models.GradeEditRequest, phase EditPhase) {
	switch phase {
	case EditPhasePending:
		req.Status, req.EditCompleted = models.EditRequestPending, false
	case EditPhaseApproved:
		req.Status, req.EditCompleted = models.EditRequestApproved, false
	case EditPhaseEdited:
		req.Status, req.EditCompleted = models.EditRequestApproved, true
	case EditPhaseDenied:
		req.Status = models.EditRequestDenied
	case EditPhaseCompleted:
		req.Status, req.EditCompleted = models.EditRequestCompleted, true
	}
}
