package workflow

import "github.com/noah-isme/academic-records-api/internal/models"

// BackSubjectEvent drives the remedial ledger machine.
type BackSubjectEvent string

const (
	BackSubjectUpdateUnits BackSubjectEvent = "UPDATE_UNITS"
	BackSubjectStart       BackSubjectEvent = "START"
	BackSubjectComplete    BackSubjectEvent = "COMPLETE"
)

// BackSubject freezes completed records: every event on COMPLETED is LOCKED.
var BackSubject = newMachine("back subject", map[models.BackSubjectStatus]map[BackSubjectEvent]models.BackSubjectStatus{
	models.BackSubjectPending: {
		BackSubjectUpdateUnits: models.BackSubjectPending,
		BackSubjectStart:       models.BackSubjectInProgress,
		BackSubjectComplete:    models.BackSubjectCompleted,
	},
	models.BackSubjectInProgress: {
		BackSubjectUpdateUnits: models.BackSubjectInProgress,
		BackSubjectStart:       models.BackSubjectInProgress,
		BackSubjectComplete:    models.BackSubjectCompleted,
	},
}).lock(models.BackSubjectCompleted, "units are frozen once completion is recorded")
