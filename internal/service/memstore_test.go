package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/repository"
	"github.com/noah-isme/academic-records-api/pkg/database"
)

// memDB is an in-memory stand-in for the records schema. memTx serializes
// transactions and restores the snapshot when fn fails.
type memDB struct {
	mu  sync.Mutex
	seq int

	applications map[string]models.Application
	sequences    map[int]int
	definitions  map[string]models.RequirementDefinition
	submissions  map[string]models.RequirementSubmission
	payments     map[string]models.Payment
	grades       map[string]models.Grade
	editRequests map[string]models.GradeEditRequest
	backSubjects map[string]models.BackSubject
	periods      map[string]models.EnrollmentPeriod
	enrollments  map[string]models.EnrollmentRequest
	audits       []models.AuditLog
}

func newMemDB() *memDB {
	return &memDB{
		applications: map[string]models.Application{},
		sequences:    map[int]int{},
		definitions:  map[string]models.RequirementDefinition{},
		submissions:  map[string]models.RequirementSubmission{},
		payments:     map[string]models.Payment{},
		grades:       map[string]models.Grade{},
		editRequests: map[string]models.GradeEditRequest{},
		backSubjects: map[string]models.BackSubject{},
		periods:      map[string]models.EnrollmentPeriod{},
		enrollments:  map[string]models.EnrollmentRequest{},
	}
}

func copyMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (db *memDB) snapshot() *memDB {
	db.mu.Lock()
	defer db.mu.Unlock()
	return &memDB{
		seq:          db.seq,
		applications: copyMap(db.applications),
		sequences:    copyMap(db.sequences),
		definitions:  copyMap(db.definitions),
		submissions:  copyMap(db.submissions),
		payments:     copyMap(db.payments),
		grades:       copyMap(db.grades),
		editRequests: copyMap(db.editRequests),
		backSubjects: copyMap(db.backSubjects),
		periods:      copyMap(db.periods),
		enrollments:  copyMap(db.enrollments),
		audits:       append([]models.AuditLog(nil), db.audits...),
	}
}

func (db *memDB) restore(s *memDB) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.seq = s.seq
	db.applications, db.sequences = s.applications, s.sequences
	db.definitions, db.submissions, db.payments = s.definitions, s.submissions, s.payments
	db.grades, db.editRequests, db.backSubjects = s.grades, s.editRequests, s.backSubjects
	db.periods, db.enrollments, db.audits = s.periods, s.enrollments, s.audits
}

func (db *memDB) nextID(prefix string) string {
	db.seq++
	return fmt.Sprintf("%s-%d", prefix, db.seq)
}

func (db *memDB) auditActions() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	actions := make([]string, 0, len(db.audits))
	for _, a := range db.audits {
		actions = append(actions, a.Action)
	}
	return actions
}

type memTx struct {
	mu      sync.Mutex
	db      *memDB
	commits int
}

func (t *memTx) WithTransaction(ctx context.Context, fn func(q database.Querier) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap := t.db.snapshot()
	if err := fn(nil); err != nil {
		t.db.restore(snap)
		return err
	}
	t.commits++
	return nil
}

// applications, sequences, requirements and payments

type memApplications struct{ db *memDB }

func (m memApplications) Create(ctx context.Context, q database.Querier, app *models.Application) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	app.ID = m.db.nextID("app")
	m.db.applications[app.ID] = *app
	return nil
}

func (m memApplications) FindByID(ctx context.Context, q database.Querier, id string) (*models.Application, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	app, ok := m.db.applications[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &app, nil
}

func (m memApplications) FindByIDForUpdate(ctx context.Context, q database.Querier, id string) (*models.Application, error) {
	return m.FindByID(ctx, q, id)
}

func (m memApplications) List(ctx context.Context, q database.Querier, filter models.ApplicationFilter) ([]models.Application, int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.Application
	for _, app := range m.db.applications {
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		out = append(out, app)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m memApplications) UpdateReview(ctx context.Context, q database.Querier, p repository.ApplicationReviewParams) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	app, ok := m.db.applications[p.ID]
	if !ok || app.Status != p.From {
		return sql.ErrNoRows
	}
	reviewedAt := p.ReviewedAt
	app.Status, app.ReviewedBy, app.ReviewedAt = p.To, &p.ReviewedBy, &reviewedAt
	if p.Notes != nil {
		app.Notes = p.Notes
	}
	if p.StudentNumber != nil {
		app.StudentNumber = p.StudentNumber
	}
	m.db.applications[p.ID] = app
	return nil
}

func (m memApplications) UpdateNotes(ctx context.Context, q database.Querier, id string, notes *string) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	app, ok := m.db.applications[id]
	if !ok {
		return sql.ErrNoRows
	}
	app.Notes = notes
	m.db.applications[id] = app
	return nil
}

type memSequences struct{ db *memDB }

func (m memSequences) Next(ctx context.Context, q database.Querier, year int) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	m.db.sequences[year]++
	return m.db.sequences[year], nil
}

type memRequirements struct{ db *memDB }

func (m memRequirements) CountRequired(ctx context.Context, q database.Querier) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	n := 0
	for _, d := range m.db.definitions {
		if d.Required {
			n++
		}
	}
	return n, nil
}

func (m memRequirements) CountApprovedRequired(ctx context.Context, q database.Querier, applicationID string) (int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	n := 0
	for _, s := range m.db.submissions {
		if s.ApplicationID == applicationID && s.Status == models.RequirementSubmissionApproved && m.db.definitions[s.RequirementID].Required {
			n++
		}
	}
	return n, nil
}

func (m memRequirements) FindDefinition(ctx context.Context, q database.Querier, id string) (*models.RequirementDefinition, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	d, ok := m.db.definitions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &d, nil
}

func (m memRequirements) UpsertSubmission(ctx context.Context, q database.Querier, sub *models.RequirementSubmission) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	key := sub.ApplicationID + "|" + sub.RequirementID
	if existing, ok := m.db.submissions[key]; ok {
		sub.ID = existing.ID
	} else {
		sub.ID = m.db.nextID("sub")
	}
	m.db.submissions[key] = *sub
	return nil
}

type memPayments struct{ db *memDB }

func (m memPayments) HasVerified(ctx context.Context, q database.Querier, applicationID string) (bool, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, p := range m.db.payments {
		if p.ApplicationID == applicationID && p.Status == models.PaymentStatusVerified && p.Amount > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (m memPayments) FindByIDForUpdate(ctx context.Context, q database.Querier, id string) (*models.Payment, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.payments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (m memPayments) UpdateVerification(ctx context.Context, q database.Querier, id string, status models.PaymentStatus, verifiedBy *string, verifiedAt *time.Time) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.payments[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.Status, p.VerifiedBy, p.VerifiedAt = status, verifiedBy, verifiedAt
	m.db.payments[id] = p
	return nil
}

// grades and edit requests

type memGrades struct{ db *memDB }

func (m memGrades) Create(ctx context.Context, q database.Querier, g *models.Grade) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.grades {
		if existing.StudentID == g.StudentID && existing.SubjectID == g.SubjectID && existing.TermID == g.TermID {
			return repository.ErrDuplicate
		}
	}
	g.ID = m.db.nextID("grade")
	m.db.grades[g.ID] = *g
	return nil
}

func (m memGrades) FindByID(ctx context.Context, q database.Querier, id string) (*models.Grade, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	g, ok := m.db.grades[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &g, nil
}

func (m memGrades) FindByIDForUpdate(ctx context.Context, q database.Querier, id string) (*models.Grade, error) {
	return m.FindByID(ctx, q, id)
}

func (m memGrades) FindByKeyForUpdate(ctx context.Context, q database.Querier, studentID, subjectID, termID string) (*models.Grade, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, g := range m.db.grades {
		if g.StudentID == studentID && g.SubjectID == subjectID && g.TermID == termID {
			g := g
			return &g, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memGrades) List(ctx context.Context, q database.Querier, filter models.GradeFilter) ([]models.Grade, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.Grade
	for _, g := range m.db.grades {
		if filter.ApprovalStatus != "" && g.ApprovalStatus != filter.ApprovalStatus {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func (m memGrades) Update(ctx context.Context, q database.Querier, g *models.Grade, expected models.GradeApprovalStatus) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	current, ok := m.db.grades[g.ID]
	if !ok || current.ApprovalStatus != expected {
		return sql.ErrNoRows
	}
	m.db.grades[g.ID] = *g
	return nil
}

type memEditRequests struct{ db *memDB }

func (m memEditRequests) Create(ctx context.Context, q database.Querier, r *models.GradeEditRequest) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.editRequests {
		if existing.GradeID == r.GradeID && existing.IsOpen() {
			return repository.ErrDuplicate
		}
	}
	r.ID = m.db.nextID("edit")
	m.db.editRequests[r.ID] = *r
	return nil
}

func (m memEditRequests) FindByIDForUpdate(ctx context.Context, q database.Querier, id string) (*models.GradeEditRequest, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.editRequests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (m memEditRequests) FindOpenByGrade(ctx context.Context, q database.Querier, gradeID string) (*models.GradeEditRequest, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, r := range m.db.editRequests {
		if r.GradeID == gradeID && r.IsOpen() {
			r := r
			return &r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memEditRequests) FindLatestByGrade(ctx context.Context, q database.Querier, gradeID string) (*models.GradeEditRequest, error) {
	list, _ := m.ListByGrade(ctx, q, gradeID)
	if len(list) == 0 {
		return nil, sql.ErrNoRows
	}
	return &list[0], nil
}

// ListByGrade orders newest first; ids are monotonic so they break ties.
func (m memEditRequests) ListByGrade(ctx context.Context, q database.Querier, gradeID string) ([]models.GradeEditRequest, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.GradeEditRequest
	for _, r := range m.db.editRequests {
		if r.GradeID == gradeID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return idSeq(out[i].ID) > idSeq(out[j].ID)
	})
	return out, nil
}

func (m memEditRequests) Update(ctx context.Context, q database.Querier, r *models.GradeEditRequest, expected models.GradeEditRequestStatus) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	current, ok := m.db.editRequests[r.ID]
	if !ok || current.Status != expected {
		return sql.ErrNoRows
	}
	m.db.editRequests[r.ID] = *r
	return nil
}

func idSeq(id string) int {
	var prefix string
	var n int
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '-' {
			prefix = id[i+1:]
			break
		}
	}
	_, _ = fmt.Sscanf(prefix, "%d", &n)
	return n
}

// back subjects

type memBackSubjects struct{ db *memDB }

func (m memBackSubjects) Create(ctx context.Context, q database.Querier, bs *models.BackSubject) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.backSubjects {
		if existing.StudentID == bs.StudentID && existing.SubjectID == bs.SubjectID {
			return repository.ErrDuplicate
		}
	}
	bs.ID = m.db.nextID("bs")
	m.db.backSubjects[bs.ID] = *bs
	return nil
}

func (m memBackSubjects) FindByID(ctx context.Context, q database.Querier, id string) (*models.BackSubject, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	bs, ok := m.db.backSubjects[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &bs, nil
}

func (m memBackSubjects) FindByIDForUpdate(ctx context.Context, q database.Querier, id string) (*models.BackSubject, error) {
	return m.FindByID(ctx, q, id)
}

func (m memBackSubjects) ListByStudent(ctx context.Context, q database.Querier, studentID string) ([]models.BackSubject, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.BackSubject
	for _, bs := range m.db.backSubjects {
		if bs.StudentID == studentID {
			out = append(out, bs)
		}
	}
	return out, nil
}

func (m memBackSubjects) Update(ctx context.Context, q database.Querier, bs *models.BackSubject, expected models.BackSubjectStatus) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	current, ok := m.db.backSubjects[bs.ID]
	if !ok || current.Status != expected || current.Status == models.BackSubjectCompleted {
		return sql.ErrNoRows
	}
	m.db.backSubjects[bs.ID] = *bs
	return nil
}

// enrollment

type memEnrollment struct{ db *memDB }

func (m memEnrollment) CreatePeriod(ctx context.Context, q database.Querier, p *models.EnrollmentPeriod) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p.ID = m.db.nextID("period")
	m.db.periods[p.ID] = *p
	return nil
}

func (m memEnrollment) FindPeriodByID(ctx context.Context, q database.Querier, id string) (*models.EnrollmentPeriod, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.periods[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (m memEnrollment) ListPeriods(ctx context.Context, q database.Querier, programID string) ([]models.EnrollmentPeriod, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.EnrollmentPeriod
	for _, p := range m.db.periods {
		if programID == "" || p.ProgramID == programID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m memEnrollment) UpdatePeriodStatus(ctx context.Context, q database.Querier, id string, status models.EnrollmentPeriodStatus) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	p, ok := m.db.periods[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.Status = status
	m.db.periods[id] = p
	return nil
}

func (m memEnrollment) CreateRequest(ctx context.Context, q database.Querier, r *models.EnrollmentRequest) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	for _, existing := range m.db.enrollments {
		if existing.StudentID == r.StudentID && existing.PeriodID == r.PeriodID && existing.Status != models.EnrollmentRequestVoided {
			return repository.ErrDuplicate
		}
	}
	r.ID = m.db.nextID("enr")
	m.db.enrollments[r.ID] = *r
	return nil
}

func (m memEnrollment) FindRequestByID(ctx context.Context, q database.Querier, id string) (*models.EnrollmentRequest, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	r, ok := m.db.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &r, nil
}

func (m memEnrollment) FindRequestByIDForUpdate(ctx context.Context, q database.Querier, id string) (*models.EnrollmentRequest, error) {
	return m.FindRequestByID(ctx, q, id)
}

func (m memEnrollment) ListRequests(ctx context.Context, q database.Querier, filter models.EnrollmentRequestFilter) ([]models.EnrollmentRequest, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.EnrollmentRequest
	for _, r := range m.db.enrollments {
		if filter.PeriodID != "" && r.PeriodID != filter.PeriodID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m memEnrollment) UpdateRequest(ctx context.Context, q database.Querier, r *models.EnrollmentRequest, expected models.EnrollmentRequestStatus) error {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	current, ok := m.db.enrollments[r.ID]
	if !ok || current.Status != expected {
		return sql.ErrNoRows
	}
	m.db.enrollments[r.ID] = *r
	return nil
}

// audit

type memAudit struct {
	db   *memDB
	fail error
}

func (m *memAudit) Create(ctx context.Context, q database.Querier, log *models.AuditLog) error {
	if m.fail != nil {
		return m.fail
	}
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	log.ID = m.db.nextID("audit")
	m.db.audits = append(m.db.audits, *log)
	return nil
}

func (m *memAudit) List(ctx context.Context, q database.Querier, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	m.db.mu.Lock()
	defer m.db.mu.Unlock()
	var out []models.AuditLog
	for _, a := range m.db.audits {
		if filter.EntityType != "" && a.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != "" && a.EntityID != filter.EntityID {
			continue
		}
		if filter.ActorID != "" && a.ActorID != filter.ActorID {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

type transitionRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *transitionRecorder) ObserveTransition(entity, event, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, entity+":"+event+":"+outcome)
}

var errAuditDown = errors.New("audit table unavailable")
