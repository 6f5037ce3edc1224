package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
)

var editRequestRowColumns = []string{"id", "grade_id", "requested_by", "reason", "status", "edit_completed", "previous_value",
	"reviewed_by", "reviewed_at", "review_notes", "completed_by", "completed_at", "created_at"}

func TestGradeRepositoryUpdateRequiresExpectedStatus(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewGradeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE grades")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE grades")).WillReturnResult(sqlmock.NewResult(0, 0))

	grade := &models.Grade{ID: "grade-1", Value: 91, ApprovalStatus: models.GradeStatusApproved, Locked: true}
	require.NoError(t, repo.Update(context.Background(), nil, grade, models.GradeStatusSubmitted))
	assert.False(t, grade.UpdatedAt.IsZero())

	err := repo.Update(context.Background(), nil, grade, models.GradeStatusSubmitted)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeEditRequestRepositoryCreateMapsUniqueViolation(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewGradeEditRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grade_edit_requests")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "grade_edit_requests_open_idx"})

	err := repo.Create(context.Background(), nil, &models.GradeEditRequest{
		GradeID:     "grade-1",
		RequestedBy: "teacher-1",
		Reason:      "typo",
		Status:      models.EditRequestPending,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeEditRequestRepositoryFindOpenByGrade(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewGradeEditRequestRepository(db)

	mock.ExpectQuery(`FROM grade_edit_requests\s+WHERE grade_id = \$1 AND status IN \(\$2, \$3\) FOR UPDATE`).
		WithArgs("grade-1", "PENDING", "APPROVED").
		WillReturnRows(sqlmock.NewRows(editRequestRowColumns).
			AddRow("req-1", "grade-1", "teacher-1", "typo", "APPROVED", false, nil, "admin-1", time.Now(), nil, nil, nil, time.Now()))

	req, err := repo.FindOpenByGrade(context.Background(), nil, "grade-1")
	require.NoError(t, err)
	assert.Equal(t, models.EditRequestApproved, req.Status)
	assert.True(t, req.IsOpen())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackSubjectRepositoryCreateDuplicate(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewBackSubjectRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO student_back_subjects")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), nil, &models.BackSubject{StudentID: "stu-1", SubjectID: "math", RequiredUnits: 3, Status: models.BackSubjectPending})
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackSubjectRepositoryUpdateSkipsCompletedRows(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewBackSubjectRepository(db)

	mock.ExpectExec(`UPDATE student_back_subjects .*WHERE id = \? AND status = \? AND status <> 'COMPLETED'`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	bs := &models.BackSubject{ID: "bs-1", RequiredUnits: 4, CompletedUnits: 1, Status: models.BackSubjectInProgress}
	err := repo.Update(context.Background(), nil, bs, models.BackSubjectCompleted)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
