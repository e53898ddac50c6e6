package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-attendance-api/internal/models"
)

func TestBulkCreateSkipsExistingSlots(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLectureRepository(db)

	start := time.Date(2024, 2, 5, 9, 0, 0, 0, time.UTC)
	lectures := []models.Lecture{
		{TeacherCourseID: "tc1", StartsAt: start, EndsAt: start.Add(time.Hour)},
		{TeacherCourseID: "tc1", StartsAt: start.AddDate(0, 0, 2), EndsAt: start.AddDate(0, 0, 2).Add(time.Hour)},
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (teacher_course_id, starts_at) DO NOTHING")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (teacher_course_id, starts_at) DO NOTHING")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	inserted, err := repo.BulkCreate(context.Background(), lectures)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.NotEmpty(t, lectures[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkCreateRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLectureRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO lectures").WillReturnError(errors.New("conn reset"))
	mock.ExpectRollback()

	inserted, err := repo.BulkCreate(context.Background(), []models.Lecture{{TeacherCourseID: "tc1"}})
	require.Error(t, err)
	assert.Zero(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindLectureDetail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLectureRepository(db)

	now := time.Now()
	cols := []string{"id", "teacher_course_id", "timetable_rule_id", "starts_at", "ends_at", "room", "topic", "cancelled", "override",
		"created_at", "updated_at", "teacher_id", "teacher_name", "course_code", "course_title", "section_id", "section_name",
		"marked_count", "has_attendance"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE l.id = $1")).
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("l1", "tc1", nil, now, now.Add(time.Hour), nil, nil, false, false,
			now, now, "t1", "Dr. Sara", "CS-201", "Data Structures", "sec-1", "BSCS-A", 12, true))

	lecture, err := repo.FindDetail(context.Background(), "l1")
	require.NoError(t, err)
	assert.True(t, lecture.HasAttendance)
	assert.Equal(t, 12, lecture.MarkedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelMissingLecture(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLectureRepository(db)

	mock.ExpectExec("UPDATE lectures SET cancelled = TRUE").WithArgs("l1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.Equal(t, sql.ErrNoRows, repo.Cancel(context.Background(), "l1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRescheduleMarksOverride(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLectureRepository(db)

	start := time.Date(2024, 2, 6, 11, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("override = TRUE")).
		WithArgs("l1", start, start.Add(time.Hour), nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Reschedule(context.Background(), "l1", start, start.Add(time.Hour), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}
