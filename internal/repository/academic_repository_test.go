package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-attendance-api/internal/models"
)

func TestBadgeCreateUpperCasesCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBadgeRepository(db)

	mock.ExpectExec("INSERT INTO badges").
		WithArgs(sqlmock.AnyArg(), "BSCS", "Computer Science", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	badge := &models.Badge{Code: " bscs ", Name: "Computer Science"}
	require.NoError(t, repo.Create(context.Background(), badge))
	assert.Equal(t, "BSCS", badge.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "badge_id", "badge_code", "name", "semester", "session", "created_at", "updated_at"}).
		AddRow("sec-1", "b1", "BSCS", "A", 3, "2023-2027", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND sec.badge_id = $1 AND sec.semester = $2 ORDER BY")).
		WithArgs("b1", 3).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sections sec WHERE 1=1 AND sec.badge_id = $1 AND sec.semester = $2")).
		WithArgs("b1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	sections, total, err := repo.List(context.Background(), models.SectionFilter{BadgeID: "b1", Semester: 3})
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "BSCS-A (S3, 2023-2027)", sections[0].Label())
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	mock.ExpectExec("INSERT INTO sections").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Section{BadgeID: "b1", Name: "A", Semester: 1, Session: "2024-2028"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE id = $1")).WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.Equal(t, sql.ErrNoRows, repo.Delete(context.Background(), "c1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseListSearch(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE LOWER(code) LIKE $1 OR LOWER(title) LIKE $1 ORDER BY code LIMIT 20 OFFSET 0")).
		WithArgs("%data%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "title", "credit_hours", "created_at", "updated_at"}).
			AddRow("c1", "CS-201", "Data Structures", 3, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses WHERE")).
		WithArgs("%data%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	courses, total, err := repo.List(context.Background(), "Data", 1, 20)
	require.NoError(t, err)
	assert.Len(t, courses, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherCourseDeleteRemovesDependents(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTeacherCourseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM attendance_records").WithArgs("tc1").WillReturnResult(sqlmock.NewResult(0, 10))
	mock.ExpectExec("DELETE FROM lectures").WithArgs("tc1").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec("DELETE FROM timetable_rules").WithArgs("tc1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM teacher_courses").WithArgs("tc1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "tc1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableCreateStoresDays(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTimetableRepository(db)

	mock.ExpectExec("INSERT INTO timetable_rules").WillReturnResult(sqlmock.NewResult(1, 1))

	rule := &models.TimetableRule{
		TeacherCourseID: "tc1",
		DaysOfWeek:      pq.Int64Array{1, 3},
		StartTime:       "09:00",
		DurationMinutes: 60,
		StartDate:       time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Active:          true,
	}
	require.NoError(t, repo.Create(context.Background(), rule))
	assert.NotEmpty(t, rule.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBadgeDeleteReferenced(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBadgeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM badges WHERE id = $1")).
		WithArgs("b1").
		WillReturnError(&pq.Error{Code: "23503", Constraint: "sections_badge_id_fkey"})

	err := repo.Delete(context.Background(), "b1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}
