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

	"github.com/noah-isme/campus-attendance-api/internal/models"
)

func TestStudentCreateWithUserCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO students").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	user := &models.User{Email: "Ali@Uni.edu", FullName: "Ali", Role: models.RoleStudent, Active: true}
	student := &models.Student{SectionID: "sec-1", RollNumber: "2023-CS-626"}
	require.NoError(t, repo.CreateWithUser(context.Background(), user, student))

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, user.ID, student.UserID)
	assert.Equal(t, "ali@uni.edu", user.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentCreateWithUserRollsBackOnDuplicateRoll(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO students").WillReturnError(&pq.Error{Code: "23505", Constraint: "students_roll_number_key"})
	mock.ExpectRollback()

	err := repo.CreateWithUser(context.Background(), &models.User{Email: "a@uni.edu"}, &models.Student{RollNumber: "2023-CS-1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistingRollNumbersUpperCases(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT UPPER(roll_number) FROM students WHERE UPPER(roll_number) = ANY($1)")).
		WithArgs(pq.Array([]string{"2023-CS-626"})).
		WillReturnRows(sqlmock.NewRows([]string{"upper"}).AddRow("2023-CS-626"))

	found, err := repo.ExistingRollNumbers(context.Background(), []string{"2023-cs-626"})
	require.NoError(t, err)
	assert.True(t, found["2023-CS-626"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListBySectionOnlyActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "section_id", "roll_number", "phone", "created_at", "updated_at", "full_name", "email", "active", "section_name"}).
		AddRow("s1", "u1", "sec-1", "2023-CS-1", nil, now, now, "Ali", "ali@uni.edu", true, "BSCS-A")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.section_id = $1 AND u.active = TRUE ORDER BY s.roll_number")).
		WithArgs("sec-1").
		WillReturnRows(rows)

	students, err := repo.ListBySection(context.Background(), "sec-1")
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "BSCS-A", students[0].SectionName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentUpdateMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("UPDATE students SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Student{ID: "missing"})
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
