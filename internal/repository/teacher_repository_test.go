package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-attendance-api/internal/models"
)

func TestTeacherRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "badge_number", "designation", "phone", "created_at", "updated_at", "full_name", "email", "active"}).
		AddRow("t1", "u1", "EMP-001", nil, nil, now, now, "Dr. Sara", "sara@uni.edu", true)
	mock.ExpectQuery(`FROM teachers t\s+JOIN users u ON u.id = t.user_id`).WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.TeacherFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "EMP-001", list[0].BadgeNumber)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherCreateWithUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO teachers").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	teacher := &models.Teacher{BadgeNumber: "EMP-001"}
	require.NoError(t, repo.CreateWithUser(context.Background(), &models.User{Email: "sara@uni.edu", Role: models.RoleTeacher}, teacher))
	assert.NotEmpty(t, teacher.ID)
	assert.NotEmpty(t, teacher.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistingBadgeNumbers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTeacherRepository(db)

	mock.ExpectQuery("FROM teachers WHERE UPPER\\(badge_number\\) = ANY").
		WithArgs(pq.Array([]string{"EMP-001"})).
		WillReturnRows(sqlmock.NewRows([]string{"upper"}))

	found, err := repo.ExistingBadgeNumbers(context.Background(), []string{"emp-001"})
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}
