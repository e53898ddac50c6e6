package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-attendance-api/internal/models"
)

func TestExtensionCreateForcesPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExtensionRepository(db)

	mock.ExpectExec("INSERT INTO extension_requests").WillReturnResult(sqlmock.NewResult(1, 1))

	req := &models.ExtensionRequest{LectureID: "l1", TeacherID: "t1", Type: models.ExtensionMissed, Reason: "network outage", Status: models.ExtensionApproved}
	require.NoError(t, repo.Create(context.Background(), req))
	assert.Equal(t, models.ExtensionPending, req.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExtensionCreateSecondPendingIsDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExtensionRepository(db)

	mock.ExpectExec("INSERT INTO extension_requests").WillReturnError(&pq.Error{Code: "23505", Constraint: "extension_requests_pending_idx"})

	err := repo.Create(context.Background(), &models.ExtensionRequest{LectureID: "l1"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestApprovedNone(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExtensionRepository(db)

	mock.ExpectQuery("status = 'Approved'").WithArgs("l1").WillReturnError(sql.ErrNoRows)

	ext, err := repo.LatestApproved(context.Background(), "l1")
	require.NoError(t, err)
	assert.Nil(t, ext)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecideApproveSetsApprovedAt(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExtensionRepository(db)

	at := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE extension_requests SET status").
		WithArgs("e1", models.ExtensionApproved, "admin-1", &at, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Decide(context.Background(), "e1", models.ExtensionApproved, "admin-1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecideAlreadyDecided(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewExtensionRepository(db)

	mock.ExpectExec("UPDATE extension_requests SET status").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Decide(context.Background(), "e1", models.ExtensionRejected, "admin-1", time.Now())
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
