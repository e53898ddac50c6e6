package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

type mockTeacherRepo struct {
	users    *memProfileUsers
	teachers map[string]models.Teacher
}

func (m *mockTeacherRepo) List(ctx context.Context, filter models.TeacherFilter) ([]models.TeacherDetail, int, error) {
	var out []models.TeacherDetail
	for _, t := range m.teachers {
		out = append(out, models.TeacherDetail{Teacher: t})
	}
	return out, len(out), nil
}

func (m *mockTeacherRepo) FindByID(ctx context.Context, id string) (*models.TeacherDetail, error) {
	t, ok := m.teachers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	detail := models.TeacherDetail{Teacher: t}
	if u, ok := m.users.users[t.UserID]; ok {
		detail.FullName = u.FullName
		detail.Email = u.Email
	}
	return &detail, nil
}

func (m *mockTeacherRepo) ExistingBadgeNumbers(ctx context.Context, badges []string) (map[string]bool, error) {
	found := map[string]bool{}
	for _, t := range m.teachers {
		for _, b := range badges {
			if strings.EqualFold(t.BadgeNumber, b) {
				found[strings.ToUpper(b)] = true
			}
		}
	}
	return found, nil
}

func (m *mockTeacherRepo) CreateWithUser(ctx context.Context, user *models.User, teacher *models.Teacher) error {
	user.ID = fmt.Sprintf("user-%d", len(m.users.users)+1)
	teacher.ID = fmt.Sprintf("teacher-%d", len(m.teachers)+1)
	teacher.UserID = user.ID
	m.users.users[user.ID] = user
	m.teachers[teacher.ID] = *teacher
	return nil
}

func (m *mockTeacherRepo) Update(ctx context.Context, teacher *models.Teacher) error {
	m.teachers[teacher.ID] = *teacher
	return nil
}

func TestTeacherServiceCreateAndUpdate(t *testing.T) {
	users := &memProfileUsers{users: map[string]*models.User{}}
	repo := &mockTeacherRepo{users: users, teachers: map[string]models.Teacher{}}
	issuer := &recordingIssuer{}
	svc := NewTeacherService(repo, users, issuer, 12, nil, zap.NewNop())

	designation := "Lecturer"
	created, err := svc.Create(context.Background(), CreateTeacherRequest{FullName: "Dr. Noor", Email: "noor@example.com", BadgeNumber: "emp-7", Designation: &designation})
	require.NoError(t, err)
	detail := created.Profile.(*models.TeacherDetail)
	assert.Equal(t, "EMP-7", detail.BadgeNumber)
	require.Len(t, issuer.dispatched, 1)
	assert.Equal(t, models.RoleTeacher, issuer.dispatched[0].Role)
	assert.Len(t, issuer.dispatched[0].Password, 12)

	_, err = svc.Create(context.Background(), CreateTeacherRequest{FullName: "Other", Email: "other@example.com", BadgeNumber: "EMP-7"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), CreateTeacherRequest{FullName: "Other", Email: "NOOR@example.com", BadgeNumber: "EMP-8"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	updated, err := svc.Update(context.Background(), detail.ID, UpdateTeacherRequest{FullName: "Dr. Noor Ahmed", BadgeNumber: "EMP-70"})
	require.NoError(t, err)
	assert.Equal(t, "EMP-70", updated.BadgeNumber)
	assert.Equal(t, "Dr. Noor Ahmed", updated.FullName)
	assert.Nil(t, updated.Designation)
}

func TestTeacherServiceGetMissing(t *testing.T) {
	users := &memProfileUsers{users: map[string]*models.User{}}
	svc := NewTeacherService(&mockTeacherRepo{users: users, teachers: map[string]models.Teacher{}}, users, nil, 10, nil, nil)
	_, err := svc.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
