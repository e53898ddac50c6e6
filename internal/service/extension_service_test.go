package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

type memExtensions struct {
	items map[string]*models.ExtensionDetail
}

func newMemExtensions() *memExtensions {
	return &memExtensions{items: map[string]*models.ExtensionDetail{}}
}

func (m *memExtensions) Create(ctx context.Context, req *models.ExtensionRequest) error {
	req.ID = fmt.Sprintf("ext-%d", len(m.items)+1)
	req.Status = models.ExtensionPending
	m.items[req.ID] = &models.ExtensionDetail{ExtensionRequest: *req}
	return nil
}

func (m *memExtensions) FindByID(ctx context.Context, id string) (*models.ExtensionDetail, error) {
	if e, ok := m.items[id]; ok {
		copy := *e
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memExtensions) LatestApproved(ctx context.Context, lectureID string) (*models.ExtensionRequest, error) {
	var latest *models.ExtensionRequest
	for _, e := range m.items {
		if e.LectureID != lectureID || e.Status != models.ExtensionApproved {
			continue
		}
		if latest == nil || e.ApprovedAt.After(*latest.ApprovedAt) {
			copy := e.ExtensionRequest
			latest = &copy
		}
	}
	return latest, nil
}

func (m *memExtensions) HasPending(ctx context.Context, lectureID string) (bool, error) {
	for _, e := range m.items {
		if e.LectureID == lectureID && e.Status == models.ExtensionPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *memExtensions) List(ctx context.Context, filter models.ExtensionFilter) ([]models.ExtensionDetail, int, error) {
	var out []models.ExtensionDetail
	for _, e := range m.items {
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		if filter.TeacherID != "" && e.TeacherID != filter.TeacherID {
			continue
		}
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (m *memExtensions) Decide(ctx context.Context, id string, status models.ExtensionStatus, reviewerID string, at time.Time) error {
	e, ok := m.items[id]
	if !ok || e.Status != models.ExtensionPending {
		return sql.ErrNoRows
	}
	e.Status = status
	e.ReviewedBy = &reviewerID
	if status == models.ExtensionApproved {
		e.ApprovedAt = &at
	}
	return nil
}

type extensionFixture struct {
	svc      *ExtensionService
	repo     *memExtensions
	lectures *memLectures
	audit    *auditTrail
	lecture  *models.LectureDetail
	start    time.Time
}

func newExtensionFixture() *extensionFixture {
	assignments := stubAssignments{"tc-1": assignment("tc-1", "teacher-1")}
	lectures := newMemLectures(assignments)
	start := time.Date(2024, 9, 9, 4, 0, 0, 0, time.UTC)
	lecture := lectures.add(models.Lecture{TeacherCourseID: "tc-1", StartsAt: start, EndsAt: start.Add(time.Hour)})
	repo := newMemExtensions()
	audit := &auditTrail{}
	svc := NewExtensionService(repo, lectures, audit, DefaultWindowRules(), nil, nil)
	return &extensionFixture{svc: svc, repo: repo, lectures: lectures, audit: audit, lecture: lecture, start: start}
}

func (f *extensionFixture) at(offset time.Duration) {
	f.svc.now = func() time.Time { return f.start.Add(offset) }
}

func missedRequest() models.CreateExtensionRequest {
	return models.CreateExtensionRequest{Type: models.ExtensionMissed, Reason: "Network outage in block C"}
}

func TestExtensionRequestMissed(t *testing.T) {
	f := newExtensionFixture()
	f.at(time.Hour)

	ext, err := f.svc.Request(context.Background(), f.lecture.ID, "teacher-1", "user-teacher-1", missedRequest())
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionPending, ext.Status)
	assert.Equal(t, models.ExtensionMissed, ext.Type)

	_, err = f.svc.Request(context.Background(), f.lecture.ID, "teacher-1", "user-teacher-1", missedRequest())
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionExtensionRequest, f.audit.entries[0].Action)
}

func TestExtensionRequestEligibility(t *testing.T) {
	cases := map[string]struct {
		offset        time.Duration
		hasAttendance bool
		kind          models.ExtensionType
		want          *appErrors.Error
	}{
		"window still open":        {offset: 5 * time.Minute, kind: models.ExtensionMissed, want: appErrors.ErrConflict},
		"edit window still open":   {offset: 15 * time.Minute, hasAttendance: true, kind: models.ExtensionEdit, want: appErrors.ErrConflict},
		"missed but marked":        {offset: time.Hour, hasAttendance: true, kind: models.ExtensionMissed, want: appErrors.ErrValidation},
		"edit without attendance":  {offset: time.Hour, kind: models.ExtensionEdit, want: appErrors.ErrValidation},
		"not started":              {offset: -time.Hour, kind: models.ExtensionMissed, want: appErrors.ErrValidation},
		"edit after window":        {offset: time.Hour, hasAttendance: true, kind: models.ExtensionEdit},
		"missed after mark window": {offset: 11 * time.Minute, kind: models.ExtensionMissed},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newExtensionFixture()
			f.lectures.lectures[f.lecture.ID].HasAttendance = tc.hasAttendance
			f.at(tc.offset)

			req := models.CreateExtensionRequest{Type: tc.kind, Reason: "Forgot to submit"}
			_, err := f.svc.Request(context.Background(), f.lecture.ID, "teacher-1", "user-teacher-1", req)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestExtensionRequestGuards(t *testing.T) {
	f := newExtensionFixture()
	f.at(time.Hour)

	_, err := f.svc.Request(context.Background(), f.lecture.ID, "teacher-2", "user-teacher-2", missedRequest())
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Request(context.Background(), f.lecture.ID, "teacher-1", "user-teacher-1", models.CreateExtensionRequest{Type: "Later", Reason: "Because"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	f.lectures.lectures[f.lecture.ID].Cancelled = true
	_, err = f.svc.Request(context.Background(), f.lecture.ID, "teacher-1", "user-teacher-1", missedRequest())
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestExtensionDecide(t *testing.T) {
	f := newExtensionFixture()
	f.at(time.Hour)
	ext, err := f.svc.Request(context.Background(), f.lecture.ID, "teacher-1", "user-teacher-1", missedRequest())
	require.NoError(t, err)

	f.at(2 * time.Hour)
	decided, err := f.svc.Decide(context.Background(), ext.ID, "user-admin", DecideExtensionRequest{Approve: true})
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionApproved, decided.Status)
	require.NotNil(t, decided.ApprovedAt)
	assert.Equal(t, f.start.Add(2*time.Hour), *decided.ApprovedAt)

	_, err = f.svc.Decide(context.Background(), ext.ID, "user-admin", DecideExtensionRequest{Approve: false})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = f.svc.Request(context.Background(), f.lecture.ID, "teacher-1", "user-teacher-1", missedRequest())
	assert.ErrorIs(t, err, appErrors.ErrConflict, "an approved extension keeps the window open")

	_, err = f.svc.Decide(context.Background(), "missing", "user-admin", DecideExtensionRequest{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Len(t, f.audit.entries, 2)
}

func TestExtensionReject(t *testing.T) {
	f := newExtensionFixture()
	f.at(time.Hour)
	ext, err := f.svc.Request(context.Background(), f.lecture.ID, "teacher-1", "user-teacher-1", missedRequest())
	require.NoError(t, err)

	decided, err := f.svc.Decide(context.Background(), ext.ID, "user-admin", DecideExtensionRequest{Approve: false})
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionRejected, decided.Status)
	assert.Nil(t, decided.ApprovedAt)

	pending := models.ExtensionPending
	rows, page, err := f.svc.List(context.Background(), models.ExtensionFilter{Status: &pending})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 1, page.Page)

	_, err = f.svc.Get(context.Background(), ext.ID, "teacher-2")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}
