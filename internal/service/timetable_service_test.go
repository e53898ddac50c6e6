package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

var campusTZ = time.FixedZone("PKT", 5*60*60)

type stubAssignments map[string]models.TeacherCourseDetail

func (s stubAssignments) Owned(ctx context.Context, id, teacherID string) (*models.TeacherCourseDetail, error) {
	tc, ok := s[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher course not found")
	}
	if teacherID != "" && tc.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course is not assigned to you")
	}
	return &tc, nil
}

func assignment(id, teacherID string) models.TeacherCourseDetail {
	return models.TeacherCourseDetail{TeacherCourse: models.TeacherCourse{ID: id, TeacherID: teacherID, CourseID: "course-1", SectionID: "sec-a"}}
}

type memRules struct {
	rules map[string]*models.TimetableRule
}

func newMemRules() *memRules { return &memRules{rules: map[string]*models.TimetableRule{}} }

func (m *memRules) ListByTeacherCourse(ctx context.Context, teacherCourseID string) ([]models.TimetableRule, error) {
	var out []models.TimetableRule
	for _, r := range m.rules {
		if r.TeacherCourseID == teacherCourseID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memRules) FindByID(ctx context.Context, id string) (*models.TimetableRule, error) {
	if r, ok := m.rules[id]; ok {
		copy := *r
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memRules) Create(ctx context.Context, rule *models.TimetableRule) error {
	rule.ID = fmt.Sprintf("rule-%d", len(m.rules)+1)
	copy := *rule
	m.rules[rule.ID] = &copy
	return nil
}

func (m *memRules) Update(ctx context.Context, rule *models.TimetableRule) error {
	if _, ok := m.rules[rule.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *rule
	m.rules[rule.ID] = &copy
	return nil
}

func (m *memRules) Deactivate(ctx context.Context, id string) error {
	r, ok := m.rules[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Active = false
	return nil
}

// memLectures keys lectures by id and rejects a second lecture in the same slot.
type memLectures struct {
	lectures map[string]*models.LectureDetail
	teachers map[string]string
}

func newMemLectures(assignments stubAssignments) *memLectures {
	teachers := map[string]string{}
	for id, tc := range assignments {
		teachers[id] = tc.TeacherID
	}
	return &memLectures{lectures: map[string]*models.LectureDetail{}, teachers: teachers}
}

func (m *memLectures) add(l models.Lecture) *models.LectureDetail {
	if l.ID == "" {
		l.ID = fmt.Sprintf("lec-%d", len(m.lectures)+1)
	}
	detail := &models.LectureDetail{Lecture: l, TeacherID: m.teachers[l.TeacherCourseID], CourseCode: "CS101", CourseTitle: "Programming", SectionName: "BSCS-A", TeacherName: "Dr. Khan"}
	m.lectures[l.ID] = detail
	return detail
}

func (m *memLectures) taken(l models.Lecture) bool {
	for _, existing := range m.lectures {
		if existing.TeacherCourseID == l.TeacherCourseID && existing.StartsAt.Equal(l.StartsAt) {
			return true
		}
	}
	return false
}

func (m *memLectures) List(ctx context.Context, filter models.LectureFilter) ([]models.LectureDetail, int, error) {
	var out []models.LectureDetail
	for _, l := range m.lectures {
		if filter.TeacherCourseID != "" && l.TeacherCourseID != filter.TeacherCourseID {
			continue
		}
		if filter.TeacherID != "" && l.TeacherID != filter.TeacherID {
			continue
		}
		if l.Cancelled && !filter.IncludeCanceled {
			continue
		}
		out = append(out, *l)
	}
	return out, len(out), nil
}

func (m *memLectures) FindDetail(ctx context.Context, id string) (*models.LectureDetail, error) {
	if l, ok := m.lectures[id]; ok {
		copy := *l
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memLectures) Create(ctx context.Context, lecture *models.Lecture) error {
	lecture.ID = m.add(*lecture).ID
	return nil
}

func (m *memLectures) BulkCreate(ctx context.Context, lectures []models.Lecture) (int, error) {
	created := 0
	for _, l := range lectures {
		if m.taken(l) {
			continue
		}
		m.add(l)
		created++
	}
	return created, nil
}

func (m *memLectures) Reschedule(ctx context.Context, id string, startsAt, endsAt time.Time, room *string) error {
	l, ok := m.lectures[id]
	if !ok {
		return sql.ErrNoRows
	}
	l.StartsAt, l.EndsAt, l.Override = startsAt, endsAt, true
	if room != nil {
		l.Room = room
	}
	return nil
}

func (m *memLectures) Cancel(ctx context.Context, id string) error {
	l, ok := m.lectures[id]
	if !ok {
		return sql.ErrNoRows
	}
	l.Cancelled = true
	return nil
}

func newTimetableServiceForTest() (*TimetableService, *memRules, *memLectures) {
	assignments := stubAssignments{"tc-1": assignment("tc-1", "teacher-1")}
	rules := newMemRules()
	lectures := newMemLectures(assignments)
	return NewTimetableService(rules, lectures, assignments, campusTZ, nil, nil), rules, lectures
}

func weeklyRequest() TimetableRuleRequest {
	return TimetableRuleRequest{
		TeacherCourseID: "tc-1",
		DaysOfWeek:      []int{1, 3, 1},
		StartTime:       "09:00",
		DurationMinutes: 90,
		StartDate:       "2024-09-02",
		EndDate:         "2024-09-15",
	}
}

func TestPlanLecturesUsesCampusTimezone(t *testing.T) {
	rule := models.TimetableRule{
		ID:              "rule-1",
		TeacherCourseID: "tc-1",
		DaysOfWeek:      pq.Int64Array{1, 3},
		StartTime:       "09:00",
		DurationMinutes: 90,
		StartDate:       time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2024, 9, 15, 0, 0, 0, 0, time.UTC),
	}

	lectures, err := PlanLectures(rule, campusTZ)
	require.NoError(t, err)
	require.Len(t, lectures, 4)

	assert.Equal(t, time.Date(2024, 9, 2, 4, 0, 0, 0, time.UTC), lectures[0].StartsAt)
	assert.Equal(t, time.Date(2024, 9, 2, 5, 30, 0, 0, time.UTC), lectures[0].EndsAt)
	assert.Equal(t, time.Date(2024, 9, 4, 4, 0, 0, 0, time.UTC), lectures[1].StartsAt)
	assert.Equal(t, time.Date(2024, 9, 11, 4, 0, 0, 0, time.UTC), lectures[3].StartsAt)
	for _, l := range lectures {
		require.NotNil(t, l.TimetableRuleID)
		assert.Equal(t, "rule-1", *l.TimetableRuleID)
	}
}

func TestTimetableCreateAndGenerate(t *testing.T) {
	svc, rules, lectures := newTimetableServiceForTest()
	req := weeklyRequest()
	req.Generate = true

	rule, result, err := svc.Create(context.Background(), req, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, pq.Int64Array{1, 3}, rule.DaysOfWeek)
	require.NotNil(t, result)
	assert.Equal(t, 4, result.Created)
	assert.Equal(t, 0, result.Skipped)
	assert.Len(t, lectures.lectures, 4)
	assert.Len(t, rules.rules, 1)

	again, err := svc.Generate(context.Background(), rule.ID, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 4, again.Skipped)
}

func TestTimetableRejectsBadRanges(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest()

	backwards := weeklyRequest()
	backwards.EndDate = "2024-08-01"
	_, _, err := svc.Create(context.Background(), backwards, "teacher-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	tooLong := weeklyRequest()
	tooLong.EndDate = "2025-12-31"
	_, _, err = svc.Create(context.Background(), tooLong, "teacher-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	badDay := weeklyRequest()
	badDay.DaysOfWeek = []int{7}
	_, _, err = svc.Create(context.Background(), badDay, "teacher-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestTimetableOwnership(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest()

	_, _, err := svc.Create(context.Background(), weeklyRequest(), "teacher-2")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	rule, _, err := svc.Create(context.Background(), weeklyRequest(), "")
	require.NoError(t, err)

	err = svc.Deactivate(context.Background(), rule.ID, "teacher-2")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestTimetableGenerateInactiveRule(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest()
	rule, _, err := svc.Create(context.Background(), weeklyRequest(), "teacher-1")
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(context.Background(), rule.ID, "teacher-1"))

	_, err = svc.Generate(context.Background(), rule.ID, "teacher-1")
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestTimetableUpdateCannotMoveCourse(t *testing.T) {
	svc, _, _ := newTimetableServiceForTest()
	rule, _, err := svc.Create(context.Background(), weeklyRequest(), "teacher-1")
	require.NoError(t, err)

	moved := weeklyRequest()
	moved.TeacherCourseID = "tc-2"
	_, err = svc.Update(context.Background(), rule.ID, moved, "teacher-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	changed := weeklyRequest()
	changed.StartTime = "14:00"
	updated, err := svc.Update(context.Background(), rule.ID, changed, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, "14:00", updated.StartTime)
}
