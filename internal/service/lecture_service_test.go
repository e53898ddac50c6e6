package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

func newLectureServiceForTest() (*LectureService, *memLectures) {
	assignments := stubAssignments{"tc-1": assignment("tc-1", "teacher-1")}
	rules := newMemRules()
	rules.rules["rule-1"] = &models.TimetableRule{
		ID:              "rule-1",
		TeacherCourseID: "tc-1",
		DaysOfWeek:      pq.Int64Array{1},
		StartTime:       "09:00",
		DurationMinutes: 60,
		StartDate:       time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC),
		Active:          true,
	}
	lectures := newMemLectures(assignments)
	return NewLectureService(lectures, rules, assignments, campusTZ, nil, nil), lectures
}

func TestLectureCreateAdHoc(t *testing.T) {
	svc, _ := newLectureServiceForTest()
	room := "LT-3"

	lecture, err := svc.Create(context.Background(), CreateLectureRequest{
		TeacherCourseID: "tc-1",
		Date:            "2024-10-05",
		StartTime:       "11:30",
		DurationMinutes: 60,
		Room:            &room,
	}, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 10, 5, 6, 30, 0, 0, time.UTC), lecture.StartsAt)
	assert.Equal(t, time.Date(2024, 10, 5, 7, 30, 0, 0, time.UTC), lecture.EndsAt)
	assert.Nil(t, lecture.TimetableRuleID)
	assert.Equal(t, "teacher-1", lecture.TeacherID)
}

func TestLectureCreateWithinRuleRange(t *testing.T) {
	svc, _ := newLectureServiceForTest()
	ruleID := "rule-1"
	req := CreateLectureRequest{
		TeacherCourseID: "tc-1",
		TimetableRuleID: &ruleID,
		Date:            "2025-01-10",
		StartTime:       "09:00",
		DurationMinutes: 60,
	}

	_, err := svc.Create(context.Background(), req, "teacher-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Contains(t, err.Error(), "2024-09-02")

	req.Date = "2024-12-20"
	lecture, err := svc.Create(context.Background(), req, "teacher-1")
	require.NoError(t, err)
	require.NotNil(t, lecture.TimetableRuleID)
	assert.True(t, lecture.Override)
}

func TestLectureCreateOtherTeacherForbidden(t *testing.T) {
	svc, _ := newLectureServiceForTest()
	_, err := svc.Create(context.Background(), CreateLectureRequest{
		TeacherCourseID: "tc-1",
		Date:            "2024-10-05",
		StartTime:       "11:30",
		DurationMinutes: 60,
	}, "teacher-9")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestLectureReschedule(t *testing.T) {
	svc, store := newLectureServiceForTest()
	ruleID := "rule-1"
	existing := store.add(models.Lecture{
		TeacherCourseID: "tc-1",
		TimetableRuleID: &ruleID,
		StartsAt:        time.Date(2024, 9, 9, 4, 0, 0, 0, time.UTC),
		EndsAt:          time.Date(2024, 9, 9, 5, 0, 0, 0, time.UTC),
	})

	moved, err := svc.Reschedule(context.Background(), existing.ID, RescheduleLectureRequest{Date: "2024-09-10", StartTime: "10:00"}, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 9, 10, 5, 0, 0, 0, time.UTC), moved.StartsAt)
	assert.Equal(t, time.Hour, moved.EndsAt.Sub(moved.StartsAt))
	assert.True(t, moved.Override)

	_, err = svc.Reschedule(context.Background(), existing.ID, RescheduleLectureRequest{Date: "2024-08-30", StartTime: "10:00"}, "teacher-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestLectureMutationsBlockedByAttendance(t *testing.T) {
	svc, store := newLectureServiceForTest()
	marked := store.add(models.Lecture{
		TeacherCourseID: "tc-1",
		StartsAt:        time.Date(2024, 9, 9, 4, 0, 0, 0, time.UTC),
		EndsAt:          time.Date(2024, 9, 9, 5, 0, 0, 0, time.UTC),
	})
	marked.HasAttendance = true

	_, err := svc.Reschedule(context.Background(), marked.ID, RescheduleLectureRequest{Date: "2024-09-10", StartTime: "10:00"}, "teacher-1")
	assert.ErrorIs(t, err, appErrors.ErrAttendanceLocked)
	assert.ErrorIs(t, svc.Cancel(context.Background(), marked.ID, "teacher-1"), appErrors.ErrAttendanceLocked)
}

func TestLectureCancel(t *testing.T) {
	svc, store := newLectureServiceForTest()
	lecture := store.add(models.Lecture{
		TeacherCourseID: "tc-1",
		StartsAt:        time.Date(2024, 9, 9, 4, 0, 0, 0, time.UTC),
		EndsAt:          time.Date(2024, 9, 9, 5, 0, 0, 0, time.UTC),
	})

	assert.ErrorIs(t, svc.Cancel(context.Background(), lecture.ID, "teacher-2"), appErrors.ErrForbidden)
	require.NoError(t, svc.Cancel(context.Background(), lecture.ID, "teacher-1"))
	assert.True(t, store.lectures[lecture.ID].Cancelled)
	assert.ErrorIs(t, svc.Cancel(context.Background(), lecture.ID, "teacher-1"), appErrors.ErrConflict)
	assert.ErrorIs(t, svc.Cancel(context.Background(), "missing", ""), appErrors.ErrNotFound)
}

func TestLectureListRejectsInvertedRange(t *testing.T) {
	svc, _ := newLectureServiceForTest()
	from := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, -1)
	_, _, err := svc.List(context.Background(), models.LectureFilter{From: &from, To: &to})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestScheduleTemplateAndExport(t *testing.T) {
	svc, store := newLectureServiceForTest()
	topic := "Pointers, arrays"
	store.add(models.Lecture{
		TeacherCourseID: "tc-1",
		StartsAt:        time.Date(2024, 9, 9, 4, 0, 0, 0, time.UTC),
		EndsAt:          time.Date(2024, 9, 9, 5, 0, 0, 0, time.UTC),
		Topic:           &topic,
	})

	template, err := svc.ScheduleTemplate()
	require.NoError(t, err)
	assert.Equal(t, "date,start_time,duration_minutes,room,topic", strings.TrimSpace(string(template)))

	content, err := svc.ExportSchedule(context.Background(), models.LectureFilter{TeacherCourseID: "tc-1"})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "date,start_time,end_time,course,section,teacher,room,topic,status", lines[0])
	assert.Equal(t, `2024-09-09,09:00,10:00,CS101 Programming,BSCS-A,Dr. Khan,,"Pointers, arrays",scheduled`, lines[1])
}

func TestImportSchedule(t *testing.T) {
	svc, store := newLectureServiceForTest()
	store.add(models.Lecture{
		TeacherCourseID: "tc-1",
		StartsAt:        time.Date(2024, 9, 9, 4, 0, 0, 0, time.UTC),
		EndsAt:          time.Date(2024, 9, 9, 5, 0, 0, 0, time.UTC),
	})

	csv := strings.Join([]string{
		"Date,Start Time,Duration Minutes,Room,Topic",
		"2024-09-09,09:00,60,LT-1,Already there",
		"2024-09-16,09:00,60,LT-1,Recursion",
		"2024-09-16,09:00,60,LT-1,Again",
		"16/09/2024,9am,5,,",
	}, "\n")

	result, err := svc.ImportSchedule(context.Background(), "tc-1", "teacher-1", "schedule.csv", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Duplicates)
	require.Len(t, result.Invalid, 2)
	assert.Equal(t, 4, result.Invalid[0].Line)
	assert.Equal(t, []string{"duplicate slot in file (first on line 3)"}, result.Invalid[0].Errors)
	assert.Equal(t, 5, result.Invalid[1].Line)
	assert.Len(t, result.Invalid[1].Errors, 3)
	assert.Len(t, store.lectures, 2)
}

func TestImportScheduleMissingColumns(t *testing.T) {
	svc, _ := newLectureServiceForTest()

	_, err := svc.ImportSchedule(context.Background(), "tc-1", "teacher-1", "schedule.csv", strings.NewReader("date,room\n2024-09-16,LT-1"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, []string{"missing column start_time", "missing column duration_minutes"}, appErr.Details)

	_, err = svc.ImportSchedule(context.Background(), "tc-1", "teacher-1", "schedule.pdf", strings.NewReader("x"))
	assert.ErrorIs(t, err, appErrors.ErrUnsupportedFile)
}
