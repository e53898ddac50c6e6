package service

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/noah-isme/campus-attendance-api/internal/models"
)

// Bucket thresholds, in percent.
const (
	GoodThreshold    = 75.0
	WarningThreshold = 65.0
)

// Percentage returns attended/total*100 rounded to two decimals; zero when total is zero.
func Percentage(attended, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(attended)/float64(total)*100*100) / 100
}

// BucketFor labels a percentage: >=75 Good, >=65 Warning, otherwise Critical.
func BucketFor(pct float64) models.AttendanceBucket {
	switch {
	case pct >= GoodThreshold:
		return models.BucketGood
	case pct >= WarningThreshold:
		return models.BucketWarning
	default:
		return models.BucketCritical
	}
}

type groupKey func(f models.AttendanceFact) (key, label string)

func dimensionKey(dim models.ReportDimension, loc *time.Location) (groupKey, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch dim {
	case models.DimensionStudent:
		return func(f models.AttendanceFact) (string, string) {
			return f.StudentID, f.RollNumber + " - " + f.StudentName
		}, nil
	case models.DimensionSection:
		return func(f models.AttendanceFact) (string, string) { return f.SectionID, f.SectionName }, nil
	case models.DimensionCourse:
		return func(f models.AttendanceFact) (string, string) {
			return f.CourseID, f.CourseCode + " - " + f.CourseTitle
		}, nil
	case models.DimensionTeacher:
		return func(f models.AttendanceFact) (string, string) { return f.TeacherID, f.TeacherName }, nil
	case models.DimensionWeek:
		return func(f models.AttendanceFact) (string, string) {
			year, week := f.StartsAt.In(loc).ISOWeek()
			key := fmt.Sprintf("%04d-W%02d", year, week)
			return key, key
		}, nil
	case models.DimensionMonth:
		return func(f models.AttendanceFact) (string, string) {
			key := f.StartsAt.In(loc).Format("2006-01")
			return key, key
		}, nil
	default:
		return nil, fmt.Errorf("unsupported report dimension %q", dim)
	}
}

type tally struct {
	key, label string
	counts     models.StatusCounts
	attended   int
	total      int
}

func (t *tally) add(status models.AttendanceStatus) {
	t.total++
	if status.Attended() {
		t.attended++
	}
	switch status {
	case models.AttendancePresent:
		t.counts.Present++
	case models.AttendanceAbsent:
		t.counts.Absent++
	case models.AttendanceLate:
		t.counts.Late++
	case models.AttendanceLeave:
		t.counts.Leave++
	case models.AttendanceExcused:
		t.counts.Excused++
	}
}

func (t *tally) group() models.ReportGroup {
	pct := Percentage(t.attended, t.total)
	return models.ReportGroup{
		Key:        t.key,
		Label:      t.label,
		Attended:   t.attended,
		Total:      t.total,
		Percentage: pct,
		Bucket:     BucketFor(pct),
		Counts:     t.counts,
	}
}

// Aggregate groups facts by dim. Week and month keys are computed in loc.
// Groups are ordered by key for time dimensions and by label otherwise.
func Aggregate(facts []models.AttendanceFact, dim models.ReportDimension, loc *time.Location) ([]models.ReportGroup, error) {
	keyOf, err := dimensionKey(dim, loc)
	if err != nil {
		return nil, err
	}
	tallies := make(map[string]*tally)
	for _, f := range facts {
		key, label := keyOf(f)
		t, ok := tallies[key]
		if !ok {
			t = &tally{key: key, label: label}
			tallies[key] = t
		}
		t.add(f.Status)
	}

	groups := make([]models.ReportGroup, 0, len(tallies))
	for _, t := range tallies {
		groups = append(groups, t.group())
	}
	byKey := dim == models.DimensionWeek || dim == models.DimensionMonth
	sort.Slice(groups, func(i, j int) bool {
		if byKey || groups[i].Label == groups[j].Label {
			return groups[i].Key < groups[j].Key
		}
		return groups[i].Label < groups[j].Label
	})
	return groups, nil
}

// Overall tallies every fact into a single group.
func Overall(facts []models.AttendanceFact) models.ReportGroup {
	t := &tally{key: "overall", label: "Overall"}
	for _, f := range facts {
		t.add(f.Status)
	}
	return t.group()
}

// Defaulters lists (student, course) pairs whose percentage is strictly below threshold,
// lowest percentage first.
func Defaulters(facts []models.AttendanceFact, threshold float64) []models.Defaulter {
	type pair struct{ student, course string }
	tallies := make(map[pair]*tally)
	samples := make(map[pair]models.AttendanceFact)
	for _, f := range facts {
		k := pair{f.StudentID, f.CourseID}
		t, ok := tallies[k]
		if !ok {
			t = &tally{}
			tallies[k] = t
			samples[k] = f
		}
		t.add(f.Status)
	}

	out := make([]models.Defaulter, 0)
	for k, t := range tallies {
		pct := Percentage(t.attended, t.total)
		if pct >= threshold {
			continue
		}
		f := samples[k]
		out = append(out, models.Defaulter{
			StudentID:   f.StudentID,
			RollNumber:  f.RollNumber,
			StudentName: f.StudentName,
			SectionName: f.SectionName,
			CourseCode:  f.CourseCode,
			CourseTitle: f.CourseTitle,
			Attended:    t.attended,
			Total:       t.total,
			Percentage:  pct,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Percentage != out[j].Percentage {
			return out[i].Percentage < out[j].Percentage
		}
		if out[i].RollNumber != out[j].RollNumber {
			return out[i].RollNumber < out[j].RollNumber
		}
		return out[i].CourseCode < out[j].CourseCode
	})
	return out
}
