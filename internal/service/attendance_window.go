package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/campus-attendance-api/internal/models"
)

// WindowStatus is the marking state of a lecture at a point in time.
type WindowStatus string

const (
	WindowScheduled WindowStatus = "Scheduled"
	WindowOngoing   WindowStatus = "Ongoing"
	WindowMissed    WindowStatus = "Missed"
	WindowCompleted WindowStatus = "Completed"
	WindowLocked    WindowStatus = "Locked"
)

// WindowRules holds the offsets from lecture start that drive marking.
type WindowRules struct {
	// MarkWindow is how long after start attendance can be taken from scratch.
	MarkWindow time.Duration
	// EditWindow is how long after start existing attendance can still be edited.
	EditWindow time.Duration
	// ExtensionTTL is how long an approved extension stays usable.
	ExtensionTTL time.Duration
}

// DefaultWindowRules returns 10 minutes to mark, 20 to edit and 24 hours per extension.
func DefaultWindowRules() WindowRules {
	return WindowRules{MarkWindow: 10 * time.Minute, EditWindow: 20 * time.Minute, ExtensionTTL: 24 * time.Hour}
}

func (r WindowRules) normalized() WindowRules {
	def := DefaultWindowRules()
	if r.MarkWindow <= 0 {
		r.MarkWindow = def.MarkWindow
	}
	if r.EditWindow < r.MarkWindow {
		r.EditWindow = r.MarkWindow
	}
	if r.ExtensionTTL <= 0 {
		r.ExtensionTTL = def.ExtensionTTL
	}
	return r
}

// WindowInput describes a lecture at the moment of evaluation. End is informational.
type WindowInput struct {
	Start         time.Time
	End           time.Time
	Now           time.Time
	HasAttendance bool
	// Extension is the latest extension for the lecture; only approved ones are honoured.
	Extension *models.ExtensionRequest
}

// WindowState is the evaluator's verdict.
type WindowState struct {
	Status   WindowStatus `json:"status"`
	CanMark  bool         `json:"can_mark"`
	CanEdit  bool         `json:"can_edit"`
	Message  string       `json:"message"`
	ClosesAt *time.Time   `json:"closes_at,omitempty"`
	// ExtensionActive is set when the verdict comes from an approved extension.
	ExtensionActive bool `json:"extension_active"`
}

// EvaluateWindow applies the default rules.
func EvaluateWindow(in WindowInput) WindowState {
	return DefaultWindowRules().Evaluate(in)
}

// Evaluate decides whether attendance for the lecture can be marked or edited now.
// Boundaries are inclusive on the earlier bucket: exactly MarkWindow after start is
// still Ongoing and exactly EditWindow after start is still editable.
func (r WindowRules) Evaluate(in WindowInput) WindowState {
	r = r.normalized()
	elapsed := in.Now.Sub(in.Start)

	if elapsed < 0 {
		return WindowState{
			Status:  WindowScheduled,
			Message: fmt.Sprintf("Lecture starts at %s; attendance opens then.", in.Start.Format("15:04")),
		}
	}

	if elapsed <= r.MarkWindow {
		closes := in.Start.Add(r.MarkWindow)
		if in.HasAttendance {
			closes = in.Start.Add(r.EditWindow)
		}
		return WindowState{
			Status:   WindowOngoing,
			CanMark:  true,
			CanEdit:  in.HasAttendance,
			Message:  "Attendance is open.",
			ClosesAt: &closes,
		}
	}

	var base WindowState
	switch {
	case elapsed <= r.EditWindow && in.HasAttendance:
		closes := in.Start.Add(r.EditWindow)
		return WindowState{
			Status:   WindowCompleted,
			CanMark:  true,
			CanEdit:  true,
			Message:  "Attendance taken; edits are allowed until " + closes.Format("15:04") + ".",
			ClosesAt: &closes,
		}
	case in.HasAttendance:
		base = WindowState{Status: WindowCompleted, Message: "Attendance is locked. Request an edit extension to change it."}
	default:
		base = WindowState{Status: WindowMissed, Message: "Attendance was not taken in time. Request an extension to mark it."}
	}

	return r.applyExtension(base, in)
}

func (r WindowRules) applyExtension(base WindowState, in WindowInput) WindowState {
	ext := in.Extension
	if ext == nil || ext.Status != models.ExtensionApproved || ext.ApprovedAt == nil {
		return base
	}
	if ext.Type == models.ExtensionEdit && !in.HasAttendance {
		return base
	}

	deadline := ext.ApprovedAt.Add(r.ExtensionTTL)
	if in.Now.After(deadline) {
		return WindowState{
			Status:  WindowLocked,
			Message: "Extension expired on " + deadline.Format("2006-01-02 15:04") + ". Contact an administrator.",
		}
	}
	return WindowState{
		Status:          base.Status,
		CanMark:         true,
		CanEdit:         in.HasAttendance,
		Message:         "Extension approved; attendance is open until " + deadline.Format("2006-01-02 15:04") + ".",
		ClosesAt:        &deadline,
		ExtensionActive: true,
	}
}
