// Package challenges holds the rules derived from a challenge's dates and
// participant list. Status is never stored; every caller passes now.
package challenges

import (
	"time"

	"sheger-walk-admin/internal/models"
)

// Status is the lifecycle phase of a challenge at a given instant.
type Status string

const (
	StatusActive    Status = "active"
	StatusUpcoming  Status = "upcoming"
	StatusCompleted Status = "completed"
)

// ReasonBelowRequirement is reported when the top participant did not reach
// the challenge's step requirement.
const ReasonBelowRequirement = "Did not meet minimum step requirement"

// DeriveStatus returns active iff now is within [start, end], upcoming iff the
// challenge has not started and completed otherwise.
func DeriveStatus(c models.Challenge, now time.Time) Status {
	switch {
	case c.StartDate.After(now):
		return StatusUpcoming
	case !now.After(c.EndDate):
		return StatusActive
	default:
		return StatusCompleted
	}
}

// WinnerInfo describes the top participant of a completed challenge.
type WinnerInfo struct {
	Participant models.Participant `json:"participant"`
	IsEligible  bool               `json:"is_eligible"`
	Reason      string             `json:"reason,omitempty"`
}

// HasBadge reports whether the winner badge may be rendered.
func (w *WinnerInfo) HasBadge() bool {
	return w != nil && w.IsEligible
}

// Winner returns nil unless the challenge is completed and has participants.
// The participant list is expected to be sorted by steps descending.
func Winner(c models.Challenge, now time.Time) *WinnerInfo {
	if DeriveStatus(c, now) != StatusCompleted || len(c.ParticipantsList) == 0 {
		return nil
	}
	top := c.ParticipantsList[0]
	info := &WinnerInfo{
		Participant: top,
		IsEligible:  top.Steps >= c.StepsRequired,
	}
	if !info.IsEligible {
		info.Reason = ReasonBelowRequirement
	}
	return info
}

// ProgressClass is a participant's completion bucket.
type ProgressClass string

const (
	ProgressCompleted  ProgressClass = "completed"
	ProgressInProgress ProgressClass = "in_progress"
	ProgressNotStarted ProgressClass = "not_started"
)

// ClassifyParticipant buckets one participant. Nobody has started an upcoming
// challenge; otherwise progress >= 100 completes, any steps mean in progress.
func ClassifyParticipant(c models.Challenge, p models.Participant, now time.Time) ProgressClass {
	if DeriveStatus(c, now) == StatusUpcoming {
		return ProgressNotStarted
	}
	switch {
	case p.Progress >= 100:
		return ProgressCompleted
	case p.Steps > 0:
		return ProgressInProgress
	default:
		return ProgressNotStarted
	}
}

// CompletedParticipants counts participants with progress of at least 100%.
func CompletedParticipants(c models.Challenge) int {
	n := 0
	for _, p := range c.ParticipantsList {
		if p.Progress >= 100 {
			n++
		}
	}
	return n
}

// Countdown returns the time left until the next boundary: the start of an
// upcoming challenge or the end of an active one. Completed challenges
// return zero.
func Countdown(c models.Challenge, now time.Time) time.Duration {
	switch DeriveStatus(c, now) {
	case StatusUpcoming:
		return c.StartDate.Sub(now)
	case StatusActive:
		return c.EndDate.Sub(now)
	}
	return 0
}
