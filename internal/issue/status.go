package issue

import (
	"time"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
)

// transitions lists the allowed non-identity edges of the status machine.
var transitions = map[Status][]Status{
	StatusToDo:       {StatusInProgress},
	StatusInProgress: {StatusDone},
	StatusDone:       {StatusInProgress},
}

// CanTransition reports whether an issue in status from may move to status to.
// Moving to the current status is always allowed.
func CanTransition(from, to Status) bool {
	if !from.IsValid() || !to.IsValid() {
		return false
	}
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s in one move, excluding s.
func NextStatuses(s Status) []Status {
	next := transitions[s]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// Transition moves it to target. It returns changed=false without touching
// the issue when target equals the current status.
func Transition(it *Issue, target Status, now time.Time) (bool, error) {
	if it == nil {
		return false, apierr.New(apierr.NotFound, "issue not found")
	}
	if !CanTransition(it.Status, target) {
		return false, ErrTransition(it, target)
	}
	if it.Status == target {
		return false, nil
	}

	old := it.Status
	it.Status = target
	updateTimestamps(it, old, target, now)
	it.Touch(now)
	return true, nil
}

// updateTimestamps maintains StartedAt and CompletedAt.
//   - StartedAt is set on the first move out of todo and never overwritten.
//   - CompletedAt is set on a move to done and cleared on reopen.
func updateTimestamps(it *Issue, oldStatus, newStatus Status, now time.Time) {
	if it.StartedAt == nil && oldStatus == StatusToDo && newStatus != StatusToDo {
		t := now
		it.StartedAt = &t
	}

	if newStatus == StatusDone {
		t := now
		it.CompletedAt = &t
		if it.StartedAt == nil {
			it.StartedAt = &t
		}
	} else if oldStatus == StatusDone {
		it.CompletedAt = nil
	}
}

// ErrTransition builds the INVALID_TRANSITION error for moving it to target.
func ErrTransition(it *Issue, target Status) *apierr.Error {
	allowed := make([]string, 0, len(transitions[it.Status]))
	for _, s := range transitions[it.Status] {
		allowed = append(allowed, string(s))
	}
	return apierr.Newf(apierr.InvalidTransition,
		"cannot move %s from %q to %q", it.Key, it.Status, target).
		WithDetails(map[string]any{
			"issue":   it.Key,
			"from":    string(it.Status),
			"to":      string(target),
			"allowed": allowed,
		})
}
