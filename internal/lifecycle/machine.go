// Package lifecycle holds the legal status transitions of an interview session.
// It never touches storage; callers persist the accepted status.
package lifecycle

import (
	"fmt"

	"github.com/yoockh/prepdeck/internal/models"
)

type edgeRule int

const (
	ruleNone edgeRule = iota
	ruleFeedback
	ruleConfirm
	ruleRestore
)

type edge struct {
	from, to models.SessionStatus
}

var edges = map[edge]edgeRule{
	{models.StatusInProgress, models.StatusCompleted}: ruleFeedback,
	{models.StatusInProgress, models.StatusAbandoned}: ruleNone,

	{models.StatusCompleted, models.StatusArchived}: ruleNone,
	{models.StatusAbandoned, models.StatusArchived}: ruleNone,

	// restore returns to the recorded terminal status only
	{models.StatusArchived, models.StatusCompleted}: ruleRestore,
	{models.StatusArchived, models.StatusAbandoned}: ruleRestore,

	{models.StatusArchived, models.StatusDeleted}: ruleNone,

	// skip-archive delete
	{models.StatusCompleted, models.StatusDeleted}: ruleConfirm,
	{models.StatusAbandoned, models.StatusDeleted}: ruleConfirm,
}

// Request carries the facts a transition check needs besides the two states.
type Request struct {
	HasFeedback  bool
	Confirmed    bool
	ArchivedFrom models.SessionStatus
}

// TransitionError names the rejected edge.
type TransitionError struct {
	From   models.SessionStatus
	To     models.SessionStatus
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid transition from %q to %q", e.From, e.To)
	}
	return fmt.Sprintf("invalid transition from %q to %q: %s", e.From, e.To, e.Reason)
}

// Transition returns the accepted next status or a *TransitionError.
func Transition(current, requested models.SessionStatus, req Request) (models.SessionStatus, error) {
	rule, ok := edges[edge{current, requested}]
	if !ok {
		return current, &TransitionError{From: current, To: requested}
	}

	switch rule {
	case ruleFeedback:
		if !req.HasFeedback {
			return current, &TransitionError{From: current, To: requested, Reason: "feedback must be attached"}
		}
	case ruleConfirm:
		if !req.Confirmed {
			return current, &TransitionError{From: current, To: requested, Reason: "deleting without archiving requires confirmation"}
		}
	case ruleRestore:
		if req.ArchivedFrom == "" {
			return current, &TransitionError{From: current, To: requested, Reason: "archived status has no recorded origin"}
		}
		if req.ArchivedFrom != requested {
			return current, &TransitionError{From: current, To: requested, Reason: fmt.Sprintf("session was archived from %q", req.ArchivedFrom)}
		}
	}
	return requested, nil
}

// Allowed reports whether from->to is an edge of the table, ignoring
// the per-edge requirements.
func Allowed(from, to models.SessionStatus) bool {
	_, ok := edges[edge{from, to}]
	return ok
}
