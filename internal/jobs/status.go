// Package jobs defines the records both pipelines exchange with the record store.
//
// Application status graph:
//
//	(none) ──► draft ──► applied ──► applied
//
// applied is terminal. Re-entering applied is allowed and is a no-op.
package jobs

import "fmt"

// Status values mirror the application_status column.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusApplied Status = "applied"
)

// validTransitions lists every allowed (from -> to) pair.
var validTransitions = map[Status][]Status{
	"":            {StatusDraft, StatusApplied},
	StatusDraft:   {StatusDraft, StatusApplied},
	StatusApplied: {StatusApplied},
}

var rank = map[Status]int{
	"":            0,
	StatusDraft:   1,
	StatusApplied: 2,
}

// ParseStatus converts a raw string to a Status, returning an error for unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusDraft, StatusApplied:
		return st, nil
	}
	return "", fmt.Errorf("unknown application status %q", s)
}

// IsTransitionAllowed returns true when moving from -> to is permitted.
// The empty status stands for an application that does not exist yet.
func IsTransitionAllowed(from, to Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Advance returns the status an application ends up in when a write requests next
// while the stored row is in current. It never returns a lower status than current.
func Advance(current, next Status) Status {
	if next == "" {
		next = StatusDraft
	}
	if IsTransitionAllowed(current, next) {
		return next
	}
	if rank[current] >= rank[next] {
		return current
	}
	return next
}
