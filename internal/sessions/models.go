package sessions

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a bootstrap session.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusCreated       Status = "created"
	StatusActivated     Status = "activated"
	StatusDepsInstalled Status = "deps_installed"
)

var allStatuses = []Status{
	StatusUninitialized,
	StatusCreated,
	StatusActivated,
	StatusDepsInstalled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// forwardTransitions encodes the one-directional lifecycle. Anything not
// listed here is rejected by Store.Advance.
var forwardTransitions = map[Status]Status{
	StatusUninitialized: StatusCreated,
	StatusCreated:       StatusActivated,
	StatusActivated:     StatusDepsInstalled,
}

// Session represents one bootstrap run against an environment root.
type Session struct {
	ID           int64
	SessionID    string
	Root         string
	ManifestPath string
	Status       Status
	PackageCount int
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// CanAdvance reports whether moving from one status to another follows the
// lifecycle order.
func CanAdvance(from, to Status) bool {
	next, ok := forwardTransitions[from]
	return ok && next == to
}

// IsComplete reports whether the session finished the whole bootstrap.
func (s *Session) IsComplete() bool {
	return s != nil && s.Status == StatusDepsInstalled
}

// StatsSummary aggregates session counts per lifecycle state.
type StatsSummary struct {
	Total         int
	Uninitialized int
	Created       int
	Activated     int
	Installed     int
	WithErrors    int
}
