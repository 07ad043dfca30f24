package domain

import (
	"fmt"
	"strings"
)

// Status represents the operational state of an element
type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusMaintenance Status = "maintenance"

	// Complaint-only statuses
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

// DefaultStatus returns the status a freshly created element of kind k gets
func DefaultStatus(k Kind) Status {
	if k == KindComplaint {
		return StatusOpen
	}
	return StatusActive
}

// AllowedFor reports whether s is a legal status for kind k
func (s Status) AllowedFor(k Kind) bool {
	if k == KindComplaint {
		return s == StatusOpen || s == StatusResolved
	}
	return s == StatusActive || s == StatusInactive || s == StatusMaintenance
}

// Live reports whether an element in this status still counts toward its
// parent's utilisation and still pins its parent in place.
func (s Status) Live() bool {
	return s != StatusInactive && s != StatusResolved
}

// Retired returns the soft-removal status for kind k
func Retired(k Kind) Status {
	if k == KindComplaint {
		return StatusResolved
	}
	return StatusInactive
}

// ParseStatus validates a status label against kind k
func ParseStatus(k Kind, raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.AllowedFor(k) {
		return "", fmt.Errorf("%w: status %q not allowed for %s", ErrInvalidValue, raw, k)
	}
	return s, nil
}
