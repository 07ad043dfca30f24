package domain

import "errors"

var (
	ErrNotFound             = errors.New("element not found")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidKind          = errors.New("invalid element kind")
	ErrInvalidValue         = errors.New("invalid field value")
	ErrParentNotFound       = errors.New("parent not found")
	ErrParentAtCapacity     = errors.New("parent at capacity")
	ErrCycleDetected        = errors.New("containment cycle detected")
	ErrHasLiveChildren      = errors.New("element has live children")
	ErrMalformedDocument    = errors.New("malformed document")
	ErrCapacityBelowUsage   = errors.New("capacity below current usage")
	ErrIllegalTransition    = errors.New("illegal map state transition")
	ErrAggregateInvariant   = errors.New("aggregate exceeds capacity")
)

// codes is ordered: the first match wins, so more specific errors come first.
var codes = []struct {
	err  error
	code string
}{
	{ErrMalformedDocument, "malformed_document"},
	{ErrNotFound, "not_found"},
	{ErrMissingRequiredField, "missing_required_field"},
	{ErrInvalidKind, "invalid_kind"},
	{ErrInvalidValue, "invalid_value"},
	{ErrParentNotFound, "parent_not_found"},
	{ErrParentAtCapacity, "parent_at_capacity"},
	{ErrCycleDetected, "cycle_detected"},
	{ErrHasLiveChildren, "has_live_children"},
	{ErrCapacityBelowUsage, "capacity_below_usage"},
	{ErrIllegalTransition, "illegal_transition"},
	{ErrAggregateInvariant, "aggregate_invariant"},
}

// Code returns the stable error code for err, or "internal" when err does not
// wrap any domain error.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
