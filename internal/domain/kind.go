package domain

import (
	"fmt"
	"strings"
)

// Kind identifies the concrete type of a topology element
type Kind string

const (
	KindHeadEnd      Kind = "head_end"
	KindSplitter     Kind = "splitter"
	KindCustomerDrop Kind = "customer_drop"
	KindFiberRoute   Kind = "fiber_route"
	KindComplaint    Kind = "complaint"
)

// Kinds returns every kind in canonical order. Rendering and listing order by
// kind follows this slice.
func Kinds() []Kind {
	return []Kind{KindHeadEnd, KindSplitter, KindCustomerDrop, KindFiberRoute, KindComplaint}
}

// Rank returns the position of k in Kinds, or -1 for an unknown kind
func (k Kind) Rank() int {
	for i, known := range Kinds() {
		if k == known {
			return i
		}
	}
	return -1
}

// Valid reports whether k is one of the known kinds
func (k Kind) Valid() bool {
	return k.Rank() >= 0
}

// IDPrefix returns the prefix used when assigning element ids
func (k Kind) IDPrefix() string {
	switch k {
	case KindHeadEnd:
		return "OLT"
	case KindSplitter:
		return "SPL"
	case KindCustomerDrop:
		return "CUS"
	case KindFiberRoute:
		return "FBR"
	case KindComplaint:
		return "CMP"
	}
	return ""
}

// ParentKind returns the kind an element of kind k must be placed under.
// The boolean is false for root and standalone kinds.
func (k Kind) ParentKind() (Kind, bool) {
	switch k {
	case KindSplitter:
		return KindHeadEnd, true
	case KindCustomerDrop:
		return KindSplitter, true
	case KindComplaint:
		return KindCustomerDrop, true
	}
	return "", false
}

// kindAliases accepts the labels used by the portal forms and older exports
var kindAliases = map[string]Kind{
	"head_end":      KindHeadEnd,
	"headend":       KindHeadEnd,
	"olt":           KindHeadEnd,
	"splitter":      KindSplitter,
	"customer_drop": KindCustomerDrop,
	"customerdrop":  KindCustomerDrop,
	"customer":      KindCustomerDrop,
	"fiber_route":   KindFiberRoute,
	"fiberroute":    KindFiberRoute,
	"route":         KindFiberRoute,
	"fiber":         KindFiberRoute,
	"complaint":     KindComplaint,
}

// ParseKind converts a user-supplied kind label into a Kind
func ParseKind(s string) (Kind, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "-", "_")
	if k, ok := kindAliases[key]; ok {
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}
