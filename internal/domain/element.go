package domain

import "time"

// Base holds the fields every element kind shares
type Base struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Kind        Kind       `json:"kind"`
	Location    Coordinate `json:"location"`
	Status      Status     `json:"status"`
	InstalledAt time.Time  `json:"installedAt"`
}

// Element is the closed set of topology node types. The unexported marker
// method keeps the set closed to this package; switch on the concrete type
// to reach kind-specific fields.
type Element interface {
	Common() *Base
	Clone() Element
	element()
}

// HeadEnd is an OLT: the active termination point splitters hang off
type HeadEnd struct {
	Base
	CapacityPorts int `json:"capacityPorts"`

	// Derived
	UsedPorts          int `json:"usedPorts"`
	ChildSplitterCount int `json:"childSplitterCount"`
}

// Splitter is a passive device fanning one upstream fiber out to N legs
type Splitter struct {
	Base
	SplitRatio      SplitRatio `json:"splitRatio"`
	ParentHeadEndID string     `json:"parentHeadEndId"`

	// Derived
	ConnectedCustomerCount int `json:"connectedCustomerCount"`
}

// CustomerDrop is the terminal connection serving one subscriber
type CustomerDrop struct {
	Base
	ParentSplitterID string     `json:"parentSplitterId"`
	PlanLabel        string     `json:"planLabel"`
	LastPaymentDate  *time.Time `json:"lastPaymentDate,omitempty"`
}

// FiberRoute is a physical cable run. Location holds the first point of Path.
type FiberRoute struct {
	Base
	Path            []Coordinate `json:"path"`
	LengthKm        float64      `json:"lengthKm"`
	CableType       string       `json:"cableType"`
	CapacityStrands int          `json:"capacityStrands"`
	UsedStrands     int          `json:"usedStrands"`
}

// Priority of a complaint ticket
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is a known priority
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Complaint is a trouble ticket raised against a customer drop
type Complaint struct {
	Base
	CustomerID           string   `json:"customerId"`
	Priority             Priority `json:"priority"`
	AssignedTechnicianID string   `json:"assignedTechnicianId,omitempty"`
}

func (e *HeadEnd) Common() *Base      { return &e.Base }
func (e *Splitter) Common() *Base     { return &e.Base }
func (e *CustomerDrop) Common() *Base { return &e.Base }
func (e *FiberRoute) Common() *Base   { return &e.Base }
func (e *Complaint) Common() *Base    { return &e.Base }

func (e *HeadEnd) element()      {}
func (e *Splitter) element()     {}
func (e *CustomerDrop) element() {}
func (e *FiberRoute) element()   {}
func (e *Complaint) element()    {}

func (e *HeadEnd) Clone() Element {
	c := *e
	return &c
}

func (e *Splitter) Clone() Element {
	c := *e
	return &c
}

func (e *CustomerDrop) Clone() Element {
	c := *e
	if e.LastPaymentDate != nil {
		t := *e.LastPaymentDate
		c.LastPaymentDate = &t
	}
	return &c
}

func (e *FiberRoute) Clone() Element {
	c := *e
	c.Path = append([]Coordinate(nil), e.Path...)
	return &c
}

func (e *Complaint) Clone() Element {
	c := *e
	return &c
}

// ParentID returns the containment parent reference of e, or "" for kinds
// that are never contained.
func ParentID(e Element) string {
	switch v := e.(type) {
	case *Splitter:
		return v.ParentHeadEndID
	case *CustomerDrop:
		return v.ParentSplitterID
	case *Complaint:
		return v.CustomerID
	case *HeadEnd, *FiberRoute:
		return ""
	}
	return ""
}

// Capacity returns the declared capacity of a capacity-bearing element.
// The boolean is false for kinds without capacity.
func Capacity(e Element) (int, bool) {
	switch v := e.(type) {
	case *HeadEnd:
		return v.CapacityPorts, true
	case *Splitter:
		return v.SplitRatio.Ports(), true
	case *FiberRoute:
		return v.CapacityStrands, true
	case *CustomerDrop, *Complaint:
		return 0, false
	}
	return 0, false
}

// Used returns the current usage counter matching Capacity
func Used(e Element) (int, bool) {
	switch v := e.(type) {
	case *HeadEnd:
		return v.UsedPorts, true
	case *Splitter:
		return v.ConnectedCustomerCount, true
	case *FiberRoute:
		return v.UsedStrands, true
	case *CustomerDrop, *Complaint:
		return 0, false
	}
	return 0, false
}

// IsLive reports whether e still counts toward its parent's usage
func IsLive(e Element) bool {
	return e.Common().Status.Live()
}
