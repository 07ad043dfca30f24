package domain

import (
	"fmt"
	"strings"
	"time"
)

// Draft is the add-element form payload collected before an element exists.
// Only the fields relevant to Kind are read.
type Draft struct {
	Name     string      `json:"name" yaml:"name"`
	Kind     string      `json:"kind" yaml:"kind"`
	Location *Coordinate `json:"location,omitempty" yaml:"location,omitempty"`
	Status   string      `json:"status,omitempty" yaml:"status,omitempty"`
	ParentID string      `json:"parentId,omitempty" yaml:"parentId,omitempty"`

	// HeadEnd
	CapacityPorts int `json:"capacityPorts,omitempty" yaml:"capacityPorts,omitempty"`

	// Splitter
	SplitRatio string `json:"splitRatio,omitempty" yaml:"splitRatio,omitempty"`

	// CustomerDrop
	PlanLabel       string     `json:"planLabel,omitempty" yaml:"planLabel,omitempty"`
	LastPaymentDate *time.Time `json:"lastPaymentDate,omitempty" yaml:"lastPaymentDate,omitempty"`

	// FiberRoute
	Path            []Coordinate `json:"path,omitempty" yaml:"path,omitempty"`
	LengthKm        float64      `json:"lengthKm,omitempty" yaml:"lengthKm,omitempty"`
	CableType       string       `json:"cableType,omitempty" yaml:"cableType,omitempty"`
	CapacityStrands int          `json:"capacityStrands,omitempty" yaml:"capacityStrands,omitempty"`
	UsedStrands     int          `json:"usedStrands,omitempty" yaml:"usedStrands,omitempty"`

	// Complaint
	Priority             string `json:"priority,omitempty" yaml:"priority,omitempty"`
	AssignedTechnicianID string `json:"assignedTechnicianId,omitempty" yaml:"assignedTechnicianId,omitempty"`
}

// Clone returns a copy that shares no pointers or slices with d
func (d Draft) Clone() Draft {
	c := d
	if d.Location != nil {
		l := *d.Location
		c.Location = &l
	}
	if d.LastPaymentDate != nil {
		t := *d.LastPaymentDate
		c.LastPaymentDate = &t
	}
	c.Path = append([]Coordinate(nil), d.Path...)
	return c
}

// Build validates the draft and produces an element with the given id and
// installation time. It does not check the parent reference; that is the
// containment resolver's job.
func (d Draft) Build(id string, installedAt time.Time) (Element, error) {
	kind, err := ParseKind(d.Kind)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(d.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name", ErrMissingRequiredField)
	}

	status := DefaultStatus(kind)
	if strings.TrimSpace(d.Status) != "" {
		if status, err = ParseStatus(kind, d.Status); err != nil {
			return nil, err
		}
	}

	parentID := strings.TrimSpace(d.ParentID)
	if _, contained := kind.ParentKind(); contained && parentID == "" {
		return nil, fmt.Errorf("%w: parentId for %s", ErrMissingRequiredField, kind)
	}
	if _, contained := kind.ParentKind(); !contained && parentID != "" {
		return nil, fmt.Errorf("%w: %s elements do not take a parent", ErrInvalidValue, kind)
	}

	var loc Coordinate
	switch {
	case d.Location != nil:
		loc = *d.Location
	case kind == KindFiberRoute && len(d.Path) > 0:
		loc = d.Path[0]
	default:
		return nil, fmt.Errorf("%w: location", ErrMissingRequiredField)
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	base := Base{
		ID:          id,
		Name:        name,
		Kind:        kind,
		Location:    loc,
		Status:      status,
		InstalledAt: installedAt,
	}

	switch kind {
	case KindHeadEnd:
		if err := positive("capacityPorts", d.CapacityPorts); err != nil {
			return nil, err
		}
		return &HeadEnd{Base: base, CapacityPorts: d.CapacityPorts}, nil

	case KindSplitter:
		ratio, err := ParseSplitRatio(d.SplitRatio)
		if err != nil {
			return nil, err
		}
		return &Splitter{Base: base, SplitRatio: ratio, ParentHeadEndID: parentID}, nil

	case KindCustomerDrop:
		drop := &CustomerDrop{
			Base:             base,
			ParentSplitterID: parentID,
			PlanLabel:        strings.TrimSpace(d.PlanLabel),
		}
		if d.LastPaymentDate != nil {
			t := *d.LastPaymentDate
			drop.LastPaymentDate = &t
		}
		return drop, nil

	case KindFiberRoute:
		if err := ValidatePath(d.Path); err != nil {
			return nil, err
		}
		if err := positive("capacityStrands", d.CapacityStrands); err != nil {
			return nil, err
		}
		if d.UsedStrands < 0 || d.UsedStrands > d.CapacityStrands {
			return nil, fmt.Errorf("%w: usedStrands %d outside 0..%d", ErrInvalidValue, d.UsedStrands, d.CapacityStrands)
		}
		if d.LengthKm < 0 {
			return nil, fmt.Errorf("%w: lengthKm %v", ErrInvalidValue, d.LengthKm)
		}
		return &FiberRoute{
			Base:            base,
			Path:            append([]Coordinate(nil), d.Path...),
			LengthKm:        d.LengthKm,
			CableType:       strings.TrimSpace(d.CableType),
			CapacityStrands: d.CapacityStrands,
			UsedStrands:     d.UsedStrands,
		}, nil

	case KindComplaint:
		priority := PriorityMedium
		if p := strings.TrimSpace(d.Priority); p != "" {
			priority = Priority(strings.ToLower(p))
			if !priority.Valid() {
				return nil, fmt.Errorf("%w: priority %q", ErrInvalidValue, d.Priority)
			}
		}
		return &Complaint{
			Base:                 base,
			CustomerID:           parentID,
			Priority:             priority,
			AssignedTechnicianID: strings.TrimSpace(d.AssignedTechnicianID),
		}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrInvalidKind, d.Kind)
}

func positive(field string, v int) error {
	if v == 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequiredField, field)
	}
	if v < 0 {
		return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidValue, field, v)
	}
	return nil
}
