// Package mapstate models the map's interaction state: the current mode, the
// selected element with its detail view, and the add-element dialog with the
// draft it collects.
package mapstate

import (
	"fmt"

	"fibermap/internal/domain"
	"fibermap/internal/topology"
)

// Snapshot is the renderer-facing view of the machine
type Snapshot struct {
	Mode       Mode          `json:"mode"`
	Selection  string        `json:"selection,omitempty"`
	DetailOpen bool          `json:"detailOpen"`
	DialogOpen bool          `json:"dialogOpen"`
	Draft      *domain.Draft `json:"draft,omitempty"`
	Error      string        `json:"error,omitempty"`
	ErrorCode  string        `json:"errorCode,omitempty"`
}

// Machine is the interaction state machine. It is not safe for concurrent
// use.
type Machine struct {
	mode       Mode
	selection  string
	detailOpen bool
	draft      *domain.Draft
	lastErr    error
}

// New returns a machine in view mode with nothing selected
func New() *Machine {
	return &Machine{mode: ModeView}
}

// Clone returns an independent copy
func (m *Machine) Clone() *Machine {
	c := *m
	if m.draft != nil {
		d := m.draft.Clone()
		c.draft = &d
	}
	return &c
}

// Mode returns the current mode
func (m *Machine) Mode() Mode {
	return m.mode
}

// Selection returns the selected element id, or ""
func (m *Machine) Selection() string {
	return m.selection
}

// Err returns the last submit failure shown in the dialog
func (m *Machine) Err() error {
	return m.lastErr
}

// SetMode performs a user-triggered mode switch. Entering add opens the
// dialog with an empty draft; leaving add discards it.
func (m *Machine) SetMode(next Mode) error {
	if next < ModeView || next > ModeAdd {
		return fmt.Errorf("%w: %s", domain.ErrInvalidValue, next)
	}
	if !m.mode.canSwitch(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, m.mode, next)
	}
	if m.mode == next {
		return nil
	}
	if m.mode == ModeAdd {
		m.discardDraft()
	}
	m.mode = next
	if next == ModeAdd {
		m.draft = &domain.Draft{}
		m.lastErr = nil
	}
	return nil
}

// Select opens the read-only detail view for id. Selection is independent
// of mode.
func (m *Machine) Select(reg *topology.Registry, id string) error {
	if _, err := reg.Get(id); err != nil {
		return err
	}
	m.selection = id
	m.detailOpen = true
	return nil
}

// ClearSelection closes the detail view
func (m *Machine) ClearSelection() {
	m.selection = ""
	m.detailOpen = false
}

// UpdateDraft replaces the draft being collected in the add dialog
func (m *Machine) UpdateDraft(d domain.Draft) error {
	if m.mode != ModeAdd {
		return fmt.Errorf("%w: no add dialog open in %s mode", domain.ErrIllegalTransition, m.mode)
	}
	d = d.Clone()
	m.draft = &d
	return nil
}

// Submit asks the registry to create the drafted element. Create and
// placement validation happen as one step inside the registry. On failure
// the machine stays in add mode with the draft kept and the error surfaced;
// on success it returns to view mode with the new element selected.
func (m *Machine) Submit(reg *topology.Registry) (domain.Element, error) {
	if m.mode != ModeAdd || m.draft == nil {
		return nil, fmt.Errorf("%w: nothing to submit in %s mode", domain.ErrIllegalTransition, m.mode)
	}

	el, err := reg.Create(*m.draft)
	if err != nil {
		m.lastErr = err
		return nil, err
	}

	m.discardDraft()
	m.mode = ModeView
	m.selection = el.Common().ID
	m.detailOpen = true
	return el, nil
}

// Reject keeps the dialog open with err surfaced. It is used when a created
// element could not be committed further downstream.
func (m *Machine) Reject(err error) {
	if m.mode == ModeAdd {
		m.lastErr = err
	}
}

// Cancel returns to view mode, discarding any draft
func (m *Machine) Cancel() {
	m.discardDraft()
	m.mode = ModeView
}

// SetStatus changes an element's status; only allowed in edit mode
func (m *Machine) SetStatus(reg *topology.Registry, id string, status domain.Status) (domain.Element, error) {
	if m.mode != ModeEdit {
		return nil, fmt.Errorf("%w: status changes need edit mode, in %s", domain.ErrIllegalTransition, m.mode)
	}
	return reg.SetStatus(id, status)
}

// Forget drops the selection if it points at id
func (m *Machine) Forget(id string) {
	if m.selection == id {
		m.ClearSelection()
	}
}

// Snapshot returns the current state for rendering
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		Mode:       m.mode,
		Selection:  m.selection,
		DetailOpen: m.detailOpen,
		DialogOpen: m.mode == ModeAdd,
	}
	if m.draft != nil {
		d := m.draft.Clone()
		s.Draft = &d
	}
	if m.lastErr != nil {
		s.Error = m.lastErr.Error()
		s.ErrorCode = domain.Code(m.lastErr)
	}
	return s
}

func (m *Machine) discardDraft() {
	m.draft = nil
	m.lastErr = nil
}
