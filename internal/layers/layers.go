// Package layers decides which topology elements the map renderer should
// draw. It holds per-kind visibility toggles, a free-text search term and a
// kind filter, and never touches the registry it reads from.
package layers

import (
	"fmt"
	"strings"

	"fibermap/internal/domain"
	"fibermap/internal/topology"
)

// FilterAll is the kind filter value that matches every kind
const FilterAll = "all"

// State is a snapshot of the controller's settings
type State struct {
	Visibility map[domain.Kind]bool `json:"visibility"`
	Search     string               `json:"search"`
	KindFilter string               `json:"kindFilter"`
}

// Summary is one legend row: how many elements of a kind exist and how many
// survive the current filters
type Summary struct {
	Kind    domain.Kind `json:"kind"`
	Visible bool        `json:"visible"`
	Total   int         `json:"total"`
	Shown   int         `json:"shown"`
}

// Controller tracks layer visibility and filters. It is not safe for
// concurrent use; the service serialises access.
type Controller struct {
	visibility map[domain.Kind]bool
	search     string
	kindFilter domain.Kind // empty means all
}

// NewController returns a controller with every layer visible and no filters
func NewController() *Controller {
	c := &Controller{visibility: make(map[domain.Kind]bool)}
	for _, k := range domain.Kinds() {
		c.visibility[k] = true
	}
	return c
}

// ToggleLayer flips the visibility of kind and returns the new value
func (c *Controller) ToggleLayer(kind domain.Kind) (bool, error) {
	if !kind.Valid() {
		return false, fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
	}
	c.visibility[kind] = !c.visibility[kind]
	return c.visibility[kind], nil
}

// SetLayer sets the visibility of kind explicitly
func (c *Controller) SetLayer(kind domain.Kind, visible bool) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
	}
	c.visibility[kind] = visible
	return nil
}

// SetSearch sets the search term. Surrounding whitespace is ignored.
func (c *Controller) SetSearch(term string) {
	c.search = strings.TrimSpace(term)
}

// SetKindFilter restricts results to one kind; "all" or "" clears it
func (c *Controller) SetKindFilter(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, FilterAll) {
		c.kindFilter = ""
		return nil
	}
	kind, err := domain.ParseKind(trimmed)
	if err != nil {
		return err
	}
	c.kindFilter = kind
	return nil
}

// State returns a copy of the current settings
func (c *Controller) State() State {
	vis := make(map[domain.Kind]bool, len(c.visibility))
	for k, v := range c.visibility {
		vis[k] = v
	}
	filter := FilterAll
	if c.kindFilter != "" {
		filter = string(c.kindFilter)
	}
	return State{Visibility: vis, Search: c.search, KindFilter: filter}
}

// Restore replaces the settings with s
func (c *Controller) Restore(s State) error {
	next := NewController()
	for k, v := range s.Visibility {
		if err := next.SetLayer(k, v); err != nil {
			return err
		}
	}
	next.SetSearch(s.Search)
	if err := next.SetKindFilter(s.KindFilter); err != nil {
		return err
	}
	*c = *next
	return nil
}

// VisibleElements returns the elements that pass every filter, ordered by
// kind and then by insertion order
func (c *Controller) VisibleElements(reg *topology.Registry) []domain.Element {
	out := make([]domain.Element, 0)
	for _, kind := range domain.Kinds() {
		if !c.kindShown(kind) {
			continue
		}
		for _, el := range reg.List(kind) {
			if c.matches(el) {
				out = append(out, el)
			}
		}
	}
	return out
}

// Summary reports total and shown counts per kind in canonical order
func (c *Controller) Summary(reg *topology.Registry) []Summary {
	rows := make([]Summary, 0, len(domain.Kinds()))
	for _, kind := range domain.Kinds() {
		els := reg.List(kind)
		row := Summary{Kind: kind, Visible: c.visibility[kind], Total: len(els)}
		if c.kindShown(kind) {
			for _, el := range els {
				if c.matches(el) {
					row.Shown++
				}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func (c *Controller) kindShown(kind domain.Kind) bool {
	if !c.visibility[kind] {
		return false
	}
	return c.kindFilter == "" || c.kindFilter == kind
}

func (c *Controller) matches(el domain.Element) bool {
	if c.search == "" {
		return true
	}
	term := strings.ToLower(c.search)
	base := el.Common()
	return strings.Contains(strings.ToLower(base.Name), term) ||
		strings.Contains(strings.ToLower(base.ID), term)
}
