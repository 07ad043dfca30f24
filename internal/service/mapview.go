package service

import (
	"context"
	"fmt"

	"fibermap/internal/domain"
	"fibermap/internal/layers"
	"fibermap/internal/mapstate"
	"fibermap/internal/topology"
)

// Layers returns the current layer settings and legend
func (s *NetworkService) Layers() LayerView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layerView()
}

// ToggleLayer flips one kind's visibility and stores the new settings
func (s *NetworkService) ToggleLayer(ctx context.Context, kind string) (LayerView, error) {
	k, err := domain.ParseKind(kind)
	if err != nil {
		return LayerView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.layers.State()
	if _, err := s.layers.ToggleLayer(k); err != nil {
		return LayerView{}, err
	}
	return s.saveLayers(ctx, prev)
}

// SetFilter replaces the search term and kind filter
func (s *NetworkService) SetFilter(ctx context.Context, search, kind string) (LayerView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.layers.State()
	if err := s.layers.SetKindFilter(kind); err != nil {
		return LayerView{}, err
	}
	s.layers.SetSearch(search)
	return s.saveLayers(ctx, prev)
}

// saveLayers stores the controller's settings, rolling back to prev if the
// store refuses them. Callers hold s.mu.
func (s *NetworkService) saveLayers(ctx context.Context, prev layers.State) (LayerView, error) {
	state := s.layers.State()
	if err := s.repo.SetMeta(ctx, layersMetaKey, state); err != nil {
		s.log.Error().Err(err).Msg("failed to persist layer settings")
		if rerr := s.layers.Restore(prev); rerr != nil {
			s.log.Error().Err(rerr).Msg("failed to roll back layer settings")
		}
		return LayerView{}, fmt.Errorf("failed to persist layer settings: %w", err)
	}
	s.bus.Publish(NewEvent(EventLayersChanged, state))
	return s.layerView(), nil
}

// MapView returns the renderer payload for the current state
func (s *NetworkService) MapView() MapView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapView()
}

// SetMode switches between view, edit and add
func (s *NetworkService) SetMode(raw string) (MapView, error) {
	mode, err := mapstate.ParseMode(raw)
	if err != nil {
		return MapView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition("set_mode", func(m *mapstate.Machine) error {
		return m.SetMode(mode)
	})
}

// Select opens the detail view for id
func (s *NetworkService) Select(id string) (MapView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition("select", func(m *mapstate.Machine) error {
		return m.Select(s.reg, id)
	})
}

// ClearSelection closes the detail view
func (s *NetworkService) ClearSelection() MapView {
	s.mu.Lock()
	defer s.mu.Unlock()
	view, _ := s.transition("clear_selection", func(m *mapstate.Machine) error {
		m.ClearSelection()
		return nil
	})
	return view
}

// UpdateDraft replaces the add dialog's draft
func (s *NetworkService) UpdateDraft(d domain.Draft) (MapView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition("update_draft", func(m *mapstate.Machine) error {
		return m.UpdateDraft(d)
	})
}

// CancelDraft closes the add dialog and returns to view mode
func (s *NetworkService) CancelDraft() MapView {
	s.mu.Lock()
	defer s.mu.Unlock()
	view, _ := s.transition("cancel_draft", func(m *mapstate.Machine) error {
		m.Cancel()
		return nil
	})
	return view
}

// SubmitDraft creates the element held in the add dialog. A rejected draft
// stays open with the error surfaced; a committed one is selected and the
// map returns to view mode.
func (s *NetworkService) SubmitDraft(ctx context.Context) (domain.Element, MapView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.machine.Clone()
	next := s.reg.Clone()
	el, err := m.Submit(next)
	if err != nil {
		if m.Err() != nil {
			// placement failure: keep the dialog with the error
			s.machine = m
			s.reject("create", "", err)
			s.bus.Publish(NewEvent(EventMapStateChanged, s.machine.Snapshot()))
		}
		return nil, s.mapView(), err
	}
	if err := s.persist(ctx, next); err != nil {
		s.machine.Reject(err)
		s.metrics.ObserveMutation("create", err)
		s.bus.Publish(NewEvent(EventMapStateChanged, s.machine.Snapshot()))
		return nil, s.mapView(), err
	}

	s.reg = next
	s.machine = m
	id := el.Common().ID
	s.committed(ctx, "create", id, "")
	s.bus.Publish(NewEvent(EventElementCreated, ElementEvent{
		ID:       id,
		Kind:     el.Common().Kind,
		Revision: next.Revision(),
		Element:  el,
	}))
	s.bus.Publish(NewEvent(EventMapStateChanged, s.machine.Snapshot()))
	return el, s.mapView(), nil
}

// SetSelectedStatus changes the status of the selected element. It needs
// edit mode.
func (s *NetworkService) SetSelectedStatus(ctx context.Context, raw string) (domain.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.machine.Selection()
	if id == "" {
		return nil, fmt.Errorf("%w: nothing selected", domain.ErrIllegalTransition)
	}
	status, err := s.parseStatus(id, raw)
	if err != nil {
		s.reject("set_status", id, err)
		return nil, err
	}
	return s.mutate(ctx, "set_status", id, EventElementUpdated, func(reg *topology.Registry) (domain.Element, error) {
		return s.machine.SetStatus(reg, id, status)
	})
}

// transition applies fn to a copy of the machine and keeps it on success.
// Callers hold s.mu.
func (s *NetworkService) transition(op string, fn func(*mapstate.Machine) error) (MapView, error) {
	m := s.machine.Clone()
	if err := fn(m); err != nil {
		s.log.Debug().Err(err).Str("op", op).Msg("map transition rejected")
		return s.mapView(), err
	}
	s.machine = m
	s.bus.Publish(NewEvent(EventMapStateChanged, m.Snapshot()))
	return s.mapView(), nil
}

func (s *NetworkService) mapView() MapView {
	view := MapView{
		Revision: s.reg.Revision(),
		State:    s.machine.Snapshot(),
		Layers:   s.layers.State(),
		Legend:   s.layers.Summary(s.reg),
		Elements: s.layers.VisibleElements(s.reg),
	}
	if id := s.machine.Selection(); id != "" {
		if el, err := s.reg.Get(id); err == nil {
			view.Selected = el
		}
	}
	return view
}

func (s *NetworkService) layerView() LayerView {
	return LayerView{
		State:  s.layers.State(),
		Legend: s.layers.Summary(s.reg),
	}
}
