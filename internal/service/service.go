package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fibermap/internal/codec"
	"fibermap/internal/domain"
	"fibermap/internal/layers"
	"fibermap/internal/loader"
	"fibermap/internal/mapstate"
	"fibermap/internal/metrics"
	"fibermap/internal/repository"
	"fibermap/internal/topology"
)

const layersMetaKey = "layers"

// ElementEvent is the payload of element_* events
type ElementEvent struct {
	ID       string         `json:"id"`
	Kind     domain.Kind    `json:"kind,omitempty"`
	Revision uint64         `json:"revision"`
	Element  domain.Element `json:"element,omitempty"`
}

// ImportResult summarises a replaced topology
type ImportResult struct {
	Elements int    `json:"elements"`
	Revision uint64 `json:"revision"`
	Source   string `json:"source,omitempty"`
}

// LayerView is the layer panel: current settings plus the legend
type LayerView struct {
	State  layers.State     `json:"state"`
	Legend []layers.Summary `json:"legend"`
}

// MapView is everything the renderer needs to draw one frame
type MapView struct {
	Revision uint64            `json:"revision"`
	State    mapstate.Snapshot `json:"state"`
	Layers   layers.State      `json:"layers"`
	Legend   []layers.Summary  `json:"legend"`
	Elements []domain.Element  `json:"elements"`
	Selected domain.Element    `json:"selected,omitempty"`
}

// Option configures a NetworkService
type Option func(*NetworkService)

// WithLogger sets the service logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *NetworkService) {
		s.log = log.With().Str("component", "service").Logger()
	}
}

// WithMetrics records mutations and topology gauges on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *NetworkService) {
		s.metrics = m
	}
}

// WithClock overrides time.Now for installation and history timestamps
func WithClock(now func() time.Time) Option {
	return func(s *NetworkService) {
		s.now = now
	}
}

// NetworkService is the single writer over the topology. Every mutation runs
// against a clone of the registry, is persisted, and only then replaces the
// live registry, so a failed persist changes nothing.
type NetworkService struct {
	mu      sync.Mutex
	reg     *topology.Registry
	layers  *layers.Controller
	machine *mapstate.Machine

	repo    repository.Repository
	bus     *EventBus
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

// NewNetworkService creates a service with an empty topology. Call Load to
// read the stored one.
func NewNetworkService(repo repository.Repository, bus *EventBus, opts ...Option) *NetworkService {
	if bus == nil {
		bus = NewEventBus()
	}
	s := &NetworkService{
		layers:  layers.NewController(),
		machine: mapstate.New(),
		repo:    repo,
		bus:     bus,
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reg = topology.New(topology.WithClock(s.now))
	return s
}

// Events returns the bus the service publishes on
func (s *NetworkService) Events() *EventBus {
	return s.bus
}

// Load replaces the in-memory state with what the repository holds. The
// stored snapshot goes through the same validation as any imported document.
func (s *NetworkService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.repo.LoadTopology(ctx)
	if err != nil {
		return fmt.Errorf("failed to load topology: %w", err)
	}
	reg, err := codec.Import(doc, topology.WithClock(s.now))
	if err != nil {
		return fmt.Errorf("stored topology rejected: %w", err)
	}

	var state layers.State
	found, err := s.repo.GetMeta(ctx, layersMetaKey, &state)
	if err != nil {
		return fmt.Errorf("failed to load layer settings: %w", err)
	}
	if found {
		if err := s.layers.Restore(state); err != nil {
			s.log.Warn().Err(err).Msg("ignoring stored layer settings")
		}
	}

	s.reg = reg
	s.metrics.RecordTopology(reg)
	s.log.Info().Int("elements", reg.Len()).Msg("topology loaded")
	return nil
}

// Empty reports whether the topology holds no elements
func (s *NetworkService) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Len() == 0
}

// Revision returns the live registry revision
func (s *NetworkService) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Revision()
}

// Get returns one element
func (s *NetworkService) Get(id string) (domain.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Get(id)
}

// List returns elements of one kind, or all of them when kind is empty
func (s *NetworkService) List(kind string) ([]domain.Element, error) {
	var k domain.Kind
	if kind != "" {
		parsed, err := domain.ParseKind(kind)
		if err != nil {
			return nil, err
		}
		k = parsed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.List(k), nil
}

// Utilization reports port and strand usage for capacity-bearing elements
func (s *NetworkService) Utilization() []topology.Utilization {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Utilization()
}

// Create adds an element from an add-element form payload
func (s *NetworkService) Create(ctx context.Context, d domain.Draft) (domain.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate(ctx, "create", "", EventElementCreated, func(reg *topology.Registry) (domain.Element, error) {
		return reg.Create(d)
	})
}

// SetStatus changes an element's status. The raw value is checked against
// the statuses allowed for the element's kind.
func (s *NetworkService) SetStatus(ctx context.Context, id, raw string) (domain.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, err := s.parseStatus(id, raw)
	if err != nil {
		s.reject("set_status", id, err)
		return nil, err
	}
	return s.mutate(ctx, "set_status", id, EventElementUpdated, func(reg *topology.Registry) (domain.Element, error) {
		return reg.SetStatus(id, status)
	})
}

// Remove deletes an element with no live children
func (s *NetworkService) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.mutate(ctx, "remove", id, EventElementRemoved, func(reg *topology.Registry) (domain.Element, error) {
		return nil, reg.Remove(id)
	})
	if err != nil {
		return err
	}
	s.machine.Forget(id)
	return nil
}

// SetCapacity edits a head-end's ports or a route's strands
func (s *NetworkService) SetCapacity(ctx context.Context, id string, capacity int) (domain.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate(ctx, "set_capacity", id, EventElementUpdated, func(reg *topology.Registry) (domain.Element, error) {
		return reg.SetCapacity(id, capacity)
	})
}

// SetUsedStrands records how many strands of a route are spliced
func (s *NetworkService) SetUsedStrands(ctx context.Context, id string, used int) (domain.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate(ctx, "set_used_strands", id, EventElementUpdated, func(reg *topology.Registry) (domain.Element, error) {
		return reg.SetUsedStrands(id, used)
	})
}

// SetSplitRatio swaps a splitter's ratio
func (s *NetworkService) SetSplitRatio(ctx context.Context, id, raw string) (domain.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ratio, err := domain.ParseSplitRatio(raw)
	if err != nil {
		s.reject("set_split_ratio", id, err)
		return nil, err
	}
	return s.mutate(ctx, "set_split_ratio", id, EventElementUpdated, func(reg *topology.Registry) (domain.Element, error) {
		return reg.SetSplitRatio(id, ratio)
	})
}

// AssignTechnician sets or clears a complaint's technician
func (s *NetworkService) AssignTechnician(ctx context.Context, id, technicianID string) (domain.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mutate(ctx, "assign_technician", id, EventElementUpdated, func(reg *topology.Registry) (domain.Element, error) {
		return reg.AssignTechnician(id, technicianID)
	})
}

// Import replaces the whole topology with doc. The document is validated
// in full before anything changes.
func (s *NetworkService) Import(ctx context.Context, doc *codec.Document, source string) (*ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := codec.Import(doc, topology.WithClock(s.now))
	if err != nil {
		s.reject("import", "", err)
		return nil, err
	}
	// ids already handed out stay retired across a replacing import
	for k, n := range s.reg.Sequences() {
		reg.Reserve(k, n)
	}
	reg.AdvanceRevision(s.reg.Revision() + 1)
	if err := s.persist(ctx, reg); err != nil {
		s.metrics.ObserveMutation("import", err)
		return nil, err
	}

	s.reg = reg
	if sel := s.machine.Selection(); sel != "" {
		if _, err := reg.Get(sel); err != nil {
			s.machine.Forget(sel)
		}
	}
	s.committed(ctx, "import", "", source)

	result := &ImportResult{Elements: reg.Len(), Revision: reg.Revision(), Source: source}
	s.bus.Publish(NewEvent(EventTopologyImported, result))
	s.log.Info().Int("elements", result.Elements).Str("source", source).Msg("topology imported")
	return result, nil
}

// ImportFrom parses r in format and imports it
func (s *NetworkService) ImportFrom(ctx context.Context, r io.Reader, format, source string) (*ImportResult, error) {
	c, err := codec.ForFormat(format)
	if err != nil {
		return nil, err
	}
	doc, err := c.Parse(r)
	if err != nil {
		s.reject("import", "", err)
		return nil, err
	}
	return s.Import(ctx, doc, source)
}

// ImportFile imports a seed file, choosing the codec by extension
func (s *NetworkService) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	doc, err := loader.Load(path)
	if err != nil {
		s.reject("import", "", err)
		return nil, err
	}
	return s.Import(ctx, doc, path)
}

// Export snapshots the live topology
func (s *NetworkService) Export() (*codec.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return codec.Export(s.reg, s.now())
}

// ExportTo writes the live topology to w in format
func (s *NetworkService) ExportTo(w io.Writer, format string) error {
	c, err := codec.ForFormat(format)
	if err != nil {
		return err
	}
	doc, err := s.Export()
	if err != nil {
		return err
	}
	return c.Export(doc, w)
}

// History returns the most recent committed mutations, newest first
func (s *NetworkService) History(ctx context.Context, limit int) ([]repository.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListHistory(ctx, limit)
}

// mutate runs fn on a clone of the registry, persists the clone and swaps it
// in. Callers hold s.mu.
func (s *NetworkService) mutate(ctx context.Context, op, id string, event EventType, fn func(*topology.Registry) (domain.Element, error)) (domain.Element, error) {
	next := s.reg.Clone()
	el, err := fn(next)
	if err != nil {
		s.reject(op, id, err)
		return nil, err
	}
	if err := s.persist(ctx, next); err != nil {
		s.metrics.ObserveMutation(op, err)
		return nil, err
	}

	s.reg = next
	payload := ElementEvent{ID: id, Revision: next.Revision(), Element: el}
	if el != nil {
		payload.ID = el.Common().ID
		payload.Kind = el.Common().Kind
	}
	s.committed(ctx, op, payload.ID, "")
	s.bus.Publish(NewEvent(event, payload))
	return el, nil
}

func (s *NetworkService) persist(ctx context.Context, reg *topology.Registry) error {
	doc, err := codec.Export(reg, s.now())
	if err != nil {
		return fmt.Errorf("failed to snapshot topology: %w", err)
	}
	if err := s.repo.SaveTopology(ctx, doc); err != nil {
		s.log.Error().Err(err).Uint64("revision", reg.Revision()).Msg("failed to persist topology")
		return fmt.Errorf("failed to persist topology: %w", err)
	}
	return nil
}

// committed records a swapped-in mutation. History is best effort: the
// topology is already stored.
func (s *NetworkService) committed(ctx context.Context, op, id, detail string) {
	s.metrics.ObserveMutation(op, nil)
	s.metrics.RecordTopology(s.reg)

	entry := repository.HistoryEntry{
		Op:        op,
		ElementID: id,
		Revision:  s.reg.Revision(),
		Detail:    detail,
		At:        s.now().UTC(),
	}
	if err := s.repo.AppendHistory(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("op", op).Msg("failed to record history")
	}

	s.log.Debug().
		Str("op", op).
		Str("element_id", id).
		Uint64("revision", s.reg.Revision()).
		Msg("mutation committed")
}

func (s *NetworkService) reject(op, id string, err error) {
	s.metrics.ObserveMutation(op, err)
	s.log.Warn().
		Err(err).
		Str("op", op).
		Str("element_id", id).
		Str("code", domain.Code(err)).
		Msg("mutation rejected")
}

func (s *NetworkService) parseStatus(id, raw string) (domain.Status, error) {
	el, err := s.reg.Get(id)
	if err != nil {
		return "", err
	}
	return domain.ParseStatus(el.Common().Kind, raw)
}
