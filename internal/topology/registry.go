package topology

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fibermap/internal/domain"
)

// Registry is the sole owner of all topology elements. Elements handed out
// by Get and List are copies; every change goes through a Registry method so
// aggregates are recomputed in the same step as the mutation.
type Registry struct {
	elements map[string]domain.Element
	order    []string
	seq      map[domain.Kind]int
	revision uint64
	now      func() time.Time
	resolver *Resolver
}

// Option configures a Registry
type Option func(*Registry)

// WithClock overrides the clock used to stamp InstalledAt
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates an empty registry
func New(opts ...Option) *Registry {
	r := &Registry{
		elements: make(map[string]domain.Element),
		order:    make([]string, 0),
		seq:      make(map[domain.Kind]int),
		now:      func() time.Time { return time.Now().UTC() },
		resolver: NewResolver(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Clone returns a deep copy that can be mutated without affecting r
func (r *Registry) Clone() *Registry {
	c := &Registry{
		elements: make(map[string]domain.Element, len(r.elements)),
		order:    append([]string(nil), r.order...),
		seq:      make(map[domain.Kind]int, len(r.seq)),
		revision: r.revision,
		now:      r.now,
		resolver: r.resolver,
	}
	for id, el := range r.elements {
		c.elements[id] = el.Clone()
	}
	for k, v := range r.seq {
		c.seq[k] = v
	}
	return c
}

// Revision increases by one for every committed mutation
func (r *Registry) Revision() uint64 {
	return r.revision
}

// AdvanceRevision raises the revision to at least rev. It never lowers it.
func (r *Registry) AdvanceRevision(rev uint64) {
	if rev > r.revision {
		r.revision = rev
	}
}

// Sequences returns the last id number handed out per kind
func (r *Registry) Sequences() map[domain.Kind]int {
	out := make(map[domain.Kind]int, len(r.seq))
	for k, n := range r.seq {
		if n > 0 {
			out[k] = n
		}
	}
	return out
}

// Reserve marks every id of kind up to n as used, so nextID never hands
// them out again. Lower values are ignored.
func (r *Registry) Reserve(kind domain.Kind, n int) {
	if n > r.seq[kind] {
		r.seq[kind] = n
	}
}

// Len returns the number of stored elements
func (r *Registry) Len() int {
	return len(r.elements)
}

// Create builds an element from a draft, validates its placement and commits
// it. Validation and commit are one step: on any failure the registry is
// left exactly as it was.
func (r *Registry) Create(d domain.Draft) (domain.Element, error) {
	kind, err := domain.ParseKind(d.Kind)
	if err != nil {
		return nil, err
	}

	id, next := r.nextID(kind)
	el, err := d.Build(id, r.now())
	if err != nil {
		return nil, err
	}

	if err := r.resolver.ValidatePlacement(r, el); err != nil {
		return nil, err
	}

	r.insert(el)
	if _, err := r.resolver.RecomputeAggregates(r); err != nil {
		r.delete(id)
		return nil, fmt.Errorf("create %s: %w", id, err)
	}

	r.seq[kind] = next
	r.revision++
	return r.elements[id].Clone(), nil
}

// Get returns a copy of the element with the given id
func (r *Registry) Get(id string) (domain.Element, error) {
	el, ok := r.elements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return el.Clone(), nil
}

// List returns copies of all elements in insertion order. An empty kind
// lists every kind.
func (r *Registry) List(kind domain.Kind) []domain.Element {
	out := make([]domain.Element, 0, len(r.order))
	for _, id := range r.order {
		el := r.elements[id]
		if kind != "" && el.Common().Kind != kind {
			continue
		}
		out = append(out, el.Clone())
	}
	return out
}

// SetStatus changes the status of an element. Retiring an element that still
// has live children fails with ErrHasLiveChildren; bringing a retired child
// back is an admission and must pass the parent's capacity check.
func (r *Registry) SetStatus(id string, status domain.Status) (domain.Element, error) {
	current, ok := r.elements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	base := current.Common()
	if !status.AllowedFor(base.Kind) {
		return nil, fmt.Errorf("%w: status %q not allowed for %s", domain.ErrInvalidValue, status, base.Kind)
	}
	if base.Status == status {
		return current.Clone(), nil
	}

	if !status.Live() {
		if live := r.liveChildren(id); len(live) > 0 {
			return nil, fmt.Errorf("%w: %s has %d live children (%s)", domain.ErrHasLiveChildren, id, len(live), strings.Join(live, ", "))
		}
	}

	next := current.Clone()
	next.Common().Status = status
	if !base.Status.Live() && status.Live() {
		if err := r.resolver.ValidatePlacement(r, next); err != nil {
			return nil, err
		}
	}

	return r.replace(id, next)
}

// Remove deletes an element. It is blocked while any live element still
// references id as its parent; retired children keep their dangling
// reference as history.
func (r *Registry) Remove(id string) error {
	if _, ok := r.elements[id]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if live := r.liveChildren(id); len(live) > 0 {
		return fmt.Errorf("%w: %s has %d live children (%s)", domain.ErrHasLiveChildren, id, len(live), strings.Join(live, ", "))
	}

	removed := r.elements[id]
	pos := r.delete(id)
	if _, err := r.resolver.RecomputeAggregates(r); err != nil {
		r.insertAt(removed, pos)
		return fmt.Errorf("remove %s: %w", id, err)
	}
	r.revision++
	return nil
}

// SetCapacity changes the declared capacity of a head-end (ports) or fiber
// route (strands).
func (r *Registry) SetCapacity(id string, capacity int) (domain.Element, error) {
	current, ok := r.elements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive, got %d", domain.ErrInvalidValue, capacity)
	}

	next := current.Clone()
	switch v := next.(type) {
	case *domain.HeadEnd:
		if used := r.resolver.liveChildCount(r, id); capacity < used {
			return nil, fmt.Errorf("%w: %s uses %d ports", domain.ErrCapacityBelowUsage, id, used)
		}
		v.CapacityPorts = capacity
	case *domain.FiberRoute:
		if capacity < v.UsedStrands {
			return nil, fmt.Errorf("%w: %s uses %d strands", domain.ErrCapacityBelowUsage, id, v.UsedStrands)
		}
		v.CapacityStrands = capacity
	case *domain.Splitter:
		return nil, fmt.Errorf("%w: splitter capacity follows its split ratio", domain.ErrInvalidValue)
	case *domain.CustomerDrop, *domain.Complaint:
		return nil, fmt.Errorf("%w: %s has no capacity", domain.ErrInvalidValue, id)
	}

	return r.replace(id, next)
}

// SetSplitRatio re-rates a splitter; the new port count must still hold
// every live customer.
func (r *Registry) SetSplitRatio(id string, ratio domain.SplitRatio) (domain.Element, error) {
	current, ok := r.elements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if !ratio.Valid() {
		return nil, fmt.Errorf("%w: split ratio %s", domain.ErrInvalidValue, ratio)
	}
	sp, ok := current.(*domain.Splitter)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a splitter", domain.ErrInvalidValue, id)
	}
	if used := r.resolver.liveChildCount(r, id); ratio.Ports() < used {
		return nil, fmt.Errorf("%w: %s serves %d customers", domain.ErrCapacityBelowUsage, id, used)
	}

	next := sp.Clone().(*domain.Splitter)
	next.SplitRatio = ratio
	return r.replace(id, next)
}

// SetUsedStrands records how many strands of a fiber route are lit
func (r *Registry) SetUsedStrands(id string, used int) (domain.Element, error) {
	current, ok := r.elements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	route, ok := current.(*domain.FiberRoute)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a fiber route", domain.ErrInvalidValue, id)
	}
	if used < 0 || used > route.CapacityStrands {
		return nil, fmt.Errorf("%w: usedStrands %d outside 0..%d", domain.ErrInvalidValue, used, route.CapacityStrands)
	}

	next := route.Clone().(*domain.FiberRoute)
	next.UsedStrands = used
	return r.replace(id, next)
}

// AssignTechnician sets the technician on a complaint; an empty id unassigns
func (r *Registry) AssignTechnician(id, technicianID string) (domain.Element, error) {
	current, ok := r.elements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	complaint, ok := current.(*domain.Complaint)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a complaint", domain.ErrInvalidValue, id)
	}

	next := complaint.Clone().(*domain.Complaint)
	next.AssignedTechnicianID = strings.TrimSpace(technicianID)
	return r.replace(id, next)
}

// Restore inserts a fully formed element under its existing id. It is used by
// bulk import; placement is not validated here, so callers must run
// CheckInvariants once every element is restored.
func (r *Registry) Restore(el domain.Element) error {
	base := el.Common()
	if !base.Kind.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidKind, base.Kind)
	}
	if strings.TrimSpace(base.ID) == "" {
		return fmt.Errorf("%w: id", domain.ErrMissingRequiredField)
	}
	if _, exists := r.elements[base.ID]; exists {
		return fmt.Errorf("%w: duplicate id %s", domain.ErrInvalidValue, base.ID)
	}

	r.insert(el.Clone())
	if n, ok := sequenceOf(base.Kind, base.ID); ok {
		r.Reserve(base.Kind, n)
	}
	// retired children may still name a removed parent; its id stays taken
	if pk, ok := base.Kind.ParentKind(); ok {
		if n, ok := sequenceOf(pk, domain.ParentID(el)); ok {
			r.Reserve(pk, n)
		}
	}
	r.revision++
	return nil
}

// replace swaps in next for id and recomputes, reverting on failure
func (r *Registry) replace(id string, next domain.Element) (domain.Element, error) {
	prev := r.elements[id]
	r.elements[id] = next
	if _, err := r.resolver.RecomputeAggregates(r); err != nil {
		r.elements[id] = prev
		return nil, fmt.Errorf("update %s: %w", id, err)
	}
	r.revision++
	return next.Clone(), nil
}

func (r *Registry) liveChildren(id string) []string {
	var out []string
	for _, cid := range r.order {
		el := r.elements[cid]
		if domain.ParentID(el) == id && domain.IsLive(el) {
			out = append(out, cid)
		}
	}
	return out
}

func (r *Registry) insert(el domain.Element) {
	id := el.Common().ID
	r.elements[id] = el
	r.order = append(r.order, id)
}

func (r *Registry) insertAt(el domain.Element, pos int) {
	id := el.Common().ID
	r.elements[id] = el
	r.order = append(r.order, "")
	copy(r.order[pos+1:], r.order[pos:])
	r.order[pos] = id
}

// delete removes id and returns its former position in the insertion order
func (r *Registry) delete(id string) int {
	delete(r.elements, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return i
		}
	}
	return len(r.order)
}

// nextID returns the next free id for kind together with the sequence value
// it consumed. The sequence is only committed by a successful create.
func (r *Registry) nextID(kind domain.Kind) (string, int) {
	n := r.seq[kind]
	for {
		n++
		id := fmt.Sprintf("%s%03d", kind.IDPrefix(), n)
		if _, taken := r.elements[id]; !taken {
			return id, n
		}
	}
}

// sequenceOf extracts N from an id of the form {PREFIX}N
func sequenceOf(kind domain.Kind, id string) (int, bool) {
	prefix := kind.IDPrefix()
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, prefix))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
