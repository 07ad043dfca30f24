package topology

import (
	"errors"
	"fmt"

	"fibermap/internal/domain"
)

// Count is the recomputed usage of one capacity-bearing element
type Count struct {
	Used     int
	Children int
	Capacity int
}

// Aggregates maps element id to its recomputed counts
type Aggregates map[string]Count

// Utilization is a read-only capacity report row
type Utilization struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Kind     domain.Kind   `json:"kind"`
	Status   domain.Status `json:"status"`
	Used     int           `json:"used"`
	Capacity int           `json:"capacity"`
	Percent  float64       `json:"percent"`
}

// Resolver enforces parent/child placement and derives every aggregate
// counter from the raw parent references. It holds no state.
type Resolver struct{}

// NewResolver returns a resolver
func NewResolver() *Resolver {
	return &Resolver{}
}

// ValidatePlacement checks that el may be attached to its declared parent.
// The parent must exist, be of the expected kind and be live; the chain of
// ancestors must not lead back to el; and, when el is live, the parent must
// have a free slot (used < capacity) before el is counted.
func (res *Resolver) ValidatePlacement(r *Registry, el domain.Element) error {
	base := el.Common()
	wantKind, contained := base.Kind.ParentKind()
	if !contained {
		return nil
	}

	pid := domain.ParentID(el)
	if pid == "" {
		return fmt.Errorf("%w: parentId for %s", domain.ErrMissingRequiredField, base.Kind)
	}
	if pid == base.ID {
		return fmt.Errorf("%w: %s references itself", domain.ErrCycleDetected, base.ID)
	}

	parent, ok := r.elements[pid]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrParentNotFound, pid)
	}
	if got := parent.Common().Kind; got != wantKind {
		return fmt.Errorf("%w: %s is a %s, %s needs a %s", domain.ErrParentNotFound, pid, got, base.Kind, wantKind)
	}
	if !domain.IsLive(parent) {
		return fmt.Errorf("%w: %s is %s", domain.ErrParentNotFound, pid, parent.Common().Status)
	}

	if err := res.checkAncestry(r, base.ID, pid); err != nil {
		return err
	}

	if !domain.IsLive(el) {
		return nil
	}
	capacity, bounded := domain.Capacity(parent)
	if !bounded {
		return nil
	}
	if used := res.liveChildCount(r, pid); used >= capacity {
		return fmt.Errorf("%w: %s has %d of %d in use", domain.ErrParentAtCapacity, pid, used, capacity)
	}
	return nil
}

// checkAncestry walks up from pid and fails if it reaches id
func (res *Resolver) checkAncestry(r *Registry, id, pid string) error {
	seen := map[string]bool{}
	for cur := pid; cur != ""; {
		if cur == id || seen[cur] {
			return fmt.Errorf("%w: %s is its own ancestor", domain.ErrCycleDetected, id)
		}
		seen[cur] = true
		next, ok := r.elements[cur]
		if !ok {
			return nil
		}
		cur = domain.ParentID(next)
	}
	return nil
}

// RecomputeAggregates derives UsedPorts, ChildSplitterCount and
// ConnectedCustomerCount from scratch. Counts are built in a scratch table
// and verified first; nothing is written unless every element is within
// capacity and every live child has a live parent of the right kind.
// Running it twice in a row yields the same result.
func (res *Resolver) RecomputeAggregates(r *Registry) (Aggregates, error) {
	agg, err := res.tally(r)
	if err != nil {
		return nil, err
	}

	for id, el := range r.elements {
		c := agg[id]
		switch v := el.(type) {
		case *domain.HeadEnd:
			v.UsedPorts = c.Used
			v.ChildSplitterCount = c.Children
		case *domain.Splitter:
			v.ConnectedCustomerCount = c.Used
		}
	}
	return agg, nil
}

// tally counts children per parent and checks invariants 1 to 3 without
// touching the registry
func (res *Resolver) tally(r *Registry) (Aggregates, error) {
	agg := make(Aggregates)
	var errs []error

	for _, id := range r.order {
		el := r.elements[id]
		if capacity, ok := domain.Capacity(el); ok {
			c := agg[id]
			c.Capacity = capacity
			agg[id] = c
		}
	}

	for _, id := range r.order {
		el := r.elements[id]
		pid := domain.ParentID(el)
		if pid == "" {
			continue
		}
		live := domain.IsLive(el)

		parent, ok := r.elements[pid]
		if !ok {
			if live {
				errs = append(errs, fmt.Errorf("%w: %s references missing %s", domain.ErrParentNotFound, id, pid))
			}
			continue
		}
		want, _ := el.Common().Kind.ParentKind()
		if parent.Common().Kind != want {
			errs = append(errs, fmt.Errorf("%w: %s references %s %s", domain.ErrParentNotFound, id, parent.Common().Kind, pid))
			continue
		}
		if live && !domain.IsLive(parent) {
			errs = append(errs, fmt.Errorf("%w: live %s under %s parent %s", domain.ErrParentNotFound, id, parent.Common().Status, pid))
		}

		c := agg[pid]
		c.Children++
		if live {
			c.Used++
		}
		agg[pid] = c
	}

	for _, id := range r.order {
		el := r.elements[id]
		c := agg[id]
		switch v := el.(type) {
		case *domain.HeadEnd, *domain.Splitter:
			if c.Used > c.Capacity {
				errs = append(errs, fmt.Errorf("%w: %s has %d live children, capacity %d", domain.ErrAggregateInvariant, id, c.Used, c.Capacity))
			}
		case *domain.FiberRoute:
			c.Used = v.UsedStrands
			agg[id] = c
			if v.UsedStrands > v.CapacityStrands {
				errs = append(errs, fmt.Errorf("%w: %s uses %d of %d strands", domain.ErrAggregateInvariant, id, v.UsedStrands, v.CapacityStrands))
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return agg, nil
}

// Utilization reports used and total capacity for every capacity-bearing
// element, head-ends first, then splitters, then fiber routes.
func (res *Resolver) Utilization(r *Registry) []Utilization {
	var out []Utilization
	for _, kind := range domain.Kinds() {
		for _, id := range r.order {
			el := r.elements[id]
			base := el.Common()
			if base.Kind != kind {
				continue
			}
			capacity, ok := domain.Capacity(el)
			if !ok {
				continue
			}
			used, _ := domain.Used(el)
			u := Utilization{
				ID:       base.ID,
				Name:     base.Name,
				Kind:     base.Kind,
				Status:   base.Status,
				Used:     used,
				Capacity: capacity,
			}
			if capacity > 0 {
				u.Percent = float64(used) * 100 / float64(capacity)
			}
			out = append(out, u)
		}
	}
	return out
}

func (res *Resolver) liveChildCount(r *Registry, pid string) int {
	n := 0
	for _, el := range r.elements {
		if domain.ParentID(el) == pid && domain.IsLive(el) {
			n++
		}
	}
	return n
}
