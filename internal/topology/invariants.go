package topology

import (
	"errors"
	"fmt"

	"fibermap/internal/domain"
)

// CheckInvariants verifies the registry without modifying it: ids are
// unique, every live child has a live parent of the right kind, no parent is
// over capacity, and every cached aggregate equals its recomputed value.
// All violations are reported together.
func CheckInvariants(r *Registry) error {
	var errs []error

	seen := make(map[string]bool, len(r.order))
	for _, id := range r.order {
		if seen[id] {
			errs = append(errs, fmt.Errorf("%w: duplicate id %s", domain.ErrAggregateInvariant, id))
		}
		seen[id] = true
		el, ok := r.elements[id]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s listed but not stored", domain.ErrAggregateInvariant, id))
			continue
		}
		if el.Common().ID != id {
			errs = append(errs, fmt.Errorf("%w: %s stored under %s", domain.ErrAggregateInvariant, el.Common().ID, id))
		}
	}
	if len(seen) != len(r.elements) {
		errs = append(errs, fmt.Errorf("%w: %d ordered, %d stored", domain.ErrAggregateInvariant, len(seen), len(r.elements)))
	}

	agg, err := r.resolver.tally(r)
	if err != nil {
		errs = append(errs, err)
		return errors.Join(errs...)
	}

	for _, id := range r.order {
		c := agg[id]
		switch v := r.elements[id].(type) {
		case *domain.HeadEnd:
			if v.UsedPorts != c.Used || v.ChildSplitterCount != c.Children {
				errs = append(errs, fmt.Errorf("%w: %s caches %d/%d, recomputed %d/%d",
					domain.ErrAggregateInvariant, id, v.UsedPorts, v.ChildSplitterCount, c.Used, c.Children))
			}
		case *domain.Splitter:
			if v.ConnectedCustomerCount != c.Used {
				errs = append(errs, fmt.Errorf("%w: %s caches %d customers, recomputed %d",
					domain.ErrAggregateInvariant, id, v.ConnectedCustomerCount, c.Used))
			}
		}
	}

	return errors.Join(errs...)
}

// Recompute refreshes every derived counter in r
func (r *Registry) Recompute() (Aggregates, error) {
	return r.resolver.RecomputeAggregates(r)
}

// Utilization returns the capacity report for r
func (r *Registry) Utilization() []Utilization {
	return r.resolver.Utilization(r)
}
