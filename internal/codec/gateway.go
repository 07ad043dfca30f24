package codec

import (
	"fmt"
	"strings"
	"time"

	"fibermap/internal/domain"
	"fibermap/internal/topology"
)

// Export serializes every element of reg, partitioned by kind in insertion
// order, and stamps the document checksum.
func Export(reg *topology.Registry, now time.Time) (*Document, error) {
	doc := &Document{
		SchemaVersion: SchemaVersion,
		ExportedAt:    now.UTC(),
		Revision:      reg.Revision(),
		HeadEnds:      make([]HeadEndRecord, 0),
		Splitters:     make([]SplitterRecord, 0),
		CustomerDrops: make([]CustomerDropRecord, 0),
		FiberRoutes:   make([]FiberRouteRecord, 0),
		Complaints:    make([]ComplaintRecord, 0),
	}
	if seq := reg.Sequences(); len(seq) > 0 {
		doc.Sequences = make(map[string]int, len(seq))
		for k, n := range seq {
			doc.Sequences[string(k)] = n
		}
	}

	for _, el := range reg.List("") {
		switch v := el.(type) {
		case *domain.HeadEnd:
			doc.HeadEnds = append(doc.HeadEnds, HeadEndRecord{
				BaseRecord:         baseRecord(&v.Base),
				CapacityPorts:      v.CapacityPorts,
				UsedPorts:          v.UsedPorts,
				ChildSplitterCount: v.ChildSplitterCount,
			})
		case *domain.Splitter:
			doc.Splitters = append(doc.Splitters, SplitterRecord{
				BaseRecord:             baseRecord(&v.Base),
				SplitRatio:             v.SplitRatio.String(),
				ParentHeadEndID:        v.ParentHeadEndID,
				ConnectedCustomerCount: v.ConnectedCustomerCount,
			})
		case *domain.CustomerDrop:
			doc.CustomerDrops = append(doc.CustomerDrops, CustomerDropRecord{
				BaseRecord:       baseRecord(&v.Base),
				ParentSplitterID: v.ParentSplitterID,
				PlanLabel:        v.PlanLabel,
				LastPaymentDate:  v.LastPaymentDate,
			})
		case *domain.FiberRoute:
			doc.FiberRoutes = append(doc.FiberRoutes, FiberRouteRecord{
				BaseRecord:      baseRecord(&v.Base),
				Path:            v.Path,
				LengthKm:        v.LengthKm,
				CableType:       v.CableType,
				CapacityStrands: v.CapacityStrands,
				UsedStrands:     v.UsedStrands,
			})
		case *domain.Complaint:
			doc.Complaints = append(doc.Complaints, ComplaintRecord{
				BaseRecord:           baseRecord(&v.Base),
				CustomerID:           v.CustomerID,
				Priority:             string(v.Priority),
				AssignedTechnicianID: v.AssignedTechnicianID,
			})
		}
	}

	sum, err := Checksum(doc)
	if err != nil {
		return nil, err
	}
	doc.Checksum = sum
	return doc, nil
}

// Import builds a fresh registry from doc. Stored aggregates are discarded
// and recomputed, then invariants are checked; any failure rejects the whole
// document with ErrMalformedDocument and no registry is returned.
func Import(doc *Document, opts ...topology.Option) (*topology.Registry, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", domain.ErrMalformedDocument)
	}
	if doc.SchemaVersion < 0 || doc.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schemaVersion %d", domain.ErrMalformedDocument, doc.SchemaVersion)
	}
	if err := VerifyChecksum(doc); err != nil {
		return nil, err
	}

	elements, err := decodeElements(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedDocument, err)
	}

	reg := topology.New(opts...)
	for _, el := range elements {
		if err := reg.Restore(el); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrMalformedDocument, err)
		}
	}
	for name, n := range doc.Sequences {
		kind, err := domain.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("%w: sequences: %w", domain.ErrMalformedDocument, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: sequences: %s is negative", domain.ErrMalformedDocument, name)
		}
		reg.Reserve(kind, n)
	}
	reg.AdvanceRevision(doc.Revision)

	if _, err := reg.Recompute(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedDocument, err)
	}
	if err := topology.CheckInvariants(reg); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedDocument, err)
	}
	return reg, nil
}

// decodeElements converts records into elements in document order: head-ends,
// splitters, drops, routes, complaints.
func decodeElements(doc *Document) ([]domain.Element, error) {
	out := make([]domain.Element, 0, doc.Len())

	for i, rec := range doc.HeadEnds {
		base, err := decodeBase(rec.BaseRecord, domain.KindHeadEnd)
		if err != nil {
			return nil, recordErr("headEnds", i, rec.ID, err)
		}
		if rec.CapacityPorts <= 0 {
			return nil, recordErr("headEnds", i, rec.ID, fmt.Errorf("%w: capacityPorts %d", domain.ErrInvalidValue, rec.CapacityPorts))
		}
		out = append(out, &domain.HeadEnd{Base: base, CapacityPorts: rec.CapacityPorts})
	}

	for i, rec := range doc.Splitters {
		base, err := decodeBase(rec.BaseRecord, domain.KindSplitter)
		if err != nil {
			return nil, recordErr("splitters", i, rec.ID, err)
		}
		ratio, err := domain.ParseSplitRatio(rec.SplitRatio)
		if err != nil {
			return nil, recordErr("splitters", i, rec.ID, err)
		}
		parent, err := required("parentHeadEndId", rec.ParentHeadEndID)
		if err != nil {
			return nil, recordErr("splitters", i, rec.ID, err)
		}
		out = append(out, &domain.Splitter{Base: base, SplitRatio: ratio, ParentHeadEndID: parent})
	}

	for i, rec := range doc.CustomerDrops {
		base, err := decodeBase(rec.BaseRecord, domain.KindCustomerDrop)
		if err != nil {
			return nil, recordErr("customerDrops", i, rec.ID, err)
		}
		parent, err := required("parentSplitterId", rec.ParentSplitterID)
		if err != nil {
			return nil, recordErr("customerDrops", i, rec.ID, err)
		}
		drop := &domain.CustomerDrop{Base: base, ParentSplitterID: parent, PlanLabel: rec.PlanLabel}
		if rec.LastPaymentDate != nil {
			t := *rec.LastPaymentDate
			drop.LastPaymentDate = &t
		}
		out = append(out, drop)
	}

	for i, rec := range doc.FiberRoutes {
		if rec.Location == (domain.Coordinate{}) && len(rec.Path) > 0 {
			rec.Location = rec.Path[0]
		}
		base, err := decodeBase(rec.BaseRecord, domain.KindFiberRoute)
		if err != nil {
			return nil, recordErr("fiberRoutes", i, rec.ID, err)
		}
		if err := domain.ValidatePath(rec.Path); err != nil {
			return nil, recordErr("fiberRoutes", i, rec.ID, err)
		}
		if rec.CapacityStrands <= 0 || rec.UsedStrands < 0 || rec.UsedStrands > rec.CapacityStrands || rec.LengthKm < 0 {
			return nil, recordErr("fiberRoutes", i, rec.ID, fmt.Errorf("%w: strands %d/%d, length %v",
				domain.ErrInvalidValue, rec.UsedStrands, rec.CapacityStrands, rec.LengthKm))
		}
		out = append(out, &domain.FiberRoute{
			Base:            base,
			Path:            append([]domain.Coordinate(nil), rec.Path...),
			LengthKm:        rec.LengthKm,
			CableType:       rec.CableType,
			CapacityStrands: rec.CapacityStrands,
			UsedStrands:     rec.UsedStrands,
		})
	}

	for i, rec := range doc.Complaints {
		base, err := decodeBase(rec.BaseRecord, domain.KindComplaint)
		if err != nil {
			return nil, recordErr("complaints", i, rec.ID, err)
		}
		customer, err := required("customerId", rec.CustomerID)
		if err != nil {
			return nil, recordErr("complaints", i, rec.ID, err)
		}
		priority := domain.PriorityMedium
		if p := strings.TrimSpace(rec.Priority); p != "" {
			priority = domain.Priority(strings.ToLower(p))
		}
		if !priority.Valid() {
			return nil, recordErr("complaints", i, rec.ID, fmt.Errorf("%w: priority %q", domain.ErrInvalidValue, rec.Priority))
		}
		out = append(out, &domain.Complaint{
			Base:                 base,
			CustomerID:           customer,
			Priority:             priority,
			AssignedTechnicianID: rec.AssignedTechnicianID,
		})
	}

	return out, nil
}

func decodeBase(rec BaseRecord, kind domain.Kind) (domain.Base, error) {
	id, err := required("id", rec.ID)
	if err != nil {
		return domain.Base{}, err
	}
	name, err := required("name", rec.Name)
	if err != nil {
		return domain.Base{}, err
	}
	if err := rec.Location.Validate(); err != nil {
		return domain.Base{}, err
	}
	status := domain.DefaultStatus(kind)
	if strings.TrimSpace(rec.Status) != "" {
		if status, err = domain.ParseStatus(kind, rec.Status); err != nil {
			return domain.Base{}, err
		}
	}
	return domain.Base{
		ID:          id,
		Name:        name,
		Kind:        kind,
		Location:    rec.Location,
		Status:      status,
		InstalledAt: rec.InstalledAt,
	}, nil
}

func required(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%w: %s", domain.ErrMissingRequiredField, field)
	}
	return v, nil
}

func recordErr(section string, i int, id string, err error) error {
	if id == "" {
		return fmt.Errorf("%s[%d]: %w", section, i, err)
	}
	return fmt.Errorf("%s[%d] %s: %w", section, i, id, err)
}
