package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"fibermap/internal/codec"
	"fibermap/internal/domain"
	"fibermap/internal/repository"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Times are stored as RFC3339Nano text so they survive any driver's
// DATETIME handling unchanged.
func timeToText(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func textToTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// ============================================================================
// Element Row Scanner
// ============================================================================
//
// The indexed columns (kind, name, status, parent_id, lat, lng) duplicate
// fields of the JSON record in data. data is the source of truth on load;
// the columns exist for ad-hoc queries and indexes.
//
// CRITICAL: Column order must match between:
// - elementColumns constant
// - scanArgs() return slice
// - insertArgs() return slice

// elementRow holds all columns from an element query for scanning
type elementRow struct {
	ID          string
	Kind        string
	Name        string
	Status      string
	ParentID    sql.NullString
	Position    int
	Lat         float64
	Lng         float64
	InstalledAt string
	Data        string
}

// elementColumns is the SELECT column list for element queries
const elementColumns = `id, kind, name, status, parent_id, position, lat, lng, installed_at, data`

// scanArgs returns pointers to all fields for sql.Scan()
func (r *elementRow) scanArgs() []any {
	return []any{
		&r.ID,          // 1
		&r.Kind,        // 2
		&r.Name,        // 3
		&r.Status,      // 4
		&r.ParentID,    // 5
		&r.Position,    // 6
		&r.Lat,         // 7
		&r.Lng,         // 8
		&r.InstalledAt, // 9
		&r.Data,        // 10
	}
}

// insertArgs returns column values in elementColumns order
func (r *elementRow) insertArgs() []any {
	return []any{
		r.ID,
		r.Kind,
		r.Name,
		r.Status,
		r.ParentID,
		r.Position,
		r.Lat,
		r.Lng,
		r.InstalledAt,
		r.Data,
	}
}

// appendTo decodes the row's record and appends it to the matching section
func (r *elementRow) appendTo(doc *codec.Document) error {
	data := []byte(r.Data)
	var err error

	switch domain.Kind(r.Kind) {
	case domain.KindHeadEnd:
		var rec codec.HeadEndRecord
		if err = json.Unmarshal(data, &rec); err == nil {
			doc.HeadEnds = append(doc.HeadEnds, rec)
		}
	case domain.KindSplitter:
		var rec codec.SplitterRecord
		if err = json.Unmarshal(data, &rec); err == nil {
			doc.Splitters = append(doc.Splitters, rec)
		}
	case domain.KindCustomerDrop:
		var rec codec.CustomerDropRecord
		if err = json.Unmarshal(data, &rec); err == nil {
			doc.CustomerDrops = append(doc.CustomerDrops, rec)
		}
	case domain.KindFiberRoute:
		var rec codec.FiberRouteRecord
		if err = json.Unmarshal(data, &rec); err == nil {
			doc.FiberRoutes = append(doc.FiberRoutes, rec)
		}
	case domain.KindComplaint:
		var rec codec.ComplaintRecord
		if err = json.Unmarshal(data, &rec); err == nil {
			doc.Complaints = append(doc.Complaints, rec)
		}
	default:
		return fmt.Errorf("%w: stored kind %q", domain.ErrInvalidKind, r.Kind)
	}

	if err != nil {
		return fmt.Errorf("unmarshal %s record: %w", r.Kind, err)
	}
	return nil
}

// ============================================================================
// Element Write Helpers
// ============================================================================

// documentRows flattens doc into rows, numbering positions in document order
func documentRows(doc *codec.Document) ([]elementRow, error) {
	rows := make([]elementRow, 0, doc.Len())

	add := func(kind domain.Kind, base codec.BaseRecord, parentID string, rec any) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", kind, base.ID, err)
		}
		rows = append(rows, elementRow{
			ID:          base.ID,
			Kind:        string(kind),
			Name:        base.Name,
			Status:      base.Status,
			ParentID:    stringToNull(parentID),
			Position:    len(rows),
			Lat:         base.Location.Lat,
			Lng:         base.Location.Lng,
			InstalledAt: timeToText(base.InstalledAt),
			Data:        string(data),
		})
		return nil
	}

	for _, rec := range doc.HeadEnds {
		if err := add(domain.KindHeadEnd, rec.BaseRecord, "", rec); err != nil {
			return nil, err
		}
	}
	for _, rec := range doc.Splitters {
		if err := add(domain.KindSplitter, rec.BaseRecord, rec.ParentHeadEndID, rec); err != nil {
			return nil, err
		}
	}
	for _, rec := range doc.CustomerDrops {
		if err := add(domain.KindCustomerDrop, rec.BaseRecord, rec.ParentSplitterID, rec); err != nil {
			return nil, err
		}
	}
	for _, rec := range doc.FiberRoutes {
		if err := add(domain.KindFiberRoute, rec.BaseRecord, "", rec); err != nil {
			return nil, err
		}
	}
	for _, rec := range doc.Complaints {
		if err := add(domain.KindComplaint, rec.BaseRecord, rec.CustomerID, rec); err != nil {
			return nil, err
		}
	}

	return rows, nil
}

func newDocument() *codec.Document {
	return &codec.Document{
		SchemaVersion: codec.SchemaVersion,
		HeadEnds:      make([]codec.HeadEndRecord, 0),
		Splitters:     make([]codec.SplitterRecord, 0),
		CustomerDrops: make([]codec.CustomerDropRecord, 0),
		FiberRoutes:   make([]codec.FiberRouteRecord, 0),
		Complaints:    make([]codec.ComplaintRecord, 0),
	}
}

// ============================================================================
// History Row Scanner
// ============================================================================

type historyRow struct {
	ID        string
	Op        string
	ElementID sql.NullString
	Revision  int64
	Detail    sql.NullString
	CreatedAt string
}

// historyColumns is the SELECT column list for history queries
const historyColumns = `id, op, element_id, revision, detail, created_at`

func (r *historyRow) scanArgs() []any {
	return []any{
		&r.ID,
		&r.Op,
		&r.ElementID,
		&r.Revision,
		&r.Detail,
		&r.CreatedAt,
	}
}

func (r *historyRow) toEntry() (repository.HistoryEntry, error) {
	at, err := textToTime(r.CreatedAt)
	if err != nil {
		return repository.HistoryEntry{}, err
	}
	return repository.HistoryEntry{
		ID:        r.ID,
		Op:        r.Op,
		ElementID: nullToString(r.ElementID),
		Revision:  uint64(r.Revision),
		Detail:    nullToString(r.Detail),
		At:        at,
	}, nil
}
