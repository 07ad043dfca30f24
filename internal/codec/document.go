// Package codec is the import/export gateway: it turns a topology registry
// into a portable document partitioned by kind and back, in JSON or YAML.
//
// Derived counters are written on export for readers' convenience but are
// never trusted on import; Import recomputes them and re-checks every
// registry invariant, failing the whole document on any violation.
package codec

import (
	"time"

	"fibermap/internal/domain"
)

// SchemaVersion is the document version written by Export. Documents with
// no version are treated as version 1.
const SchemaVersion = 1

// Document is the portable form of a whole registry
type Document struct {
	SchemaVersion int       `json:"schemaVersion" yaml:"schemaVersion"`
	ExportedAt    time.Time `json:"exportedAt" yaml:"exportedAt"`
	Revision      uint64    `json:"revision" yaml:"revision"`
	Checksum      string    `json:"checksum,omitempty" yaml:"checksum,omitempty"`

	// Sequences holds the last id number assigned per kind, so ids of
	// removed elements are never handed out again
	Sequences map[string]int `json:"sequences,omitempty" yaml:"sequences,omitempty"`

	HeadEnds      []HeadEndRecord      `json:"headEnds" yaml:"headEnds"`
	Splitters     []SplitterRecord     `json:"splitters" yaml:"splitters"`
	CustomerDrops []CustomerDropRecord `json:"customerDrops" yaml:"customerDrops"`
	FiberRoutes   []FiberRouteRecord   `json:"fiberRoutes" yaml:"fiberRoutes"`
	Complaints    []ComplaintRecord    `json:"complaints" yaml:"complaints"`
}

// Len returns the number of element records
func (d *Document) Len() int {
	return len(d.HeadEnds) + len(d.Splitters) + len(d.CustomerDrops) + len(d.FiberRoutes) + len(d.Complaints)
}

// BaseRecord holds the fields shared by every record
type BaseRecord struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	Location    domain.Coordinate `json:"location" yaml:"location"`
	Status      string            `json:"status" yaml:"status"`
	InstalledAt time.Time         `json:"installedAt" yaml:"installedAt"`
}

type HeadEndRecord struct {
	BaseRecord         `yaml:",inline"`
	CapacityPorts      int `json:"capacityPorts" yaml:"capacityPorts"`
	UsedPorts          int `json:"usedPorts" yaml:"usedPorts"`
	ChildSplitterCount int `json:"childSplitterCount" yaml:"childSplitterCount"`
}

type SplitterRecord struct {
	BaseRecord             `yaml:",inline"`
	SplitRatio             string `json:"splitRatio" yaml:"splitRatio"`
	ParentHeadEndID        string `json:"parentHeadEndId" yaml:"parentHeadEndId"`
	ConnectedCustomerCount int    `json:"connectedCustomerCount" yaml:"connectedCustomerCount"`
}

type CustomerDropRecord struct {
	BaseRecord       `yaml:",inline"`
	ParentSplitterID string     `json:"parentSplitterId" yaml:"parentSplitterId"`
	PlanLabel        string     `json:"planLabel" yaml:"planLabel"`
	LastPaymentDate  *time.Time `json:"lastPaymentDate,omitempty" yaml:"lastPaymentDate,omitempty"`
}

type FiberRouteRecord struct {
	BaseRecord      `yaml:",inline"`
	Path            []domain.Coordinate `json:"path" yaml:"path"`
	LengthKm        float64             `json:"lengthKm" yaml:"lengthKm"`
	CableType       string              `json:"cableType" yaml:"cableType"`
	CapacityStrands int                 `json:"capacityStrands" yaml:"capacityStrands"`
	UsedStrands     int                 `json:"usedStrands" yaml:"usedStrands"`
}

type ComplaintRecord struct {
	BaseRecord           `yaml:",inline"`
	CustomerID           string `json:"customerId" yaml:"customerId"`
	Priority             string `json:"priority" yaml:"priority"`
	AssignedTechnicianID string `json:"assignedTechnicianId,omitempty" yaml:"assignedTechnicianId,omitempty"`
}

func baseRecord(b *domain.Base) BaseRecord {
	return BaseRecord{
		ID:          b.ID,
		Name:        b.Name,
		Location:    b.Location,
		Status:      string(b.Status),
		InstalledAt: b.InstalledAt,
	}
}
