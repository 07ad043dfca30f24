// Package domain defines the core types of the fiber network topology model.
//
// The topology is a containment hierarchy of physical network elements:
//
//	HeadEnd (OLT) -> Splitter -> CustomerDrop -> Complaint
//
// FiberRoute elements stand beside the hierarchy; they carry strand capacity
// but never contain other elements.
//
// # Elements
//
// Element is a closed sum type. Every concrete kind embeds Base, which owns
// identity, label, location, status and installation time. Kind-specific
// capacity fields live on the concrete structs. Derived counters
// (HeadEnd.UsedPorts, HeadEnd.ChildSplitterCount,
// Splitter.ConnectedCustomerCount) are caches: they are only ever written by
// aggregate recomputation in the topology package and are never trusted from
// input.
//
// # Drafts
//
// Draft is the add-element form payload. Draft.Validate checks field presence
// and numeric ranges; placement and capacity checks belong to the topology
// package.
//
// # Errors
//
// Failures are sentinel errors (ErrNotFound, ErrParentAtCapacity, ...) wrapped
// with context. Code maps any wrapped error back to a stable string code.
//
// # Design Principles
//
// - No database or transport dependencies
// - Exhaustive type switches over the element kinds instead of string comparison
// - Typed enumerations with Parse helpers
package domain
