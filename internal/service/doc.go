// Package service implements the business logic of the fibermap server.
//
// It coordinates the topology registry, the layer controller and the map
// interaction machine with the repository, and publishes what changed.
//
// # Services
//
// NetworkService is the single writer over the topology. It serialises
// every operation behind one mutex. A mutation is applied to a clone of the
// registry, the clone is exported and saved, and only then does it replace
// the live registry. A rejected or unsaved mutation leaves the live state
// exactly as it was.
//
// Committed mutations append a history row; history failures are logged but
// do not undo the mutation.
//
// # Event System
//
// The service publishes events via EventBus for real-time updates to
// connected clients via Server-Sent Events (SSE): element_created,
// element_updated, element_removed, topology_imported, layers_changed and
// map_state_changed. Slow subscribers miss events rather than block writers.
package service
