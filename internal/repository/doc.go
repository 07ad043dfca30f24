// Package repository defines the persistence boundary for fibermap.
//
// The topology core never talks to storage directly. The service hands the
// repository a complete codec.Document after every committed mutation and
// reads one back at start-up, so stored data passes through the same import
// validation as any other document: nothing loaded from disk is trusted.
//
// # SQLite Implementation
//
// The sqlite subpackage stores one row per element (indexed by kind and
// parent) plus a metadata table for controller settings and an append-only
// history table recording every committed mutation. The schema is created
// on open with CREATE TABLE IF NOT EXISTS.
//
// # Testing
//
// The sqlite repository is tested against in-memory databases.
package repository
