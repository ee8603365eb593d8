// Package storage persists tenant schedule records as plain key/value fields.
//
// Drivers:
//   - "memory": process-local map (tests, dry runs)
//   - "file": JSON Lines journal compacted into a JSON snapshot
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//
// Every driver is namespaced so the calendar and weather extensions can share
// one path without seeing each other's tenants.
package storage
