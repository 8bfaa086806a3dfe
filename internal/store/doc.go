// Package store provides SQLite-backed storage for the local document
// emulator.
//
// Each row holds one wire-form document of a collection:
//   - id_key: canonical JSON of the document's _id, unique per collection
//   - seq: insertion order, the only ordering used by reads
//   - body: canonical JSON of the whole document
//   - hash: content hash of body, used to detect no-op replacements
//
// # Deterministic Reads
//
// Scan returns documents ORDER BY seq ASC, so paging by offset is stable
// as long as the collection is not modified between pages.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - Single connection: SQLite allows one writer at a time
//
// Canonical JSON and hashes come from internal/ir (RFC 8785, SHA-256 with
// domain separation).
package store
