// Package lucien organizes a personal document library in four phases:
// scan an immutable source tree into a SQLite catalog, extract text into
// gzip sidecars through a pool of isolated worker processes, label each
// document with a local LLM, and plan then materialize a reorganized
// staging mirror. Every phase is resumable and idempotent; the source tree
// is never written to.
package lucien
