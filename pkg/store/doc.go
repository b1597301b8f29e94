// Package store persists discovery snapshots and alert transition
// events to SQLite. It is an audit sink: writes that fail are logged by
// the caller and never block ingest or discovery.
package store
