// Package inventory defines the discovery data model: host identities,
// probe results, per-host records, and the immutable snapshot produced
// by one fleet discovery run.
package inventory
