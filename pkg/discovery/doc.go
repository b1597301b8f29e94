// Package discovery coordinates probes across hosts: the Coordinator
// merges one host's probe results into a HostRecord, and the
// Orchestrator fans coordinators out across the fleet under a bounded
// concurrency limit, producing one immutable Snapshot per run.
package discovery
