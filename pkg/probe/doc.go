// Package probe implements single-host discovery checks: network
// reachability, port scanning, SSH facts, container, database, and
// storage inspection.
//
// Every probe satisfies one contract: Run(ctx, host, cfg) returns a
// populated ProbeResult and never an error. Failures inside a probe
// are encoded as result statuses (unreachable, auth_failed, timeout,
// error); Execute adds the hard deadline and panic isolation so a
// broken probe cannot take its coordinator down with it.
//
// Probes are registered through a static Factory/Registry pair; the
// set of probe kinds is closed.
package probe
