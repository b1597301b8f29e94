// Package edge implements the per-host agent: it periodically samples
// local system, GPU, and service metrics and pushes them to the central
// collector. Delivery is at most once per tick with no local queue;
// samples lost during a collector outage are not backfilled.
package edge
