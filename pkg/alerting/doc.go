// Package alerting evaluates metrics samples against threshold rules
// and tracks per (host, metric) alert state through the ok, warning,
// and critical lifecycle. Transitions are serialized per key, versioned,
// and deduplicated: a repeated sample at the same severity updates
// last-seen without firing again.
package alerting
