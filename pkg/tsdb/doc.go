// Package tsdb ships accepted metrics samples to an external
// time-series store. Delivery is best effort: a failed write is logged
// by the caller and the sample dropped.
package tsdb
