// Package errors provides structured error types shared across the
// monitoring components. Every error carries an ErrorCode from the
// fixed taxonomy (unreachable, auth failed, timeout, invalid sample,
// config error, probe error) so callers can branch on classification
// instead of string matching.
package errors
