// Package logging wraps log/slog with the conventions shared by all
// sidra-monitoring components: structured JSON output to stderr,
// LOG_LEVEL environment configuration, and module/version context on
// every record.
package logging
