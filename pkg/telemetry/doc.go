// Package telemetry defines the metrics sample exchanged between edge
// collectors and the central ingest endpoint.
package telemetry
