// Package ingest implements the central collector HTTP service. It
// receives metrics pushes from edge agents, validates and stores the
// latest sample per host in a bounded ring, feeds the alert engine, and
// serves the alert and inventory query endpoints.
package ingest
