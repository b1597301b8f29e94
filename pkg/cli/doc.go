// Package cli implements the sidra command line interface: fleet
// discovery runs, the edge agent, the central collector, and rule
// file tooling.
package cli
