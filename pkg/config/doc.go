// Package config resolves application settings from built-in defaults,
// an optional YAML file, and SIDRA_* environment variables, in that
// order.
package config
