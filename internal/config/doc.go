// Package config loads and validates application settings from defaults, an
// optional YAML file, and SCRY_ environment variables, and converts them into
// the values the scheduling, due, stats, and sweep components are built from.
package config
