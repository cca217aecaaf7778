// Package config loads the layered runtime configuration: built-in
// defaults, then an optional YAML file, then TRACKGRAPH_ environment
// variables.
package config
