// Package testutil provides deterministic fixtures for tests: a seeded,
// thread-safe RNG and synthetic track generators with known cluster
// structure.
package testutil
