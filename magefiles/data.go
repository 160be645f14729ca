//go:build mage

package main

import "github.com/magefile/mage/sh"

// dataDir is where the mock dataset generator writes and the validator reads.
const dataDir = "data"

// Mock generates a deterministic mock dataset under data/.
func Mock() error {
	return sh.RunV("go", "run", "./cmd/genmock", "-out", dataDir)
}

// Validate runs the phase validator against data/.
func Validate() error {
	return sh.RunV("go", "run", "./cmd/validate", "-data-dir", dataDir)
}
