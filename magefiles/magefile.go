//go:build mage

// Package main contains Mage build targets for developer tooling: binary
// builds, test runs, and lint.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binDir = "bin"

// binaries maps output names to their main packages.
var binaries = map[string]string{
	"analytics": "./cmd/analytics",
	"trends":    "./cmd/trends",
	"genmock":   "./cmd/genmock",
	"validate":  "./cmd/validate",
}

// Build compiles every binary into bin/, stamping the version from git.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}

	version, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || version == "" {
		version = "dev"
	}
	ldflags := "-X main.version=" + version

	for name, pkg := range binaries {
		out := filepath.Join(binDir, name)
		if err := sh.RunV("go", "build", "-ldflags", ldflags, "-o", out, pkg); err != nil {
			return fmt.Errorf("go build %s: %w", pkg, err)
		}
		fmt.Printf("Built %s\n", out)
	}
	return nil
}

// Test runs the unit test suite.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Integration runs the Kafka integration tests. Docker must be available.
func Integration() error {
	return sh.RunV("go", "test", "-tags", "integration", "-timeout", "10m", "./internal/integration/...")
}

// Lint vets the module.
func Lint() error {
	return sh.RunV("go", "vet", "./...")
}

// Check runs lint and the unit tests.
func Check() {
	mg.Deps(Lint, Test)
}

// Clean removes built binaries.
func Clean() error {
	return sh.Rm(binDir)
}
