//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Runs go mod download and then builds the testbed binary into <module>/bin.
func (Build) Engine() error {
	if err := goCmd("mod", "download"); err != nil {
		return err
	}
	mod, err := goEnv("GOMOD")
	if err != nil {
		return err
	}
	out := filepath.Join(filepath.Dir(mod), "bin", "mcengine")
	return goCmd("build", "-o", out, ".")
}

// Runs go vet over every package.
func (Build) Vet() error {
	return goCmd("vet", "./...")
}

// Runs the unit tests with the race detector.
func (Build) Test() error {
	mg.Deps(Build.Vet)
	return goCmd("test", "-race", "-count=1", "./...")
}

// Tidies go.mod and regenerates generated sources.
func (Build) Tidy() error {
	return goTidy()
}
