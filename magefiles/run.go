//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the testbed. FRAMES and CONFIG are passed on as -frames and -config.
func (Run) Engine() error {
	args := []string{"run", "."}
	if frames := os.Getenv("FRAMES"); frames != "" {
		args = append(args, "-frames", frames)
	}
	if config := os.Getenv("CONFIG"); config != "" {
		args = append(args, "-config", config)
	}
	fmt.Println("Run engine...")
	return goCmd(args...)
}
