//go:build mage

package main

import (
	"fmt"
	"strings"

	"github.com/magefile/mage/sh"
)

// goCmd runs the go tool with its output attached to the terminal.
func goCmd(args ...string) error {
	fmt.Printf("Executing: go %s\n", strings.Join(args, " "))
	if err := sh.RunV("go", args...); err != nil {
		return fmt.Errorf("go %s: %w", args[0], err)
	}
	return nil
}

// goEnv returns the value of a go env variable, used to locate the module root.
func goEnv(key string) (string, error) {
	return sh.Output("go", "env", key)
}

func goTidy() error {
	if err := goCmd("mod", "tidy"); err != nil {
		return err
	}
	return goCmd("generate", "./...")
}
