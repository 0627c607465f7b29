//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target when running mage without arguments.
var Default = Build

const wireDir = "./internal/app"

// Build builds the server binary.
func Build() error {
	mg.Deps(Wire)
	fmt.Println("Building server...")
	return sh.Run("go", "build", "-o", "bin/billing-svc", "./cmd/server")
}

// Wire regenerates the dependency injection code.
func Wire() error {
	fmt.Println("Running wire...")
	if err := sh.Run("wire", wireDir); err != nil {
		return fmt.Errorf("wire %s: %w", wireDir, err)
	}
	return nil
}

// Test runs all tests with the race detector.
func Test() error {
	fmt.Println("Running tests...")
	return sh.Run("go", "test", "-race", "./...")
}

// TestCover runs tests with coverage.
func TestCover() error {
	fmt.Println("Running tests with coverage...")
	return sh.Run("go", "test", "-cover", "-coverprofile=coverage.out", "./...")
}

// Lint runs golangci-lint.
func Lint() error {
	fmt.Println("Running linter...")
	return sh.Run("golangci-lint", "run", "./...")
}

// Vet runs go vet.
func Vet() error {
	return sh.Run("go", "vet", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	fmt.Println("Cleaning...")
	for _, path := range []string{"bin", "coverage.out"} {
		if err := sh.Rm(path); err != nil {
			return fmt.Errorf("removing %s: %w", path, err)
		}
	}
	return nil
}

// Tidy runs go mod tidy.
func Tidy() error {
	return sh.Run("go", "mod", "tidy")
}

// CI runs tidy, wire, vet and tests with coverage.
func CI() error {
	mg.SerialDeps(Tidy, Wire, Vet, TestCover)
	return nil
}

// Dev builds and runs the server against ./configs/config.yaml.
func Dev() error {
	mg.Deps(Build)
	fmt.Println("Starting server...")
	cmd := exec.Command("./bin/billing-svc", "-config", "configs/config.yaml")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Install installs development tools.
func Install() error {
	tools := []string{
		"github.com/google/wire/cmd/wire@latest",
		"github.com/golangci/golangci-lint/cmd/golangci-lint@latest",
	}
	for _, tool := range tools {
		fmt.Printf("  Installing %s\n", tool)
		if err := sh.Run("go", "install", tool); err != nil {
			return fmt.Errorf("installing %s: %w", tool, err)
		}
	}
	return nil
}
