// Package util provides shared utility functions.
package util

import (
	"fmt"
	"os"
	"os/exec"
)

// FindBinary resolves an external tool by name. An env var override
// wins, then a copy sitting next to the working directory, then PATH.
// Candidates must exist and carry an executable bit.
func FindBinary(name string, envVar string) (string, error) {
	var candidates []string
	if envVar != "" {
		if envPath := os.Getenv(envVar); envPath != "" {
			candidates = append(candidates, envPath)
		}
	}
	candidates = append(candidates, "./"+name)

	for _, candidate := range candidates {
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	// LookPath verifies the executable bit itself.
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("binary %s not found", name)
}

// isExecutable reports whether path is a regular file the current user
// could execute.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}
