// Package support holds the step definitions of the CLI feature suite.
package support

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TestContext is the state of one scenario. Every scenario runs the binary
// in its own empty working directory.
type TestContext struct {
	Binary  string
	WorkDir string
	EnvVars []string

	LastCommand  string
	LastStdout   string
	LastStderr   string
	LastError    error
	LastExitCode int
	LastDuration time.Duration
}

// NewTestContext creates the scenario directory.
func NewTestContext(binary string) (*TestContext, error) {
	dir, err := os.MkdirTemp("", "formflow-cli-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	return &TestContext{
		Binary:  binary,
		WorkDir: dir,
		// Keeps a developer's own configuration out of the scenarios.
		EnvVars: []string{"XDG_CONFIG_HOME=" + filepath.Join(dir, ".xdg")},
	}, nil
}

// Cleanup removes the scenario directory.
func (tc *TestContext) Cleanup() error {
	if err := os.RemoveAll(tc.WorkDir); err != nil {
		return fmt.Errorf("remove %s: %w", tc.WorkDir, err)
	}
	return nil
}

// AddEnvVar sets an environment variable for the following commands.
func (tc *TestContext) AddEnvVar(name, value string) {
	tc.EnvVars = append(tc.EnvVars, name+"="+value)
}

// path resolves name inside the scenario directory.
func (tc *TestContext) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(tc.WorkDir, name)
}
