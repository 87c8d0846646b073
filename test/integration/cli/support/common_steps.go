package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// RegisterCommonSteps registers command execution and output checks.
func (tc *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, tc.iRunCommand)
	sc.Step(`^the environment variable "([^"]*)" is "([^"]*)"$`, tc.theEnvironmentVariableIs)
	sc.Step(`^the command should succeed$`, tc.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, tc.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, tc.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, tc.theOutputShouldNotContain)
	sc.Step(`^the error output should contain "([^"]*)"$`, tc.theErrorOutputShouldContain)
	sc.Step(`^the JSON output should have field "([^"]*)"$`, tc.theJSONOutputShouldHaveField)
	sc.Step(`^the file "([^"]*)" should exist$`, tc.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, tc.theFileShouldContain)
}

// iRunCommand runs command in the scenario directory. A leading "formflow"
// resolves to the binary under test.
func (tc *TestContext) iRunCommand(command string) error {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}
	if parts[0] == "formflow" {
		parts[0] = tc.Binary
	}
	tc.LastCommand = command

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...) //nolint:gosec // G204: scenario commands
	cmd.Dir = tc.WorkDir
	cmd.Env = append(os.Environ(), tc.EnvVars...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	start := time.Now()
	err := cmd.Run()
	tc.LastDuration = time.Since(start)
	tc.LastStdout = stdout.String()
	tc.LastStderr = stderr.String()
	tc.LastError = err

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		tc.LastExitCode = 0
	case errors.As(err, &exitErr):
		tc.LastExitCode = exitErr.ExitCode()
	default:
		tc.LastExitCode = -1
	}
	return nil
}

func (tc *TestContext) theEnvironmentVariableIs(name, value string) error {
	tc.AddEnvVar(name, value)
	return nil
}

func (tc *TestContext) theCommandShouldSucceed() error {
	if tc.LastExitCode != 0 {
		return fmt.Errorf("%q failed with exit code %d: %v\nstderr: %s",
			tc.LastCommand, tc.LastExitCode, tc.LastError, tc.LastStderr)
	}
	return nil
}

func (tc *TestContext) theCommandShouldFail() error {
	if tc.LastExitCode == 0 {
		return fmt.Errorf("%q succeeded when it should have failed\nstdout: %s", tc.LastCommand, tc.LastStdout)
	}
	return nil
}

func (tc *TestContext) theOutputShouldContain(text string) error {
	if !strings.Contains(tc.LastStdout, text) {
		return fmt.Errorf("output does not contain %q\nActual output: %s", text, tc.LastStdout)
	}
	return nil
}

func (tc *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(tc.LastStdout, text) {
		return fmt.Errorf("output contains %q\nActual output: %s", text, tc.LastStdout)
	}
	return nil
}

func (tc *TestContext) theErrorOutputShouldContain(text string) error {
	if !strings.Contains(tc.LastStderr, text) {
		return fmt.Errorf("stderr does not contain %q\nActual stderr: %s", text, tc.LastStderr)
	}
	return nil
}

// theJSONOutputShouldHaveField checks a dotted field path in the JSON
// document printed on stdout.
func (tc *TestContext) theJSONOutputShouldHaveField(field string) error {
	var data map[string]any
	if err := json.Unmarshal([]byte(tc.LastStdout), &data); err != nil {
		return fmt.Errorf("output is not a JSON object: %w\n%s", err, tc.LastStdout)
	}
	parts := strings.Split(field, ".")
	current := data
	for i, part := range parts {
		val, ok := current[part]
		if !ok {
			return fmt.Errorf("field %q not found in JSON", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return nil
		}
		next, ok := val.(map[string]any)
		if !ok {
			return fmt.Errorf("cannot navigate into non-object field %q", part)
		}
		current = next
	}
	return nil
}

func (tc *TestContext) theFileShouldExist(name string) error {
	if _, err := os.Stat(tc.path(name)); err != nil {
		return fmt.Errorf("file %s: %w", name, err)
	}
	return nil
}

func (tc *TestContext) theFileShouldContain(name, text string) error {
	data, err := os.ReadFile(tc.path(name))
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if !strings.Contains(string(data), text) {
		return fmt.Errorf("%s does not contain %q\n%s", name, text, data)
	}
	return nil
}
