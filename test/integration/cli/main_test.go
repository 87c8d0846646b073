package cli_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/formflow/test/integration/cli/support"
	"github.com/cucumber/godog"
)

// binPath is the formflow binary built once for the whole suite.
var binPath string

func InitializeScenario(sc *godog.ScenarioContext) {
	tc, err := support.NewTestContext(binPath)
	if err != nil {
		panic(fmt.Sprintf("create test context: %v", err))
	}
	tc.RegisterCommonSteps(sc)
	tc.RegisterImageSteps(sc)

	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		if err := tc.Cleanup(); err != nil {
			fmt.Printf("Warning: cleanup failed: %v\n", err)
		}
		return ctx, nil
	})
}

func TestFeatures(t *testing.T) {
	entries, err := os.ReadDir("features")
	if err != nil {
		t.Fatalf("read features directory: %v", err)
	}

	format := os.Getenv("GODOG_FORMAT")
	if format == "" {
		format = "pretty"
	}

	found := false
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".feature") {
			continue
		}
		found = true
		path := filepath.Join("features", e.Name())
		t.Run(e.Name(), func(t *testing.T) {
			suite := godog.TestSuite{
				ScenarioInitializer: InitializeScenario,
				Options: &godog.Options{
					Format:   format,
					Tags:     os.Getenv("GODOG_TAGS"),
					Paths:    []string{path},
					TestingT: t,
				},
			}
			if suite.Run() != 0 {
				t.Fatalf("non-zero status returned for %s", path)
			}
		})
	}
	if !found {
		t.Fatal("no .feature files found in features/")
	}
}

// TestMain builds bin/formflow at the project root unless it already exists.
func TestMain(m *testing.M) {
	root, err := projectRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "locate project root: %v\n", err)
		os.Exit(1)
	}
	binDir := filepath.Join(root, "bin")
	binPath = filepath.Join(binDir, "formflow")

	if _, err := os.Stat(binPath); os.IsNotExist(err) {
		if err := os.MkdirAll(binDir, 0o750); err != nil {
			fmt.Fprintf(os.Stderr, "create bin dir: %v\n", err)
			os.Exit(1)
		}
		build := exec.CommandContext(context.Background(), "go", "build", "-o", binPath, "./cmd/formflow")
		build.Dir = root
		build.Env = os.Environ()
		if out, err := build.CombinedOutput(); err != nil {
			fmt.Fprintf(os.Stderr, "build formflow: %v\n%s\n", err, out)
			os.Exit(1)
		}
	}
	os.Exit(m.Run())
}

func projectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found")
		}
		dir = parent
	}
}
