package tests

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// TestFunctional runs every .weft file under testdata/ through the built
// CLI binary and compares combined stdout+stderr against its sibling
// .want file. This exercises the actual user-facing surface (compile
// errors, runtime errors, and successful output alike) rather than the
// packages in isolation.
func TestFunctional(t *testing.T) {
	projectRoot, err := filepath.Abs("..")
	if err != nil {
		t.Fatalf("failed to get project root: %v", err)
	}

	binaryPath := filepath.Join(projectRoot, "weft-test-binary")
	defer os.Remove(binaryPath)

	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/weft")
	cmd.Dir = projectRoot
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to build binary: %v\n%s", err, output)
	}

	entries, err := filepath.Glob(filepath.Join("testdata", "*.weft"))
	if err != nil {
		t.Fatalf("failed to glob testdata: %v", err)
	}
	if len(entries) == 0 {
		t.Skip("no .weft files found under testdata/")
	}

	for _, sourceFile := range entries {
		sourceFile := sourceFile
		testName := strings.TrimSuffix(filepath.Base(sourceFile), ".weft")

		t.Run(testName, func(t *testing.T) {
			wantFile := strings.TrimSuffix(sourceFile, ".weft") + ".want"
			wantBytes, err := os.ReadFile(wantFile)
			if err != nil {
				t.Fatalf("failed to read .want file: %v", err)
			}
			want := strings.TrimSpace(string(wantBytes))

			absPath, err := filepath.Abs(sourceFile)
			if err != nil {
				t.Fatalf("failed to get absolute path: %v", err)
			}

			run := exec.Command(binaryPath, "-disasm=false", absPath)
			var stdout, stderr bytes.Buffer
			run.Stdout = &stdout
			run.Stderr = &stderr
			_ = run.Run()

			got := strings.TrimSpace(stdout.String())
			if stderrStr := strings.TrimSpace(stderr.String()); stderrStr != "" {
				stderrStr = strings.ReplaceAll(stderrStr, absPath, filepath.Base(sourceFile))
				if got != "" {
					got += "\n" + stderrStr
				} else {
					got = stderrStr
				}
			}

			if got != want {
				t.Errorf("output mismatch:\n--- want ---\n%s\n--- got ---\n%s", want, got)
			}
		})
	}
}
