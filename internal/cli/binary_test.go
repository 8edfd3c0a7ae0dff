package cli

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// cleanEnv drops every PDQ_ variable so a developer's settings cannot leak
// into the binary under test.
func cleanEnv() []string {
	out := make([]string, 0, len(os.Environ()))
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, "PDQ_") {
			continue
		}
		out = append(out, e)
	}
	return out
}

func repoRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	// internal/cli -> repo root
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

func goExe() string {
	if runtime.GOOS == "windows" {
		return "go.exe"
	}
	return "go"
}

func buildBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("builds the pdqctl binary")
	}

	outPath := filepath.Join(t.TempDir(), "pdqctl-test")
	if runtime.GOOS == "windows" {
		outPath += ".exe"
	}

	cmd := exec.Command(goExe(), "build", "-o", outPath, "./cmd/pdqctl")
	cmd.Dir = repoRoot(t)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build pdqctl binary: %v; output=%s", err, string(out))
	}

	return outPath
}

func exitCode(t *testing.T, err error, out []byte) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %T: %v; output=%s", err, err, string(out))
	}
	return exitErr.ProcessState.ExitCode()
}

func TestBinary_ExitCode3_WhenFormatInvalid(t *testing.T) {
	binary := buildBinary(t)
	cmd := exec.Command(binary, "schemas", "list", "--format", "xml")
	cmd.Env = cleanEnv()

	out, err := cmd.CombinedOutput()
	if code := exitCode(t, err, out); code != 3 {
		t.Fatalf("expected exit code 3, got %d; output=%s", code, string(out))
	}
	if !strings.Contains(string(out), "unsupported --format: xml") {
		t.Fatalf("expected validation message; output=%s", string(out))
	}
}

func TestBinary_ExitCode1_WhenServerUnreachable(t *testing.T) {
	binary := buildBinary(t)
	// Port 1 on loopback refuses connections.
	cmd := exec.Command(binary, "schemas", "list", "--server", "http://127.0.0.1:1", "--timeout", "5s", "--log-level", "disabled")
	cmd.Env = cleanEnv()

	out, err := cmd.CombinedOutput()
	if code := exitCode(t, err, out); code != 1 {
		t.Fatalf("expected exit code 1, got %d; output=%s", code, string(out))
	}
	if !strings.Contains(string(out), "[FAILED] could not load schemas") {
		t.Fatalf("expected failure line; output=%s", string(out))
	}
}

func TestBinary_ExitCode3_WhenTokenFileMissing(t *testing.T) {
	binary := buildBinary(t)
	cmd := exec.Command(binary, "schemas", "list")
	cmd.Env = append(cleanEnv(), "PDQ_TOKEN_FILE="+filepath.Join(t.TempDir(), "missing"))

	out, err := cmd.CombinedOutput()
	if code := exitCode(t, err, out); code != 3 {
		t.Fatalf("expected exit code 3, got %d; output=%s", code, string(out))
	}
	if !strings.Contains(string(out), "does not exist") {
		t.Fatalf("expected token file message; output=%s", string(out))
	}
}

func TestBinary_Help_DocumentsOutputAndExitCodes(t *testing.T) {
	binary := buildBinary(t)
	cmd := exec.Command(binary, "schemas", "list", "--help")
	cmd.Env = cleanEnv()

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("expected zero exit; err=%v; output=%s", err, string(out))
	}

	s := string(out)
	// Help must keep documenting machine-readable output and exit status.
	required := []string{
		"Output:",
		"Exit codes:",
		"fetch.started",
		"fetch.resolved",
		"Environment:",
		"PDQ_TOKEN",
	}
	for _, r := range required {
		if !strings.Contains(s, r) {
			t.Fatalf("expected schemas list --help to contain %q; output=%s", r, s)
		}
	}
}
