package testutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
)

var (
	buildMu  sync.Mutex
	binaryPath string
)

// CLIResult is the decoded --json envelope of one crate invocation.
type CLIResult struct {
	OK       bool                   `json:"ok"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Error    *CLIError              `json:"error,omitempty"`
	Warnings []CLIWarning           `json:"warnings,omitempty"`
	Meta     *CLIMeta               `json:"meta,omitempty"`

	RawJSON  string `json:"-"`
	ExitCode int    `json:"-"`
}

// CLIError is the error object of a failed command.
type CLIError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
}

// CLIWarning is a non-fatal warning, such as AMBIGUOUS_CAST.
type CLIWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Key     string `json:"key,omitempty"`
	Value   string `json:"value,omitempty"`
}

// CLIMeta carries result counts and timing.
type CLIMeta struct {
	Count       int   `json:"count,omitempty"`
	QueryTimeMs int64 `json:"query_time_ms,omitempty"`
}

// BuildCLI builds cmd/crate once per test binary and returns its path.
// A binary removed by temp cleanup is rebuilt.
func BuildCLI(t *testing.T) string {
	t.Helper()

	buildMu.Lock()
	defer buildMu.Unlock()

	if binaryPath != "" {
		if _, err := os.Stat(binaryPath); err == nil {
			return binaryPath
		}
	}

	root, err := moduleRoot()
	if err != nil {
		t.Fatalf("failed to find module root: %v", err)
	}
	dir, err := os.MkdirTemp("", "crate-cli-bin-*")
	if err != nil {
		t.Fatalf("failed to create build dir: %v", err)
	}
	name := "crate"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	out := filepath.Join(dir, name)

	cmd := exec.Command("go", "build", "-o", out, "./cmd/crate")
	cmd.Dir = root
	if output, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to build CLI: %v\n%s", err, output)
	}
	binaryPath = out
	return binaryPath
}

// moduleRoot walks up from the working directory to the directory holding go.mod.
func moduleRoot() (string, error) {
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
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// RunCLI runs crate against the library's index and config with --json and
// decodes the envelope. Only stdout is decoded; logs go to stderr.
func (l *TestLibrary) RunCLI(args ...string) *CLIResult {
	l.t.Helper()

	argv := append([]string{"--library", l.IndexPath, "--config", l.ConfigPath, "--json"}, args...)
	cmd := exec.Command(BuildCLI(l.t), argv...)
	stdout, err := cmd.Output()

	result := &CLIResult{RawJSON: string(stdout)}
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	case err != nil:
		result.ExitCode = -1
	}

	if err := json.Unmarshal(stdout, result); err != nil {
		result.OK = false
		result.Error = &CLIError{
			Code:    "PARSE_ERROR",
			Message: fmt.Sprintf("failed to parse JSON output: %v", err),
		}
	}
	return result
}

// MustSucceed fails the test unless the command reported ok.
func (r *CLIResult) MustSucceed(t *testing.T) *CLIResult {
	t.Helper()
	if !r.OK {
		msg := "unknown error"
		if r.Error != nil {
			msg = r.Error.Code + ": " + r.Error.Message
		}
		t.Fatalf("expected command to succeed, got %s\nRaw output: %s", msg, r.RawJSON)
	}
	return r
}

// MustFail fails the test unless the command failed with code.
func (r *CLIResult) MustFail(t *testing.T, code string) *CLIResult {
	t.Helper()
	switch {
	case r.OK:
		t.Fatalf("expected command to fail with %s, but it succeeded\nRaw output: %s", code, r.RawJSON)
	case r.Error == nil:
		t.Fatalf("expected error %s, got none\nRaw output: %s", code, r.RawJSON)
	case r.Error.Code != code:
		t.Fatalf("expected error %s, got %s: %s\nRaw output: %s", code, r.Error.Code, r.Error.Message, r.RawJSON)
	}
	return r
}

// DataList returns the list stored under key in the data object.
func (r *CLIResult) DataList(key string) []interface{} {
	list, _ := r.Data[key].([]interface{})
	return list
}

// DataString returns the string stored under key in the data object.
func (r *CLIResult) DataString(key string) string {
	s, _ := r.Data[key].(string)
	return s
}
