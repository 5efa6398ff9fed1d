// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"testing"
)

func TestExitCode(t *testing.T) {
	usage := Usagef("unknown flag %q", "--bogus")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), 1},
		{"usage", usage, 2},
		{"wrapped usage", fmt.Errorf("parsing flags: %w", usage), 2},
	}
	for _, test := range tests {
		if got := ExitCode(test.err); got != test.want {
			t.Errorf("%s: ExitCode = %d, want %d", test.name, got, test.want)
		}
	}
}

func TestReportFormat(t *testing.T) {
	var buffer bytes.Buffer
	report(&buffer, errors.New("config: server.address is required"))
	if got := buffer.String(); got != "error: config: server.address is required\n" {
		t.Errorf("report wrote %q", got)
	}
}

// TestFatalExits runs Fatal in a subprocess and checks its exit status.
func TestFatalExits(t *testing.T) {
	if os.Getenv("PROCESS_TEST_FATAL") == "1" {
		Fatal(Usagef("bad invocation"))
		return
	}

	command := exec.Command(os.Args[0], "-test.run=^TestFatalExits$")
	command.Env = append(os.Environ(), "PROCESS_TEST_FATAL=1")
	var stderr bytes.Buffer
	command.Stderr = &stderr
	err := command.Run()

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected exit error, got %v", err)
	}
	if exitErr.ExitCode() != 2 {
		t.Errorf("exit code = %d, want 2", exitErr.ExitCode())
	}
	if !bytes.Contains(stderr.Bytes(), []byte("error: bad invocation")) {
		t.Errorf("stderr = %q", stderr.String())
	}
}
