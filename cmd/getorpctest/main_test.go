package main

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/bgmerrell/getorpctest/testing/rpctest"
	"github.com/bgmerrell/getorpctest/version"
)

func TestRun(t *testing.T) {
	server, err := rpctest.NewEchoServer()
	if err != nil {
		t.Fatalf("NewEchoServer: %s", err)
	}
	defer server.Close()
	withServer := func(args ...string) []string {
		return append([]string{"-s", server.Host(), "-p", strconv.Itoa(server.Port())}, args...)
	}

	unusedHost, unusedPort, err := rpctest.UnusedAddress()
	if err != nil {
		t.Fatalf("UnusedAddress: %s", err)
	}

	tests := []struct {
		name     string
		args     []string
		exitCode int
		check    func(t *testing.T, stdout, stderr string)
	}{
		{
			name:     "echo",
			args:     withServer("echo", "--string", "hi"),
			exitCode: 0,
			check: func(t *testing.T, stdout, stderr string) {
				if stdout != "Sending: hi\nReceived: hi\n" {
					t.Errorf("unexpected stdout %q", stdout)
				}
				if stderr != "" {
					t.Errorf("expected nothing on stderr, got %q", stderr)
				}
			},
		},
		{
			name:     "echo to an unreachable server",
			args:     []string{"-s", unusedHost, "-p", strconv.Itoa(unusedPort), "-t", "5", "echo"},
			exitCode: 1,
			check: func(t *testing.T, stdout, stderr string) {
				if strings.Contains(stdout, "Received:") {
					t.Errorf("expected no Received line, got %q", stdout)
				}
				if !strings.Contains(stderr, "error connecting to") {
					t.Errorf("expected the connection error on stderr, got %q", stderr)
				}
			},
		},
		{
			name:     "unknown command",
			args:     withServer("ping"),
			exitCode: 1,
			check: func(t *testing.T, stdout, stderr string) {
				if stdout != "" {
					t.Errorf("expected nothing on stdout, got %q", stdout)
				}
				if !strings.Contains(stderr, "Unknown command `ping'") || !strings.Contains(stderr, "Usage:") {
					t.Errorf("expected the error and the usage on stderr, got %q", stderr)
				}
			},
		},
		{
			name:     "no command",
			args:     []string{},
			exitCode: 1,
			check: func(t *testing.T, stdout, stderr string) {
				if !strings.Contains(stderr, "Please specify one command of") || !strings.Contains(stderr, "Usage:") {
					t.Errorf("expected the error and the usage on stderr, got %q", stderr)
				}
			},
		},
		{
			name:     "invalid port",
			args:     []string{"-p", "0", "echo"},
			exitCode: 1,
			check: func(t *testing.T, stdout, stderr string) {
				if stdout != "" {
					t.Errorf("expected nothing on stdout, got %q", stdout)
				}
				if !strings.Contains(stderr, "out of range") {
					t.Errorf("expected the port error on stderr, got %q", stderr)
				}
			},
		},
		{
			name:     "connection-test",
			args:     withServer("connection-test"),
			exitCode: 1,
			check: func(t *testing.T, stdout, stderr string) {
				if stdout != "" {
					t.Errorf("expected nothing on stdout, got %q", stdout)
				}
				expected := "connection-test: calling GetoRPC.TestHostConnection: not implemented\n"
				if stderr != expected {
					t.Errorf("expected stderr %q, got %q", expected, stderr)
				}
			},
		},
		{
			name:     "help",
			args:     []string{"--help"},
			exitCode: 0,
			check: func(t *testing.T, stdout, stderr string) {
				if !strings.Contains(stdout, "Usage:") || !strings.Contains(stdout, "Test geto RPCs.") {
					t.Errorf("expected the help on stdout, got %q", stdout)
				}
				if stderr != "" {
					t.Errorf("expected nothing on stderr, got %q", stderr)
				}
			},
		},
		{
			name:     "echo help",
			args:     []string{"echo", "--help"},
			exitCode: 0,
			check: func(t *testing.T, stdout, stderr string) {
				if !strings.Contains(stdout, "--string") {
					t.Errorf("expected the echo options on stdout, got %q", stdout)
				}
			},
		},
		{
			name:     "version",
			args:     []string{"-V"},
			exitCode: 0,
			check: func(t *testing.T, stdout, stderr string) {
				expected := appName + " version " + version.Version() + "\n"
				if stdout != expected {
					t.Errorf("expected stdout %q, got %q", expected, stdout)
				}
			},
		},
		{
			name:     "echo with trace logs",
			args:     withServer("--loglevel", "trace", "echo"),
			exitCode: 0,
			check: func(t *testing.T, stdout, stderr string) {
				if stdout != "Sending: test\nReceived: test\n" {
					t.Errorf("expected only the command output on stdout, got %q", stdout)
				}
				if !strings.Contains(stderr, "[TRC] GRPT:") || !strings.Contains(stderr, "[TRC] RPCC:") {
					t.Errorf("expected trace logs on stderr, got %q", stderr)
				}
			},
		},
	}

	for _, test := range tests {
		stdout := &bytes.Buffer{}
		stderr := &bytes.Buffer{}
		exitCode := run(test.args, stdout, stderr)
		if exitCode != test.exitCode {
			t.Errorf("%s: expected exit code %d, got %d. stderr: %q",
				test.name, test.exitCode, exitCode, stderr.String())
			continue
		}
		test.check(t, stdout.String(), stderr.String())
	}

	if server.Connections() != 2 {
		t.Errorf("expected a connection for each echo run only, got %d", server.Connections())
	}
}
