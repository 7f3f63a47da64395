package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/play-deck/internal/config"
	"github.com/asheshgoplani/play-deck/internal/session"
	"github.com/asheshgoplani/play-deck/internal/transport"
	"github.com/asheshgoplani/play-deck/internal/transport/transporttest"
)

const testTimeout = 5 * time.Second

// isolate points the config at an empty directory.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvHome, t.TempDir())
	t.Setenv(config.EnvServer, "")
	config.ClearUserConfigCache()
	t.Cleanup(config.ClearUserConfigCache)
}

type result struct {
	out    string
	errOut string
	err    error
}

func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	isolate(t)

	var out, errOut bytes.Buffer
	root := newRootCmd(strings.NewReader(stdin), &out, &errOut)
	root.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return result{out: out.String(), errOut: errOut.String(), err: err}
}

func writeProgram(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func exitCode(err error) int {
	var exit exitError
	if errors.As(err, &exit) {
		return exit.code
	}
	return -1
}

func TestRun_File(t *testing.T) {
	srv := transporttest.NewServer(t)
	srv.OnRun = func(id, _ string) {
		srv.Emit(id, transport.Output("Hello, World!\n"), transport.Done())
	}
	path := writeProgram(t, "package main\n")

	r := execute(t, "", "run", "--server", srv.URL, path)
	require.NoError(t, r.err)
	assert.Equal(t, "Hello, World!\nProgram exited.\n", r.out)

	runs := srv.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "package main\n", runs[0].Code)
	assert.Empty(t, runs[0].PreviousSession)
}

func TestRun_RelaysStdin(t *testing.T) {
	srv := transporttest.NewServer(t)
	srv.OnRun = func(id, _ string) {
		srv.Emit(id, transport.Output("Name? "), transport.WaitingForInput())
	}
	srv.OnInput = func(id, input string) {
		srv.Emit(id, transport.Output("Hi "+input+"\n"), transport.Done())
	}

	r := execute(t, "Alice\n", "run", "--server", srv.URL, "--example", "greeting")
	require.NoError(t, r.err)
	assert.Equal(t, []transporttest.InputRequest{{SessionID: "1", Input: "Alice"}}, srv.Inputs())
	// Piped input is echoed so the output reads like a terminal session.
	assert.Contains(t, r.out, "Alice\n")
	assert.Contains(t, r.out, "Hi Alice\n")
}

func TestRun_SourceFromStdin(t *testing.T) {
	srv := transporttest.NewServer(t)
	srv.OnRun = func(id, _ string) {
		srv.Emit(id, transport.Done())
	}

	r := execute(t, "package main\n\nfunc main() {}\n", "run", "--server", srv.URL, "-")
	require.NoError(t, r.err)
	require.Len(t, srv.Runs(), 1)
	assert.Equal(t, "package main\n\nfunc main() {}\n", srv.Runs()[0].Code)
	assert.Empty(t, srv.Inputs())
}

func TestRun_RuntimeErrorExitsNonZero(t *testing.T) {
	srv := transporttest.NewServer(t)
	srv.OnRun = func(id, _ string) {
		srv.Emit(id, transport.Output("partial"), transport.Failure("exit status 2"))
	}

	r := execute(t, "", "run", "--server", srv.URL, writeProgram(t, "package main"))
	require.Error(t, r.err)
	assert.Equal(t, 1, exitCode(r.err))
	assert.Equal(t, "partial\nError: exit status 2\n", r.out)
}

func TestRun_RejectedExitsNonZero(t *testing.T) {
	srv := transporttest.NewServer(t)
	srv.RejectRuns(http.StatusBadRequest, session.InvalidCodePhrase)

	r := execute(t, "", "run", "--server", srv.URL, writeProgram(t, "package main"))
	require.Error(t, r.err)
	assert.Equal(t, 1, exitCode(r.err))
	assert.Contains(t, r.out, "Error: "+session.InvalidCodePhrase)
}

func TestRun_NothingToRun(t *testing.T) {
	r := execute(t, "", "run", "--server", "http://127.0.0.1:1")
	assert.ErrorIs(t, r.err, errNoSource)
}

func TestRun_FileAndExampleConflict(t *testing.T) {
	r := execute(t, "", "run", "--server", "http://127.0.0.1:1", "--example", "hello", "main.go")
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "not both")
}

func TestRun_WatchNeedsFile(t *testing.T) {
	r := execute(t, "", "run", "--server", "http://127.0.0.1:1", "--watch", "-")
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "--watch needs a file")
}

func TestRun_FormatsFirst(t *testing.T) {
	srv := transporttest.NewServer(t)
	srv.FormatFunc = func(code string) string { return code + "// formatted\n" }
	srv.OnRun = func(id, _ string) {
		srv.Emit(id, transport.Done())
	}

	r := execute(t, "", "run", "--server", srv.URL, "--format", writeProgram(t, "package main\n"))
	require.NoError(t, r.err)
	assert.Equal(t, []string{"package main\n"}, srv.Formats())
	require.Len(t, srv.Runs(), 1)
	assert.Equal(t, "package main\n// formatted\n", srv.Runs()[0].Code)
}

func TestRun_FormatFailureStillRuns(t *testing.T) {
	srv := transporttest.NewServer(t)
	srv.RejectFormat(http.StatusBadRequest, "prog.go:1:1: expected 'package'")
	srv.OnRun = func(id, _ string) {
		srv.Emit(id, transport.Done())
	}

	r := execute(t, "", "run", "--server", srv.URL, "--format", writeProgram(t, "pack main"))
	require.NoError(t, r.err)
	assert.Contains(t, r.errOut, "expected 'package'")
	require.Len(t, srv.Runs(), 1)
	assert.Equal(t, "pack main", srv.Runs()[0].Code)
}

func TestRun_SavesTranscript(t *testing.T) {
	srv := transporttest.NewServer(t)
	srv.OnRun = func(id, _ string) {
		srv.Emit(id, transport.Output("one\ntwo\n"), transport.Done())
	}
	out := filepath.Join(t.TempDir(), "logs", "run.txt")

	r := execute(t, "", "run", "--server", srv.URL, "-o", out, writeProgram(t, "package main"))
	require.NoError(t, r.err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, r.out, string(data))
}

func TestRun_ServerFromEnvironment(t *testing.T) {
	srv := transporttest.NewServer(t)
	srv.OnRun = func(id, _ string) {
		srv.Emit(id, transport.Done())
	}
	path := writeProgram(t, "package main")

	isolate(t)
	t.Setenv(config.EnvServer, srv.URL)

	var out bytes.Buffer
	root := newRootCmd(strings.NewReader(""), &out, &bytes.Buffer{})
	root.SetArgs([]string{"run", path})
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	require.NoError(t, root.ExecuteContext(ctx))
	assert.Len(t, srv.Runs(), 1)
}

func TestRoot_FallsBackToHeadless(t *testing.T) {
	srv := transporttest.NewServer(t)
	srv.OnRun = func(id, _ string) {
		srv.Emit(id, transport.Output("hi\n"), transport.Done())
	}

	r := execute(t, "", "--server", srv.URL, writeProgram(t, "package main"))
	require.NoError(t, r.err)
	assert.Equal(t, "hi\nProgram exited.\n", r.out)
}

func TestRoot_UnknownTheme(t *testing.T) {
	r := execute(t, "", "--theme", "solarized", "examples")
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "unknown theme")
}

func TestFmt_PrintsResult(t *testing.T) {
	srv := transporttest.NewServer(t)
	srv.FormatFunc = func(string) string { return "package main\n" }

	r := execute(t, "package  main", "fmt", "--server", srv.URL)
	require.NoError(t, r.err)
	assert.Equal(t, "package main\n", r.out)
	assert.Equal(t, []string{"package  main"}, srv.Formats())
}

func TestFmt_WritesFile(t *testing.T) {
	srv := transporttest.NewServer(t)
	srv.FormatFunc = func(string) string { return "package main\n" }
	path := writeProgram(t, "package  main")

	r := execute(t, "", "fmt", "--server", srv.URL, "-w", path)
	require.NoError(t, r.err)
	assert.Empty(t, r.out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestFmt_Rejected(t *testing.T) {
	srv := transporttest.NewServer(t)
	srv.RejectFormat(http.StatusBadRequest, "prog.go:3:1: syntax error")
	path := writeProgram(t, "package main\nfunc {")

	r := execute(t, "", "fmt", "--server", srv.URL, "-w", path)
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "syntax error")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package main\nfunc {", string(data), "file must be left alone")
}

func TestFmt_WriteNeedsFile(t *testing.T) {
	r := execute(t, "", "fmt", "--server", "http://127.0.0.1:1", "-w")
	require.Error(t, r.err)
}

func TestExamples_List(t *testing.T) {
	r := execute(t, "", "examples")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "hello")
	assert.Contains(t, r.out, "greeting")
	assert.Contains(t, r.out, "[input]")
	assert.Contains(t, r.out, "[animated]")
}

func TestExamples_Query(t *testing.T) {
	r := execute(t, "", "examples", "fib")
	require.NoError(t, r.err)
	assert.True(t, strings.HasPrefix(r.out, "fibonacci"), "got %q", r.out)

	r = execute(t, "", "examples", "zzzzzz")
	require.Error(t, r.err)
}

func TestExamples_Show(t *testing.T) {
	r := execute(t, "", "examples", "--show", "hello")
	require.NoError(t, r.err)
	assert.Contains(t, r.out, "package main")
}

func TestPing(t *testing.T) {
	srv := transporttest.NewServer(t)

	r := execute(t, "", "ping", "--server", srv.URL)
	require.NoError(t, r.err)
	assert.Contains(t, r.out, " ok ")

	srv.FailHealth(1)
	r = execute(t, "", "ping", "--server", srv.URL)
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), srv.URL)
}

func TestRoot_BadServerURL(t *testing.T) {
	r := execute(t, "", "ping", "--server", "ftp://example.com")
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "unsupported server URL scheme")
}

func TestOutputPaneSize(t *testing.T) {
	cols, rows := outputPaneSize(0, 0)
	assert.Zero(t, cols)
	assert.Zero(t, rows)

	cols, rows = outputPaneSize(100, 40)
	assert.Equal(t, 96, cols)
	assert.Equal(t, 17, rows)
}
