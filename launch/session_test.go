package launch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sytelus/archrun/spec"
)

func TestMergeEnv(t *testing.T) {

	base := []string{"HOME=/home/alice", "PATH=/usr/bin", "USER=alice"}

	out := MergeEnv(base, map[string]string{
		"USER":                 "root",
		"NCCL_P2P_LEVEL":       "NVL",
		"CUDA_VISIBLE_DEVICES": "0,1",
	})

	want := []string{
		"HOME=/home/alice",
		"PATH=/usr/bin",
		"USER=root",
		"CUDA_VISIBLE_DEVICES=0,1",
		"NCCL_P2P_LEVEL=NVL",
	}

	if !reflect.DeepEqual(out, want) {
		t.Fatal("merge mismatch:\n", out, "\n", want)
	}
}

func TestMergeEnvNoOverrides(t *testing.T) {

	base := []string{"A=1"}
	out := MergeEnv(base, nil)
	if !reflect.DeepEqual(out, base) {
		t.Fatal("no overrides should be a no-op:", out)
	}
}

func TestCommandPython(t *testing.T) {

	s := &Session{
		EntryPoint: "/work/scripts/main.py",
		Profile:    &spec.Profile{Args: []string{"--algos", "darts"}},
	}

	want := []string{"python", "/work/scripts/main.py", "--algos", "darts"}
	if !reflect.DeepEqual(s.Command(), want) {
		t.Fatal("python entry points go through the interpreter:", s.Command())
	}

	s.EntryPoint = "/work/tool"
	want = []string{"/work/tool", "--algos", "darts"}
	if !reflect.DeepEqual(s.Command(), want) {
		t.Fatal("non-python entry points run directly:", s.Command())
	}
}

// writes a shell script entry point and a catalog around it
func testCatalog(t *testing.T, script string, p spec.Profile) *spec.Catalog {

	dir := t.TempDir()

	ep := filepath.Join(dir, "entry.sh")
	err := os.WriteFile(ep, []byte("#!/bin/sh\n"+script), 0755)
	if err != nil {
		t.Fatal(err)
	}

	p.EntryPoint = "entry.sh"
	if p.Name == "" {
		p.Name = "test"
	}

	return &spec.Catalog{
		Version:  1,
		Workdir:  dir,
		Profiles: []spec.Profile{p},
	}
}

func TestSessionRun(t *testing.T) {

	c := testCatalog(t, `echo "out $1 $FOO"`, spec.Profile{
		Args: []string{"arg1"},
		Env:  map[string]string{"FOO": "bar"},
	})

	s, err := NewSession(c, "test")
	if err != nil {
		t.Fatal(err)
	}

	if s.ID == "" {
		t.Fatal("session must have an id")
	}

	err = s.runOnce(context.Background(), s.Env, s.Log)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	s.Log.Dump(&buf)

	if buf.String() != "out arg1 bar\n" {
		t.Fatal("unexpected output:", buf.String())
	}
}

func TestSessionRunTty(t *testing.T) {

	c := testCatalog(t, `echo "hello from $FOO"`, spec.Profile{
		Tty: true,
		Env: map[string]string{"FOO": "pty"},
	})

	s, err := NewSession(c, "test")
	if err != nil {
		t.Fatal(err)
	}

	err = s.runOnce(context.Background(), s.Env, s.Log)
	if err != nil {
		t.Fatal("tty profile failed to start:", err)
	}

	var buf bytes.Buffer
	s.Log.Dump(&buf)

	// pty line discipline turns \n into \r\n
	if !strings.Contains(buf.String(), "hello from pty") {
		t.Fatal("pty output should reach the ring log:", buf.String())
	}
}

func TestSessionRunFailure(t *testing.T) {

	c := testCatalog(t, "exit 3", spec.Profile{})

	s, err := NewSession(c, "test")
	if err != nil {
		t.Fatal(err)
	}

	err = s.runOnce(context.Background(), s.Env, s.Log)
	if err == nil {
		t.Fatal("non-zero exit must error")
	}
	if ExitCode(err) != 3 {
		t.Fatal("exit code should pass through, got", ExitCode(err))
	}
}

func TestSessionRestartOnFailure(t *testing.T) {

	// fails until the marker file exists, then succeeds
	c := testCatalog(t, `
marker="$(dirname "$0")/marker"
if [ -e "$marker" ]; then exit 0; fi
touch "$marker"
exit 1
`, spec.Profile{
		Lifecycle: spec.Lifecycle{
			RestartOnFailure: true,
			RestartDelay:     10,
			MaxRestarts:      5,
		},
	})

	s, err := NewSession(c, "test")
	if err != nil {
		t.Fatal(err)
	}

	err = s.Run(context.Background())
	if err != nil {
		t.Fatal("second attempt should have succeeded:", err)
	}
}

func TestSessionMaxRestarts(t *testing.T) {

	c := testCatalog(t, "exit 1", spec.Profile{
		Lifecycle: spec.Lifecycle{
			RestartOnFailure: true,
			RestartDelay:     1,
			MaxRestarts:      3,
		},
	})

	s, err := NewSession(c, "test")
	if err != nil {
		t.Fatal(err)
	}

	err = s.Run(context.Background())
	if err == nil {
		t.Fatal("exhausted restarts must keep the error")
	}
}

func TestExitCode(t *testing.T) {

	if ExitCode(nil) != 0 {
		t.Fatal("nil error is exit 0")
	}
	if ExitCode(context.Canceled) != 1 {
		t.Fatal("non-exec errors are exit 1")
	}
}
