// Copyright (c) 2022-present archrun authors

package launch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/sytelus/archrun/spec"
)

// one run of one profile
type Session struct {
	ID      string
	Profile *spec.Profile

	// absolute path of the entry point, verified to exist
	EntryPoint string

	// working directory of the child
	Workdir string

	// parent environment with the profile overrides applied
	Env []string

	Log *Log
}

func NewSession(c *spec.Catalog, name string) (*Session, error) {

	p, err := c.Profile(name)
	if err != nil {
		return nil, err
	}

	ep, err := c.ResolveEntryPoint(p)
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:         uuid.New().String(),
		Profile:    p,
		EntryPoint: ep,
		Workdir:    c.ProfileWorkdir(p),
		Env:        MergeEnv(os.Environ(), p.Env),
		Log:        NewLog(1024 * 1024),
	}, nil
}

// MergeEnv applies overrides on top of a flat environment. an override
// of a variable already present wins over the parent value. new
// variables are appended sorted by name so the result is deterministic
func MergeEnv(base []string, over map[string]string) []string {

	out := make([]string, 0, len(base)+len(over))
	used := map[string]bool{}

	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if v, ok := over[k]; ok {
			out = append(out, k+"="+v)
			used[k] = true
		} else {
			out = append(out, kv)
		}
	}

	rest := []string{}
	for k, v := range over {
		if !used[k] {
			rest = append(rest, k+"="+v)
		}
	}
	sort.Strings(rest)
	out = append(out, rest...)

	return out
}

// Command is the argv the session launches. python scripts go through
// the interpreter, anything else is executed directly
func (s *Session) Command() []string {

	argv := []string{}
	if strings.HasSuffix(s.EntryPoint, ".py") {
		argv = append(argv, "python")
	}
	argv = append(argv, s.EntryPoint)
	argv = append(argv, s.Profile.Args...)

	return argv
}

// Run launches the session and supervises it per the profile
// lifecycle. the exit error of the last attempt is returned
func (s *Session) Run(ctx context.Context) error {

	if s.Profile.Dist != nil {
		return s.RunDistributed(ctx)
	}

	var err error

	var max = 100000000
	if s.Profile.Lifecycle.MaxRestarts > 0 {
		max = s.Profile.Lifecycle.MaxRestarts
	}

	for attempt := 1; ; attempt++ {
		err = s.runOnce(ctx, s.Env, io.MultiWriter(s.Log, os.Stderr))

		select {
		case <-ctx.Done():
			return err
		default:
		}

		var restart = true
		if err == nil {
			log.Info("profile ", s.Profile.Name, " exited")
			restart = s.Profile.Lifecycle.RestartOnSuccess
		} else {
			log.Warn("profile ", s.Profile.Name, " exited with error: ", err)
			restart = s.Profile.Lifecycle.RestartOnFailure
		}

		if !restart {
			break
		}

		if attempt >= max {
			log.Warn("profile ", s.Profile.Name, " reached max restarts")
			break
		}

		delay := s.Profile.Lifecycle.RestartDelay
		if delay == 0 {
			delay = 300
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Millisecond * time.Duration(delay)):
		}
	}

	return err
}

// runOnce starts the child and waits for it. on context cancellation
// the child gets SIGTERM, and SIGKILL 15 seconds later if it is still
// around
func (s *Session) runOnce(ctx context.Context, env []string, out io.Writer) error {

	argv := s.Command()

	log.Debug("session ", s.ID, " exec ", argv)

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = env
	cmd.Dir = s.Workdir

	var ptmx *os.File
	var err error
	var drained chan struct{}

	if s.Profile.Tty {
		// pty.Start sets Setsid on the child, which puts it in its
		// own session and process group. adding Setpgid on top makes
		// the fork fail with EPERM, so the group for the kill below
		// comes from the session instead
		ptmx, err = pty.Start(cmd)
		if err != nil {
			return err
		}
		defer ptmx.Close()

		go io.Copy(ptmx, os.Stdin)

		drained = make(chan struct{})
		go func() {
			// read ends with EIO once the child is gone
			io.Copy(out, ptmx)
			close(drained)
		}()
	} else {
		cmd.SysProcAttr = &syscall.SysProcAttr{
			Setpgid: true,
		}
		cmd.Stdin = os.Stdin
		cmd.Stdout = out
		cmd.Stderr = out

		err = cmd.Start()
		if err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cmd.Process.Signal(syscall.SIGTERM)
			select {
			case <-done:
			case <-time.After(15 * time.Second):
				log.Warn("profile ", s.Profile.Name,
					" did not terminate after 15 seconds, killing")
				syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			}
		case <-done:
		}
	}()

	err = cmd.Wait()
	close(done)

	if drained != nil {
		select {
		case <-drained:
		case <-time.After(time.Second):
		}
	}

	if err != nil {
		return fmt.Errorf("%s: %w", argv[0], err)
	}

	return nil
}

// ExitCode maps a Run error to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return 1
}
