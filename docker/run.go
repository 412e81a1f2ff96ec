// Copyright (c) 2022-present archrun authors

package docker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/google/go-containerregistry/pkg/name"
	log "github.com/sirupsen/logrus"

	"github.com/sytelus/archrun/spec"
)

// declarative form of the docker run invocation used for training
// containers. Args composes the exact command line, Run executes it
type RunSpec struct {

	// image reference
	Image string `json:"image" yaml:"image"`

	// --name
	ContainerName string `json:"container_name,omitempty" yaml:"container_name,omitempty"`

	// --rm
	Remove bool `json:"remove,omitempty" yaml:"remove,omitempty"`

	// --gpus, typically "all". empty means no gpus
	Gpus string `json:"gpus,omitempty" yaml:"gpus,omitempty"`

	// -u uid:gid. empty means the current user
	User string `json:"user,omitempty" yaml:"user,omitempty"`

	// -e, emitted sorted by key
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// -v host:guest[:ro]
	BindMounts []spec.BindMount `json:"bind_mounts,omitempty" yaml:"bind_mounts,omitempty"`

	// -w
	Workdir string `json:"workdir,omitempty" yaml:"workdir,omitempty"`

	// --shm-size, human form like "10g"
	ShmSize string `json:"shm_size,omitempty" yaml:"shm_size,omitempty"`

	// --ulimit memlock=-1
	UlimitMemlock bool `json:"ulimit_memlock,omitempty" yaml:"ulimit_memlock,omitempty"`

	// --net host
	NetworkHost bool `json:"network_host,omitempty" yaml:"network_host,omitempty"`

	// -it
	Interactive bool `json:"interactive,omitempty" yaml:"interactive,omitempty"`
}

// DefaultRunSpec is the container contract the training image expects:
// gpus, host networking, the home directory mounted through, and the
// data root mounted at $HOME/dataroot. NCCL_P2P_LEVEL=NVL keeps nccl
// from routing peer to peer traffic over pcie on nvlink machines
func DefaultRunSpec(home string, user string, dataroot string) *RunSpec {

	return &RunSpec{
		Image:         "sytelus/archai",
		ContainerName: "archai",
		Remove:        true,
		Gpus:          "all",
		User:          fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
		Env: map[string]string{
			"HOME":           home,
			"USER":           user,
			"NCCL_P2P_LEVEL": "NVL",
		},
		BindMounts: []spec.BindMount{
			{HostPath: home, GuestPath: home},
			{HostPath: dataroot, GuestPath: home + "/dataroot"},
		},
		Workdir:       home,
		ShmSize:       "10g",
		UlimitMemlock: true,
		NetworkHost:   true,
		Interactive:   true,
	}
}

// Args composes the docker run argv. composition is deterministic:
// the same spec always yields the same argv
func (s *RunSpec) Args() ([]string, error) {

	if s.Image == "" {
		return nil, fmt.Errorf("no image")
	}
	_, err := name.ParseReference(s.Image)
	if err != nil {
		return nil, fmt.Errorf("parsing image reference %q: %w", s.Image, err)
	}

	args := []string{"run"}

	if s.Gpus != "" {
		args = append(args, "--gpus", s.Gpus)
	}
	if s.ContainerName != "" {
		args = append(args, "--name", s.ContainerName)
	}
	if s.Remove {
		args = append(args, "--rm")
	}
	if s.User != "" {
		args = append(args, "-u", s.User)
	}

	keys := []string{}
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", k+"="+s.Env[k])
	}

	for _, m := range s.BindMounts {
		v := m.HostPath + ":" + m.GuestPath
		if m.ReadOnly {
			v += ":ro"
		}
		args = append(args, "-v", v)
	}

	if s.Workdir != "" {
		args = append(args, "-w", s.Workdir)
	}

	if s.ShmSize != "" {
		_, err := humanize.ParseBytes(s.ShmSize)
		if err != nil {
			return nil, fmt.Errorf("parsing shm size %q: %w", s.ShmSize, err)
		}
		args = append(args, "--shm-size="+s.ShmSize)
	}

	if s.UlimitMemlock {
		args = append(args, "--ulimit", "memlock=-1")
	}
	if s.NetworkHost {
		args = append(args, "--net", "host")
	}
	if s.Interactive {
		args = append(args, "-it")
	}

	args = append(args, s.Image)

	return args, nil
}

// Run execs the docker cli with the composed argv, inheriting stdio.
// the first SIGINT or SIGTERM is forwarded to docker, a second one
// kills it
func Run(ctx context.Context, s *RunSpec) error {

	args, err := s.Args()
	if err != nil {
		return err
	}

	for _, w := range Preflight(s) {
		log.Warn(w)
	}

	log.Debug("docker ", args)

	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err = cmd.Start()
	if err != nil {
		return err
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig, ok := <-sigc
		if !ok {
			return
		}
		cmd.Process.Signal(sig)

		_, ok = <-sigc
		if !ok {
			return
		}
		cmd.Process.Kill()
	}()

	err = cmd.Wait()

	signal.Stop(sigc)
	close(sigc)

	return err
}
