// Copyright (c) 2022-present archrun authors

package spec

// the launch profile catalog
type Catalog struct {
	// version of catalog format. currently 1
	Version int `json:"version" yaml:"version"`

	// base directory for relative entry points.
	// empty means the directory of the catalog file
	Workdir string `json:"workdir,omitempty" yaml:"workdir,omitempty"`

	// the profiles
	Profiles []Profile `json:"profiles" yaml:"profiles"`
}

// a named, pre-composed command line
type Profile struct {

	// unique name within the catalog
	Name string `json:"name" yaml:"name"`

	// path of the script or executable to launch,
	// relative to the catalog workdir unless absolute
	EntryPoint string `json:"entry_point" yaml:"entry_point"`

	// arguments passed verbatim, in order.
	// downstream parsing is positional-then-flagged, so order matters
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`

	// environment overrides applied over the parent environment
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`

	// working directory of the child. empty means the catalog workdir
	Workdir string `json:"workdir,omitempty" yaml:"workdir,omitempty"`

	// run in a pty
	Tty bool `json:"tty,omitempty" yaml:"tty,omitempty"`

	// restart policy
	Lifecycle Lifecycle `json:"lifecycle,omitempty" yaml:"lifecycle,omitempty"`

	// multi-process fan-out. nil means a single process
	Dist *Dist `json:"dist,omitempty" yaml:"dist,omitempty"`
}

type Lifecycle struct {

	// should the profile restart with exit code 0
	RestartOnSuccess bool `json:"restart_on_success,omitempty" yaml:"restart_on_success,omitempty"`

	// should the profile restart with exit code != 0
	RestartOnFailure bool `json:"restart_on_failure,omitempty" yaml:"restart_on_failure,omitempty"`

	// delay restarts by this amount of milliseconds
	RestartDelay uint64 `json:"restart_delay,omitempty" yaml:"restart_delay,omitempty"`

	// give up after starting this many times.
	// note that the first start counts too
	// 1 means never restart after initial launch
	// 0 means infinite
	MaxRestarts int `json:"max_restarts,omitempty" yaml:"max_restarts,omitempty"`
}

// distributed launch contract. each worker gets RANK, LOCAL_RANK,
// WORLD_SIZE, MASTER_ADDR and MASTER_PORT on top of the profile env
type Dist struct {

	// number of worker processes
	NProc int `json:"nproc" yaml:"nproc"`

	// rendezvous address. empty means 127.0.0.1
	MasterAddr string `json:"master_addr,omitempty" yaml:"master_addr,omitempty"`

	// rendezvous port. 0 means 29500
	MasterPort int `json:"master_port,omitempty" yaml:"master_port,omitempty"`
}

// a host path mounted into a container
type BindMount struct {

	// path on host
	HostPath string `json:"host_path" yaml:"host_path"`

	// path inside container
	GuestPath string `json:"guest_path" yaml:"guest_path"`

	// read only
	ReadOnly bool `json:"read_only,omitempty" yaml:"read_only,omitempty"`
}
