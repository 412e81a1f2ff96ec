// Copyright (c) 2022-present archrun authors

package docker

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// Preflight checks the host against the run spec. failures here are
// warnings, not errors: the container runtime has the final word
func Preflight(s *RunSpec) []string {

	var warns []string

	if s.Gpus != "" {
		if _, err := os.Stat("/dev/nvidiactl"); err != nil {
			warns = append(warns, "gpus requested but /dev/nvidiactl is missing")
		}
		if _, err := os.Stat("/dev/nvidia0"); err != nil {
			warns = append(warns, "gpus requested but /dev/nvidia0 is missing")
		}
	}

	if s.ShmSize != "" {
		want, err := humanize.ParseBytes(s.ShmSize)
		if err == nil {
			var st unix.Statfs_t
			err = unix.Statfs("/dev/shm", &st)
			if err == nil {
				have := uint64(st.Blocks) * uint64(st.Bsize)
				if have < want {
					warns = append(warns, fmt.Sprintf(
						"host /dev/shm is %s but the container wants %s",
						humanize.Bytes(have), humanize.Bytes(want)))
				}
			}
		}
	}

	if s.UlimitMemlock {
		var rl unix.Rlimit
		err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rl)
		if err == nil && rl.Max != unix.RLIM_INFINITY {
			warns = append(warns, fmt.Sprintf(
				"memlock hard limit is %s, pinned memory allocations may fail",
				humanize.Bytes(rl.Max)))
		}
	}

	return warns
}
