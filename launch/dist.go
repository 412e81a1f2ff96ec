// Copyright (c) 2022-present archrun authors

package launch

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"
)

// RunDistributed spawns nproc copies of the entry point. worker i gets
// RANK and LOCAL_RANK i, all workers share WORLD_SIZE, MASTER_ADDR and
// MASTER_PORT. the rendezvous itself happens inside the training
// framework, this is only the invocation contract.
//
// worker 0 is teed to stderr, the others only keep their ring buffer.
// the first failure cancels the remaining workers, and its tail is
// dumped so the cause is not lost in the interleaving
func (s *Session) RunDistributed(ctx context.Context) error {

	d := s.Profile.Dist

	addr := d.MasterAddr
	if addr == "" {
		addr = "127.0.0.1"
	}
	port := d.MasterPort
	if port == 0 {
		port = 29500
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var lock sync.Mutex
	var firstErr error
	var firstRank int
	var firstLog *Log

	for rank := 0; rank < d.NProc; rank++ {

		wlog := NewLog(1024 * 1024)

		env := MergeEnv(s.Env, map[string]string{
			"RANK":        strconv.Itoa(rank),
			"LOCAL_RANK":  strconv.Itoa(rank),
			"WORLD_SIZE":  strconv.Itoa(d.NProc),
			"MASTER_ADDR": addr,
			"MASTER_PORT": strconv.Itoa(port),
		})

		var out io.Writer = wlog
		if rank == 0 {
			out = io.MultiWriter(s.Log, wlog, os.Stderr)
		}

		wg.Add(1)
		go func(rank int) {
			defer wg.Done()

			err := s.runOnce(ctx, env, out)
			if err != nil {
				lock.Lock()
				if firstErr == nil {
					firstErr = err
					firstRank = rank
					firstLog = wlog
					cancel()
				}
				lock.Unlock()
			}
		}(rank)
	}

	wg.Wait()

	if firstErr != nil {
		log.Error("worker ", firstRank, " failed: ", firstErr)
		if firstRank != 0 {
			fmt.Fprintf(os.Stderr, "\n-------- worker %d tail --------\n", firstRank)
			firstLog.Dump(os.Stderr)
			fmt.Fprint(os.Stderr, "--------\n")
		}
		return fmt.Errorf("worker %d: %w", firstRank, firstErr)
	}

	return nil
}
