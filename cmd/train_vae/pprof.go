package main

import "os"
import "runtime/pprof"

import "github.com/pkg/errors"

// startProfile collects a CPU profile into path until the returned stop is called.
// The default.pgo it writes feeds profile guided optimization of later builds.
func startProfile(path string) (stop func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create profile")
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "start profile")
	}
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}, nil
}
