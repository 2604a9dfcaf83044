// Package identity tells a worker process where it sits in the pool, based
// on the TEST_ENV_NUMBER and PARALLEL_TEST_GROUPS values it inherited.
package identity

import (
	"strconv"
	"strings"

	"github.com/AbdelazizMoustafa10m/partest/internal/config"
)

// Identity is a worker's position as read from its environment.
type Identity struct {
	env config.WorkerEnv
}

// FromEnv reads the identity through envFn. A nil envFn reads the process
// environment.
func FromEnv(envFn config.EnvFunc) Identity {
	return Identity{env: config.WorkerEnvFrom(envFn)}
}

// FromWorkerEnv wraps an already-decoded worker environment.
func FromWorkerEnv(env config.WorkerEnv) Identity {
	return Identity{env: env}
}

// Parallel reports whether the process was started as part of a parallel
// run, i.e. the worker-number variable is present (possibly empty).
func (id Identity) Parallel() bool {
	return id.env.NumberSet
}

// Number returns the worker number as an integer. Absent, empty, or
// unparseable values yield 0.
func (id Identity) Number() int {
	n, err := strconv.Atoi(strings.TrimSpace(id.env.Number))
	if err != nil {
		return 0
	}
	return n
}

// IsFirst reports whether this is the first worker: the number parses to
// at most 1. Solo runs count as first.
func (id Identity) IsFirst() bool {
	return id.Number() <= 1
}

// IsLast reports whether this is the last worker. Solo runs (neither value
// set) count as last. Otherwise the raw number string must equal the raw
// group-count string; an absent number compares as "1".
//
// The comparison is on strings, not integers, so non-canonical values such
// as "01" never match "1". Drivers always write canonical decimals.
func (id Identity) IsLast() bool {
	if !id.env.NumberSet && !id.env.GroupsSet {
		return true
	}
	number := id.env.Number
	if !id.env.NumberSet {
		number = "1"
	}
	return number == id.env.Groups
}

// IsFirstWorker reports whether the current process is the first worker.
func IsFirstWorker() bool {
	return FromEnv(nil).IsFirst()
}

// IsLastWorker reports whether the current process is the last worker.
func IsLastWorker() bool {
	return FromEnv(nil).IsLast()
}
