package config

import (
	"os"
	"strconv"
)

// Environment keys shared between the driver and its workers. Children
// inherit these at spawn time and treat them as read-only afterwards.
const (
	// EnvProcessors overrides the worker count.
	EnvProcessors = "PARALLEL_TEST_PROCESSORS"
	// EnvMultiply overrides the worker-count multiplier.
	EnvMultiply = "PARALLEL_TEST_MULTIPLY_PROCESSES"
	// EnvPidFile holds the path of the shared PID registry for the
	// duration of a session.
	EnvPidFile = "PARALLEL_PID_FILE"
	// EnvWorkerNumber is the worker's 1-based index. The first worker gets
	// an empty value unless first-is-one numbering is requested.
	EnvWorkerNumber = "TEST_ENV_NUMBER"
	// EnvGroups is the total number of workers in the run.
	EnvGroups = "PARALLEL_TEST_GROUPS"
)

// EnvFunc is a function that looks up environment variables.
// Default implementation is os.LookupEnv. Injected for testability.
type EnvFunc func(key string) (string, bool)

// orOSEnv returns envFn, or os.LookupEnv when envFn is nil.
func orOSEnv(envFn EnvFunc) EnvFunc {
	if envFn == nil {
		return os.LookupEnv
	}
	return envFn
}

// WorkerEnv is the configuration a driver hands to one spawned worker
// through its inherited environment.
type WorkerEnv struct {
	// PidFile is the registry path; empty means no session is active.
	PidFile string
	// Number is the raw worker-number value. Set reports whether the key
	// is present at all, which distinguishes "first worker" ("") from
	// "not a parallel run".
	Number    string
	NumberSet bool
	// Groups is the raw total-group-count value.
	Groups    string
	GroupsSet bool
}

// NewWorkerEnv builds the environment for the worker at the 0-based
// position index out of groups workers. The first worker receives an empty
// number unless firstIsOne is set, matching the conventional numbering
// used by test suites to pick per-worker databases ("test", "test2", ...).
func NewWorkerEnv(index, groups int, firstIsOne bool, pidFile string) WorkerEnv {
	number := ""
	if index > 0 || firstIsOne {
		number = strconv.Itoa(index + 1)
	}
	return WorkerEnv{
		PidFile:   pidFile,
		Number:    number,
		NumberSet: true,
		Groups:    strconv.Itoa(groups),
		GroupsSet: true,
	}
}

// WorkerEnvFrom reads the worker environment through envFn.
// A nil envFn reads the process environment.
func WorkerEnvFrom(envFn EnvFunc) WorkerEnv {
	envFn = orOSEnv(envFn)
	var w WorkerEnv
	w.PidFile, _ = envFn(EnvPidFile)
	w.Number, w.NumberSet = envFn(EnvWorkerNumber)
	w.Groups, w.GroupsSet = envFn(EnvGroups)
	return w
}

// Environ returns the KEY=value pairs for w, suitable for appending to
// exec.Cmd.Env. Unset fields are omitted.
func (w WorkerEnv) Environ() []string {
	var env []string
	if w.PidFile != "" {
		env = append(env, EnvPidFile+"="+w.PidFile)
	}
	if w.NumberSet {
		env = append(env, EnvWorkerNumber+"="+w.Number)
	}
	if w.GroupsSet {
		env = append(env, EnvGroups+"="+w.Groups)
	}
	return env
}
