package config

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"
)

var (
	// ErrParse is wrapped by every ParseError.
	ErrParse = errors.New("invalid numeric value")
	// ErrInvalidCount is returned when the resolved worker count is below 1.
	ErrInvalidCount = errors.New("worker count must be at least 1")
	// ErrInvalidMultiplier is returned when the resolved multiplier is not positive.
	ErrInvalidMultiplier = errors.New("multiplier must be greater than 0")
)

// ParseError reports a configuration value that could not be parsed as the
// required numeric type.
type ParseError struct {
	Key    string
	Source ConfigSource
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %q from %s is not a valid number: %v", e.Key, e.Value, e.Source, e.Err)
}

// Unwrap lets errors.Is match both ErrParse and the strconv cause.
func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

// candidate is one layer in the explicit > env > file > computed chain.
type candidate struct {
	value  string
	source ConfigSource
}

// firstNonBlank returns the first candidate whose value is non-empty after
// trimming whitespace.
func firstNonBlank(cands ...candidate) (candidate, bool) {
	for _, c := range cands {
		if strings.TrimSpace(c.value) != "" {
			return c, true
		}
	}
	return candidate{}, false
}

// Resolver picks the worker count and multiplier from an explicit value,
// the environment, an optional config file, and a computed fallback.
type Resolver struct {
	// Env looks up environment variables. Nil means os.LookupEnv.
	Env EnvFunc
	// File holds values from partest.toml. Nil means no file.
	File *WorkersConfig
	// NumCPU computes the fallback worker count. Nil means runtime.NumCPU.
	NumCPU func() int
}

func (r *Resolver) envValue(key string) string {
	v, _ := orOSEnv(r.Env)(key)
	return v
}

// Count resolves the worker count. explicit is typically a CLI flag value;
// an empty or blank string means "not given".
func (r *Resolver) Count(explicit string) (int, ConfigSource, error) {
	fileValue := ""
	if r.File != nil && r.File.Processes != 0 {
		fileValue = strconv.Itoa(r.File.Processes)
	}
	numCPU := r.NumCPU
	if numCPU == nil {
		numCPU = runtime.NumCPU
	}

	c, _ := firstNonBlank(
		candidate{explicit, SourceCLI},
		candidate{r.envValue(EnvProcessors), SourceEnv},
		candidate{fileValue, SourceFile},
		candidate{strconv.Itoa(numCPU()), SourceDefault},
	)

	n, err := strconv.ParseInt(strings.TrimSpace(c.value), 0, 0)
	if err != nil {
		return 0, c.source, &ParseError{Key: "workers.processes", Source: c.source, Value: c.value, Err: err}
	}
	if n < 1 {
		return 0, c.source, fmt.Errorf("%w: got %d from %s", ErrInvalidCount, n, c.source)
	}
	return int(n), c.source, nil
}

// Multiplier resolves the worker-count multiplier.
func (r *Resolver) Multiplier(explicit string) (float64, ConfigSource, error) {
	fileValue := ""
	if r.File != nil && r.File.Multiply != 0 {
		fileValue = strconv.FormatFloat(r.File.Multiply, 'g', -1, 64)
	}

	c, _ := firstNonBlank(
		candidate{explicit, SourceCLI},
		candidate{r.envValue(EnvMultiply), SourceEnv},
		candidate{fileValue, SourceFile},
		candidate{strconv.FormatFloat(DefaultMultiplier, 'g', -1, 64), SourceDefault},
	)

	f, err := strconv.ParseFloat(strings.TrimSpace(c.value), 64)
	if err != nil {
		return 0, c.source, &ParseError{Key: "workers.multiply", Source: c.source, Value: c.value, Err: err}
	}
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, c.source, fmt.Errorf("%w: got %v from %s", ErrInvalidMultiplier, f, c.source)
	}
	return f, c.source, nil
}

// WorkerCount resolves both values and returns round(count * multiplier),
// never less than 1.
func (r *Resolver) WorkerCount(explicitCount, explicitMultiply string) (int, error) {
	count, _, err := r.Count(explicitCount)
	if err != nil {
		return 0, err
	}
	mult, _, err := r.Multiplier(explicitMultiply)
	if err != nil {
		return 0, err
	}
	return ApplyMultiplier(count, mult), nil
}

// ApplyMultiplier scales count by mult, rounding half away from zero and
// clamping to 1.
func ApplyMultiplier(count int, mult float64) int {
	n := int(math.Round(float64(count) * mult))
	if n < 1 {
		return 1
	}
	return n
}

// ResolveCount resolves the worker count from explicit, then
// PARALLEL_TEST_PROCESSORS, then the processor count.
func ResolveCount(explicit string) (int, error) {
	r := &Resolver{}
	n, _, err := r.Count(explicit)
	return n, err
}

// ResolveMultiplier resolves the multiplier from explicit, then
// PARALLEL_TEST_MULTIPLY_PROCESSES, then DefaultMultiplier.
func ResolveMultiplier(explicit string) (float64, error) {
	r := &Resolver{}
	f, _, err := r.Multiplier(explicit)
	return f, err
}
