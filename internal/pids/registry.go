// Package pids implements the shared worker PID registry: a newline-delimited
// text file, one decimal PID per line, that sibling processes append to.
//
// Appends are safe across processes because each one is a single write(2) of
// a whole line to a file opened with O_APPEND. Reads never cache; every All
// or Count call re-reads the file so it reflects the latest appends from any
// process. Readers do not lock and may briefly miss an append that is in
// flight.
package pids

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// Registry is a handle on a PID file. It holds no open descriptors; the zero
// value is not usable, construct with New.
type Registry struct {
	// mu serializes Add and Remove within this process. Other processes
	// rely on append atomicity instead.
	mu   sync.Mutex
	path string
}

// New returns a Registry backed by the file at path. The file is created
// lazily by the first Add.
func New(path string) *Registry {
	return &Registry{path: path}
}

// Path returns the backing file path.
func (r *Registry) Path() string {
	return r.path
}

// Add appends pid to the registry. A PID already present is not appended
// again; this check is best-effort across processes, so readers also
// de-duplicate. A file that cannot be parsed skips the check and the append
// still happens.
func (r *Registry) Add(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("adding pid %d: pid must be positive", pid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, err := r.read(); err == nil && slices.Contains(existing, pid) {
		return nil
	}

	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("opening pid file %q: %w", r.path, err)
	}

	// One Write call per line keeps concurrent appends from interleaving.
	line := strconv.Itoa(pid) + "\n"
	if _, err := f.Write([]byte(line)); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("appending pid %d to %q: %w", pid, r.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing pid file %q: %w", r.path, err)
	}
	return nil
}

// All returns the registered PIDs in insertion order, without duplicates.
// A missing file yields an empty slice and no error.
func (r *Registry) All() ([]int, error) {
	return r.read()
}

// Count returns the number of registered PIDs.
func (r *Registry) Count() (int, error) {
	all, err := r.read()
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

// Remove rewrites the registry without pid. Only the process that owns the
// session should call it, after the worker has exited; an append from
// another process racing with the rewrite can be lost.
func (r *Registry) Remove(pid int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.read()
	if err != nil {
		return err
	}

	kept := existing[:0]
	found := false
	for _, p := range existing {
		if p == pid {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return nil
	}
	return r.writeAtomic(kept)
}

// read loads and parses the whole file. Callers may or may not hold r.mu.
func (r *Registry) read() ([]int, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []int{}, nil
		}
		return nil, fmt.Errorf("reading pid file %q: %w", r.path, err)
	}
	defer f.Close() //nolint:errcheck

	pids, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("reading pid file %q: %w", r.path, err)
	}
	return pids, nil
}

// parse reads one decimal PID per line, skipping blank lines and dropping
// repeats after the first occurrence.
func parse(rd io.Reader) ([]int, error) {
	pids := []int{}
	seen := make(map[int]bool)
	scanner := bufio.NewScanner(rd)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid pid %q", lineNum, line)
		}
		if seen[pid] {
			continue
		}
		seen[pid] = true
		pids = append(pids, pid)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning: %w", err)
	}
	return pids, nil
}

// writeAtomic writes pids to a temporary file in the same directory, then
// renames it over the registry path.
func (r *Registry) writeAtomic(pids []int) error {
	tmp, err := os.CreateTemp(filepath.Dir(r.path), filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp pid file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, p := range pids {
		if _, err := fmt.Fprintln(w, p); err != nil {
			tmp.Close()        //nolint:errcheck
			os.Remove(tmpName) //nolint:errcheck
			return fmt.Errorf("writing pid %d: %w", p, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()        //nolint:errcheck
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("flushing pid file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("closing temp pid file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("renaming temp pid file to %q: %w", r.path, err)
	}
	return nil
}
