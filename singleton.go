package duralog

import (
	"path/filepath"
	"sync"
)

// registry backs OpenSingleton: a process-wide, path-keyed table of
// live Log instances, guarded by a mutex. This mirrors the original
// implementation's double-checked single-instance pattern
// (DuraLog.__new__), kept here as an opt-in convenience on top of Log
// rather than baked into Open itself -- the core log is equally
// correct with many independent instances, provided they target
// different paths. Callers that want one log per path shared across
// a process should prefer this over calling Open repeatedly.
var registry = struct {
	mu   sync.Mutex
	logs map[string]*Log
}{logs: make(map[string]*Log)}

// OpenSingleton returns the process's single Log for the resolved
// absolute form of filePath, opening it on first call and returning the
// existing instance on every subsequent call with the same path. opts
// are applied only on the first call for a given path; later calls with
// different opts are silently ignored, matching the original's
// double-checked __init__ (hasattr(self, "_initialized")) short
// circuit.
func OpenSingleton(filePath string, opts ...Option) (*Log, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, err
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if existing, ok := registry.logs[absPath]; ok {
		return existing, nil
	}

	l, err := Open(filePath, opts...)
	if err != nil {
		return nil, err
	}
	registry.logs[absPath] = l
	return l, nil
}

// CloseSingleton closes and forgets the process-wide Log registered for
// filePath, if any. It is a no-op if no singleton is open for that
// path.
func CloseSingleton(filePath string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return err
	}

	registry.mu.Lock()
	l, ok := registry.logs[absPath]
	if ok {
		delete(registry.logs, absPath)
	}
	registry.mu.Unlock()

	if !ok {
		return nil
	}
	return l.Close()
}
