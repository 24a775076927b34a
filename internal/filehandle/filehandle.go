// Package filehandle owns the single append-mode file descriptor the
// committer writes through, along with the inode identity recorded at
// open time. It detects external log rotation (rename/replace of the
// live path) and reopens on demand.
package filehandle

import (
	"os"
	"path/filepath"
	"syscall"

	"github.com/duralog/duralog/internal/record"
)

// Manager owns one *os.File opened append-mode read/write, and the
// (dev, ino) pair captured when it was opened. No other component
// reads or writes through the descriptor it owns.
type Manager struct {
	path string
	file *os.File
	dev  uint64
	ino  uint64
}

// Open creates parent directories if missing and opens path in
// append-binary mode, caching its inode identity.
func Open(path string) (*Manager, error) {
	m := &Manager{path: path}
	if err := m.reopen(); err != nil {
		return nil, err
	}
	return m, nil
}

// File returns the currently open descriptor.
func (m *Manager) File() *os.File {
	return m.file
}

// Path returns the manager's target path.
func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) reopen() error {
	if m.file != nil {
		_ = m.file.Close()
		m.file = nil
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return record.NewIOError(m.path, "failed to create parent directory", err)
	}

	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return record.NewIOError(m.path, "failed to open log file", err)
	}

	dev, ino, err := statIdentity(f)
	if err != nil {
		_ = f.Close()
		return record.NewIOError(m.path, "failed to stat log file", err)
	}

	m.file = f
	m.dev = dev
	m.ino = ino
	return nil
}

// EnsureCurrent checks whether the file at path is still the one this
// Manager has open: if the path no longer exists, or its on-disk inode
// differs from the one cached at open time, the currently open
// descriptor is stale (an external tool renamed the live file away and
// possibly created a fresh one at the original path) and must be
// reopened before the next write. Callers must hold whatever mutex
// serializes access to the manager; EnsureCurrent does not lock
// internally.
func (m *Manager) EnsureCurrent() error {
	dev, ino, err := statPath(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return m.reopen()
		}
		return record.NewIOError(m.path, "failed to stat log file for rotation check", err)
	}

	if dev != m.dev || ino != m.ino {
		return m.reopen()
	}
	return nil
}

// Close releases the descriptor if open. Idempotent.
func (m *Manager) Close() error {
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	if err != nil {
		return record.NewIOError(m.path, "failed to close log file", err)
	}
	return nil
}

func statIdentity(f *os.File) (dev, ino uint64, err error) {
	info, err := f.Stat()
	if err != nil {
		return 0, 0, err
	}
	sys, ok := info.Sys().(*syscall.Stat_t)
	if !ok || sys == nil {
		return 0, 0, err
	}
	return uint64(sys.Dev), sys.Ino, nil
}

func statPath(path string) (dev, ino uint64, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, err
	}
	sys, ok := info.Sys().(*syscall.Stat_t)
	if !ok || sys == nil {
		return 0, 0, nil
	}
	return uint64(sys.Dev), sys.Ino, nil
}
