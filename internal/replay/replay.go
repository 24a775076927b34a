// Package replay implements the bounded, corruption-tolerant scan over
// a point-in-time snapshot of the log file. It never shares the
// committer's descriptor and never reads past the file size captured
// when the scan began.
package replay

import (
	"io"
	"os"

	"github.com/duralog/duralog/internal/codec"
	"github.com/duralog/duralog/internal/record"
)

// Iterator yields decoded records from a single snapshot of the log
// file, skipping any corrupt frame. Callers drive it with Next in a
// loop rather than ranging over a channel, keeping the scan lazy and
// bounded to the snapshot captured at Open.
type Iterator struct {
	path         string
	file         *os.File
	snapshotSize int64
	offset       int64
	closed       bool
}

// Open captures the current size of path as the snapshot boundary and
// opens a fresh read-only descriptor on it. If the file is zero bytes,
// the returned Iterator yields nothing.
func Open(path string) (*Iterator, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, record.NewIOError(path, "failed to stat log file for replay", err)
	}

	it := &Iterator{path: path, snapshotSize: info.Size()}
	if it.snapshotSize == 0 {
		it.closed = true
		return it, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, record.NewIOError(path, "failed to open log file for replay", err)
	}
	it.file = f
	return it, nil
}

// Next advances the iterator and returns the next well-formed record.
// It returns (zero, false) once the snapshot is exhausted -- either
// because there is no room left for another header, or because every
// remaining byte has been consumed. Corrupt frames are skipped
// silently; they are never surfaced to the caller.
func (it *Iterator) Next() (record.Value, bool) {
	for {
		if it.closed || it.offset+codec.HeaderSize > it.snapshotSize {
			it.Close()
			return record.Value{}, false
		}

		start := it.offset
		bound := it.snapshotSize - it.offset
		lr := &io.LimitedReader{R: it.file, N: bound}
		v, err := codec.Decode(lr, it.path, start)
		it.offset += bound - lr.N

		if err != nil {
			// Corrupt frame: skip it. The file position has already
			// advanced past whatever Decode managed to consume, so
			// the loop makes forward progress.
			continue
		}
		return v, true
	}
}

// Close releases the read descriptor. Safe to call multiple times and
// safe to call before the iterator is exhausted, for callers that
// abandon a replay partway through.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	if it.file == nil {
		return nil
	}
	f := it.file
	it.file = nil
	return f.Close()
}
