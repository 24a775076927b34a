// Package duralog is an embeddable, crash-resilient append-only log.
// Producers Append a structured map or a UTF-8 string; the log durably
// persists each record in a framed binary format and later allows
// Replay of every well-formed record. Once Append has returned and a
// subsequent Close has completed without error, every such record has
// survived an fsync to stable storage.
package duralog

import (
	"path/filepath"
	"time"

	"github.com/duralog/duralog/internal/committer"
	"github.com/duralog/duralog/internal/filehandle"
	"github.com/duralog/duralog/internal/queue"
	"github.com/duralog/duralog/internal/record"
	"github.com/duralog/duralog/internal/replay"
)

// Value, Kind, and the error taxonomy are re-exported from internal/record
// as the public surface of this package -- the concrete definitions live
// in internal/record so the internal codec/committer/replay packages can
// share them without importing the root package (which would be an
// import cycle, since the root package imports them).
type (
	Value           = record.Value
	Kind            = record.Kind
	ConfigError     = record.ConfigError
	IOError         = record.IOError
	CorruptionError = record.CorruptionError
)

const (
	KindMap  = record.KindMap
	KindText = record.KindText
)

// ErrUnsupportedValueType is returned by Append when called with
// anything other than map[string]any or string.
var ErrUnsupportedValueType = record.ErrUnsupportedValueType

// Log is a handle to one durable append-only log instance. The zero
// value is not usable; construct with Open. A Log must be Closed
// exactly once.
type Log struct {
	path      string
	fh        *filehandle.Manager
	queue     *queue.Queue
	committer *committer.Committer
}

// Option configures Open.
type Option func(*options)

type options struct {
	commitInterval time.Duration
	maxQueueSize   int
}

// WithCommitInterval sets how often the background committer wakes to
// drain and persist queued records. Default is 1 second.
func WithCommitInterval(d time.Duration) Option {
	return func(o *options) { o.commitInterval = d }
}

// WithMaxQueueSize sets the submission queue's bounded capacity.
// Default is 100000.
func WithMaxQueueSize(n int) Option {
	return func(o *options) { o.maxQueueSize = n }
}

// Open creates or opens the log at filePath, creating parent
// directories as needed, and starts the background committer. An empty
// filePath or a non-positive commit interval or queue size is a
// *ConfigError; a failure to resolve or open the path is an *IOError.
func Open(filePath string, opts ...Option) (*Log, error) {
	if filePath == "" {
		return nil, &ConfigError{Message: "file_path must not be empty"}
	}

	cfg := options{
		commitInterval: committer.DefaultInterval,
		maxQueueSize:   queue.DefaultCapacity,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.commitInterval <= 0 {
		return nil, &ConfigError{Message: "commit interval must be positive"}
	}
	if cfg.maxQueueSize <= 0 {
		return nil, &ConfigError{Message: "max queue size must be positive"}
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, record.NewIOError(filePath, "failed to resolve absolute path", err)
	}

	fh, err := filehandle.Open(absPath)
	if err != nil {
		return nil, err
	}

	q := queue.New(cfg.maxQueueSize)
	c := committer.New(fh, q, cfg.commitInterval)
	c.Start()

	return &Log{path: absPath, fh: fh, queue: q, committer: c}, nil
}

// Path returns the absolute path this log was opened at.
func (l *Log) Path() string {
	return l.path
}

// Append enqueues v for durable persistence. v must be a
// map[string]any or a string; anything else returns
// ErrUnsupportedValueType without touching the queue. Append blocks
// only when the queue is at capacity.
func (l *Log) Append(v any) error {
	val, err := record.FromAny(v)
	if err != nil {
		return err
	}
	l.queue.Put(val)
	return nil
}

// Replay returns an iterator over every well-formed record present in
// the log at the moment Replay is called. Records appended afterward,
// even by this same process, are not observed. Corrupt frames are
// skipped silently and never surfaced as an error; only a failure to
// stat or open the file is.
func (l *Log) Replay() (*replay.Iterator, error) {
	return replay.Open(l.path)
}

// Close signals the committer to stop, waits for it to drain its final
// tick, performs one last synchronous commit to flush anything still
// queued, and closes the file handle. Close is idempotent: subsequent
// calls return nil.
func (l *Log) Close() error {
	if l.committer == nil {
		return nil
	}
	commitErr := l.committer.Shutdown()
	l.committer = nil

	closeErr := l.fh.Close()
	if commitErr != nil {
		return commitErr
	}
	return closeErr
}
