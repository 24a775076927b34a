// Package committer implements the background worker that periodically
// drains the submission queue, encodes the batch, takes an exclusive
// advisory lock on the log file, writes and fsyncs it, and releases the
// lock. It is the single writer of the log file's descriptor.
package committer

import (
	"errors"
	"log"
	"sync"
	"syscall"
	"time"

	"github.com/duralog/duralog/internal/codec"
	"github.com/duralog/duralog/internal/filehandle"
	"github.com/duralog/duralog/internal/queue"
	"github.com/duralog/duralog/internal/record"
)

// DefaultInterval is the committer's wake interval when none is
// configured.
const DefaultInterval = time.Second

// Committer is a single long-lived worker. One Committer owns exactly
// one filehandle.Manager.
type Committer struct {
	interval time.Duration
	queue    *queue.Queue

	// fhMu guards fh: the committer's own critical section around the
	// descriptor, held in addition to (not instead of) the OS
	// advisory lock -- the advisory lock's real purpose is
	// coordinating with peer processes, not this process's own
	// goroutines.
	fhMu sync.Mutex
	fh   *filehandle.Manager

	shutdown chan struct{}
	stopped  chan struct{}

	errMu   sync.Mutex
	lastErr error
}

// New creates a Committer over fh, draining q every interval. A
// non-positive interval falls back to DefaultInterval. The worker is
// not started until Start is called.
func New(fh *filehandle.Manager, q *queue.Queue, interval time.Duration) *Committer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Committer{
		interval: interval,
		queue:    q,
		fh:       fh,
		shutdown: make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start launches the committer's background goroutine.
func (c *Committer) Start() {
	go c.run()
}

func (c *Committer) run() {
	defer close(c.stopped)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.shutdown:
			return
		case <-ticker.C:
			if err := c.CommitNow(); err != nil {
				// A failed tick is logged rather than propagated:
				// there is no caller on this goroutine to report
				// to. The values drained for the failed cycle are
				// not put back; the next wake runs a fresh cycle
				// over whatever has been queued since. Close()
				// surfaces whatever the final synchronous commit
				// returns.
				log.Printf("duralog: commit cycle failed: %v", err)
			}
		}
	}
}

// Shutdown signals the background goroutine to exit its wait loop,
// waits for it to terminate, then performs one final synchronous
// commit cycle on the caller's goroutine and returns its result. It is
// safe to call exactly once.
func (c *Committer) Shutdown() error {
	close(c.shutdown)
	<-c.stopped
	return c.CommitNow()
}

// LastError returns the error cached from the most recent commit
// cycle, or nil if the most recent cycle (or there has been none yet)
// succeeded.
func (c *Committer) LastError() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.lastErr
}

// CommitNow drains the queue and, if there is anything to write,
// encodes and durably persists it. It is exported so Shutdown (and
// tests) can force a cycle outside the timer.
func (c *Committer) CommitNow() error {
	err := c.commitCycle()
	c.errMu.Lock()
	c.lastErr = err
	c.errMu.Unlock()
	return err
}

func (c *Committer) commitCycle() error {
	values := c.queue.DrainNonBlocking()
	if len(values) == 0 {
		return nil
	}

	batch, err := encodeBatch(values)
	if err != nil {
		return err
	}

	fd := int(c.fh.File().Fd())
	if err := flockRetryEINTR(fd, syscall.LOCK_EX); err != nil {
		return record.NewIOError(c.fh.Path(), "failed to acquire advisory lock", err)
	}
	defer flockRetryEINTR(fd, syscall.LOCK_UN)

	c.fhMu.Lock()
	defer c.fhMu.Unlock()

	if err := c.fh.EnsureCurrent(); err != nil {
		return err
	}

	if _, err := c.fh.File().Write(batch); err != nil {
		return record.NewIOError(c.fh.Path(), "failed to write batch", err)
	}

	if err := c.fh.File().Sync(); err != nil {
		return record.NewIOError(c.fh.Path(), "failed to fsync", err)
	}

	return nil
}

func encodeBatch(values []record.Value) ([]byte, error) {
	var batch []byte
	for _, v := range values {
		var err error
		batch, err = codec.AppendEncoded(batch, v)
		if err != nil {
			return nil, err
		}
	}
	return batch, nil
}

// flockRetryEINTR wraps flock(2), retrying when the call is interrupted
// by a signal. EINTR means the syscall didn't fail, it just needs to be
// retried; a bounded retry count guards against a pathological signal
// storm rather than spinning forever.
func flockRetryEINTR(fd int, how int) error {
	const maxEINTRRetries = 10000

	var err error
	for i := 0; i < maxEINTRRetries; i++ {
		err = syscall.Flock(fd, how)
		if err == nil || !errors.Is(err, syscall.EINTR) {
			return err
		}
	}
	return err
}
