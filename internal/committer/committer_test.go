package committer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duralog/duralog/internal/codec"
	"github.com/duralog/duralog/internal/filehandle"
	"github.com/duralog/duralog/internal/queue"
	"github.com/duralog/duralog/internal/record"
)

func TestCommitNow_EmptyQueueIsNoop(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.log")

	fh, err := filehandle.Open(path)
	require.NoError(t, err)
	defer fh.Close()

	q := queue.New(10)
	c := New(fh, q, time.Second)

	require.NoError(t, c.CommitNow())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestCommitNow_WritesDrainedBatch(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.log")

	fh, err := filehandle.Open(path)
	require.NoError(t, err)
	defer fh.Close()

	q := queue.New(10)
	q.Put(record.NewTextValue("a"))
	q.Put(record.NewTextValue("b"))

	c := New(fh, q, time.Second)
	require.NoError(t, c.CommitNow())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	r := bytes.NewReader(data)
	v1, err := codec.Decode(r, path, 0)
	require.NoError(t, err)
	v2, err := codec.Decode(r, path, int64(len(data)))
	require.NoError(t, err)

	assert.Equal(t, "a", v1.Text)
	assert.Equal(t, "b", v2.Text)
	assert.Nil(t, c.LastError())
}

func TestStartAndShutdown_FlushesPendingRecords(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.log")

	fh, err := filehandle.Open(path)
	require.NoError(t, err)
	defer fh.Close()

	q := queue.New(10)
	// Use a long interval so the tick never fires during the test;
	// only Shutdown's synchronous final commit should persist this.
	c := New(fh, q, time.Hour)
	c.Start()

	q.Put(record.NewTextValue("final"))
	require.NoError(t, c.Shutdown())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	v, err := codec.Decode(bytes.NewReader(data), path, 0)
	require.NoError(t, err)
	assert.Equal(t, "final", v.Text)
}

func TestStart_PeriodicTickCommits(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.log")

	fh, err := filehandle.Open(path)
	require.NoError(t, err)
	defer fh.Close()

	q := queue.New(10)
	c := New(fh, q, 10*time.Millisecond)
	c.Start()
	defer c.Shutdown()

	q.Put(record.NewTextValue("ticked"))

	require.Eventually(t, func() bool {
		info, err := os.Stat(path)
		return err == nil && info.Size() > 0
	}, time.Second, 5*time.Millisecond)
}

func TestCommitNow_SurvivesExternalRotation(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "test.log")

	fh, err := filehandle.Open(path)
	require.NoError(t, err)
	defer fh.Close()

	q := queue.New(10)
	c := New(fh, q, time.Second)

	q.Put(record.NewTextValue("a"))
	require.NoError(t, c.CommitNow())

	require.NoError(t, os.Rename(path, path+".1"))

	q.Put(record.NewTextValue("b"))
	require.NoError(t, c.CommitNow())

	rotatedData, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	vRotated, err := codec.Decode(bytes.NewReader(rotatedData), path+".1", 0)
	require.NoError(t, err)
	assert.Equal(t, "a", vRotated.Text)

	freshData, err := os.ReadFile(path)
	require.NoError(t, err)
	vFresh, err := codec.Decode(bytes.NewReader(freshData), path, 0)
	require.NoError(t, err)
	assert.Equal(t, "b", vFresh.Text)
}
