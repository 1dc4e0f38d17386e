package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLockAcquireRelease(t *testing.T) {
	lock := &RunLock{
		Path:       filepath.Join(t.TempDir(), "pipeline.lock"),
		StaleAfter: time.Hour,
	}

	require.NoError(t, lock.Acquire())

	data, err := os.ReadFile(lock.Path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	lock.Release()
	_, err = os.Stat(lock.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestRunLockConflict(t *testing.T) {
	lock := &RunLock{
		Path:       filepath.Join(t.TempDir(), "pipeline.lock"),
		StaleAfter: time.Hour,
	}
	require.NoError(t, lock.Acquire())
	defer lock.Release()

	err := lock.Acquire()
	assert.ErrorIs(t, err, ErrLocked)
}

func TestRunLockTakesOverStaleLock(t *testing.T) {
	lock := &RunLock{
		Path:       filepath.Join(t.TempDir(), "pipeline.lock"),
		StaleAfter: time.Hour,
	}
	require.NoError(t, lock.Acquire())

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(lock.Path, old, old))

	require.NoError(t, lock.Acquire())
	lock.Release()
}

func TestRunLockReacquireAfterRelease(t *testing.T) {
	lock := &RunLock{
		Path:       filepath.Join(t.TempDir(), "pipeline.lock"),
		StaleAfter: time.Hour,
	}
	require.NoError(t, lock.Acquire())
	lock.Release()
	require.NoError(t, lock.Acquire())
	lock.Release()
}

func TestRunLockReleaseWithoutAcquire(t *testing.T) {
	lock := &RunLock{Path: filepath.Join(t.TempDir(), "missing.lock"), StaleAfter: time.Hour}
	lock.Release() // must not panic
}
