package filelock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockExcludesTryLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".lock")

	unlock, err := Lock(path)
	require.NoError(t, err)

	// flock locks belong to the open file description, so a second open
	// in the same process conflicts just like another process would.
	_, err = TryLock(path)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, unlock())

	unlock, err = TryLock(path)
	require.NoError(t, err)
	require.NoError(t, unlock())
}
