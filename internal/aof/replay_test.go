package aof

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appliedCmd struct {
	db   int
	argv []string
}

func TestReplayAppliesCommandsTrackingSelect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.aof")
	a, err := Open(path, FsyncNever)
	require.NoError(t, err)
	require.NoError(t, a.Append(0, [][]byte{[]byte("SET"), []byte("a"), []byte("1")}, 0))
	require.NoError(t, a.Append(2, [][]byte{[]byte("SET"), []byte("b"), []byte("2")}, 0))
	require.NoError(t, a.Close())

	var applied []appliedCmd
	err = Replay(path, func(db int, argv [][]byte) error {
		strs := make([]string, len(argv))
		for i, a := range argv {
			strs[i] = string(a)
		}
		applied = append(applied, appliedCmd{db: db, argv: strs})
		return nil
	})
	require.NoError(t, err)

	require.Len(t, applied, 2)
	assert.Equal(t, 0, applied[0].db)
	assert.Equal(t, []string{"SET", "a", "1"}, applied[0].argv)
	assert.Equal(t, 2, applied[1].db)
	assert.Equal(t, []string{"SET", "b", "2"}, applied[1].argv)
}

func TestReplayMissingFileIsNoOp(t *testing.T) {
	err := Replay(filepath.Join(t.TempDir(), "missing.aof"), func(db int, argv [][]byte) error {
		t.Fatal("apply should not be called")
		return nil
	})
	assert.NoError(t, err)
}

func TestReplayPropagatesApplyError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.aof")
	a, err := Open(path, FsyncNever)
	require.NoError(t, err)
	require.NoError(t, a.Append(0, [][]byte{[]byte("SET"), []byte("a"), []byte("1")}, 0))
	require.NoError(t, a.Close())

	wantErr := aofError("boom")
	err = Replay(path, func(db int, argv [][]byte) error {
		return wantErr
	})
	assert.Equal(t, wantErr, err)
}

func TestReplayMalformedEntryErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.aof")
	require.NoError(t, os.WriteFile(path, []byte("not-a-multibulk\r\n"), 0600))

	err := Replay(path, func(db int, argv [][]byte) error { return nil })
	assert.Error(t, err)
}
