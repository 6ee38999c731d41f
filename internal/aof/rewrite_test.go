package aof

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gofastdb/internal/database"
	"gofastdb/internal/value"
)

func TestDiffBufferAccumulatesAndReturnsCopy(t *testing.T) {
	var d DiffBuffer
	d.Append([]byte("abc"))
	d.Append([]byte("def"))

	got := d.Bytes()
	assert.Equal(t, "abcdef", string(got))

	got[0] = 'X'
	assert.Equal(t, "abcdef", string(d.Bytes()))
}

func TestRewriteProducesReplayableLog(t *testing.T) {
	server := database.NewServer(1)
	db := server.DBAt(0)
	db.Set("str", value.NewString([]byte("hello")))

	list := value.NewList()
	list.List.RightPush([]byte("a"))
	list.List.RightPush([]byte("b"))
	db.Set("list", list)

	db.SetWithExpire("withttl", value.NewString([]byte("v")), 9999999999)

	path := filepath.Join(t.TempDir(), "rewrite.aof")
	require.NoError(t, Rewrite(server, path))

	_, err := os.Stat(path)
	require.NoError(t, err)

	var applied [][]string
	err = Replay(path, func(dbIdx int, argv [][]byte) error {
		strs := make([]string, len(argv))
		for i, a := range argv {
			strs[i] = string(a)
		}
		applied = append(applied, strs)
		return nil
	})
	require.NoError(t, err)

	foundSet, foundPush, foundExpireAt := false, 0, false
	for _, cmd := range applied {
		switch cmd[0] {
		case "SET":
			if cmd[1] == "str" {
				foundSet = true
				assert.Equal(t, "hello", cmd[2])
			}
		case "RPUSH":
			foundPush++
		case "EXPIREAT":
			foundExpireAt = true
		}
	}
	assert.True(t, foundSet)
	assert.Equal(t, 2, foundPush)
	assert.True(t, foundExpireAt)
}

func TestRewriteBackgroundReportsCompletion(t *testing.T) {
	server := database.NewServer(1)
	server.DBAt(0).Set("k", value.NewString([]byte("v")))

	path := filepath.Join(t.TempDir(), "rewrite.aof")
	done := make(chan error, 1)
	RewriteBackground(server, path, done)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RewriteBackground did not report completion")
	}
}
