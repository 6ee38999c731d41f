package rdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gofastdb/internal/database"
	"gofastdb/internal/value"
)

func TestSaveBackgroundReportsCompletion(t *testing.T) {
	server := database.NewServer(1)
	server.DBAt(0).Set("k", value.NewString([]byte("v")))

	path := filepath.Join(t.TempDir(), "dump.rdb")
	done := make(chan error, 1)
	SaveBackground(server, path, false, done)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("SaveBackground did not report completion")
	}
}
