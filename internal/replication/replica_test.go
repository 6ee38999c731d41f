package replication

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapLoadsSnapshotAndAppliesStream(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	snapshotPath := filepath.Join(t.TempDir(), "dump.rdb")
	snapshotBytes := []byte("FAKE-SNAPSHOT-BYTES")

	var loadedPath string
	loadSnapshot := func(path string) error {
		loadedPath = path
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		assert.Equal(t, snapshotBytes, data)
		return nil
	}

	var applied [][]byte
	applyDone := make(chan struct{})
	apply := func(argv [][]byte) error {
		applied = append(applied, argv...)
		close(applyDone)
		return io.EOF
	}

	go func() {
		// fake master side: reply to SYNC with a bulk length, the
		// snapshot payload, then one multi-bulk command.
		syncMsg := []byte("*1\r\n$4\r\nSYNC\r\n")
		header := make([]byte, len(syncMsg))
		io.ReadFull(server, header)

		server.Write([]byte("$" + itoa(len(snapshotBytes)) + "\r\n"))
		server.Write(snapshotBytes)
		server.Write([]byte("*1\r\n$4\r\nPING\r\n"))
	}()

	done := make(chan error, 1)
	go func() {
		done <- Bootstrap(client, "", snapshotPath, loadSnapshot, apply)
	}()

	select {
	case <-applyDone:
	case <-time.After(2 * time.Second):
		t.Fatal("apply was never called")
	}

	assert.Equal(t, snapshotPath, loadedPath)
	require.Len(t, applied, 1)
	assert.Equal(t, "PING", string(applied[0]))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
