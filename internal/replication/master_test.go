package replication

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gofastdb/internal/protocol"
)

func TestNewMasterAssignsRunID(t *testing.T) {
	m := NewMaster()
	assert.NotEmpty(t, m.RunID())
}

func TestAddReplicaFirstRequestsSave(t *testing.T) {
	m := NewMaster()
	var buf bytes.Buffer
	link, needsSave := m.AddReplica(1, protocol.NewWriter(&buf))
	assert.True(t, needsSave)
	assert.Equal(t, WaitBgsaveStart, link.State)
}

func TestAddReplicaWhileSaveInProgressJoinsCohort(t *testing.T) {
	m := NewMaster()
	var buf1, buf2 bytes.Buffer
	_, needsSave1 := m.AddReplica(1, protocol.NewWriter(&buf1))
	require.True(t, needsSave1)

	link2, needsSave2 := m.AddReplica(2, protocol.NewWriter(&buf2))
	assert.False(t, needsSave2)
	assert.Equal(t, WaitBgsaveEnd, link2.State)
}

func TestRemoveReplicaDropsLink(t *testing.T) {
	m := NewMaster()
	var buf bytes.Buffer
	m.AddReplica(1, protocol.NewWriter(&buf))
	m.RemoveReplica(1)

	links, _ := m.MarkSaveDone(true)
	assert.Empty(t, links)
}

func TestMarkSaveDoneSuccessTransitionsToSendBulk(t *testing.T) {
	m := NewMaster()
	var buf bytes.Buffer
	m.AddReplica(1, protocol.NewWriter(&buf))

	links, _ := m.MarkSaveDone(true)
	require.Len(t, links, 1)
	assert.Equal(t, SendBulk, links[0].State)
}

func TestMarkSaveDoneFailureKeepsStateForCallerToClose(t *testing.T) {
	m := NewMaster()
	var buf bytes.Buffer
	m.AddReplica(1, protocol.NewWriter(&buf))

	links, _ := m.MarkSaveDone(false)
	require.Len(t, links, 1)
	assert.Equal(t, WaitBgsaveEnd, links[0].State)
}

func TestMarkSaveDoneReturnsBufferedDiff(t *testing.T) {
	m := NewMaster()
	var buf bytes.Buffer
	m.AddReplica(1, protocol.NewWriter(&buf))

	m.Propagate(0, [][]byte{[]byte("SET"), []byte("k"), []byte("v")})

	_, diff := m.MarkSaveDone(true)
	assert.Contains(t, string(diff), "SET")
}

func TestMarkOnlineTransitionsLink(t *testing.T) {
	m := NewMaster()
	var buf bytes.Buffer
	link, _ := m.AddReplica(1, protocol.NewWriter(&buf))
	m.MarkSaveDone(true)
	assert.Equal(t, SendBulk, link.State)

	m.MarkOnline(1)
	assert.Equal(t, Online, link.State)
}

func TestPropagateSkipsWaitBgsaveStartLinks(t *testing.T) {
	m := NewMaster()
	var buf bytes.Buffer
	w := protocol.NewWriter(&buf)
	m.AddReplica(1, w)

	m.Propagate(0, [][]byte{[]byte("SET"), []byte("k"), []byte("v")})
	assert.Equal(t, 0, w.Pending())
}

func TestPropagateDeliversToOnlineLinksWithSelectPrefix(t *testing.T) {
	m := NewMaster()
	var buf bytes.Buffer
	w := protocol.NewWriter(&buf)
	link, _ := m.AddReplica(1, w)
	m.MarkSaveDone(true)
	m.MarkOnline(link.ID)

	m.Propagate(3, [][]byte{[]byte("SET"), []byte("k"), []byte("v")})
	assert.Greater(t, w.Pending(), 0)

	require.NoError(t, w.DrainAll())
	out := buf.String()
	assert.Contains(t, out, "SELECT")
	assert.Contains(t, out, "SET")
}

func TestPropagateDeliversToMonitorsRegardlessOfLinkState(t *testing.T) {
	m := NewMaster()
	var monBuf bytes.Buffer
	monW := protocol.NewWriter(&monBuf)
	m.AddMonitor(99, monW)

	m.Propagate(0, [][]byte{[]byte("PING")})
	require.NoError(t, monW.DrainAll())
	assert.Contains(t, monBuf.String(), "PING")
}

func TestRemoveMonitorStopsDelivery(t *testing.T) {
	m := NewMaster()
	var monBuf bytes.Buffer
	monW := protocol.NewWriter(&monBuf)
	m.AddMonitor(99, monW)
	m.RemoveMonitor(99)

	m.Propagate(0, [][]byte{[]byte("PING")})
	require.NoError(t, monW.DrainAll())
	assert.Empty(t, monBuf.String())
}
