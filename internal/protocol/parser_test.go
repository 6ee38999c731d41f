package protocol

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadRequestMultiBulk(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"))
	argv, err := ReadRequest(r, nil)
	assert.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("GET"), []byte("foo")}, argv)
}

func TestReadRequestInline(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("PING\r\n"))
	argv, err := ReadRequest(r, nil)
	assert.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("PING")}, argv)
}

func TestReadRequestInlineExtraSpaces(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("SET  foo   bar\r\n"))
	argv, err := ReadRequest(r, nil)
	assert.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("SET"), []byte("foo"), []byte("bar")}, argv)
}

func TestReadRequestInlineBulkFlag(t *testing.T) {
	bulkFlag := func(name string) bool { return name == "OLDSET" }
	r := bufio.NewReader(strings.NewReader("OLDSET foo 5\r\nhello\r\n"))
	argv, err := ReadRequest(r, bulkFlag)
	assert.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("OLDSET"), []byte("foo"), []byte("hello")}, argv)
}

func TestReadRequestPreservesPipelinedBytes(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("PING\r\nPING\r\n"))
	argv, err := ReadRequest(r, nil)
	assert.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("PING")}, argv)

	argv, err = ReadRequest(r, nil)
	assert.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("PING")}, argv)
}

func TestReadRequestMultiBulkEmptyArray(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("*0\r\n"))
	argv, err := ReadRequest(r, nil)
	assert.NoError(t, err)
	assert.Empty(t, argv)
}

func TestReadRequestMultiBulkBadHeader(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("*2\r\n:3\r\nGET\r\n"))
	_, err := ReadRequest(r, nil)
	assert.Error(t, err)
}

func TestReadRequestMultiBulkCountTooLarge(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("*99999999\r\n"))
	_, err := ReadRequest(r, nil)
	assert.Error(t, err)
}
