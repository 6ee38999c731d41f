package rdb

import (
	"bufio"
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeLength(t *testing.T, n int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, writeLength(w, n))
	require.NoError(t, w.Flush())
	return buf.Bytes()
}

func TestWriteReadLengthSmall(t *testing.T) {
	b := encodeLength(t, 42)
	assert.Len(t, b, 1)

	n, isEncoded, _, err := readLength(bufio.NewReader(bytes.NewReader(b)))
	require.NoError(t, err)
	assert.False(t, isEncoded)
	assert.Equal(t, 42, n)
}

func TestWriteReadLength14Bit(t *testing.T) {
	b := encodeLength(t, 1000)
	assert.Len(t, b, 2)

	n, isEncoded, _, err := readLength(bufio.NewReader(bytes.NewReader(b)))
	require.NoError(t, err)
	assert.False(t, isEncoded)
	assert.Equal(t, 1000, n)
}

func TestWriteReadLength32Bit(t *testing.T) {
	b := encodeLength(t, 1<<20)
	assert.Len(t, b, 5)

	n, isEncoded, _, err := readLength(bufio.NewReader(bytes.NewReader(b)))
	require.NoError(t, err)
	assert.False(t, isEncoded)
	assert.Equal(t, 1<<20, n)
}

func TestTryIntEncodingWidths(t *testing.T) {
	cases := []struct {
		in        string
		wantWidth int
		wantOK    bool
	}{
		{"0", 8, true},
		{"127", 8, true},
		{"128", 16, true},
		{"32767", 16, true},
		{"32768", 32, true},
		{"2147483647", 32, true},
		{"2147483648", 0, false},
		{"not-a-number", 0, false},
		{"007", 0, false}, // doesn't round-trip through FormatInt
	}
	for _, c := range cases {
		_, width, ok := tryIntEncoding([]byte(c.in))
		assert.Equal(t, c.wantOK, ok, c.in)
		if c.wantOK {
			assert.Equal(t, c.wantWidth, width, c.in)
		}
	}
}

func TestWriteReadStringPlain(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, writeString(w, []byte("hello world"), false))
	require.NoError(t, w.Flush())

	got, err := readString(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestWriteReadStringIntEncoding(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, writeString(w, []byte("12345"), false))
	require.NoError(t, w.Flush())

	got, err := readString(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, "12345", string(got))
}

func TestWriteReadStringCompressed(t *testing.T) {
	long := bytes.Repeat([]byte("abcdefgh"), 10)
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, writeString(w, long, true))
	require.NoError(t, w.Flush())

	got, err := readString(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, long, got)
}

func TestWriteReadDoubleFinite(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, writeDouble(w, 3.14159))
	require.NoError(t, w.Flush())

	got, err := readDouble(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.InDelta(t, 3.14159, got, 1e-9)
}

func TestWriteReadDoubleSpecials(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		var buf bytes.Buffer
		w := bufio.NewWriter(&buf)
		require.NoError(t, writeDouble(w, f))
		require.NoError(t, w.Flush())

		got, err := readDouble(bufio.NewReader(&buf))
		require.NoError(t, err)
		if math.IsNaN(f) {
			assert.True(t, math.IsNaN(got))
		} else {
			assert.Equal(t, f, got)
		}
	}
}
