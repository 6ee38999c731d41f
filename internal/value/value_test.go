package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStringEncoding(t *testing.T) {
	s := NewString([]byte("12345"))
	assert.Equal(t, EncInt, s.Encoding)
	assert.Equal(t, int64(12345), s.Int)
	assert.Equal(t, "12345", string(s.Bytes()))

	s = NewString([]byte("0123"))
	assert.Equal(t, EncRaw, s.Encoding, "leading zero doesn't round-trip, so it stays RAW")

	s = NewString([]byte("hello"))
	assert.Equal(t, EncRaw, s.Encoding)
	assert.Equal(t, "hello", string(s.Bytes()))
}

func TestRefcounting(t *testing.T) {
	o := NewString([]byte("x"))
	assert.EqualValues(t, 1, o.RefCount())
	o.Retain()
	assert.EqualValues(t, 2, o.RefCount())
	assert.False(t, o.Release())
	assert.True(t, o.Release(), "refcount hitting zero reports true")
}

func TestEnsureUnsharedClonesWhenShared(t *testing.T) {
	o := NewString([]byte("hello"))
	o.Retain()

	clone := o.EnsureUnshared()
	assert.NotSame(t, o, clone)
	assert.EqualValues(t, 1, clone.RefCount())
	assert.Equal(t, "hello", string(clone.Bytes()))

	clone.Raw[0] = 'X'
	assert.Equal(t, "hello", string(o.Bytes()), "mutating the clone must not affect the shared original")
}

func TestEnsureUnsharedDecodesIntInPlace(t *testing.T) {
	o := NewString([]byte("42"))
	assert.Equal(t, EncInt, o.Encoding)

	same := o.EnsureUnshared()
	assert.Same(t, o, same, "sole owner gets itself back, not a clone")
	assert.Equal(t, EncRaw, same.Encoding, "INT encoding is decoded to RAW so the caller can mutate in place")
	assert.Equal(t, "42", string(same.Bytes()))
}

func TestNewHashStartsPacked(t *testing.T) {
	h := NewHash(128, 64)
	assert.Equal(t, TypeHash, h.Type)
	assert.Equal(t, EncPackedMap, h.Encoding)
}
