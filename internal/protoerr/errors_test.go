package protoerr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnknown(t *testing.T) {
	assert.Equal(t, "unknown command 'FOO'", Unknown("FOO").Error())
}

func TestArity(t *testing.T) {
	assert.Equal(t, "wrong number of arguments for 'GET'", Arity("GET").Error())
}

func TestProtocol(t *testing.T) {
	err := Protocol("bad input")
	assert.Equal(t, "bad input", err.Error())
	var target ErrProtocolType
	assert.ErrorAs(t, err, &target)
}
