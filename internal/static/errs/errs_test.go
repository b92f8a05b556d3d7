package errs

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	transient := Transient(io.ErrUnexpectedEOF)
	assert.ErrorIs(t, transient, ComparisonTransientError)
	assert.ErrorIs(t, transient, io.ErrUnexpectedEOF)
	assert.True(t, IsTransient(transient))

	permanent := Permanent(errors.New("incompatible baseline"))
	assert.ErrorIs(t, permanent, ComparisonPermanentError)
	assert.False(t, IsTransient(permanent))

	assert.True(t, IsTransient(errors.New("unclassified")))
	assert.Nil(t, Transient(nil))
	assert.Nil(t, Permanent(nil))
}

func TestMalformed(t *testing.T) {
	err := Malformed("testcase %q mismatch", "login")
	assert.ErrorIs(t, err, MalformedPayload)
	assert.Contains(t, err.Error(), `"login"`)
}

func TestClassOf(t *testing.T) {
	assert.Equal(t, "transient", ClassOf(Transient(io.EOF)))
	assert.Equal(t, "permanent", ClassOf(Permanent(io.EOF)))
	assert.Equal(t, "transient", ClassOf(io.EOF))
}
