package errors

import (
	stderr "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestError(t *testing.T) {
	e1 := New("cause1")
	e2 := New("cause2").Wrap(e1)
	e := New("dummy").Wrap(e2)
	e3 := e.Unwrap()
	assert.True(t, Is(e, e1))
	assert.True(t, Is(e, e2))
	assert.True(t, e3 == e2)
}

func TestSentinelIsNotMutated(t *testing.T) {
	sentinel := New("not found")
	cause := stderr.New("missing block")

	wrapped := sentinel.Wrap(cause)
	assert.True(t, Is(wrapped, sentinel))
	assert.True(t, Is(wrapped, cause))
	assert.Nil(t, sentinel.Unwrap())
	assert.Equal(t, "not found", sentinel.Error())
	assert.Equal(t, "not found: missing block", wrapped.Error())

	other := New("not found")
	assert.False(t, Is(wrapped, other))
}

func TestWrapMessage(t *testing.T) {
	sentinel := New("invalid path")
	err := sentinel.WrapMessage("segment %q", "/")
	assert.True(t, Is(err, sentinel))
	assert.Equal(t, `invalid path: segment "/"`, err.Error())
}

func TestWrapWithLog(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	sentinel := New("commit failed")

	err := sentinel.WrapWithLog(zap.New(core), stderr.New("boom"), zap.String("path", "a"))
	assert.True(t, Is(err, sentinel))
	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, "commit failed", logs.All()[0].Message)
}
