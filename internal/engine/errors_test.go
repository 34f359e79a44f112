package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRuntimeError_Format(t *testing.T) {
	err := &RuntimeError{
		Code:     ErrCodeStackOverflow,
		Message:  "too deep",
		WorkerID: 1,
		FiberID:  4,
		Module:   "test",
		Func:     "loop",
	}
	assert.Equal(t, "STACK_OVERFLOW: too deep (worker=1, fiber=4, in test.loop)", err.Error())

	bare := &RuntimeError{Code: ErrCodeUneventful, Message: "no event", Err: errors.New("cause")}
	assert.Equal(t, "UNEVENTFUL: no event: cause", bare.Error())
}

func TestRuntimeError_Classification(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", &RuntimeError{Code: ErrCodeStackOverflow})

	assert.True(t, IsDefect(wrapped))
	assert.True(t, IsStackOverflow(wrapped))
	assert.False(t, IsProtocolError(wrapped))
	assert.Equal(t, ErrCodeStackOverflow, ErrorCode(wrapped))

	proto := newProtocolError(1, 2, "unexpected %s", "FoundCode")
	assert.True(t, IsProtocolError(proto))
	assert.False(t, IsDefect(proto))

	assert.False(t, IsDefect(errors.New("plain")))
	assert.Equal(t, RuntimeErrorCode(""), ErrorCode(errors.New("plain")))
}

func TestNewDefect_PreservesRuntimeError(t *testing.T) {
	inner := &RuntimeError{Code: ErrCodeResourceLost, Message: "lost"}
	got := newDefect(ErrCodeInterpreterDefect, fmt.Errorf("wrap: %w", inner), "step failed")
	assert.Same(t, inner, got)

	cause := errors.New("bad op")
	got = newDefect(ErrCodeInterpreterDefect, cause, "step failed")
	assert.Equal(t, ErrCodeInterpreterDefect, got.Code)
	assert.ErrorIs(t, got, cause)
}
