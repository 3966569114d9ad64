package helpers

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visits-observer/src/logger"
)

func newTestHandler(buf *bytes.Buffer) *ErrorHandler {
	h := NewErrorHandler(logger.NewLoggerWithWriter(buf, "DEBUG", "test"))
	h.BaseDelay = time.Millisecond
	return h
}

func TestMalformedEventErrorUnwraps(t *testing.T) {
	cause := errors.New("not a number")
	err := NewMalformedEventError("Pages", cause)

	assert.Equal(t, `malformed event: field "Pages": not a number`, err.Error())
	assert.ErrorIs(t, err, cause)

	var target *MalformedEventError
	require.ErrorAs(t, error(err), &target)
	assert.Equal(t, "Pages", target.Field)
}

func TestExecuteWithRetryEventuallySucceeds(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf)

	calls := 0
	err := h.ExecuteWithRetry("connect", func() error {
		calls++
		if calls < 3 {
			return errors.New("refused")
		}
		return nil
	}, 5)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 0, h.ErrorCount())
	assert.Contains(t, buf.String(), "connect failed (attempt 1/5)")
}

func TestExecuteWithRetryGivesUp(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf)
	cause := errors.New("refused")

	calls := 0
	err := h.ExecuteWithRetry("connect", func() error {
		calls++
		return cause
	}, 2)

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, err, cause)

	var terr *TransportError
	assert.ErrorAs(t, err, &terr)
	assert.Equal(t, 1, h.ErrorCount())
}

func TestHandleLevels(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf)

	h.Handle(nil, "noop")
	h.Handle(NewMalformedEventError("Count", nil), "decode")
	h.Handle(errors.New("boom"), "render")

	out := buf.String()
	assert.Contains(t, out, `WARNING: Error in decode: malformed event: field "Count"`)
	assert.Contains(t, out, "ERROR: Error in render: boom")
	assert.Equal(t, 2, h.ErrorCount())

	h.ResetErrorCount()
	assert.Equal(t, 0, h.ErrorCount())
}
