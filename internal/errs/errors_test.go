package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	assert.Equal(t, "[not_found] schema 3", New(ErrKindNotFound, "schema 3").Error())

	cause := errors.New("dial tcp: refused")
	assert.Equal(t, "[connection_failed] GET /initSchemas: dial tcp: refused",
		Wrap(ErrKindConnectionFailed, "GET /initSchemas", cause).Error())

	assert.Equal(t, "[http_status] GET /plan: http 500", Status(500, "GET /plan").Error())
}

func TestPredicates_SeeThroughWrapping(t *testing.T) {
	base := Wrap(ErrKindMalformedResponse, "decode", errors.New("unexpected EOF"))
	wrapped := fmt.Errorf("fetch schemas: %w", base)

	assert.True(t, IsMalformedResponse(wrapped))
	assert.False(t, IsConnectionFailed(wrapped))
	assert.Equal(t, ErrKindMalformedResponse, KindOf(wrapped))
}

func TestUnwrap_PreservesCause(t *testing.T) {
	err := Wrap(ErrKindTimeout, "download plan", context.DeadlineExceeded)

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, IsTimeout(err))
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrKindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, ErrKindUnknown, KindOf(nil))
	assert.Equal(t, "unknown", ErrKindUnknown.String())
}

func TestStatus_KeepsCode(t *testing.T) {
	var e *Error
	err := fmt.Errorf("outer: %w", Status(404, "GET /downloadPlan"))
	if assert.True(t, errors.As(err, &e)) {
		assert.Equal(t, 404, e.StatusCode)
		assert.True(t, IsHTTPStatus(err))
	}
}
