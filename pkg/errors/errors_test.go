package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := New(CodeWrongFormat, "wrong dump format")
	assert.Equal(t, "[WRONG_FORMAT] wrong dump format", err.Error())

	wrapped := Wrap(CodeParseError, "parse failed", errors.New("boom"))
	assert.Equal(t, "[PARSE_ERROR] parse failed: boom", wrapped.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := Wrap(CodeDatabaseError, "db failed", inner)
	assert.ErrorIs(t, err, inner)
}

func TestAppError_Is(t *testing.T) {
	err := Wrap(CodeParseError, "specific parse failure", nil)
	assert.ErrorIs(t, err, ErrParseError)
	assert.NotErrorIs(t, err, ErrDatabaseError)

	assert.True(t, IsParseError(err))
	assert.False(t, IsDatabaseError(err))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, CodeUploadError, GetErrorCode(ErrUploadError))
	assert.Equal(t, CodeParseError, GetErrorCode(fmt.Errorf("outer: %w", ErrParseError)))
	assert.Equal(t, CodeUnknown, GetErrorCode(errors.New("plain")))
}

func TestGetErrorMessage(t *testing.T) {
	assert.Equal(t, "wrong dump format", GetErrorMessage(ErrWrongFormat))
	assert.Equal(t, "plain", GetErrorMessage(errors.New("plain")))
	assert.Equal(t, "", GetErrorMessage(nil))
}
