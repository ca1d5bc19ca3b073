package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := Validation(CodeConflict, "Dr. House is busy at 10:00")

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrPastTime))

	wrapped := fmt.Errorf("create appointment: %w", err)
	assert.True(t, errors.Is(wrapped, ErrConflict))
	assert.Equal(t, KindValidation, KindOf(wrapped))
}

func TestWrap_KeepsCauseAndCode(t *testing.T) {
	cause := errors.New("duplicate entry")
	err := Wrap(ErrConflict, cause)

	assert.True(t, errors.Is(err, ErrConflict))
	assert.True(t, errors.Is(err, cause))
	assert.Nil(t, ErrConflict.Cause, "sentinel must not be mutated")
	assert.Contains(t, err.Error(), "caused by: duplicate entry")
}

func TestKindOf_UnexpectedFailure(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("connection refused")))

	_, ok := As(errors.New("boom"))
	assert.False(t, ok)
}

func TestNotFound(t *testing.T) {
	err := NotFound("appointment")
	assert.Equal(t, "not_found: appointment not found", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
}
