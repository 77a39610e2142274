package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	err := NotFoundf("booking not found")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "booking not found", err.Error())

	err = Conflictf("payment already exists for booking")
	assert.True(t, errors.Is(err, ErrConflict))

	err = Invalidf("participants exceed service capacity of %d", 4)
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.Equal(t, "participants exceed service capacity of 4", err.Error())
}

func TestWrappedClassSurvives(t *testing.T) {
	err := fmt.Errorf("creating booking: %w", Invalidf("cannot book a past time slot"))
	assert.True(t, errors.Is(err, ErrInvalid))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestPlainErrorsAreUnclassified(t *testing.T) {
	err := fmt.Errorf("connection reset")
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrInvalid))
}
