package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
}

func TestCloneKeepsIdentity(t *testing.T) {
	cloned := Clone(ErrWindowClosed, "marking closed at 10:20")
	assert.True(t, stderrors.Is(cloned, ErrWindowClosed))
	assert.False(t, stderrors.Is(cloned, ErrAttendanceLocked))
	assert.Equal(t, "attendance window is closed", ErrWindowClosed.Message)
}

func TestWithDetails(t *testing.T) {
	err := WithDetails(ErrImportInvalid, []string{"line 2: email is required"})
	assert.Len(t, err.Details, 1)
	assert.Empty(t, ErrImportInvalid.Details)
}
