package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesCodeAndCategory(t *testing.T) {
	err := New(CodeInvalidParams, "bad level", CategoryValidation)
	assert.Equal(t, CodeInvalidParams, err.Code())
	assert.Equal(t, "bad level", err.Message())
	assert.Equal(t, CategoryValidation, err.Category())
	assert.Nil(t, err.Data())
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(cause, CodeInternalError, "handler failed", CategoryHandler)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "handler failed")
	assert.Contains(t, err.Error(), "boom")
}

func TestWithData(t *testing.T) {
	base := New(CodeInvalidCursor, "invalid pagination cursor", CategoryValidation)
	withData := WithData(base, map[string]string{"cursor": "zzz"})
	assert.Equal(t, base.Code(), withData.Code())
	assert.Equal(t, map[string]string{"cursor": "zzz"}, withData.Data())
}

func TestAsThroughWrapping(t *testing.T) {
	inner := NewMethodNotFound("tools/destroy")
	wrapped := fmt.Errorf("dispatch: %w", inner)

	mcpErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeMethodNotFound, mcpErr.Code())

	_, ok = As(stderrors.New("plain"))
	assert.False(t, ok)
}

func TestCategoryAndCodePredicates(t *testing.T) {
	err := NewResourceNotFound("file:///missing.txt")
	assert.True(t, IsCategory(err, CategoryNotFound))
	assert.False(t, IsCategory(err, CategoryCancelled))
	assert.True(t, IsCode(err, CodeResourceNotFound))
	assert.False(t, IsCode(err, CodeInternalError))
	assert.False(t, IsCode(stderrors.New("plain"), CodeInternalError))
}
